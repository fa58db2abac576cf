package dispatch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storyboard-server/internal/domain"
	"storyboard-server/internal/infra"
	"storyboard-server/internal/providers/gateway"
)

// VideoJob identifies one vendor-side video task being awaited, plus the
// context needed to persist and bill its result.
type VideoJob struct {
	JobID        string
	UserID       string
	ProjectID    string
	ShotID       string
	VendorTaskID string
	Prompt       string
	Model        string
	AspectRatio  string
}

// PollerOptions wires a Poller.
type PollerOptions struct {
	Gateway  Gateway
	Assets   domain.AssetRepository
	Billing  domain.Billing
	Storage  domain.Storage
	Interval time.Duration
	// Sleep is injectable for tests; defaults to a context-aware wait.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *infra.Logger
}

// Poller watches an asynchronous vendor video task on a fixed interval until
// a terminal status. The caller owns the job ledger; the poller only touches
// assets, storage and billing, and only on success.
type Poller struct {
	gateway  Gateway
	assets   domain.AssetRepository
	billing  domain.Billing
	storage  domain.Storage
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	logger   infra.Logger
}

// NewPoller wires a Poller from options.
func NewPoller(opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Poller{
		gateway:  opts.Gateway,
		assets:   opts.Assets,
		billing:  opts.Billing,
		storage:  opts.Storage,
		interval: interval,
		sleep:    sleep,
		logger:   logger,
	}
}

// Await polls until the vendor task is terminal. On completion it downloads
// the media, stores it, records the asset version, charges one unit and
// returns the stored URL. A vendor-side failure returns an error; transient
// poll errors keep the loop alive.
func (p *Poller) Await(ctx context.Context, job VideoJob) (string, error) {
	log := p.logger.With().Str("job_id", job.JobID).Str("vendor_task_id", job.VendorTaskID).Logger()
	for {
		status, err := p.gateway.GetVideo(ctx, job.VendorTaskID)
		if err != nil {
			if gateway.IsTransient(err) {
				log.Warn().Err(err).Msg("poller: transient status error")
			} else {
				return "", fmt.Errorf("poll video %s: %w", job.VendorTaskID, err)
			}
		} else if status.Status == gateway.VideoCompleted {
			return p.finish(ctx, job)
		} else if gateway.TerminalVideoStatus(status.Status) {
			message := "video generation failed"
			if status.Error != nil && status.Error.Message != "" {
				message = status.Error.Message
			}
			return "", fmt.Errorf("poll video %s: %s", job.VendorTaskID, message)
		} else {
			log.Debug().Str("status", status.Status).Int("progress", status.Progress).Msg("poller: waiting")
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return "", err
		}
	}
}

func (p *Poller) finish(ctx context.Context, job VideoJob) (string, error) {
	data, mimeType, err := p.gateway.DownloadVideo(ctx, job.VendorTaskID)
	if err != nil {
		return "", fmt.Errorf("download video %s: %w", job.VendorTaskID, err)
	}
	filename := "videos/" + uuid.NewString() + extForMIME(mimeType)
	url, err := p.storage.Upload(ctx, data, filename, mimeType)
	if err != nil {
		return "", fmt.Errorf("store video %s: %w", job.VendorTaskID, err)
	}

	version := &domain.AssetVersion{
		ProjectID:   job.ProjectID,
		OwnerType:   domain.OwnerShot,
		OwnerID:     job.ShotID,
		Type:        domain.AssetVideo,
		URL:         url,
		Prompt:      job.Prompt,
		Model:       job.Model,
		AspectRatio: job.AspectRatio,
		UserID:      job.UserID,
	}
	if err := p.assets.CreateVersion(ctx, version); err != nil {
		return "", fmt.Errorf("persist video asset: %w", err)
	}

	err = p.billing.Charge(ctx, job.JobID, job.UserID, BizVideoGeneration, job.Model, 1, map[string]any{
		"shot_id":        job.ShotID,
		"vendor_task_id": job.VendorTaskID,
	})
	if err != nil {
		return "", fmt.Errorf("charge for video: %w", err)
	}
	return url, nil
}
