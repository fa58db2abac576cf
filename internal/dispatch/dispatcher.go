// Package dispatch consumes task messages and runs the generation workflow
// for each variant: parameter defaulting, prompt building, reference
// resolution, vendor calls, artifact persistence, billing and the terminal
// ledger write.
package dispatch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"storyboard-server/internal/domain"
	"storyboard-server/internal/infra"
	"storyboard-server/internal/providers/gateway"
	"storyboard-server/internal/providers/retry"
	"storyboard-server/internal/refasset"
)

// Gateway is the vendor surface the dispatcher calls. *gateway.Client
// implements it; tests substitute fakes.
type Gateway interface {
	GenerateImage(ctx context.Context, req gateway.ImageRequest) (*gateway.Response, error)
	GenerateText(ctx context.Context, req gateway.TextRequest) (string, error)
	SubmitVideo(ctx context.Context, req gateway.VideoRequest) (*gateway.VideoHandle, error)
	GetVideo(ctx context.Context, taskID string) (*gateway.VideoStatus, error)
	DownloadVideo(ctx context.Context, taskID string) ([]byte, string, error)
}

// Billing business types, one per artifact-producing workflow.
const (
	BizImageGeneration = "image_generation"
	BizVideoGeneration = "video_generation"
	BizTextParse       = "text_parse"
)

// Defaults are the system-level fallbacks when neither the request nor the
// project pins a value.
type Defaults struct {
	Model       string
	AspectRatio string
	TextModel   string
	VideoModel  string
}

// Options wires a Dispatcher.
type Options struct {
	Jobs     domain.JobRepository
	Targets  domain.TargetRepository
	Assets   domain.AssetRepository
	Billing  domain.Billing
	Storage  domain.Storage
	Gateway  Gateway
	Resolver *refasset.Resolver
	Retry    *retry.Controller
	Poller   *Poller
	Defaults Defaults

	// HTTPClient fetches vendor-hosted artifacts for the fetch-then-store step.
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Dispatcher owns the per-message workflow. It is stateless across messages
// and safe for concurrent use; each worker passes it one message at a time.
type Dispatcher struct {
	jobs     domain.JobRepository
	targets  domain.TargetRepository
	assets   domain.AssetRepository
	billing  domain.Billing
	storage  domain.Storage
	gateway  Gateway
	resolver *refasset.Resolver
	retry    *retry.Controller
	poller   *Poller
	defaults Defaults
	client   *http.Client
	logger   infra.Logger
}

// NewDispatcher wires a Dispatcher from options.
func NewDispatcher(opts Options) *Dispatcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Dispatcher{
		jobs:     opts.Jobs,
		targets:  opts.Targets,
		assets:   opts.Assets,
		billing:  opts.Billing,
		storage:  opts.Storage,
		gateway:  opts.Gateway,
		resolver: opts.Resolver,
		retry:    opts.Retry,
		poller:   opts.Poller,
		defaults: opts.Defaults,
		client:   client,
		logger:   logger,
	}
}

// Handle runs the workflow for one task message. Vendor and parsing errors
// are absorbed into a ledger failure and a nil return, so the message acks.
// Only an unexpected escape (panic or infrastructure error outside the
// per-target loop) returns non-nil, which dead-letters the message; the job
// is force-failed separately so the user never sees it stuck RUNNING.
func (d *Dispatcher) Handle(ctx context.Context, msg *domain.TaskMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: panic handling job %s: %v", msg.JobID, r)
			d.forceFail(ctx, msg.JobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	log := d.logger.With().Str("job_id", msg.JobID).Str("task", string(msg.Kind)).Logger()
	log.Info().Int("targets", len(msg.TargetIDs)).Msg("dispatch: task received")

	switch msg.Kind {
	case domain.TaskSingleImage, domain.TaskBatchImage:
		err = d.handleImages(ctx, msg, log)
	case domain.TaskSingleVideo:
		err = d.handleSingleVideo(ctx, msg, log)
	case domain.TaskBatchVideo:
		err = d.handleBatchVideo(ctx, msg, log)
	case domain.TaskTextParse:
		err = d.handleText(ctx, msg, log)
	default:
		err = fmt.Errorf("dispatch: %w: unknown kind %q", domain.ErrInvalidTask, msg.Kind)
	}
	if err != nil {
		d.forceFail(ctx, msg.JobID, "internal error, task aborted")
	}
	return err
}

// forceFail marks the job FAILED on the dead-letter path. A transition error
// means a terminal state is already recorded, which is fine.
func (d *Dispatcher) forceFail(ctx context.Context, jobID, message string) {
	if err := d.jobs.Fail(ctx, jobID, message); err != nil {
		d.logger.Warn().Err(err).Str("job_id", jobID).Msg("dispatch: force-fail skipped")
	}
}

// uploadImage stores one produced image, preferring inline base64 data and
// streaming vendor-hosted URLs through fetch-then-store.
func (d *Dispatcher) uploadImage(ctx context.Context, img gateway.Image, filename string) (string, error) {
	if img.B64 != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64)
		if err != nil {
			return "", fmt.Errorf("dispatch: decode image payload: %w", err)
		}
		return d.storage.Upload(ctx, data, filename, mimeOrDefault(img.MIME, "image/png"))
	}
	if img.URL != "" {
		return d.fetchStore(ctx, img.URL, filename)
	}
	return "", fmt.Errorf("dispatch: image artifact has neither data nor url")
}

// fetchStore streams a vendor-hosted artifact into persistent storage.
func (d *Dispatcher) fetchStore(ctx context.Context, rawURL, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("dispatch: build fetch request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("dispatch: fetch artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dispatch: fetch artifact: status %d", resp.StatusCode)
	}
	contentType := mimeOrDefault(resp.Header.Get("Content-Type"), "application/octet-stream")
	return d.storage.UploadStream(ctx, resp.Body, filename, contentType)
}

func mimeOrDefault(mime, fallback string) string {
	if mime == "" {
		return fallback
	}
	return mime
}

func extForMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ".png"
	}
}
