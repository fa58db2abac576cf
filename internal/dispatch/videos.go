package dispatch

import (
	"context"
	"fmt"

	"storyboard-server/internal/domain"
	"storyboard-server/internal/infra"
	"storyboard-server/internal/providers/gateway"
	"storyboard-server/internal/refasset"
)

// handleSingleVideo submits one shot for asynchronous video generation and
// waits for the vendor to finish via the poller.
func (d *Dispatcher) handleSingleVideo(ctx context.Context, msg *domain.TaskMessage, log infra.Logger) error {
	if err := d.jobs.MarkRunning(ctx, msg.JobID); err != nil {
		return fmt.Errorf("dispatch: mark running: %w", err)
	}
	params := d.videoParams(ctx, msg)

	if len(msg.TargetIDs) == 0 {
		if err := d.jobs.Fail(ctx, msg.JobID, domain.ErrInvalidTask.Error()); err != nil {
			return fmt.Errorf("dispatch: record failure: %w", err)
		}
		return nil
	}
	shotID := msg.TargetIDs[0]

	shot, err := d.targets.GetShot(ctx, shotID)
	if err != nil {
		if recordErr := d.jobs.Fail(ctx, msg.JobID, fmt.Sprintf("load shot %s: %v", shotID, err)); recordErr != nil {
			return fmt.Errorf("dispatch: record failure: %w", recordErr)
		}
		return nil
	}

	// MISSING mode: a shot that already owns a video is a success with no
	// vendor call, same as the image path.
	if params.Mode == domain.ModeMissing && shot.VideoURL != "" {
		if err := d.jobs.UpdateProgress(ctx, msg.JobID, 1, 1); err != nil {
			log.Warn().Err(err).Msg("dispatch: progress update failed")
		}
		if err := d.jobs.Complete(ctx, msg.JobID, shot.VideoURL, map[string]any{
			domain.MetaResultCount: 1,
		}); err != nil {
			return fmt.Errorf("dispatch: record success: %w", err)
		}
		return nil
	}

	job, err := d.submitShotVideo(ctx, msg, params, shot)
	if err != nil {
		if recordErr := d.jobs.Fail(ctx, msg.JobID, err.Error()); recordErr != nil {
			return fmt.Errorf("dispatch: record failure: %w", recordErr)
		}
		return nil
	}

	metadata := map[string]any{
		domain.MetaVendorTaskID: job.VendorTaskID,
		domain.MetaModel:        params.Model,
		domain.MetaAspectRatio:  params.AspectRatio,
	}
	if err := d.jobs.SetMetadata(ctx, msg.JobID, metadata); err != nil {
		log.Warn().Err(err).Msg("dispatch: vendor task id not recorded")
	}
	log.Info().Str("vendor_task_id", job.VendorTaskID).Msg("dispatch: video submitted, polling")

	resultURL, err := d.poller.Await(ctx, job)
	if err != nil {
		if recordErr := d.jobs.Fail(ctx, msg.JobID, err.Error()); recordErr != nil {
			return fmt.Errorf("dispatch: record failure: %w", recordErr)
		}
		return nil
	}

	if err := d.jobs.UpdateProgress(ctx, msg.JobID, 1, 1); err != nil {
		log.Warn().Err(err).Msg("dispatch: progress update failed")
	}
	if err := d.jobs.Complete(ctx, msg.JobID, resultURL, map[string]any{
		domain.MetaResultCount: 1,
	}); err != nil {
		return fmt.Errorf("dispatch: record success: %w", err)
	}
	return nil
}

// handleBatchVideo runs the submit-and-await cycle per target, aggregating
// like the image batch: the job fails only when no target produced a video.
func (d *Dispatcher) handleBatchVideo(ctx context.Context, msg *domain.TaskMessage, log infra.Logger) error {
	if err := d.jobs.MarkRunning(ctx, msg.JobID); err != nil {
		return fmt.Errorf("dispatch: mark running: %w", err)
	}
	params := d.videoParams(ctx, msg)

	if len(msg.TargetIDs) == 0 {
		if err := d.jobs.Fail(ctx, msg.JobID, domain.ErrInvalidTask.Error()); err != nil {
			return fmt.Errorf("dispatch: record failure: %w", err)
		}
		return nil
	}

	total := len(msg.TargetIDs)
	var success, failed int
	var resultURLs []string
	var lastErr string

	for i, shotID := range msg.TargetIDs {
		url, err := d.generateShotVideo(ctx, msg, params, shotID)
		if err != nil {
			failed++
			lastErr = err.Error()
			log.Error().Err(err).Str("shot_id", shotID).Msg("dispatch: target failed")
		} else {
			success++
			if url != "" {
				resultURLs = append(resultURLs, url)
			}
		}
		if err := d.jobs.UpdateProgress(ctx, msg.JobID, i+1, total); err != nil {
			log.Warn().Err(err).Msg("dispatch: progress update failed")
		}
	}

	if success == 0 && total > 0 {
		message := fmt.Sprintf("all %d targets failed", total)
		if lastErr != "" {
			message += ": " + lastErr
		}
		if err := d.jobs.Fail(ctx, msg.JobID, message); err != nil {
			return fmt.Errorf("dispatch: record failure: %w", err)
		}
		return nil
	}

	var primary string
	if len(resultURLs) > 0 {
		primary = resultURLs[0]
	}
	metadata := map[string]any{
		domain.MetaResultURLs:  resultURLs,
		domain.MetaResultCount: len(resultURLs),
		domain.MetaModel:       params.Model,
	}
	if failed > 0 {
		metadata[domain.MetaFailedItems] = failed
	}
	if err := d.jobs.Complete(ctx, msg.JobID, primary, metadata); err != nil {
		return fmt.Errorf("dispatch: record success: %w", err)
	}
	log.Info().Int("success", success).Int("failed", failed).Msg("dispatch: video task done")
	return nil
}

// generateShotVideo is the per-target batch step: submit, then await the
// vendor result synchronously. Under MISSING mode a shot that already owns a
// video counts as success and skips the vendor entirely.
func (d *Dispatcher) generateShotVideo(ctx context.Context, msg *domain.TaskMessage, params domain.GenerationParams, shotID string) (string, error) {
	shot, err := d.targets.GetShot(ctx, shotID)
	if err != nil {
		return "", fmt.Errorf("load shot %s: %w", shotID, err)
	}
	if params.Mode == domain.ModeMissing && shot.VideoURL != "" {
		return shot.VideoURL, nil
	}
	job, err := d.submitShotVideo(ctx, msg, params, shot)
	if err != nil {
		return "", err
	}
	return d.poller.Await(ctx, job)
}

// submitShotVideo resolves the mandatory reference image, conforms it to the
// vendor's pixel size and submits the multipart create call through the retry
// controller. The request body is rebuilt on every attempt.
func (d *Dispatcher) submitShotVideo(ctx context.Context, msg *domain.TaskMessage, params domain.GenerationParams, shot *domain.Shot) (VideoJob, error) {
	var job VideoJob
	shotID := shot.ID

	src := referenceSources(msg, shot)
	if shot.AssetURL != "" {
		src.URLs = append(append([]string{}, src.URLs...), shot.AssetURL)
	}
	ref := d.resolver.ResolveOne(ctx, d.resolver.Collect(ctx, src))
	if ref == "" {
		return job, domain.ErrMissingReference
	}

	refData, refMIME, err := d.resolver.Download(ctx, ref)
	if err != nil {
		return job, fmt.Errorf("fetch reference for shot %s: %w", shotID, err)
	}

	size := gateway.VideoSizeForRatio(params.AspectRatio)
	var seconds *int
	if msg.Video != nil {
		if msg.Video.Size != "" {
			size = msg.Video.Size
		}
		seconds = msg.Video.DurationSeconds
	}
	refData, refMIME = refasset.ResizeForVideo(refData, refMIME, size)

	prompt := buildPrompt(msg.CustomPrompt, shot)
	var handle *gateway.VideoHandle
	err = d.retry.Do(ctx, func(ctx context.Context) error {
		h, submitErr := d.gateway.SubmitVideo(ctx, gateway.VideoRequest{
			Prompt:        prompt,
			Model:         params.Model,
			AspectRatio:   params.AspectRatio,
			Seconds:       seconds,
			Size:          size,
			ReferenceData: refData,
			ReferenceName: "reference" + extForMIME(refMIME),
			ReferenceMIME: refMIME,
		})
		if submitErr != nil {
			return submitErr
		}
		handle = h
		return nil
	})
	if err != nil {
		return job, fmt.Errorf("submit video for shot %s: %w", shotID, err)
	}

	job = VideoJob{
		JobID:        msg.JobID,
		UserID:       msg.UserID,
		ProjectID:    shot.ProjectID,
		ShotID:       shotID,
		VendorTaskID: handle.ID,
		Prompt:       prompt,
		Model:        params.Model,
		AspectRatio:  params.AspectRatio,
	}
	return job, nil
}

// videoParams resolves video generation parameters. The project's default
// model is an image model, so the model chain for video is request value then
// system video model; the aspect ratio chain is unchanged.
func (d *Dispatcher) videoParams(ctx context.Context, msg *domain.TaskMessage) domain.GenerationParams {
	params := d.resolveParams(ctx, msg.ProjectID, msg.Params, d.defaults.VideoModel)
	if msg.Params.Model == "" {
		params.Model = d.defaults.VideoModel
	}
	return params
}
