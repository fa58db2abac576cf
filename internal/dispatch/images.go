package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"storyboard-server/internal/domain"
	"storyboard-server/internal/infra"
	"storyboard-server/internal/providers/gateway"
	"storyboard-server/internal/refasset"
)

// handleImages serves single_image and batch_image tasks. Single is a batch
// of one target; the loop and aggregation are identical.
func (d *Dispatcher) handleImages(ctx context.Context, msg *domain.TaskMessage, log infra.Logger) error {
	if err := d.jobs.MarkRunning(ctx, msg.JobID); err != nil {
		return fmt.Errorf("dispatch: mark running: %w", err)
	}
	params := d.resolveParams(ctx, msg.ProjectID, msg.Params, d.defaults.Model)

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
		url, err := d.generateShotImage(ctx, msg, params, shotID, log)
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

	// A batch fails only when nothing succeeded; partial failures are
	// absorbed into metadata.
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
		domain.MetaAspectRatio: params.AspectRatio,
	}
	if failed > 0 {
		metadata[domain.MetaFailedItems] = failed
	}
	if err := d.jobs.Complete(ctx, msg.JobID, primary, metadata); err != nil {
		return fmt.Errorf("dispatch: record success: %w", err)
	}
	log.Info().Int("success", success).Int("failed", failed).Msg("dispatch: image task done")
	return nil
}

// generateShotImage runs one target through prompt build, reference
// resolution, the vendor call, artifact upload, asset persistence and a
// single billing charge. It returns the primary artifact URL.
func (d *Dispatcher) generateShotImage(ctx context.Context, msg *domain.TaskMessage, params domain.GenerationParams, shotID string, log infra.Logger) (string, error) {
	shot, err := d.targets.GetShot(ctx, shotID)
	if err != nil {
		return "", fmt.Errorf("load shot %s: %w", shotID, err)
	}

	// MISSING mode: a target that already owns an asset is a success, not a
	// skip, and costs no vendor call.
	if params.Mode == domain.ModeMissing && shot.AssetURL != "" {
		log.Debug().Str("shot_id", shotID).Msg("dispatch: asset exists, counting as success")
		return shot.AssetURL, nil
	}

	refURLs := d.resolver.Collect(ctx, referenceSources(msg, shot))
	var references []string
	if ref := d.resolver.ResolveOne(ctx, refURLs); ref != "" {
		references = []string{ref}
	}

	resp, err := d.gateway.GenerateImage(ctx, gateway.ImageRequest{
		Prompt:        buildPrompt(msg.CustomPrompt, shot),
		Model:         params.Model,
		AspectRatio:   params.AspectRatio,
		Count:         params.CountPerItem,
		ReferenceURLs: references,
	})
	if err != nil {
		return "", fmt.Errorf("generate shot %s: %w", shotID, err)
	}
	if len(resp.Images) == 0 {
		return "", fmt.Errorf("generate shot %s: vendor returned no images", shotID)
	}

	var primary string
	for _, img := range resp.Images {
		filename := "images/" + uuid.NewString() + extForMIME(img.MIME)
		url, err := d.uploadImage(ctx, img, filename)
		if err != nil {
			return "", fmt.Errorf("store artifact for shot %s: %w", shotID, err)
		}
		if primary == "" {
			primary = url
		}
		version := &domain.AssetVersion{
			ProjectID:   shot.ProjectID,
			OwnerType:   domain.OwnerShot,
			OwnerID:     shotID,
			Type:        domain.AssetImage,
			URL:         url,
			Prompt:      buildPrompt(msg.CustomPrompt, shot),
			Model:       params.Model,
			AspectRatio: params.AspectRatio,
			UserID:      msg.UserID,
		}
		if err := d.assets.CreateVersion(ctx, version); err != nil {
			return "", fmt.Errorf("persist asset for shot %s: %w", shotID, err)
		}
	}

	// One unit per vendor call, regardless of how many images it returned.
	err = d.billing.Charge(ctx, msg.JobID, msg.UserID, BizImageGeneration, params.Model, 1, map[string]any{
		"shot_id": shotID,
	})
	if err != nil {
		return "", fmt.Errorf("charge for shot %s: %w", shotID, err)
	}
	return primary, nil
}

// referenceSources combines the message-level reference hints with the
// shot's own links. Message hints win when present.
func referenceSources(msg *domain.TaskMessage, shot *domain.Shot) refasset.Sources {
	src := refasset.Sources{
		URLs:         msg.ReferenceURLs,
		CharacterIDs: msg.CharacterIDs,
		SceneID:      msg.SceneID,
		PropIDs:      msg.PropIDs,
	}
	if len(src.CharacterIDs) == 0 {
		src.CharacterIDs = shot.CharacterIDs
	}
	if src.SceneID == "" {
		src.SceneID = shot.SceneID
	}
	if len(src.PropIDs) == 0 {
		src.PropIDs = shot.PropIDs
	}
	return src
}
