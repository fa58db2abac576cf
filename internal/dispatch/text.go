package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"storyboard-server/internal/domain"
	"storyboard-server/internal/infra"
	"storyboard-server/internal/providers/gateway"
)

// parseInstruction asks the model to break a story into storyboard shots.
const parseInstruction = `You split stories into storyboard shots.
Return one numbered shot per narrative beat. For each shot give a one-line title,
the script text covered by the shot, and a short visual description.
Cover the whole story: do not merge, drop or invent beats.`

// handleText serves text_parse tasks: one chat completion that structures the
// submitted story, stored as a text artifact.
func (d *Dispatcher) handleText(ctx context.Context, msg *domain.TaskMessage, log infra.Logger) error {
	if err := d.jobs.MarkRunning(ctx, msg.JobID); err != nil {
		return fmt.Errorf("dispatch: mark running: %w", err)
	}

	model := msg.Params.Model
	if model == "" {
		model = d.defaults.TextModel
	}

	out, err := d.gateway.GenerateText(ctx, gateway.TextRequest{
		System:      parseInstruction + "\n" + languageInstruction(msg.Language),
		Prompt:      msg.Text,
		Model:       model,
		MaxTokens:   4096,
		Temperature: 0.7,
		TopP:        0.9,
	})
	if err != nil {
		if recordErr := d.jobs.Fail(ctx, msg.JobID, err.Error()); recordErr != nil {
			return fmt.Errorf("dispatch: record failure: %w", recordErr)
		}
		return nil
	}

	url, err := d.storage.Upload(ctx, []byte(out), "texts/"+msg.JobID+".txt", "text/plain; charset=utf-8")
	if err != nil {
		if recordErr := d.jobs.Fail(ctx, msg.JobID, fmt.Sprintf("store parse result: %v", err)); recordErr != nil {
			return fmt.Errorf("dispatch: record failure: %w", recordErr)
		}
		return nil
	}

	err = d.billing.Charge(ctx, msg.JobID, msg.UserID, BizTextParse, model, 1, nil)
	if err != nil {
		if recordErr := d.jobs.Fail(ctx, msg.JobID, err.Error()); recordErr != nil {
			return fmt.Errorf("dispatch: record failure: %w", recordErr)
		}
		return nil
	}

	if err := d.jobs.UpdateProgress(ctx, msg.JobID, 1, 1); err != nil {
		log.Warn().Err(err).Msg("dispatch: progress update failed")
	}
	if err := d.jobs.Complete(ctx, msg.JobID, url, map[string]any{
		domain.MetaResultCount: 1,
		domain.MetaModel:       model,
	}); err != nil {
		return fmt.Errorf("dispatch: record success: %w", err)
	}
	log.Info().Msg("dispatch: text task done")
	return nil
}

// languageInstruction pins the output language from a BCP-47 tag. Unknown or
// empty tags fall back to English.
func languageInstruction(code string) string {
	name := "English"
	if code != "" {
		if tag, err := language.Parse(code); err == nil {
			if n := display.English.Languages().Name(tag); n != "" {
				name = n
			}
		}
	}
	return "Respond only in " + name + "."
}
