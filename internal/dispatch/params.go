package dispatch

import (
	"context"

	"storyboard-server/internal/domain"
)

// resolveParams fills empty generation parameters from the project defaults,
// then the system default passed by the workflow (image and video workflows
// carry different system models). Model and aspect ratio fall back
// independently: a request may pin one and inherit the other.
func (d *Dispatcher) resolveParams(ctx context.Context, projectID string, p domain.GenerationParams, systemModel string) domain.GenerationParams {
	var project *domain.Project
	if p.Model == "" || p.AspectRatio == "" {
		var err error
		project, err = d.targets.GetProject(ctx, projectID)
		if err != nil {
			d.logger.Warn().Err(err).Str("project_id", projectID).
				Msg("dispatch: project defaults unavailable")
			project = nil
		}
	}

	if p.Model == "" {
		if project != nil && project.DefaultModel != "" {
			p.Model = project.DefaultModel
		} else {
			p.Model = systemModel
		}
	}
	if p.AspectRatio == "" {
		if project != nil && project.DefaultAspectRatio != "" {
			p.AspectRatio = project.DefaultAspectRatio
		} else {
			p.AspectRatio = d.defaults.AspectRatio
		}
	}
	if p.CountPerItem <= 0 {
		p.CountPerItem = 1
	}
	if p.Mode == "" {
		p.Mode = domain.ModeAll
	}
	return p
}
