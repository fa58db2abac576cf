package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storyboard-server/internal/domain"
)

type submitRequest struct {
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`

	ShotID  string   `json:"shot_id,omitempty"`
	ShotIDs []string `json:"shot_ids,omitempty"`

	Model        string `json:"model,omitempty"`
	AspectRatio  string `json:"aspect_ratio,omitempty"`
	CountPerItem int    `json:"count_per_item,omitempty"`
	Mode         string `json:"mode,omitempty"`

	CustomPrompt  string   `json:"custom_prompt,omitempty"`
	ReferenceURLs []string `json:"reference_urls,omitempty"`
	CharacterIDs  []string `json:"character_ids,omitempty"`
	SceneID       string   `json:"scene_id,omitempty"`
	PropIDs       []string `json:"prop_ids,omitempty"`

	DurationSeconds *int   `json:"duration_seconds,omitempty"`
	Size            string `json:"size,omitempty"`

	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
}

func (r *submitRequest) targets(batch bool) []string {
	if batch {
		return r.ShotIDs
	}
	if r.ShotID == "" {
		return nil
	}
	return []string{r.ShotID}
}

// SubmitImage creates a single-image job.
func (a *App) SubmitImage(w http.ResponseWriter, r *http.Request) {
	a.submit(w, r, domain.TaskSingleImage, false)
}

// SubmitImageBatch creates a batch-image job over the listed shots.
func (a *App) SubmitImageBatch(w http.ResponseWriter, r *http.Request) {
	a.submit(w, r, domain.TaskBatchImage, true)
}

// SubmitVideo creates a single-video job.
func (a *App) SubmitVideo(w http.ResponseWriter, r *http.Request) {
	a.submit(w, r, domain.TaskSingleVideo, false)
}

// SubmitVideoBatch creates a batch-video job over the listed shots.
func (a *App) SubmitVideoBatch(w http.ResponseWriter, r *http.Request) {
	a.submit(w, r, domain.TaskBatchVideo, true)
}

// SubmitText creates a text-parse job.
func (a *App) SubmitText(w http.ResponseWriter, r *http.Request) {
	a.submit(w, r, domain.TaskTextParse, false)
}

// submit validates the request, writes the PENDING ledger row and publishes
// the task message. The 202 response carries only the job id; progress is
// read from GET /v1/jobs/{id}.
func (a *App) submit(w http.ResponseWriter, r *http.Request, kind domain.TaskKind, batch bool) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.ProjectID == "" {
		a.error(w, http.StatusBadRequest, "user_id and project_id are required")
		return
	}

	targets := req.targets(batch)
	if kind == domain.TaskTextParse {
		if strings.TrimSpace(req.Text) == "" {
			a.error(w, http.StatusBadRequest, "text is required")
			return
		}
	} else if len(targets) == 0 {
		a.error(w, http.StatusBadRequest, "at least one shot id is required")
		return
	}

	totalItems := len(targets)
	if kind == domain.TaskTextParse {
		totalItems = 1
	}
	job := &domain.Job{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		ProjectID:  req.ProjectID,
		Kind:       kind,
		Status:     domain.JobStatusPending,
		TotalItems: totalItems,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("http: create job")
		a.error(w, http.StatusInternalServerError, "could not create job")
		return
	}

	msg := &domain.TaskMessage{
		JobID:     job.ID,
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Kind:      kind,
		TargetIDs: targets,
		Params: domain.GenerationParams{
			Model:        req.Model,
			AspectRatio:  req.AspectRatio,
			CountPerItem: req.CountPerItem,
			Mode:         domain.GenerationMode(req.Mode),
		},
		CustomPrompt:  req.CustomPrompt,
		ReferenceURLs: req.ReferenceURLs,
		CharacterIDs:  req.CharacterIDs,
		SceneID:       req.SceneID,
		PropIDs:       req.PropIDs,
		Text:          req.Text,
		Language:      req.Language,
	}
	if req.DurationSeconds != nil || req.Size != "" {
		msg.Video = &domain.VideoParams{DurationSeconds: req.DurationSeconds, Size: req.Size}
	}
	if err := a.Publisher.Publish(r.Context(), msg); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("http: publish task")
		// The ledger row exists but no worker will pick it up; fail it so the
		// client does not poll a job stuck PENDING.
		if failErr := a.Jobs.Fail(r.Context(), job.ID, "task could not be queued"); failErr != nil {
			a.Logger.Warn().Err(failErr).Str("job_id", job.ID).Msg("http: fail unqueued job")
		}
		a.error(w, http.StatusInternalServerError, "could not queue job")
		return
	}

	a.json(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// GetJob returns the ledger view of a job.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("http: get job")
		a.error(w, http.StatusInternalServerError, "could not load job")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"job_id":      job.ID,
		"kind":        job.Kind,
		"status":      job.Status,
		"progress":    job.Progress(),
		"done_items":  job.DoneItems,
		"total_items": job.TotalItems,
		"result_url":  job.ResultURL,
		"metadata":    job.Metadata,
		"error":       job.ErrorMessage,
		"created_at":  job.CreatedAt,
		"updated_at":  job.UpdatedAt,
	})
}
