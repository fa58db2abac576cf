package domain

import (
	"context"
	"io"
)

// JobRepository defines persistence for the job ledger. Transition rules are
// enforced by the implementation using JobStatus.CanTransition.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	MarkRunning(ctx context.Context, jobID string) error
	UpdateProgress(ctx context.Context, jobID string, done, total int) error
	SetMetadata(ctx context.Context, jobID string, metadata map[string]any) error
	Complete(ctx context.Context, jobID, resultURL string, metadata map[string]any) error
	Fail(ctx context.Context, jobID, message string) error
}

// TargetRepository reads the generation targets a task message points at.
type TargetRepository interface {
	GetShot(ctx context.Context, shotID string) (*Shot, error)
	GetCharacter(ctx context.Context, characterID string) (*LinkedAsset, error)
	GetScene(ctx context.Context, sceneID string) (*LinkedAsset, error)
	GetProp(ctx context.Context, propID string) (*LinkedAsset, error)
	GetProject(ctx context.Context, projectID string) (*Project, error)
}

// AssetRepository persists artifact records produced by the dispatcher.
type AssetRepository interface {
	CreateVersion(ctx context.Context, version *AssetVersion) error
}

// Billing charges exactly one unit per artifact-producing vendor call.
// Implementations return ErrInsufficientCredits when the balance is exhausted.
type Billing interface {
	Charge(ctx context.Context, jobID, userID, bizType, model string, quantity int, metadata map[string]any) error
}

// Storage uploads artifact bytes and returns a stable URL.
type Storage interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (string, error)
	UploadStream(ctx context.Context, r io.Reader, filename, contentType string) (string, error)
}
