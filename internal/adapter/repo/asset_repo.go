package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyboard-server/internal/domain"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

// CreateVersion persists one artifact record produced by the dispatcher.
func (r *AssetRepositoryPG) CreateVersion(ctx context.Context, version *domain.AssetVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	query := `
INSERT INTO asset_versions (id, project_id, owner_type, owner_id, type, url, prompt, model, aspect_ratio, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := r.pool.Exec(ctx, query,
		version.ID,
		version.ProjectID,
		version.OwnerType,
		version.OwnerID,
		version.Type,
		version.URL,
		version.Prompt,
		version.Model,
		version.AspectRatio,
		version.UserID,
	)
	return err
}
