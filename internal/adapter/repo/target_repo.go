package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyboard-server/internal/domain"
)

// TargetRepositoryPG implements domain.TargetRepository using PostgreSQL.
type TargetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTargetRepository constructs a new target repository instance.
func NewTargetRepository(pool *pgxpool.Pool) *TargetRepositoryPG {
	return &TargetRepositoryPG{pool: pool}
}

// GetShot fetches a storyboard shot by id.
func (r *TargetRepositoryPG) GetShot(ctx context.Context, shotID string) (*domain.Shot, error) {
	query := `
SELECT id, project_id, title, script, description, COALESCE(asset_url, ''), COALESCE(video_url, ''),
       COALESCE(aspect_ratio, ''), COALESCE(character_ids, '{}'), COALESCE(scene_id, ''), COALESCE(prop_ids, '{}')
FROM shots
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, shotID)
	var shot domain.Shot
	if err := row.Scan(
		&shot.ID,
		&shot.ProjectID,
		&shot.Title,
		&shot.Script,
		&shot.Description,
		&shot.AssetURL,
		&shot.VideoURL,
		&shot.AspectRatio,
		&shot.CharacterIDs,
		&shot.SceneID,
		&shot.PropIDs,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &shot, nil
}

// GetCharacter fetches a linked character by id.
func (r *TargetRepositoryPG) GetCharacter(ctx context.Context, characterID string) (*domain.LinkedAsset, error) {
	return r.getLinkedAsset(ctx, "characters", characterID)
}

// GetScene fetches a linked scene by id.
func (r *TargetRepositoryPG) GetScene(ctx context.Context, sceneID string) (*domain.LinkedAsset, error) {
	return r.getLinkedAsset(ctx, "scenes", sceneID)
}

// GetProp fetches a linked prop by id.
func (r *TargetRepositoryPG) GetProp(ctx context.Context, propID string) (*domain.LinkedAsset, error) {
	return r.getLinkedAsset(ctx, "props", propID)
}

// GetProject fetches the per-project generation defaults.
func (r *TargetRepositoryPG) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	query := `
SELECT id, owner_id, COALESCE(default_model, ''), COALESCE(default_aspect_ratio, '')
FROM projects
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, projectID)
	var project domain.Project
	if err := row.Scan(&project.ID, &project.OwnerID, &project.DefaultModel, &project.DefaultAspectRatio); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

// Linked asset tables share one shape; the table name is fixed by the caller,
// never user input.
func (r *TargetRepositoryPG) getLinkedAsset(ctx context.Context, table, id string) (*domain.LinkedAsset, error) {
	query := `
SELECT id, project_id, name, COALESCE(project_thumb_url, ''), COALESCE(library_thumb_url, ''),
       COALESCE(thumb_width, 0), COALESCE(thumb_height, 0)
FROM ` + table + `
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var asset domain.LinkedAsset
	if err := row.Scan(
		&asset.ID,
		&asset.ProjectID,
		&asset.Name,
		&asset.ProjectThumbURL,
		&asset.LibraryThumbURL,
		&asset.ThumbWidth,
		&asset.ThumbHeight,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}
