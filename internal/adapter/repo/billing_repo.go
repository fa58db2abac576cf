package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyboard-server/internal/domain"
)

// BillingRepositoryPG implements domain.Billing on a per-user credit balance
// plus an append-only transaction ledger.
type BillingRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBillingRepository constructs a new billing repository instance.
func NewBillingRepository(pool *pgxpool.Pool) *BillingRepositoryPG {
	return &BillingRepositoryPG{pool: pool}
}

// Charge deducts quantity credits and records the transaction atomically.
// The balance guard is in SQL; a zero-row update means the balance is
// exhausted and surfaces domain.ErrInsufficientCredits.
func (r *BillingRepositoryPG) Charge(ctx context.Context, jobID, userID, bizType, model string, quantity int, metadata map[string]any) error {
	if quantity <= 0 {
		return nil
	}
	doc, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	deduct := `
UPDATE users
SET credits = credits - $2, updated_at = NOW()
WHERE id = $1 AND credits >= $2;
`
	tag, err := tx.Exec(ctx, deduct, userID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo: charge user %s for job %s: %w", userID, jobID, domain.ErrInsufficientCredits)
	}

	record := `
INSERT INTO credit_transactions (id, user_id, job_id, biz_type, model, quantity, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	if _, err := tx.Exec(ctx, record, uuid.NewString(), userID, jobID, bizType, model, quantity, doc); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
