package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// softDependent is a table whose rows follow the owning account into soft
// deletion. Rows are tagged with deleted_with_account so restore only revives
// what the deletion took down.
type softDependent struct {
	table  string
	owners []string
}

var softDependents = []softDependent{
	{table: "posts", owners: []string{"author_id"}},
	{table: "notifications", owners: []string{"recipient_id"}},
}

// purgeOrder lists hard-delete statements in FK-safe order. Messages, comments,
// blocks, vouches, ledger rows, payments and identities go by cascade.
var purgeOrder = []string{
	`DELETE FROM connections WHERE requester_id = $1 OR receiver_id = $1`,
	`DELETE FROM posts WHERE author_id = $1`,
	`DELETE FROM notifications WHERE recipient_id = $1`,
	`DELETE FROM accounts WHERE id = $1`,
}

type DependentsRepo struct {
	pool *pgxpool.Pool
}

// FlagSummary counts rows touched per table.
type FlagSummary map[string]int64

func NewDependentsRepo(pool *pgxpool.Pool) *DependentsRepo {
	return &DependentsRepo{pool: pool}
}

// Flag soft-deletes everything owned by the account. Live connections also
// get a partner notice that expires at noticeUntil.
func (r *DependentsRepo) Flag(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, at, noticeUntil time.Time) (FlagSummary, error) {
	if tx == nil {
		return nil, errTxRequired
	}

	summary := make(FlagSummary, len(softDependents)+1)
	tag, err := tx.Exec(ctx, `
UPDATE connections
SET
	is_deleted = TRUE,
	deleted_at = $2,
	closed_reason = 'account_deleted',
	deleted_with_account = $1,
	partner_notified = FALSE,
	partner_notice_expires_at = $3,
	updated_at = $2
WHERE (requester_id = $1 OR receiver_id = $1) AND NOT is_deleted
`, accountID, at.UTC(), noticeUntil.UTC())
	if err != nil {
		return nil, fmt.Errorf("flag connections: %w", err)
	}
	summary["connections"] = tag.RowsAffected()

	for _, dep := range softDependents {
		tag, err := tx.Exec(ctx, `
UPDATE `+dep.table+`
SET is_deleted = TRUE, deleted_at = $2, deleted_with_account = $1
WHERE (`+ownerFilter(dep.owners)+`) AND NOT is_deleted
`, accountID, at.UTC())
		if err != nil {
			return nil, fmt.Errorf("flag %s: %w", dep.table, err)
		}
		summary[dep.table] = tag.RowsAffected()
	}
	return summary, nil
}

// Unflag reverses Flag. A connection whose partner is itself soft-deleted
// passes to the partner, so it comes back once both sides have returned.
func (r *DependentsRepo) Unflag(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, at time.Time) (FlagSummary, error) {
	if tx == nil {
		return nil, errTxRequired
	}

	summary := make(FlagSummary, len(softDependents)+1)
	tag, err := tx.Exec(ctx, `
UPDATE connections c
SET
	is_deleted = FALSE,
	deleted_at = NULL,
	closed_reason = NULL,
	deleted_with_account = NULL,
	partner_notified = TRUE,
	partner_notice_expires_at = NULL,
	updated_at = $2
FROM accounts p
WHERE c.deleted_with_account = $1
  AND p.id = CASE WHEN c.requester_id = $1 THEN c.receiver_id ELSE c.requester_id END
  AND p.status = 'active'
`, accountID, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("unflag connections: %w", err)
	}
	summary["connections"] = tag.RowsAffected()

	if _, err := tx.Exec(ctx, `
UPDATE connections c
SET
	deleted_with_account = p.id,
	partner_notified = TRUE,
	updated_at = $2
FROM accounts p
WHERE c.deleted_with_account = $1
  AND p.id = CASE WHEN c.requester_id = $1 THEN c.receiver_id ELSE c.requester_id END
  AND p.status = 'soft_deleted'
`, accountID, at.UTC()); err != nil {
		return nil, fmt.Errorf("hand over connections: %w", err)
	}

	// Anything left has a banned partner and stays closed.
	if _, err := tx.Exec(ctx, `
UPDATE connections
SET deleted_with_account = NULL, partner_notified = TRUE, updated_at = $2
WHERE deleted_with_account = $1
`, accountID, at.UTC()); err != nil {
		return nil, fmt.Errorf("release connections: %w", err)
	}

	for _, dep := range softDependents {
		tag, err := tx.Exec(ctx, `
UPDATE `+dep.table+`
SET is_deleted = FALSE, deleted_at = NULL, deleted_with_account = NULL
WHERE deleted_with_account = $1
`, accountID)
		if err != nil {
			return nil, fmt.Errorf("unflag %s: %w", dep.table, err)
		}
		summary[dep.table] = tag.RowsAffected()
	}
	return summary, nil
}

func (r *DependentsRepo) Purge(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) error {
	if tx == nil {
		return errTxRequired
	}

	for _, stmt := range purgeOrder {
		if _, err := tx.Exec(ctx, stmt, accountID); err != nil {
			return fmt.Errorf("purge account data: %w", err)
		}
	}
	return nil
}

func ownerFilter(columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col+" = $1")
	}
	return strings.Join(parts, " OR ")
}
