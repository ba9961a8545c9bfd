package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/domain/rules"
)

type CommentRepo struct {
	pool *pgxpool.Pool
}

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

func (r *CommentRepo) AllowanceUsed(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, day time.Time) (int, error) {
	if tx == nil {
		return 0, errTxRequired
	}

	var used int
	err := tx.QueryRow(ctx, `
SELECT used FROM comment_allowance_daily WHERE account_id = $1 AND day_key = $2::date
`, accountID, rules.AllowanceDay(day)).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get comment allowance: %w", err)
	}
	return used, nil
}

// ConsumeAllowance takes one free comment for the UTC day or fails with
// ErrAllowanceExhausted.
func (r *CommentRepo) ConsumeAllowance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, day time.Time, limit int) error {
	if tx == nil {
		return errTxRequired
	}
	if limit <= 0 {
		return ErrAllowanceExhausted
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO comment_allowance_daily (account_id, day_key, used, updated_at)
VALUES ($1, $2::date, 1, $4)
ON CONFLICT (account_id, day_key) DO UPDATE
SET used = comment_allowance_daily.used + 1, updated_at = $4
WHERE comment_allowance_daily.used < $3
`, accountID, rules.AllowanceDay(day), limit, day.UTC())
	if err != nil {
		return fmt.Errorf("consume comment allowance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAllowanceExhausted
	}
	return nil
}

func (r *CommentRepo) Insert(ctx context.Context, tx pgx.Tx, c model.Comment) (model.Comment, error) {
	if tx == nil {
		return model.Comment{}, errTxRequired
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO comments (id, post_id, author_id, body, paid_with, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, c.ID, c.PostID, c.AuthorID, c.Body, string(c.PaidWith), c.CreatedAt.UTC()); err != nil {
		return model.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

// ListByPost hides comments whose author is not active.
func (r *CommentRepo) ListByPost(ctx context.Context, postID uuid.UUID, limit int) ([]model.Comment, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT c.id, c.post_id, c.author_id, c.body, c.paid_with, c.created_at
FROM comments c
JOIN accounts a ON a.id = c.author_id
WHERE c.post_id = $1 AND a.status = 'active'
ORDER BY c.created_at
LIMIT $2
`, postID, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	out := make([]model.Comment, 0, limit)
	for rows.Next() {
		var (
			c        model.Comment
			paidWith string
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Body, &paidWith, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.PaidWith = enums.CommentPayment(paidWith)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return out, nil
}
