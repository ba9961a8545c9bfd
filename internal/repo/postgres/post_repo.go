package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
)

type PostRepo struct {
	pool *pgxpool.Pool
}

func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

func (r *PostRepo) Create(ctx context.Context, tx pgx.Tx, post model.Post) (model.Post, error) {
	if tx == nil {
		return model.Post{}, errTxRequired
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO posts (id, author_id, body, created_at)
VALUES ($1, $2, $3, $4)
`, post.ID, post.AuthorID, post.Body, post.CreatedAt.UTC()); err != nil {
		return model.Post{}, fmt.Errorf("insert post: %w", err)
	}
	return post, nil
}

func (r *PostRepo) GetLive(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Post, error) {
	if tx == nil {
		return model.Post{}, errTxRequired
	}

	var post model.Post
	err := tx.QueryRow(ctx, `
SELECT id, author_id, body, is_deleted, deleted_at, created_at
FROM posts
WHERE id = $1 AND NOT is_deleted
`, id).Scan(&post.ID, &post.AuthorID, &post.Body, &post.IsDeleted, &post.DeletedAt, &post.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Post{}, errs.ErrNotFound
		}
		return model.Post{}, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

func (r *PostRepo) ListByAuthor(ctx context.Context, authorID uuid.UUID, limit int) ([]model.Post, error) {
	if r.pool == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, author_id, body, is_deleted, deleted_at, created_at
FROM posts
WHERE author_id = $1 AND NOT is_deleted
ORDER BY created_at DESC
LIMIT $2
`, authorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	out := make([]model.Post, 0, limit)
	for rows.Next() {
		var post model.Post
		if err := rows.Scan(&post.ID, &post.AuthorID, &post.Body, &post.IsDeleted, &post.DeletedAt, &post.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}
