package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/domain/rules"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

type Vouches struct {
	s *Store
}

func (r *Vouches) Insert(ctx context.Context, _ pgx.Tx, voucherID, targetID uuid.UUID, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()

	if voucherID == targetID {
		return false, fmt.Errorf("invalid vouch payload")
	}
	key := pairKey{voucherID, targetID}
	if _, exists := r.s.st.vouches[key]; exists {
		return false, nil
	}
	r.s.st.vouches[key] = at.UTC()
	return true, nil
}

func (r *Vouches) Exists(ctx context.Context, _ pgx.Tx, voucherID, targetID uuid.UUID) (bool, error) {
	defer r.s.lock(ctx)()

	_, exists := r.s.st.vouches[pairKey{voucherID, targetID}]
	return exists, nil
}

type Blocks struct {
	s *Store
}

func (r *Blocks) Upsert(ctx context.Context, _ pgx.Tx, actorID, targetID uuid.UUID, reason string, _ time.Time) error {
	defer r.s.lock(ctx)()

	if actorID == uuid.Nil || targetID == uuid.Nil || actorID == targetID {
		return fmt.Errorf("invalid block payload")
	}
	r.s.st.blocks[pairKey{actorID, targetID}] = strings.TrimSpace(reason)
	return nil
}

func (r *Blocks) ExistsEither(ctx context.Context, _ pgx.Tx, a, b uuid.UUID) (bool, error) {
	defer r.s.lock(ctx)()

	_, ab := r.s.st.blocks[pairKey{a, b}]
	_, ba := r.s.st.blocks[pairKey{b, a}]
	return ab || ba, nil
}

type Comments struct {
	s *Store
}

func (r *Comments) AllowanceUsed(ctx context.Context, _ pgx.Tx, accountID uuid.UUID, day time.Time) (int, error) {
	defer r.s.lock(ctx)()

	return r.s.st.allowance[allowanceKey{accountID, rules.AllowanceDay(day)}], nil
}

func (r *Comments) ConsumeAllowance(ctx context.Context, _ pgx.Tx, accountID uuid.UUID, day time.Time, limit int) error {
	defer r.s.lock(ctx)()

	key := allowanceKey{accountID, rules.AllowanceDay(day)}
	if r.s.st.allowance[key] >= limit {
		return pgrepo.ErrAllowanceExhausted
	}
	r.s.st.allowance[key]++
	return nil
}

func (r *Comments) Insert(ctx context.Context, _ pgx.Tx, c model.Comment) (model.Comment, error) {
	defer r.s.lock(ctx)()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.s.st.comments = append(r.s.st.comments, c)
	return c, nil
}

func (r *Comments) ListByPost(ctx context.Context, postID uuid.UUID, limit int) ([]model.Comment, error) {
	defer r.s.lock(ctx)()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := make([]model.Comment, 0)
	for _, c := range r.s.st.comments {
		if c.PostID != postID {
			continue
		}
		if author, ok := r.s.st.accounts[c.AuthorID]; !ok || author.Status != enums.AccountStatusActive {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type Posts struct {
	s *Store
}

func (r *Posts) Create(ctx context.Context, _ pgx.Tx, post model.Post) (model.Post, error) {
	defer r.s.lock(ctx)()

	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	r.s.st.posts[post.ID] = post
	return post, nil
}

func (r *Posts) GetLive(ctx context.Context, _ pgx.Tx, id uuid.UUID) (model.Post, error) {
	defer r.s.lock(ctx)()

	post, ok := r.s.st.posts[id]
	if !ok || post.IsDeleted {
		return model.Post{}, errs.ErrNotFound
	}
	return post, nil
}

func (r *Posts) ListByAuthor(ctx context.Context, authorID uuid.UUID, limit int) ([]model.Post, error) {
	defer r.s.lock(ctx)()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	out := make([]model.Post, 0)
	for _, post := range r.s.st.posts {
		if post.AuthorID == authorID && !post.IsDeleted {
			out = append(out, post)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type Notifications struct {
	s *Store
}

func (r *Notifications) Create(ctx context.Context, _ pgx.Tx, n model.Notification) (model.Notification, error) {
	defer r.s.lock(ctx)()

	if err := r.s.fail("notifications.create"); err != nil {
		return model.Notification{}, err
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.s.st.notifications[n.ID] = n
	return n, nil
}

func (r *Notifications) ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.Notification, error) {
	defer r.s.lock(ctx)()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := make([]model.Notification, 0)
	for _, n := range r.s.st.notifications {
		if n.RecipientID == recipientID && !n.IsDeleted {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Notifications) MarkRead(ctx context.Context, recipientID, id uuid.UUID, at time.Time) error {
	defer r.s.lock(ctx)()

	n, ok := r.s.st.notifications[id]
	if !ok || n.RecipientID != recipientID || n.IsDeleted {
		return errs.ErrNotFound
	}
	if n.ReadAt == nil {
		at = at.UTC()
		n.ReadAt = &at
	}
	r.s.st.notifications[id] = n
	return nil
}
