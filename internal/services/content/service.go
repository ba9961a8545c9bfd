package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/domain/rules"
)

const (
	maxPostLen       = 2000
	defaultListLimit = 20
)

type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (model.Account, error)
}

type PostStore interface {
	Create(ctx context.Context, tx pgx.Tx, post model.Post) (model.Post, error)
	GetLive(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Post, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID, limit int) ([]model.Post, error)
}

type CommentStore interface {
	ListByPost(ctx context.Context, postID uuid.UUID, limit int) ([]model.Comment, error)
}

type NotificationStore interface {
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, recipientID, id uuid.UUID, at time.Time) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

type Dependencies struct {
	Accounts      AccountStore
	Posts         PostStore
	Comments      CommentStore
	Notifications NotificationStore
	Tx            Transactor
}

// Service covers the read side of posts and notifications plus post
// creation. Commenting is gated and lives in the gate service.
type Service struct {
	accounts      AccountStore
	posts         PostStore
	comments      CommentStore
	notifications NotificationStore
	tx            Transactor
	now           func() time.Time
}

func NewService(deps Dependencies) *Service {
	return &Service{
		accounts:      deps.Accounts,
		posts:         deps.Posts,
		comments:      deps.Comments,
		notifications: deps.Notifications,
		tx:            deps.Tx,
		now:           time.Now,
	}
}

func (s *Service) CreatePost(ctx context.Context, authorID uuid.UUID, body string) (model.Post, error) {
	if s.posts == nil || s.tx == nil {
		return model.Post{}, fmt.Errorf("post store is nil")
	}
	if _, err := s.activeAccount(ctx, authorID); err != nil {
		return model.Post{}, err
	}

	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > maxPostLen {
		return model.Post{}, fmt.Errorf("invalid post body: %w", errs.ErrValidation)
	}

	var created model.Post
	err := s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		var err error
		created, err = s.posts.Create(txCtx, tx, model.Post{
			ID:        uuid.New(),
			AuthorID:  authorID,
			Body:      body,
			CreatedAt: s.now().UTC(),
		})
		return err
	})
	if err != nil {
		return model.Post{}, err
	}
	return created, nil
}

// ListPosts returns an author's live posts. Posts of a soft-deleted author
// are flagged and therefore absent.
func (s *Service) ListPosts(ctx context.Context, viewerID, authorID uuid.UUID, limit int) ([]model.Post, error) {
	if viewerID == uuid.Nil {
		return nil, errs.ErrNotAuthenticated
	}
	if s.posts == nil {
		return nil, fmt.Errorf("post store is nil")
	}
	if authorID == uuid.Nil {
		authorID = viewerID
	}

	posts, err := s.posts.ListByAuthor(ctx, authorID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return posts, nil
}

func (s *Service) ListComments(ctx context.Context, viewerID, postID uuid.UUID, limit int) ([]model.Comment, error) {
	if viewerID == uuid.Nil {
		return nil, errs.ErrNotAuthenticated
	}
	if s.posts == nil || s.comments == nil || s.tx == nil {
		return nil, fmt.Errorf("content dependencies are not configured")
	}

	err := s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		_, err := s.posts.GetLive(txCtx, tx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByPost(ctx, postID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	return comments, nil
}

func (s *Service) ListNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.Notification, error) {
	if recipientID == uuid.Nil {
		return nil, errs.ErrNotAuthenticated
	}
	if s.notifications == nil {
		return nil, fmt.Errorf("notification store is nil")
	}

	if limit <= 0 {
		limit = 50
	}
	items, err := s.notifications.ListForRecipient(ctx, recipientID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Notification{}
	}
	return items, nil
}

// MarkRead is idempotent; the first read time is kept.
func (s *Service) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if recipientID == uuid.Nil {
		return errs.ErrNotAuthenticated
	}
	if notificationID == uuid.Nil {
		return errs.ErrValidation
	}
	if s.notifications == nil {
		return fmt.Errorf("notification store is nil")
	}
	return s.notifications.MarkRead(ctx, recipientID, notificationID, s.now().UTC())
}

func (s *Service) activeAccount(ctx context.Context, id uuid.UUID) (model.Account, error) {
	if id == uuid.Nil {
		return model.Account{}, errs.ErrNotAuthenticated
	}
	if s.accounts == nil {
		return model.Account{}, fmt.Errorf("account store is nil")
	}
	acc, err := s.accounts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Account{}, errs.ErrNotAuthenticated
		}
		return model.Account{}, err
	}
	if err := rules.CheckActor(acc); err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > 100 {
		return 100
	}
	return limit
}
