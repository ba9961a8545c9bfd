package content

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	"github.com/ivankudzin/kinship/internal/domain/errs"
	"github.com/ivankudzin/kinship/internal/domain/model"
	"github.com/ivankudzin/kinship/internal/testutil/memstore"
)

func newTestService(store *memstore.Store) *Service {
	svc := NewService(Dependencies{
		Accounts:      store.Accounts(),
		Posts:         store.Posts(),
		Comments:      store.Comments(),
		Notifications: store.Notifications(),
		Tx:            store,
	})
	svc.now = func() time.Time { return time.Date(2026, time.July, 3, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateAndListPosts(t *testing.T) {
	store := memstore.New()
	svc := newTestService(store)
	author := store.Accounts().Seed(model.Account{DisplayName: "Ann"})
	viewer := store.Accounts().Seed(model.Account{DisplayName: "Bo"})

	post, err := svc.CreatePost(context.Background(), author.ID, "  hello world  ")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if post.Body != "hello world" || post.AuthorID != author.ID {
		t.Fatalf("unexpected post: %+v", post)
	}

	posts, err := svc.ListPosts(context.Background(), viewer.ID, author.ID, 0)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != post.ID {
		t.Fatalf("unexpected posts: %+v", posts)
	}

	own, err := svc.ListPosts(context.Background(), viewer.ID, uuid.Nil, 0)
	if err != nil {
		t.Fatalf("list own posts: %v", err)
	}
	if len(own) != 0 {
		t.Fatalf("viewer has no posts, got %d", len(own))
	}
}

func TestCreatePostValidation(t *testing.T) {
	store := memstore.New()
	svc := newTestService(store)
	author := store.Accounts().Seed(model.Account{DisplayName: "Ann"})
	deleted := store.Accounts().Seed(model.Account{DisplayName: "Gone", Status: enums.AccountStatusSoftDeleted})

	if _, err := svc.CreatePost(context.Background(), author.ID, "   "); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for blank body, got %v", err)
	}
	if _, err := svc.CreatePost(context.Background(), author.ID, strings.Repeat("x", maxPostLen+1)); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for long body, got %v", err)
	}
	if _, err := svc.CreatePost(context.Background(), deleted.ID, "hi"); !errors.Is(err, errs.ErrAlreadyDeleted) {
		t.Fatalf("expected already deleted, got %v", err)
	}
	if _, err := svc.CreatePost(context.Background(), uuid.New(), "hi"); !errors.Is(err, errs.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
}

func TestListCommentsHidesInactiveAuthors(t *testing.T) {
	store := memstore.New()
	svc := newTestService(store)
	author := store.Accounts().Seed(model.Account{DisplayName: "Ann"})
	active := store.Accounts().Seed(model.Account{DisplayName: "Bo"})
	gone := store.Accounts().Seed(model.Account{DisplayName: "Cy", Status: enums.AccountStatusSoftDeleted})

	post, err := svc.CreatePost(context.Background(), author.ID, "post")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	for _, id := range []uuid.UUID{active.ID, gone.ID} {
		if _, err := store.Comments().Insert(context.Background(), nil, model.Comment{PostID: post.ID, AuthorID: id, Body: "c"}); err != nil {
			t.Fatalf("seed comment: %v", err)
		}
	}

	comments, err := svc.ListComments(context.Background(), author.ID, post.ID, 0)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 || comments[0].AuthorID != active.ID {
		t.Fatalf("unexpected comments: %+v", comments)
	}

	if _, err := svc.ListComments(context.Background(), author.ID, uuid.New(), 0); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found for missing post, got %v", err)
	}
}

func TestMarkReadKeepsFirstReadTime(t *testing.T) {
	store := memstore.New()
	svc := newTestService(store)
	acc := store.Accounts().Seed(model.Account{DisplayName: "Ann"})
	other := store.Accounts().Seed(model.Account{DisplayName: "Bo"})

	n, err := store.Notifications().Create(context.Background(), nil, model.Notification{
		RecipientID: acc.ID,
		Kind:        enums.NotificationConnectionRequested,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed notification: %v", err)
	}

	if err := svc.MarkRead(context.Background(), acc.ID, n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	first, _ := store.Notification(n.ID)

	svc.now = func() time.Time { return time.Date(2026, time.July, 4, 9, 0, 0, 0, time.UTC) }
	if err := svc.MarkRead(context.Background(), acc.ID, n.ID); err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	second, _ := store.Notification(n.ID)
	if first.ReadAt == nil || !second.ReadAt.Equal(*first.ReadAt) {
		t.Fatalf("expected read time to stay %v, got %v", first.ReadAt, second.ReadAt)
	}

	if err := svc.MarkRead(context.Background(), other.ID, n.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found for foreign notification, got %v", err)
	}

	items, err := svc.ListNotifications(context.Background(), acc.ID, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(items) != 1 || items[0].ReadAt == nil {
		t.Fatalf("unexpected notifications: %+v", items)
	}
}
