package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/errs"
)

type fakeStore struct {
	current string
	err     error
}

func (f *fakeStore) SetAvatarKey(_ context.Context, _ uuid.UUID, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	previous := f.current
	f.current = key
	return previous, nil
}

type fakeStorage struct {
	puts    []string
	deleted []string
	putErr  error
}

func (f *fakeStorage) EnsureBucket(_ context.Context) error {
	return nil
}

func (f *fakeStorage) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, key)
	return nil
}

func (f *fakeStorage) PublicURL(key string) string {
	return "https://cdn.local/" + key
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestUploadAvatarReplacesPrevious(t *testing.T) {
	store := &fakeStore{}
	storage := &fakeStorage{}
	svc := NewService(store, storage, nil)
	accountID := uuid.New()

	first, err := svc.UploadAvatar(context.Background(), accountID, "me.jpg", "image/jpeg", strings.NewReader("abc"), 3)
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if !strings.HasPrefix(first.Key, "accounts/"+accountID.String()+"/avatar/") {
		t.Fatalf("unexpected object key: %s", first.Key)
	}
	if first.URL != "https://cdn.local/"+first.Key {
		t.Fatalf("unexpected public url: %s", first.URL)
	}

	second, err := svc.UploadAvatar(context.Background(), accountID, "me.png", "image/png", strings.NewReader("abcd"), 4)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != first.Key {
		t.Fatalf("previous avatar should be removed: %v", storage.deleted)
	}
	if store.current != second.Key {
		t.Fatalf("account should point at the new avatar")
	}
}

func TestUploadAvatarValidation(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeStorage{}, nil)
	accountID := uuid.New()

	cases := []struct {
		name        string
		contentType string
		size        int64
	}{
		{"empty", "image/jpeg", 0},
		{"too large", "image/jpeg", maxAvatarBytes + 1},
		{"not an image", "application/pdf", 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UploadAvatar(context.Background(), accountID, "x", tc.contentType, strings.NewReader("x"), tc.size)
			if !errors.Is(err, errs.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUploadAvatarStorageFailureIsRetryable(t *testing.T) {
	store := &fakeStore{current: "accounts/old.jpg"}
	svc := NewService(store, &fakeStorage{putErr: errors.New("connection reset")}, nil)

	_, err := svc.UploadAvatar(context.Background(), uuid.New(), "me.jpg", "image/jpeg", strings.NewReader("abc"), 3)
	if !errors.Is(err, errs.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if store.current != "accounts/old.jpg" {
		t.Fatalf("failed upload must keep the previous avatar")
	}
}

func TestUploadAvatarCleansUpWhenAccountIsGone(t *testing.T) {
	storage := &fakeStorage{}
	svc := NewService(&fakeStore{err: errs.ErrNotFound}, storage, nil)

	_, err := svc.UploadAvatar(context.Background(), uuid.New(), "me.jpg", "image/jpeg", strings.NewReader("abc"), 3)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(storage.puts) != 1 || len(storage.deleted) != 1 || storage.deleted[0] != storage.puts[0] {
		t.Fatalf("orphan object should be removed: puts=%v deleted=%v", storage.puts, storage.deleted)
	}
}
