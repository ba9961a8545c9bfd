package media

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestS3StorageWithoutClient(t *testing.T) {
	s := NewS3Storage(nil, "avatars", "")
	ctx := context.Background()

	if err := s.EnsureBucket(ctx); !errors.Is(err, errNoS3) {
		t.Fatalf("ensure: expected errNoS3, got %v", err)
	}
	if err := s.Put(ctx, "a/b.jpg", strings.NewReader("x"), 1, "image/jpeg"); !errors.Is(err, errNoS3) {
		t.Fatalf("put: expected errNoS3, got %v", err)
	}
	if err := s.Delete(ctx, "a/b.jpg"); err != nil {
		t.Fatalf("delete without client should be a no-op, got %v", err)
	}
}

func TestS3StoragePublicURL(t *testing.T) {
	cases := []struct {
		base string
		key  string
		want string
	}{
		{"", "avatars/1.jpg", "/kinship/avatars/1.jpg"},
		{"https://cdn.example.com/", "avatars/1.jpg", "https://cdn.example.com/avatars/1.jpg"},
		{"https://cdn.example.com/media", "avatars/1.jpg", "https://cdn.example.com/media/avatars/1.jpg"},
		{"https://cdn.example.com", "", ""},
	}
	for _, tc := range cases {
		got := NewS3Storage(nil, "kinship", tc.base).PublicURL(tc.key)
		if got != tc.want {
			t.Fatalf("PublicURL(%q) with base %q = %q, want %q", tc.key, tc.base, got, tc.want)
		}
	}
}
