package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/kinship/internal/domain/errs"
)

const maxAvatarBytes = 5 << 20

var allowedAvatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type AvatarStore interface {
	SetAvatarKey(ctx context.Context, accountID uuid.UUID, key string) (string, error)
}

type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

type Avatar struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Service struct {
	store   AvatarStore
	storage ObjectStorage
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(store AvatarStore, storage ObjectStorage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// UploadAvatar stores the image and points the account at it. Storage
// failures come back as errs.ErrUnavailable so the client can retry; the
// account keeps its previous avatar in that case.
func (s *Service) UploadAvatar(ctx context.Context, accountID uuid.UUID, fileName, contentType string, body io.Reader, size int64) (Avatar, error) {
	if accountID == uuid.Nil {
		return Avatar{}, errs.ErrNotAuthenticated
	}
	if body == nil || size <= 0 || size > maxAvatarBytes {
		return Avatar{}, errs.ErrValidation
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := allowedAvatarTypes[contentType]
	if !ok {
		return Avatar{}, errs.ErrValidation
	}
	if s.store == nil || s.storage == nil {
		return Avatar{}, fmt.Errorf("media dependencies are not configured")
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return Avatar{}, fmt.Errorf("ensure bucket: %v: %w", err, errs.ErrUnavailable)
	}

	objectKey, err := s.buildAvatarKey(accountID, fileName, ext)
	if err != nil {
		return Avatar{}, fmt.Errorf("build object key: %w", err)
	}
	if err := s.storage.Put(ctx, objectKey, body, size, contentType); err != nil {
		return Avatar{}, fmt.Errorf("put object: %v: %w", err, errs.ErrUnavailable)
	}

	previous, err := s.store.SetAvatarKey(ctx, accountID, objectKey)
	if err != nil {
		_ = s.storage.Delete(ctx, objectKey)
		return Avatar{}, err
	}
	if previous != "" && previous != objectKey {
		if err := s.storage.Delete(ctx, previous); err != nil {
			s.logger.Warn("remove previous avatar", zap.String("key", previous), zap.Error(err))
		}
	}

	return Avatar{Key: objectKey, URL: s.storage.PublicURL(objectKey)}, nil
}

func (s *Service) URL(key string) string {
	if s.storage == nil {
		return ""
	}
	return s.storage.PublicURL(key)
}

func (s *Service) buildAvatarKey(accountID uuid.UUID, fileName, fallbackExt string) (string, error) {
	rnd := make([]byte, 8)
	if _, err := rand.Read(rnd); err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if ext == "" || len(ext) > 6 {
		ext = fallbackExt
	}

	stamp := s.now().UTC().Format("20060102T150405")
	return fmt.Sprintf("accounts/%s/avatar/%s_%s%s", accountID, stamp, hex.EncodeToString(rnd), ext), nil
}
