package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
)

type Post struct {
	ID        uuid.UUID  `json:"id"`
	AuthorID  uuid.UUID  `json:"author_id"`
	Body      string     `json:"body"`
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Comment struct {
	ID        uuid.UUID            `json:"id"`
	PostID    uuid.UUID            `json:"post_id"`
	AuthorID  uuid.UUID            `json:"author_id"`
	Body      string               `json:"body"`
	PaidWith  enums.CommentPayment `json:"paid_with"`
	CreatedAt time.Time            `json:"created_at"`
}
