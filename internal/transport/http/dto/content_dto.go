package dto

import "github.com/ivankudzin/kinship/internal/domain/model"

type PostRequest struct {
	Body string `json:"body"`
}

type CommentRequest struct {
	Body string `json:"body"`
}

type PostsResponse struct {
	Items []model.Post `json:"items"`
}

type CommentsResponse struct {
	Items []model.Comment `json:"items"`
}

type NotificationsResponse struct {
	Items []model.Notification `json:"items"`
}
