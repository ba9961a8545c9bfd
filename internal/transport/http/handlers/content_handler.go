package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	contentsvc "github.com/ivankudzin/kinship/internal/services/content"
	"github.com/ivankudzin/kinship/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/kinship/internal/transport/http/errors"
)

type ContentHandler struct {
	service *contentsvc.Service
}

func NewContentHandler(service *contentsvc.Service) *ContentHandler {
	return &ContentHandler{service: service}
}

func (h *ContentHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}

	var req dto.PostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	post, err := h.service.CreatePost(r.Context(), actor, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, post)
}

// ListPosts lists the caller's posts, or another author's with ?author_id=.
func (h *ContentHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}

	author := uuid.Nil
	if raw := strings.TrimSpace(r.URL.Query().Get("author_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "author_id must be a uuid")
			return
		}
		author = id
	}

	items, err := h.service.ListPosts(r.Context(), actor, author, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.PostsResponse{Items: items})
}

func (h *ContentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	postID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	items, err := h.service.ListComments(r.Context(), actor, postID, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.CommentsResponse{Items: items})
}

func (h *ContentHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}

	items, err := h.service.ListNotifications(r.Context(), actor, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.NotificationsResponse{Items: items})
}

func (h *ContentHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *ContentHandler) begin(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if h.service == nil {
		writeInternal(w, "CONTENT_SERVICE_UNAVAILABLE", "content service is unavailable")
		return uuid.Nil, false
	}
	return identity.AccountID, true
}
