package handlers

import (
	"net/http"

	accountssvc "github.com/ivankudzin/kinship/internal/services/accounts"
	mediasvc "github.com/ivankudzin/kinship/internal/services/media"
	"github.com/ivankudzin/kinship/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/kinship/internal/transport/http/errors"
)

const maxAvatarUploadSize = 6 << 20

type MeHandler struct {
	accounts *accountssvc.Service
	media    *mediasvc.Service
}

func NewMeHandler(accounts *accountssvc.Service, media *mediasvc.Service) *MeHandler {
	return &MeHandler{
		accounts: accounts,
		media:    media,
	}
}

func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.accounts == nil {
		writeInternal(w, "ACCOUNTS_SERVICE_UNAVAILABLE", "accounts service is unavailable")
		return
	}

	view, err := h.accounts.Me(r.Context(), identity.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, view)
}

func (h *MeHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.accounts == nil {
		writeInternal(w, "ACCOUNTS_SERVICE_UNAVAILABLE", "accounts service is unavailable")
		return
	}

	var req dto.MeUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	view, err := h.accounts.Update(r.Context(), identity.AccountID, accountssvc.UpdateInput{
		DisplayName:    req.DisplayName,
		Intent:         req.Intent,
		Bio:            req.Bio,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, view)
}

func (h *MeHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.media == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarUploadSize)
	if err := r.ParseMultipartForm(maxAvatarUploadSize); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "file is required")
		return
	}
	defer file.Close()

	if header == nil || header.Size <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "file is empty")
		return
	}

	avatar, err := h.media.UploadAvatar(r.Context(), identity.AccountID, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AvatarResponse{
		Key: avatar.Key,
		URL: avatar.URL,
	})
}
