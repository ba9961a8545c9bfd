package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	lifecyclesvc "github.com/ivankudzin/kinship/internal/services/lifecycle"
	"github.com/ivankudzin/kinship/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/kinship/internal/transport/http/errors"
)

type LifecycleHandler struct {
	service *lifecyclesvc.Service
}

func NewLifecycleHandler(service *lifecyclesvc.Service) *LifecycleHandler {
	return &LifecycleHandler{service: service}
}

func (h *LifecycleHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.begin(w, r)
	if !ok {
		return
	}

	view, err := h.service.Status(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, view)
}

func (h *LifecycleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.begin(w, r)
	if !ok {
		return
	}

	var req dto.DeleteAccountRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	view, err := h.service.InitiateDeletion(r.Context(), identity, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, view)
}

func (h *LifecycleHandler) Restore(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.begin(w, r)
	if !ok {
		return
	}

	view, err := h.service.Restore(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, view)
}

func (h *LifecycleHandler) DeclineRecovery(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.begin(w, r)
	if !ok {
		return
	}

	if err := h.service.DeclineRecovery(r.Context(), identity); err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *LifecycleHandler) AdminBan(w http.ResponseWriter, r *http.Request) {
	moderator, ok := h.begin(w, r)
	if !ok {
		return
	}
	target, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req dto.ModerationActionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	view, err := h.service.Ban(r.Context(), moderator, target, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, view)
}

func (h *LifecycleHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	moderator, ok := h.begin(w, r)
	if !ok {
		return
	}
	target, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req dto.ModerationActionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	view, err := h.service.AdminDelete(r.Context(), moderator, target, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, view)
}

func (h *LifecycleHandler) begin(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if h.service == nil {
		writeInternal(w, "LIFECYCLE_SERVICE_UNAVAILABLE", "lifecycle service is unavailable")
		return uuid.Nil, false
	}
	return identity.AccountID, true
}

// decodeOptionalJSON accepts an empty body as the zero request.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := decodeJSON(r, target); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return false
	}
	return true
}
