package handlers

import (
	"net/http"

	"github.com/ivankudzin/kinship/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/kinship/internal/transport/http/errors"
)

func (h *GateHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	actor, connectionID, ok := h.beginConnection(w, r)
	if !ok {
		return
	}

	items, err := h.service.ListMessages(r.Context(), actor, connectionID, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.MessagesResponse{Items: items})
}

func (h *GateHandler) Thread(w http.ResponseWriter, r *http.Request) {
	actor, connectionID, ok := h.beginConnection(w, r)
	if !ok {
		return
	}

	state, err := h.service.ThreadState(r.Context(), actor, connectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, state)
}

func (h *GateHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, connectionID, ok := h.beginConnection(w, r)
	if !ok {
		return
	}

	var req dto.MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	res, err := h.service.SendMessage(r.Context(), actor, connectionID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, res)
}

func (h *GateHandler) ShareContact(w http.ResponseWriter, r *http.Request) {
	actor, connectionID, ok := h.beginConnection(w, r)
	if !ok {
		return
	}

	var req dto.ContactCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	res, err := h.service.ShareVerifiedContact(r.Context(), actor, connectionID, req.Contact)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, res)
}
