package handlers

import (
	"net/http"

	assistantsvc "github.com/ivankudzin/kinship/internal/services/assistant"
	"github.com/ivankudzin/kinship/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/kinship/internal/transport/http/errors"
)

type AssistantHandler struct {
	service *assistantsvc.Service
}

func NewAssistantHandler(service *assistantsvc.Service) *AssistantHandler {
	return &AssistantHandler{service: service}
}

func (h *AssistantHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "ASSISTANT_SERVICE_UNAVAILABLE", "assistant service is unavailable")
		return
	}

	var req dto.SuggestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	suggestion, err := h.service.Suggest(r.Context(), identity.AccountID, assistantsvc.SuggestInput{
		Kind:    req.Kind,
		Context: req.Context,
		Tone:    req.Tone,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, suggestion)
}
