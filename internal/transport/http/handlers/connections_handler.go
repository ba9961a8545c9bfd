package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ivankudzin/kinship/internal/domain/enums"
	gatesvc "github.com/ivankudzin/kinship/internal/services/gate"
	"github.com/ivankudzin/kinship/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/kinship/internal/transport/http/errors"
)

// GateHandler serves every gated interaction: connections, blocks, slots,
// messages, comments, vouches and the read-only preview.
type GateHandler struct {
	service *gatesvc.Service
}

func NewGateHandler(service *gatesvc.Service) *GateHandler {
	return &GateHandler{service: service}
}

func (h *GateHandler) RequestConnection(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}

	var req dto.ConnectionRequest
	if err := decodeJSON(r, &req); err != nil || req.TargetID == uuid.Nil {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id is required")
		return
	}

	res, err := h.service.RequestConnection(r.Context(), actor, gatesvc.RequestInput{
		TargetID:       req.TargetID,
		PayForSlot:     req.PayForSlot,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	httperrors.Write(w, status, res)
}

func (h *GateHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}

	items, err := h.service.ListConnections(r.Context(), actor, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.ConnectionsResponse{Items: items})
}

func (h *GateHandler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, connectionID, ok := h.beginConnection(w, r)
	if !ok {
		return
	}

	conn, err := h.service.AcceptConnection(r.Context(), actor, connectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, conn)
}

func (h *GateHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, connectionID, ok := h.beginConnection(w, r)
	if !ok {
		return
	}

	conn, err := h.service.RejectConnection(r.Context(), actor, connectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, conn)
}

func (h *GateHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	actor, connectionID, ok := h.beginConnection(w, r)
	if !ok {
		return
	}

	if err := h.service.Disconnect(r.Context(), actor, connectionID); err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *GateHandler) Block(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}

	var req dto.TargetRequest
	if err := decodeJSON(r, &req); err != nil || req.TargetID == uuid.Nil {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id is required")
		return
	}

	if err := h.service.Block(r.Context(), actor, req.TargetID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *GateHandler) UnlockSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}

	res, err := h.service.UnlockSlot(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, res)
}

func (h *GateHandler) Vouch(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}

	var req dto.TargetRequest
	if err := decodeJSON(r, &req); err != nil || req.TargetID == uuid.Nil {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id is required")
		return
	}

	res, err := h.service.Vouch(r.Context(), actor, req.TargetID)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, res)
}

func (h *GateHandler) Comment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}
	postID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req dto.CommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	res, err := h.service.Comment(r.Context(), actor, postID, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, res)
}

// Preview answers "what would happen" for lock icons and paywall prices.
func (h *GateHandler) Preview(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.begin(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	action, ok := enums.ParseGateAction(strings.TrimSpace(q.Get("action")))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "unknown action")
		return
	}

	in := gatesvc.PreviewInput{
		Action:     action,
		PayForSlot: q.Get("pay_for_slot") == "true",
	}
	if raw := strings.TrimSpace(q.Get("target_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "target_id must be a uuid")
			return
		}
		in.TargetID = id
	}
	if raw := strings.TrimSpace(q.Get("connection_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "connection_id must be a uuid")
			return
		}
		in.ConnectionID = id
	}

	res, err := h.service.Preview(r.Context(), actor, in)
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, res)
}

func (h *GateHandler) begin(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if h.service == nil {
		writeInternal(w, "GATE_SERVICE_UNAVAILABLE", "gate service is unavailable")
		return uuid.Nil, false
	}
	return identity.AccountID, true
}

func (h *GateHandler) beginConnection(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	actor, ok := h.begin(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	connectionID, ok := uuidParam(w, r, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return actor, connectionID, true
}
