package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	walletsvc "github.com/ivankudzin/kinship/internal/services/wallet"
	"github.com/ivankudzin/kinship/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/kinship/internal/transport/http/errors"
)

const webhookSecretHeader = "X-Webhook-Secret"

type WalletHandler struct {
	service       *walletsvc.Service
	webhookSecret string
}

func NewWalletHandler(service *walletsvc.Service, webhookSecret string) *WalletHandler {
	return &WalletHandler{
		service:       service,
		webhookSecret: strings.TrimSpace(webhookSecret),
	}
}

func (h *WalletHandler) Summary(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "WALLET_SERVICE_UNAVAILABLE", "wallet service is unavailable")
		return
	}

	summary, err := h.service.Summary(r.Context(), identity.AccountID, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, summary)
}

func (h *WalletHandler) BeginPurchase(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "WALLET_SERVICE_UNAVAILABLE", "wallet service is unavailable")
		return
	}

	var req dto.PurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	res, err := h.service.BeginPurchase(r.Context(), identity.AccountID, walletsvc.BeginInput{
		SKU:            req.SKU,
		Provider:       req.Provider,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Idempotent {
		status = http.StatusOK
	}
	httperrors.Write(w, status, res)
}

// Webhook is called by the payment provider, not by a signed-in user. With a
// secret configured the request must present it.
func (h *WalletHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "WALLET_SERVICE_UNAVAILABLE", "wallet service is unavailable")
		return
	}
	if h.webhookSecret != "" {
		got := r.Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			writeUnauthorized(w, "UNAUTHORIZED", "invalid webhook secret")
			return
		}
	}

	var req dto.PurchaseWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	res, err := h.service.ConfirmPayment(r.Context(), walletsvc.ConfirmInput{
		Provider:        req.Provider,
		ProviderEventID: req.ProviderEventID,
		IdempotencyKey:  req.IdempotencyKey,
		Payload:         req.Payload,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, res)
}
