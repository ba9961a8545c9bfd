package dto

type PurchaseRequest struct {
	SKU      string `json:"sku"`
	Provider string `json:"provider"`
}

// PurchaseWebhookRequest is what a payment provider posts once money has
// moved. IdempotencyKey echoes the key the client used to begin the purchase.
type PurchaseWebhookRequest struct {
	Provider        string         `json:"provider"`
	ProviderEventID string         `json:"provider_event_id"`
	IdempotencyKey  string         `json:"idempotency_key"`
	Payload         map[string]any `json:"payload"`
}
