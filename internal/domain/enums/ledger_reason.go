package enums

type LedgerReason string

const (
	LedgerReasonContactShare LedgerReason = "contact_share"
	LedgerReasonComment      LedgerReason = "comment"
	LedgerReasonSlotUnlock   LedgerReason = "slot_unlock"
	LedgerReasonPurchase     LedgerReason = "purchase"
)

type CommentPayment string

const (
	CommentPaymentAllowance CommentPayment = "allowance"
	CommentPaymentCoins     CommentPayment = "coins"
)
