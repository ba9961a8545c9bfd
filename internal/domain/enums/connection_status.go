package enums

type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusAccepted ConnectionStatus = "accepted"
	ConnectionStatusRejected ConnectionStatus = "rejected"
)

type ClosedReason string

const (
	ClosedReasonDisconnect ClosedReason = "disconnect"
	ClosedReasonBlock      ClosedReason = "block"
	ClosedReasonAccount    ClosedReason = "account_deleted"
)
