package dto

type DeleteAccountRequest struct {
	Reason string `json:"reason"`
}

type ModerationActionRequest struct {
	Reason string `json:"reason"`
}
