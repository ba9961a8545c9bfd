package enums

type GateAction string

const (
	GateActionRequestConnection GateAction = "request_connection"
	GateActionAcceptConnection  GateAction = "accept_connection"
	GateActionSendMessage       GateAction = "send_message"
	GateActionShareContact      GateAction = "share_contact"
	GateActionComment           GateAction = "comment"
	GateActionVouch             GateAction = "vouch"
	GateActionBlock             GateAction = "block"
	GateActionDisconnect        GateAction = "disconnect"
	GateActionUnlockSlot        GateAction = "unlock_slot"
)

func ParseGateAction(raw string) (GateAction, bool) {
	switch a := GateAction(raw); a {
	case GateActionRequestConnection,
		GateActionAcceptConnection,
		GateActionSendMessage,
		GateActionShareContact,
		GateActionComment,
		GateActionVouch,
		GateActionBlock,
		GateActionDisconnect,
		GateActionUnlockSlot:
		return a, true
	default:
		return "", false
	}
}
