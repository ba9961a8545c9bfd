package enums

type MessageKind string

const (
	MessageKindText        MessageKind = "text"
	MessageKindContactCard MessageKind = "contact_card"
)
