package enums

type NotificationKind string

const (
	NotificationConnectionRequested NotificationKind = "connection_requested"
	NotificationConnectionAccepted  NotificationKind = "connection_accepted"
	NotificationVouchReceived       NotificationKind = "vouch_received"
	NotificationPartnerLeaving      NotificationKind = "partner_leaving"
)
