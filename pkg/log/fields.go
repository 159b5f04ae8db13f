package log

const (
	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"
	FieldClientID = "client_id"

	// Live-session scope
	FieldRoomID    = "room_id"
	FieldChannelID = "channel_id"
	FieldMessageID = "message_id"

	// Service
	FieldService  = "service"
	FieldInstance = "instance_id"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
