package audit

import (
	"context"

	"github.com/AnkitKumarMitra/Discordia/pkg/log"
)

// Audit actions for the live service.
const (
	ActionConnect       = "live.connect"
	ActionAuthFailed    = "live.auth_failed"
	ActionJoinRoom      = "live.join_room"
	ActionLeaveRoom     = "live.leave_room"
	ActionSendMessage   = "live.send_message"
	ActionEditMessage   = "live.edit_message"
	ActionDeleteMessage = "live.delete_message"
	ActionJoinVoice     = "live.join_voice"
	ActionLeaveVoice    = "live.leave_voice"
	ActionDisconnect    = "live.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with an extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
