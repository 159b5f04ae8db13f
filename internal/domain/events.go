package domain

import "encoding/json"

// WebSocket event types from client.
const (
	EventSendMessage      = "send-message"
	EventEditMessage      = "edit-message"
	EventDeleteMessage    = "delete-message"
	EventAddReaction      = "add-reaction"
	EventTypingStart      = "typing-start"
	EventTypingStop       = "typing-stop"
	EventJoinChannel      = "join-channel"
	EventLeaveChannel     = "leave-channel"
	EventJoinRoom         = "join-room"
	EventLeaveRoom        = "leave-room"
	EventJoinVoice        = "join-voice-channel"
	EventLeaveVoice       = "leave-voice-channel"
	EventWebRTCOffer      = "webrtc-offer"
	EventWebRTCAnswer     = "webrtc-answer"
	EventWebRTCCandidate  = "webrtc-ice-candidate"
	EventVoiceStateUpdate = "voice-state-update"
	EventVideoStateUpdate = "video-state-update"
	EventStartScreenShare = "start-screen-share"
	EventStopScreenShare  = "stop-screen-share"
	EventStatusChange     = "status-change"
	EventPing             = "ping"
)

// WebSocket event types to client.
const (
	EventNewMessage         = "new-message"
	EventMessageEdited      = "message-edited"
	EventMessageDeleted     = "message-deleted"
	EventReactionUpdated    = "reaction-updated"
	EventUserTyping         = "user-typing"
	EventUserStoppedTyping  = "user-stopped-typing"
	EventUserJoinedChannel  = "user-joined-channel"
	EventUserLeftChannel    = "user-left-channel"
	EventUserJoinedRoom     = "user-joined-room"
	EventUserLeftRoom       = "user-left-room"
	EventUserJoinedVoice    = "user-joined-voice"
	EventUserLeftVoice      = "user-left-voice"
	EventVoiceMembers       = "voice-channel-members"
	EventUserVoiceState     = "user-voice-state-update"
	EventUserVideoState     = "user-video-state-update"
	EventUserStartedShare   = "user-started-screen-share"
	EventUserStoppedShare   = "user-stopped-screen-share"
	EventUserStatusChange   = "user-status-change"
	EventError              = "error"
	EventPong               = "pong"
)

// BaseEvent carries the discriminating type of every inbound event.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server payloads.

type SendMessageEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	RoomID    string `json:"roomId"`
	ChannelID string `json:"channelId"`
	ReplyTo   string `json:"replyTo,omitempty"`
}

type EditMessageEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

type DeleteMessageEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

type AddReactionEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type TypingEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type ChannelEvent struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
}

type RoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type JoinVoiceEvent struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
	ServerID  string `json:"serverId,omitempty"`
}

// SignalEvent is the inbound WebRTC signaling envelope. Exactly one of
// Offer, Answer or Candidate is set, matching the event type.
type SignalEvent struct {
	Type         string          `json:"type"`
	TargetUserID string          `json:"targetUserId"`
	ChannelID    string          `json:"channelId"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

type VoiceStateEvent struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
	Muted     bool   `json:"muted"`
	Deafened  bool   `json:"deafened"`
	Speaking  bool   `json:"speaking"`
}

type VideoStateEvent struct {
	Type         string `json:"type"`
	ChannelID    string `json:"channelId"`
	VideoEnabled bool   `json:"videoEnabled"`
}

type ScreenShareEvent struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
}

type StatusChangeEvent struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// Server -> Client payloads.

type NewMessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

type MessageEditedEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
	Edited    bool   `json:"edited"`
	EditedAt  string `json:"editedAt"`
}

type MessageDeletedEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

type ReactionUpdatedEvent struct {
	Type      string       `json:"type"`
	MessageID string       `json:"messageId"`
	Reactions ReactionList `json:"reactions"`
}

type UserTypingEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type UserChannelEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
}

type UserRoomEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type UserVoiceEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
	Username  string `json:"username"`
}

// VoiceMember is one entry of a voice-channel roster.
type VoiceMember struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type VoiceMembersEvent struct {
	Type      string        `json:"type"`
	ChannelID string        `json:"channelId"`
	Members   []VoiceMember `json:"members"`
}

// SignalRelayEvent is the outbound WebRTC signaling envelope, annotated
// with the sender's identity.
type SignalRelayEvent struct {
	Type         string          `json:"type"`
	FromUserID   string          `json:"fromUserId"`
	FromUsername string          `json:"fromUsername"`
	ChannelID    string          `json:"channelId"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

type UserVoiceStateEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Muted    bool   `json:"muted"`
	Deafened bool   `json:"deafened"`
	Speaking bool   `json:"speaking"`
}

type UserVideoStateEvent struct {
	Type         string `json:"type"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	VideoEnabled bool   `json:"videoEnabled"`
}

type UserScreenShareEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	ChannelID string `json:"channelId"`
}

type UserStatusChangeEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorEvent creates a targeted error event.
func NewErrorEvent(code, message string) *ErrorEvent {
	return &ErrorEvent{
		Type:    EventError,
		Code:    code,
		Message: message,
	}
}

// ErrorEventFor maps a service error to its wire representation.
func ErrorEventFor(err error) *ErrorEvent {
	return NewErrorEvent(CodeForError(err), err.Error())
}

type PongEvent struct {
	Type string `json:"type"`
}
