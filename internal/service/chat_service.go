package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AnkitKumarMitra/Discordia/internal/audit"
	"github.com/AnkitKumarMitra/Discordia/internal/domain"
	"github.com/AnkitKumarMitra/Discordia/internal/fanout"
	"github.com/AnkitKumarMitra/Discordia/internal/hub"
	"github.com/AnkitKumarMitra/Discordia/internal/kafka"
	"github.com/AnkitKumarMitra/Discordia/internal/store"
	pkglog "github.com/AnkitKumarMitra/Discordia/pkg/log"
	"github.com/segmentio/ksuid"
)

type chatService struct {
	hub         *hub.Hub
	broadcaster fanout.Broadcaster
	store       store.MessageStore
	archiver    kafka.MessageArchiver // nil when archival is disabled
}

// NewChatService creates the chat service.
func NewChatService(h *hub.Hub, b fanout.Broadcaster, st store.MessageStore, archiver kafka.MessageArchiver) ChatService {
	return &chatService{
		hub:         h,
		broadcaster: b,
		store:       st,
		archiver:    archiver,
	}
}

// reject sends the wire form of err to the originating client only and
// returns err for the handler's log line. Errors never fan out.
func (s *chatService) reject(c *hub.Client, err error) error {
	c.SendMessage(domain.ErrorEventFor(err))
	return err
}

// rejectInternal hides the underlying failure behind a generic message.
func (s *chatService) rejectInternal(c *hub.Client, publicMsg string, err error) error {
	c.SendMessage(domain.NewErrorEvent(domain.ErrCodeInternalError, publicMsg))
	return err
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.NewValidationError("Message content is required")
	}
	if utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return domain.NewValidationError(fmt.Sprintf("Message content exceeds %d characters", domain.MaxMessageLength))
	}
	return nil
}

func (s *chatService) HandleSendMessage(ctx context.Context, c *hub.Client, ev domain.SendMessageEvent) error {
	if err := validateContent(ev.Content); err != nil {
		return s.reject(c, err)
	}
	if ev.RoomID == "" || ev.ChannelID == "" {
		return s.reject(c, domain.NewValidationError("Room ID and channel ID are required"))
	}

	channel, err := s.store.FindChannelByID(ctx, ev.ChannelID)
	if err != nil {
		if _, ok := err.(*domain.NotFoundError); ok {
			return s.reject(c, err)
		}
		return s.rejectInternal(c, "Failed to send message", fmt.Errorf("find channel %s: %w", ev.ChannelID, err))
	}

	msg := &domain.Message{
		ID:          ksuid.New().String(),
		Content:     strings.TrimSpace(ev.Content),
		SenderID:    c.Session.GetUserID(),
		SenderName:  c.Session.GetDisplayName(),
		ChannelID:   channel.ID,
		ServerID:    channel.ServerID,
		Room:        ev.RoomID,
		MessageType: domain.MessageTypeText,
		ReplyToID:   ev.ReplyTo,
		Reactions:   domain.ReactionList{},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return s.rejectInternal(c, "Failed to send message", fmt.Errorf("create message: %w", err))
	}

	if err := s.store.TouchChannelActivity(ctx, channel.ID); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str(pkglog.FieldChannelID, channel.ID).Msg("failed to touch channel activity")
	}

	s.archive(ctx, msg)
	audit.LogWithDetail(ctx, audit.ActionSendMessage, msg.SenderID, msg.ID, "message sent")

	// Sender receives the persisted document too; the client replaces
	// its optimistic echo by id.
	return s.broadcaster.Broadcast(ctx, ev.RoomID, domain.EventNewMessage, &domain.NewMessageEvent{
		Type:    domain.EventNewMessage,
		Message: msg,
	}, "")
}

func (s *chatService) HandleEditMessage(ctx context.Context, c *hub.Client, ev domain.EditMessageEvent) error {
	if ev.MessageID == "" {
		return s.reject(c, domain.NewValidationError("Message ID is required"))
	}
	if err := validateContent(ev.Content); err != nil {
		return s.reject(c, err)
	}

	msg, err := s.store.FindMessageByID(ctx, ev.MessageID)
	if err != nil {
		if _, ok := err.(*domain.NotFoundError); ok {
			return s.reject(c, err)
		}
		return s.rejectInternal(c, "Failed to edit message", fmt.Errorf("find message %s: %w", ev.MessageID, err))
	}
	if msg.SenderID != c.Session.GetUserID() {
		return s.reject(c, domain.NewAuthorizationError("Not authorized to edit this message"))
	}
	if msg.Deleted {
		return s.reject(c, domain.NewNotFoundError("message"))
	}

	now := time.Now().UTC()
	msg.Content = strings.TrimSpace(ev.Content)
	msg.Edited = true
	msg.EditedAt = &now

	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return s.rejectInternal(c, "Failed to edit message", fmt.Errorf("update message %s: %w", msg.ID, err))
	}

	audit.LogWithDetail(ctx, audit.ActionEditMessage, msg.SenderID, msg.ID, "message edited")

	return s.broadcaster.Broadcast(ctx, msg.Room, domain.EventMessageEdited, &domain.MessageEditedEvent{
		Type:      domain.EventMessageEdited,
		MessageID: msg.ID,
		Content:   msg.Content,
		Edited:    true,
		EditedAt:  now.Format(time.RFC3339),
	}, "")
}

func (s *chatService) HandleDeleteMessage(ctx context.Context, c *hub.Client, ev domain.DeleteMessageEvent) error {
	if ev.MessageID == "" {
		return s.reject(c, domain.NewValidationError("Message ID is required"))
	}

	msg, err := s.store.FindMessageByID(ctx, ev.MessageID)
	if err != nil {
		if _, ok := err.(*domain.NotFoundError); ok {
			return s.reject(c, err)
		}
		return s.rejectInternal(c, "Failed to delete message", fmt.Errorf("find message %s: %w", ev.MessageID, err))
	}
	if msg.SenderID != c.Session.GetUserID() {
		return s.reject(c, domain.NewAuthorizationError("Not authorized to delete this message"))
	}

	// Soft delete: the record survives with placeholder content so
	// reply chains keep a referent.
	now := time.Now().UTC()
	msg.Content = domain.DeletedPlaceholder
	msg.Deleted = true
	msg.DeletedAt = &now

	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return s.rejectInternal(c, "Failed to delete message", fmt.Errorf("update message %s: %w", msg.ID, err))
	}

	audit.LogWithDetail(ctx, audit.ActionDeleteMessage, msg.SenderID, msg.ID, "message deleted")

	return s.broadcaster.Broadcast(ctx, msg.Room, domain.EventMessageDeleted, &domain.MessageDeletedEvent{
		Type:      domain.EventMessageDeleted,
		MessageID: msg.ID,
	}, "")
}

func (s *chatService) HandleAddReaction(ctx context.Context, c *hub.Client, ev domain.AddReactionEvent) error {
	if ev.MessageID == "" || ev.Emoji == "" {
		return s.reject(c, domain.NewValidationError("Message ID and emoji are required"))
	}

	msg, err := s.store.ToggleReaction(ctx, ev.MessageID, c.Session.GetUserID(), ev.Emoji)
	if err != nil {
		if _, ok := err.(*domain.NotFoundError); ok {
			return s.reject(c, err)
		}
		return s.rejectInternal(c, "Failed to add reaction", fmt.Errorf("toggle reaction on %s: %w", ev.MessageID, err))
	}

	return s.broadcaster.Broadcast(ctx, msg.Room, domain.EventReactionUpdated, &domain.ReactionUpdatedEvent{
		Type:      domain.EventReactionUpdated,
		MessageID: msg.ID,
		Reactions: msg.Reactions,
	}, "")
}

func (s *chatService) HandleTyping(ctx context.Context, c *hub.Client, roomID string, typing bool) error {
	if roomID == "" {
		return nil
	}

	if typing {
		return s.broadcaster.Broadcast(ctx, roomID, domain.EventUserTyping, &domain.UserTypingEvent{
			Type:     domain.EventUserTyping,
			UserID:   c.Session.GetUserID(),
			Username: c.Session.GetDisplayName(),
		}, c.ID)
	}
	return s.broadcaster.Broadcast(ctx, roomID, domain.EventUserStoppedTyping, &domain.UserTypingEvent{
		Type:   domain.EventUserStoppedTyping,
		UserID: c.Session.GetUserID(),
	}, c.ID)
}

func (s *chatService) HandleJoinChannel(ctx context.Context, c *hub.Client, channelID string) error {
	if channelID == "" {
		return s.reject(c, domain.NewValidationError("Channel ID is required"))
	}

	roomID := domain.ChannelRoomID(channelID)
	s.hub.JoinRoom(c, roomID)
	c.Session.JoinRoom(roomID)

	audit.LogWithDetail(ctx, audit.ActionJoinRoom, c.Session.GetUserID(), roomID, "joined channel")

	return s.broadcaster.Broadcast(ctx, roomID, domain.EventUserJoinedChannel, &domain.UserChannelEvent{
		Type:      domain.EventUserJoinedChannel,
		UserID:    c.Session.GetUserID(),
		ChannelID: channelID,
	}, c.ID)
}

func (s *chatService) HandleLeaveChannel(ctx context.Context, c *hub.Client, channelID string) error {
	if channelID == "" {
		return s.reject(c, domain.NewValidationError("Channel ID is required"))
	}

	roomID := domain.ChannelRoomID(channelID)
	s.hub.LeaveRoom(c, roomID)
	c.Session.LeaveRoom(roomID)

	audit.LogWithDetail(ctx, audit.ActionLeaveRoom, c.Session.GetUserID(), roomID, "left channel")

	return s.broadcaster.Broadcast(ctx, roomID, domain.EventUserLeftChannel, &domain.UserChannelEvent{
		Type:      domain.EventUserLeftChannel,
		UserID:    c.Session.GetUserID(),
		ChannelID: channelID,
	}, c.ID)
}

func (s *chatService) HandleJoinRoom(ctx context.Context, c *hub.Client, roomID string) error {
	if roomID == "" {
		return s.reject(c, domain.NewValidationError("Room ID is required"))
	}

	s.hub.JoinRoom(c, roomID)
	c.Session.JoinRoom(roomID)

	return s.broadcaster.Broadcast(ctx, roomID, domain.EventUserJoinedRoom, &domain.UserRoomEvent{
		Type:   domain.EventUserJoinedRoom,
		UserID: c.Session.GetUserID(),
		RoomID: roomID,
	}, c.ID)
}

func (s *chatService) HandleLeaveRoom(ctx context.Context, c *hub.Client, roomID string) error {
	if roomID == "" {
		return s.reject(c, domain.NewValidationError("Room ID is required"))
	}

	s.hub.LeaveRoom(c, roomID)
	c.Session.LeaveRoom(roomID)

	return s.broadcaster.Broadcast(ctx, roomID, domain.EventUserLeftRoom, &domain.UserRoomEvent{
		Type:   domain.EventUserLeftRoom,
		UserID: c.Session.GetUserID(),
		RoomID: roomID,
	}, c.ID)
}

func (s *chatService) HandleStatusChange(ctx context.Context, c *hub.Client, status string) error {
	if status == "" {
		return s.reject(c, domain.NewValidationError("Status is required"))
	}

	c.Session.SetStatus(status)

	// Presence is instance-local; status notices do not cross the backplane.
	return s.hub.BroadcastAll(&domain.UserStatusChangeEvent{
		Type:   domain.EventUserStatusChange,
		UserID: c.Session.GetUserID(),
		Status: status,
	}, c.ID)
}

func (s *chatService) archive(ctx context.Context, msg *domain.Message) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveMessage(ctx, msg); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str(pkglog.FieldMessageID, msg.ID).Msg("failed to archive message")
	}
}
