package service

import (
	"context"

	"github.com/AnkitKumarMitra/Discordia/internal/domain"
	"github.com/AnkitKumarMitra/Discordia/internal/hub"
)

// ChatService handles message-pipeline and room-membership events.
type ChatService interface {
	HandleSendMessage(ctx context.Context, c *hub.Client, ev domain.SendMessageEvent) error
	HandleEditMessage(ctx context.Context, c *hub.Client, ev domain.EditMessageEvent) error
	HandleDeleteMessage(ctx context.Context, c *hub.Client, ev domain.DeleteMessageEvent) error
	HandleAddReaction(ctx context.Context, c *hub.Client, ev domain.AddReactionEvent) error
	HandleTyping(ctx context.Context, c *hub.Client, roomID string, typing bool) error
	HandleJoinChannel(ctx context.Context, c *hub.Client, channelID string) error
	HandleLeaveChannel(ctx context.Context, c *hub.Client, channelID string) error
	HandleJoinRoom(ctx context.Context, c *hub.Client, roomID string) error
	HandleLeaveRoom(ctx context.Context, c *hub.Client, roomID string) error
	HandleStatusChange(ctx context.Context, c *hub.Client, status string) error
}

// VoiceService handles voice-room membership, state and signaling relay.
type VoiceService interface {
	HandleJoinVoice(ctx context.Context, c *hub.Client, ev domain.JoinVoiceEvent) error
	HandleLeaveVoice(ctx context.Context, c *hub.Client, channelID string) error
	HandleSignal(ctx context.Context, c *hub.Client, ev domain.SignalEvent) error
	HandleVoiceState(ctx context.Context, c *hub.Client, ev domain.VoiceStateEvent) error
	HandleVideoState(ctx context.Context, c *hub.Client, ev domain.VideoStateEvent) error
	HandleScreenShare(ctx context.Context, c *hub.Client, channelID string, sharing bool) error
	HandleDisconnect(ctx context.Context, c *hub.Client)
}
