package store

import (
	"context"

	"github.com/AnkitKumarMitra/Discordia/internal/domain"
)

// MessageStore is the external document store the hub persists
// through. Implementations must serialize concurrent ToggleReaction
// calls on the same message; the hub holds no lock across the call.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *domain.Message) error
	FindMessageByID(ctx context.Context, id string) (*domain.Message, error)
	UpdateMessage(ctx context.Context, msg *domain.Message) error

	// ToggleReaction atomically adds or removes userID from emoji's
	// reaction set on the message and returns the updated document.
	ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error)

	FindChannelByID(ctx context.Context, id string) (*domain.Channel, error)
	TouchChannelActivity(ctx context.Context, channelID string) error
	GetChannelServerRef(ctx context.Context, channelID string) (string, error)
}
