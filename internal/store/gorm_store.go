package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnkitKumarMitra/Discordia/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements MessageStore on a GORM-managed database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store and migrates the message and channel
// tables.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&domain.Message{}, &domain.Channel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (s *GormStore) FindMessageByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("message")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &msg, nil
}

func (s *GormStore) UpdateMessage(ctx context.Context, msg *domain.Message) error {
	if err := s.db.WithContext(ctx).Save(msg).Error; err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

// ToggleReaction serializes concurrent toggles on one message with a
// row lock inside a transaction. Two overlapping toggles on distinct
// emojis both land; the same user toggling twice is a no-op pair.
func (s *GormStore) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error) {
	var msg domain.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&msg, "id = ?", messageID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewNotFoundError("message")
		}
		if err != nil {
			return fmt.Errorf("failed to lock message: %w", err)
		}

		reactions, _ := msg.Reactions.Toggle(userID, emoji)
		msg.Reactions = reactions

		if err := tx.Model(&msg).Update("reactions", msg.Reactions).Error; err != nil {
			return fmt.Errorf("failed to store reactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *GormStore) FindChannelByID(ctx context.Context, id string) (*domain.Channel, error) {
	var ch domain.Channel
	err := s.db.WithContext(ctx).First(&ch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("channel")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find channel: %w", err)
	}
	return &ch, nil
}

func (s *GormStore) TouchChannelActivity(ctx context.Context, channelID string) error {
	err := s.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("id = ?", channelID).
		Update("last_activity", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to touch channel activity: %w", err)
	}
	return nil
}

func (s *GormStore) GetChannelServerRef(ctx context.Context, channelID string) (string, error) {
	ch, err := s.FindChannelByID(ctx, channelID)
	if err != nil {
		return "", err
	}
	return ch.ServerID, nil
}
