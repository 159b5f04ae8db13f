package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MaxMessageLength is the maximum message content length in runes.
const MaxMessageLength = 2000

// DeletedPlaceholder replaces the content of soft-deleted messages.
const DeletedPlaceholder = "[Message deleted]"

// Message kinds.
const (
	MessageTypeText   = "text"
	MessageTypeFile   = "file"
	MessageTypeImage  = "image"
	MessageTypeVoice  = "voice"
	MessageTypeSystem = "system"
)

// Reaction is one emoji with the set of users who reacted with it.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
}

// ReactionList is the ordered reaction set of a message, persisted as
// a JSON column. An emoji appears at most once; an empty user set
// removes the entry.
type ReactionList []Reaction

// Toggle adds userID to emoji's reaction set if absent, or removes it
// if present, dropping the entry when its set becomes empty. Returns
// the resulting list and whether the user was added.
func (rl ReactionList) Toggle(userID, emoji string) (ReactionList, bool) {
	for i, r := range rl {
		if r.Emoji != emoji {
			continue
		}
		for j, u := range r.Users {
			if u == userID {
				users := append(append([]string{}, r.Users[:j]...), r.Users[j+1:]...)
				if len(users) == 0 {
					return append(append(ReactionList{}, rl[:i]...), rl[i+1:]...), false
				}
				out := append(ReactionList{}, rl...)
				out[i].Users = users
				return out, false
			}
		}
		out := append(ReactionList{}, rl...)
		out[i].Users = append(append([]string{}, r.Users...), userID)
		return out, true
	}
	return append(append(ReactionList{}, rl...), Reaction{Emoji: emoji, Users: []string{userID}}), true
}

// Value implements driver.Valuer for JSON column storage.
func (rl ReactionList) Value() (driver.Value, error) {
	if rl == nil {
		rl = ReactionList{}
	}
	return json.Marshal(rl)
}

// Scan implements sql.Scanner for JSON column storage.
func (rl *ReactionList) Scan(value interface{}) error {
	if value == nil {
		*rl = ReactionList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, rl)
	case string:
		return json.Unmarshal([]byte(v), rl)
	default:
		return fmt.Errorf("cannot scan %T into ReactionList", value)
	}
}

// Message is the persisted chat message document. The hub holds one
// only transiently while processing an event; durability belongs to
// the external store.
type Message struct {
	ID          string       `gorm:"primaryKey;size:32" json:"_id"`
	Content     string       `gorm:"size:2000" json:"content"`
	SenderID    string       `gorm:"index;size:32" json:"sender"`
	SenderName  string       `gorm:"size:64" json:"senderName"`
	ChannelID   string       `gorm:"index;size:32" json:"channel"`
	ServerID    string       `gorm:"size:32" json:"server,omitempty"`
	Room        string       `gorm:"index;size:96" json:"room"`
	MessageType string       `gorm:"size:16;default:text" json:"messageType"`
	ReplyToID   string       `gorm:"size:32" json:"replyTo,omitempty"`
	Reactions   ReactionList `gorm:"type:json" json:"reactions"`
	Edited      bool         `json:"edited"`
	EditedAt    *time.Time   `json:"editedAt,omitempty"`
	Deleted     bool         `json:"deleted"`
	DeletedAt   *time.Time   `json:"deletedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Channel is the persisted channel document, read-only from the hub's
// perspective apart from the last-activity touch.
type Channel struct {
	ID           string    `gorm:"primaryKey;size:32" json:"_id"`
	Name         string    `gorm:"size:64" json:"name"`
	Type         string    `gorm:"size:16;default:text" json:"type"`
	ServerID     string    `gorm:"index;size:32" json:"server"`
	LastActivity time.Time `json:"lastActivity"`
	IsActive     bool      `gorm:"default:true" json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RoomID returns the broadcast domain for the channel's text chat.
func (c *Channel) RoomID() string {
	return ChannelRoomID(c.ID)
}

// ChannelRoomID derives the room id for a text channel.
func ChannelRoomID(channelID string) string {
	return "channel:" + channelID
}

// VoiceRoomID derives the room id for a voice channel.
func VoiceRoomID(channelID string) string {
	return "voice:" + channelID
}
