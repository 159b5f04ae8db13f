package pubsub

import (
	"fmt"
	"strings"
)

// Backplane channel naming. Every broadcast domain (channel room or
// voice room) maps to one Redis channel; instances pattern-subscribe
// to the whole space.
const (
	channelRoomFormat  = "discordia:room:%s"
	ChannelRoomPattern = "discordia:room:*"
)

// RoomChannel returns the backplane channel name for a room.
func RoomChannel(roomID string) string {
	return fmt.Sprintf(channelRoomFormat, roomID)
}

// RoomFromChannel extracts the room ID from a backplane channel name.
// Returns "" if the channel is not a room channel.
func RoomFromChannel(channel string) string {
	const prefix = "discordia:room:"
	if !strings.HasPrefix(channel, prefix) {
		return ""
	}
	return channel[len(prefix):]
}
