package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AnkitKumarMitra/Discordia/internal/hub"
	pkglog "github.com/AnkitKumarMitra/Discordia/pkg/log"
	"github.com/AnkitKumarMitra/Discordia/pkg/pubsub"
)

// Broadcaster fans a room event out to local members and forwards it
// to other instances over the backplane.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID, eventType string, message interface{}, exclude string) error
}

// Fanout implements Broadcaster: every broadcast is "deliver locally +
// publish remotely". Per-connection handlers run sequentially, so the
// origin's call order is preserved on both paths (FIFO per origin
// session per room).
type Fanout struct {
	hub        *hub.Hub
	publisher  pubsub.Publisher
	instanceID string
}

// NewFanout creates a Fanout for this instance.
func NewFanout(h *hub.Hub, publisher pubsub.Publisher, instanceID string) *Fanout {
	return &Fanout{
		hub:        h,
		publisher:  publisher,
		instanceID: instanceID,
	}
}

// Broadcast delivers to local room members (optionally excluding the
// originating client) and publishes the event for remote instances.
func (f *Fanout) Broadcast(ctx context.Context, roomID, eventType string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	f.hub.BroadcastRaw(roomID, data, exclude)

	event := &pubsub.Event{
		Type:      eventType,
		RoomID:    roomID,
		Origin:    f.instanceID,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}
	if err := f.publisher.Publish(ctx, pubsub.RoomChannel(roomID), event); err != nil {
		// Local delivery already happened; remote loss is logged, not fatal.
		l := pkglog.L()
		l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Str("event", eventType).Msg("backplane publish failed")
		return err
	}
	return nil
}
