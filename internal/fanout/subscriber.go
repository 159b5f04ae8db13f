package fanout

import (
	"context"
	"time"

	"github.com/AnkitKumarMitra/Discordia/internal/hub"
	pkglog "github.com/AnkitKumarMitra/Discordia/pkg/log"
	"github.com/AnkitKumarMitra/Discordia/pkg/pubsub"
)

// Subscriber consumes room events published by other instances and
// performs the local half of the broadcast: deliver to locally
// subscribed sessions, never re-publish.
type Subscriber struct {
	hub        *hub.Hub
	pubsub     pubsub.Subscriber
	instanceID string
	doneCh     chan struct{}
}

// NewSubscriber creates a backplane subscriber for this instance.
func NewSubscriber(h *hub.Hub, ps pubsub.Subscriber, instanceID string) *Subscriber {
	return &Subscriber{
		hub:        h,
		pubsub:     ps,
		instanceID: instanceID,
		doneCh:     make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run() exits.
func (s *Subscriber) Done() <-chan struct{} { return s.doneCh }

// Run pattern-subscribes to all room channels and delivers remote
// events locally until ctx is done. Reconnects on stream errors.
func (s *Subscriber) Run(ctx context.Context) error {
	defer close(s.doneCh)
	l := pkglog.L()

	for {
		if err := s.runSubscription(ctx); err != nil && ctx.Err() == nil {
			l.Warn().Err(err).Msg("backplane subscription error, reconnecting in 2s")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
				continue
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
}

func (s *Subscriber) runSubscription(ctx context.Context) error {
	eventCh, err := s.pubsub.SubscribePattern(ctx, pubsub.ChannelRoomPattern)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-eventCh:
			if !ok {
				return nil
			}
			s.handleEvent(event)
		}
	}
}

func (s *Subscriber) handleEvent(event *pubsub.Event) {
	// Loop prevention: skip events this instance published itself.
	if event.Origin == s.instanceID {
		return
	}
	if event.RoomID == "" || len(event.Payload) == 0 {
		return
	}

	s.hub.BroadcastRaw(event.RoomID, event.Payload, "")
}
