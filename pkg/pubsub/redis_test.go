package pubsub

import (
	"context"
	"testing"
	"time"
)

func TestForwardBlocksUntilConsumed(t *testing.T) {
	ctx := context.Background()
	eventCh := make(chan *Event, 1)
	eventCh <- &Event{Type: "first"}

	delivered := make(chan bool)
	go func() {
		delivered <- forward(ctx, eventCh, &Event{Type: "second"})
	}()

	// Full channel: forward must wait, not drop.
	select {
	case <-delivered:
		t.Fatal("forward returned while channel was full")
	case <-time.After(50 * time.Millisecond):
	}

	if ev := <-eventCh; ev.Type != "first" {
		t.Errorf("consumed %q first", ev.Type)
	}

	select {
	case ok := <-delivered:
		if !ok {
			t.Error("forward reported cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("forward never completed after a slot freed")
	}

	if ev := <-eventCh; ev.Type != "second" {
		t.Errorf("got %q, want the waiting event", ev.Type)
	}
}

func TestForwardStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eventCh := make(chan *Event) // no consumer

	delivered := make(chan bool)
	go func() {
		delivered <- forward(ctx, eventCh, &Event{Type: "stuck"})
	}()

	cancel()

	select {
	case ok := <-delivered:
		if ok {
			t.Error("forward reported delivery after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("forward did not stop on cancel")
	}
}
