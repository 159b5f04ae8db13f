package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/AnkitKumarMitra/Discordia/internal/config"
	"github.com/AnkitKumarMitra/Discordia/internal/domain"
	"github.com/AnkitKumarMitra/Discordia/internal/hub"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   25 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 8192,
	}
}

func newTestHub() *hub.Hub {
	h := hub.NewHub(testConfig())
	go h.Run()
	return h
}

func newTestClient(h *hub.Hub, id, userID, username string) *hub.Client {
	c := hub.NewClient(id, h, nil, testConfig())
	c.Session.Authenticate(userID, username, "")
	h.Register(c)
	return c
}

// fakeBroadcaster records broadcasts instead of fanning them out.
type broadcastCall struct {
	roomID    string
	eventType string
	message   interface{}
	exclude   string
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
	err   error
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, roomID, eventType string, message interface{}, exclude string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.calls = append(b.calls, broadcastCall{roomID: roomID, eventType: eventType, message: message, exclude: exclude})
	return nil
}

func (b *fakeBroadcaster) broadcasts() []broadcastCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcastCall{}, b.calls...)
}

func (b *fakeBroadcaster) last(t *testing.T) broadcastCall {
	t.Helper()
	calls := b.broadcasts()
	if len(calls) == 0 {
		t.Fatal("expected a broadcast")
	}
	return calls[len(calls)-1]
}

// fakeStore is an in-memory MessageStore.
type fakeStore struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
	channels map[string]*domain.Channel
	touched  []string
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: make(map[string]*domain.Message),
		channels: make(map[string]*domain.Channel),
	}
}

func (s *fakeStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *fakeStore) FindMessageByID(ctx context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.NewNotFoundError("message")
	}
	cp := *msg
	return &cp, nil
}

func (s *fakeStore) UpdateMessage(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *fakeStore) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, domain.NewNotFoundError("message")
	}
	msg.Reactions, _ = msg.Reactions.Toggle(userID, emoji)
	cp := *msg
	return &cp, nil
}

func (s *fakeStore) FindChannelByID(ctx context.Context, id string) (*domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[id]
	if !ok {
		return nil, domain.NewNotFoundError("channel")
	}
	cp := *ch
	return &cp, nil
}

func (s *fakeStore) TouchChannelActivity(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, channelID)
	return nil
}

func (s *fakeStore) GetChannelServerRef(ctx context.Context, channelID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return "", domain.NewNotFoundError("channel")
	}
	return ch.ServerID, nil
}

// fakeArchiver records archived messages.
type fakeArchiver struct {
	mu       sync.Mutex
	archived []*domain.Message
}

func (a *fakeArchiver) ArchiveMessage(ctx context.Context, msg *domain.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, msg)
	return nil
}

func (a *fakeArchiver) Close() error { return nil }

// fakeRegistry is an in-memory user directory for voice tests.
type fakeRegistry struct {
	mu       sync.Mutex
	sessions map[string]*hub.Client
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{sessions: make(map[string]*hub.Client)}
}

func (r *fakeRegistry) Register(userID string, client *hub.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = client
}

func (r *fakeRegistry) Lookup(userID string) (*hub.Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[userID]
	return c, ok
}

func (r *fakeRegistry) Mutate(userID string, fn func(*domain.Session)) {
	if c, ok := r.Lookup(userID); ok {
		fn(c.Session)
	}
}

func (r *fakeRegistry) Remove(userID, clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[userID]
	if !ok || c.ID != clientID {
		return false
	}
	delete(r.sessions, userID)
	return true
}

func (r *fakeRegistry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.sessions))
	for u := range r.sessions {
		users = append(users, u)
	}
	return users
}

func recvEvent(t *testing.T, c *hub.Client, v interface{}) {
	t.Helper()
	select {
	case msg := <-c.Send:
		if err := json.Unmarshal(msg, v); err != nil {
			t.Fatalf("unmarshal %s: %v", msg, err)
		}
	case <-time.After(time.Second):
		t.Fatalf("client %s: timed out waiting for message", c.ID)
	}
}

func recvError(t *testing.T, c *hub.Client) *domain.ErrorEvent {
	t.Helper()
	var ev domain.ErrorEvent
	recvEvent(t, c, &ev)
	if ev.Type != domain.EventError {
		t.Fatalf("expected error event, got type %q", ev.Type)
	}
	return &ev
}

func assertNoMessage(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("client %s: unexpected message %s", c.ID, msg)
	case <-time.After(50 * time.Millisecond):
	}
}
