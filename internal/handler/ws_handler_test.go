package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/AnkitKumarMitra/Discordia/internal/config"
	"github.com/AnkitKumarMitra/Discordia/internal/domain"
	"github.com/AnkitKumarMitra/Discordia/internal/hub"
	"github.com/AnkitKumarMitra/Discordia/internal/registry"
	pkgjwt "github.com/AnkitKumarMitra/Discordia/pkg/jwt"
)

type call struct {
	name string
	args []interface{}
}

type fakeChatService struct {
	mu    sync.Mutex
	calls []call
}

func (s *fakeChatService) record(name string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{name: name, args: args})
}

func (s *fakeChatService) last(t *testing.T) call {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		t.Fatal("expected a service call")
	}
	return s.calls[len(s.calls)-1]
}

func (s *fakeChatService) HandleSendMessage(ctx context.Context, c *hub.Client, ev domain.SendMessageEvent) error {
	s.record("send", ev)
	return nil
}
func (s *fakeChatService) HandleEditMessage(ctx context.Context, c *hub.Client, ev domain.EditMessageEvent) error {
	s.record("edit", ev)
	return nil
}
func (s *fakeChatService) HandleDeleteMessage(ctx context.Context, c *hub.Client, ev domain.DeleteMessageEvent) error {
	s.record("delete", ev)
	return nil
}
func (s *fakeChatService) HandleAddReaction(ctx context.Context, c *hub.Client, ev domain.AddReactionEvent) error {
	s.record("react", ev)
	return nil
}
func (s *fakeChatService) HandleTyping(ctx context.Context, c *hub.Client, roomID string, typing bool) error {
	s.record("typing", roomID, typing)
	return nil
}
func (s *fakeChatService) HandleJoinChannel(ctx context.Context, c *hub.Client, channelID string) error {
	s.record("join-channel", channelID)
	return nil
}
func (s *fakeChatService) HandleLeaveChannel(ctx context.Context, c *hub.Client, channelID string) error {
	s.record("leave-channel", channelID)
	return nil
}
func (s *fakeChatService) HandleJoinRoom(ctx context.Context, c *hub.Client, roomID string) error {
	s.record("join-room", roomID)
	return nil
}
func (s *fakeChatService) HandleLeaveRoom(ctx context.Context, c *hub.Client, roomID string) error {
	s.record("leave-room", roomID)
	return nil
}
func (s *fakeChatService) HandleStatusChange(ctx context.Context, c *hub.Client, status string) error {
	s.record("status", status)
	return nil
}

type fakeVoiceService struct {
	fakeChatService
}

func (s *fakeVoiceService) HandleJoinVoice(ctx context.Context, c *hub.Client, ev domain.JoinVoiceEvent) error {
	s.record("join-voice", ev)
	return nil
}
func (s *fakeVoiceService) HandleLeaveVoice(ctx context.Context, c *hub.Client, channelID string) error {
	s.record("leave-voice", channelID)
	return nil
}
func (s *fakeVoiceService) HandleSignal(ctx context.Context, c *hub.Client, ev domain.SignalEvent) error {
	s.record("signal", ev)
	return nil
}
func (s *fakeVoiceService) HandleVoiceState(ctx context.Context, c *hub.Client, ev domain.VoiceStateEvent) error {
	s.record("voice-state", ev)
	return nil
}
func (s *fakeVoiceService) HandleVideoState(ctx context.Context, c *hub.Client, ev domain.VideoStateEvent) error {
	s.record("video-state", ev)
	return nil
}
func (s *fakeVoiceService) HandleScreenShare(ctx context.Context, c *hub.Client, channelID string, sharing bool) error {
	s.record("screen-share", channelID, sharing)
	return nil
}
func (s *fakeVoiceService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	s.record("disconnect")
}

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   25 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 8192,
	}
}

func newFixture() (*WSHandler, *fakeChatService, *fakeVoiceService, *hub.Hub) {
	h := hub.NewHub(testConfig())
	go h.Run()
	chat := &fakeChatService{}
	voice := &fakeVoiceService{}
	reg := registry.NewMemoryRegistry(h)
	verifier := pkgjwt.NewVerifier("test-secret", "")
	ws := NewWSHandler(h, chat, voice, reg, nil, verifier, testConfig())
	return ws, chat, voice, h
}

func newClient(h *hub.Hub, userID string) *hub.Client {
	c := hub.NewClient("c-"+userID, h, nil, testConfig())
	c.Session.Authenticate(userID, "user-"+userID, "")
	return c
}

func recvError(t *testing.T, c *hub.Client) *domain.ErrorEvent {
	t.Helper()
	select {
	case msg := <-c.Send:
		var ev domain.ErrorEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return &ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error event")
		return nil
	}
}

func TestDispatchChatEvents(t *testing.T) {
	ws, chat, _, h := newFixture()
	c := newClient(h, "u1")

	ws.handleMessage(c, []byte(`{"type":"send-message","content":"hi","roomId":"channel:1","channelId":"1"}`))
	got := chat.last(t)
	if got.name != "send" {
		t.Fatalf("call = %s", got.name)
	}
	if ev := got.args[0].(domain.SendMessageEvent); ev.Content != "hi" || ev.RoomID != "channel:1" {
		t.Errorf("event = %+v", ev)
	}

	ws.handleMessage(c, []byte(`{"type":"typing-start","roomId":"channel:1"}`))
	got = chat.last(t)
	if got.name != "typing" || got.args[1].(bool) != true {
		t.Errorf("call = %+v", got)
	}

	ws.handleMessage(c, []byte(`{"type":"typing-stop","roomId":"channel:1"}`))
	got = chat.last(t)
	if got.name != "typing" || got.args[1].(bool) != false {
		t.Errorf("call = %+v", got)
	}

	ws.handleMessage(c, []byte(`{"type":"status-change","status":"idle"}`))
	got = chat.last(t)
	if got.name != "status" || got.args[0].(string) != "idle" {
		t.Errorf("call = %+v", got)
	}
}

func TestDispatchVoiceEvents(t *testing.T) {
	ws, _, voice, h := newFixture()
	c := newClient(h, "u1")

	ws.handleMessage(c, []byte(`{"type":"join-voice-channel","channelId":"v1"}`))
	got := voice.last(t)
	if got.name != "join-voice" {
		t.Fatalf("call = %s", got.name)
	}

	ws.handleMessage(c, []byte(`{"type":"webrtc-offer","targetUserId":"u2","channelId":"v1","offer":{"sdp":"x"}}`))
	got = voice.last(t)
	if got.name != "signal" {
		t.Fatalf("call = %s", got.name)
	}
	if ev := got.args[0].(domain.SignalEvent); ev.Type != domain.EventWebRTCOffer || ev.TargetUserID != "u2" {
		t.Errorf("event = %+v", ev)
	}

	ws.handleMessage(c, []byte(`{"type":"start-screen-share","channelId":"v1"}`))
	got = voice.last(t)
	if got.name != "screen-share" || got.args[1].(bool) != true {
		t.Errorf("call = %+v", got)
	}

	ws.handleMessage(c, []byte(`{"type":"stop-screen-share","channelId":"v1"}`))
	got = voice.last(t)
	if got.name != "screen-share" || got.args[1].(bool) != false {
		t.Errorf("call = %+v", got)
	}
}

func TestDispatchPing(t *testing.T) {
	ws, _, _, h := newFixture()
	c := newClient(h, "u1")

	ws.handleMessage(c, []byte(`{"type":"ping"}`))

	select {
	case msg := <-c.Send:
		var ev domain.PongEvent
		if err := json.Unmarshal(msg, &ev); err != nil || ev.Type != domain.EventPong {
			t.Errorf("got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no pong")
	}
}

func TestDispatchMalformedJSON(t *testing.T) {
	ws, _, _, h := newFixture()
	c := newClient(h, "u1")

	ws.handleMessage(c, []byte(`{not json`))

	if ev := recvError(t, c); ev.Code != domain.ErrCodeBadRequest {
		t.Errorf("code = %q", ev.Code)
	}
}

func TestDispatchUnknownType(t *testing.T) {
	ws, _, _, h := newFixture()
	c := newClient(h, "u1")

	ws.handleMessage(c, []byte(`{"type":"self-destruct"}`))

	if ev := recvError(t, c); ev.Code != domain.ErrCodeBadRequest {
		t.Errorf("code = %q", ev.Code)
	}
}

func TestHandleWebSocketRejectsBadToken(t *testing.T) {
	ws, _, _, _ := newFixture()

	for _, url := range []string{"/live/ws", "/live/ws?token=garbage"} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		ws.HandleWebSocket(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", url, rec.Code)
		}
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/live/ws?token=abc", nil)
	if got := tokenFromRequest(req); got != "abc" {
		t.Errorf("query token = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/live/ws", nil)
	req.Header.Set("Authorization", "Bearer xyz")
	if got := tokenFromRequest(req); got != "xyz" {
		t.Errorf("header token = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/live/ws", nil)
	if got := tokenFromRequest(req); got != "" {
		t.Errorf("missing token = %q", got)
	}
}

func TestHandleDisconnectRunsVoiceCleanupAndPresence(t *testing.T) {
	ws, _, voice, h := newFixture()
	c := newClient(h, "u1")
	ws.registry.Register("u1", c)

	ws.handleDisconnect(c)

	if got := voice.last(t); got.name != "disconnect" {
		t.Errorf("call = %s", got.name)
	}
	if _, ok := ws.registry.Lookup("u1"); ok {
		t.Error("presence record not removed")
	}
}
