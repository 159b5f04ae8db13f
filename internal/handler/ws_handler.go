package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/AnkitKumarMitra/Discordia/internal/audit"
	"github.com/AnkitKumarMitra/Discordia/internal/config"
	"github.com/AnkitKumarMitra/Discordia/internal/domain"
	"github.com/AnkitKumarMitra/Discordia/internal/hub"
	"github.com/AnkitKumarMitra/Discordia/internal/registry"
	"github.com/AnkitKumarMitra/Discordia/internal/service"
	pkgjwt "github.com/AnkitKumarMitra/Discordia/pkg/jwt"
	pkglog "github.com/AnkitKumarMitra/Discordia/pkg/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections, authenticates them, and dispatches
// inbound events to the chat and voice services. Events from one
// connection are handled sequentially in its read pump.
type WSHandler struct {
	hub       *hub.Hub
	chatSvc   service.ChatService
	voiceSvc  service.VoiceService
	registry  registry.Registry
	directory *registry.RedisDirectory // nil when directory is disabled
	verifier  *pkgjwt.Verifier
	wsCfg     config.WebSocketConfig
}

// NewWSHandler creates the WebSocket handler.
func NewWSHandler(
	h *hub.Hub,
	chatSvc service.ChatService,
	voiceSvc service.VoiceService,
	reg registry.Registry,
	dir *registry.RedisDirectory,
	verifier *pkgjwt.Verifier,
	wsCfg config.WebSocketConfig,
) *WSHandler {
	return &WSHandler{
		hub:       h,
		chatSvc:   chatSvc,
		voiceSvc:  voiceSvc,
		registry:  reg,
		directory: dir,
		verifier:  verifier,
		wsCfg:     wsCfg,
	}
}

// tokenFromRequest reads the access token from the token query
// parameter or the Authorization bearer header.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// HandleWebSocket authenticates the request and promotes it to a live
// session. A bad credential is refused before any session state exists.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.L()
	ctx := r.Context()

	token := tokenFromRequest(r)
	if token == "" {
		audit.Log(ctx, audit.ActionAuthFailed, "", "connection refused: missing token")
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		audit.Log(ctx, audit.ActionAuthFailed, "", "connection refused: "+err.Error())
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	client.Session.Authenticate(claims.UserID, claims.Username, claims.DisplayName)
	client.SetDisconnectHandler(h.handleDisconnect)

	h.hub.Register(client)
	h.registry.Register(claims.UserID, client)

	if h.directory != nil {
		if err := h.directory.Advertise(context.Background(), claims.UserID); err != nil {
			l.Warn().Err(err).Str(pkglog.FieldUserID, claims.UserID).Msg("failed to advertise presence")
		}
	}

	audit.LogWithDetail(context.Background(), audit.ActionConnect, claims.UserID, client.ID, "client connected")

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base domain.BaseEvent
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	l := pkglog.L().With().
		Str(pkglog.FieldClientID, client.ID).
		Str(pkglog.FieldUserID, client.Session.GetUserID()).
		Logger()
	ctx := pkglog.WithLogger(context.Background(), l)

	var err error
	switch base.Type {
	case domain.EventSendMessage:
		var ev domain.SendMessageEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.chatSvc.HandleSendMessage(ctx, client, ev)
		}

	case domain.EventEditMessage:
		var ev domain.EditMessageEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.chatSvc.HandleEditMessage(ctx, client, ev)
		}

	case domain.EventDeleteMessage:
		var ev domain.DeleteMessageEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.chatSvc.HandleDeleteMessage(ctx, client, ev)
		}

	case domain.EventAddReaction:
		var ev domain.AddReactionEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.chatSvc.HandleAddReaction(ctx, client, ev)
		}

	case domain.EventTypingStart, domain.EventTypingStop:
		var ev domain.TypingEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.chatSvc.HandleTyping(ctx, client, ev.RoomID, base.Type == domain.EventTypingStart)
		}

	case domain.EventJoinChannel:
		var ev domain.ChannelEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.chatSvc.HandleJoinChannel(ctx, client, ev.ChannelID)
		}

	case domain.EventLeaveChannel:
		var ev domain.ChannelEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.chatSvc.HandleLeaveChannel(ctx, client, ev.ChannelID)
		}

	case domain.EventJoinRoom:
		var ev domain.RoomEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.chatSvc.HandleJoinRoom(ctx, client, ev.RoomID)
		}

	case domain.EventLeaveRoom:
		var ev domain.RoomEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.chatSvc.HandleLeaveRoom(ctx, client, ev.RoomID)
		}

	case domain.EventStatusChange:
		var ev domain.StatusChangeEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.chatSvc.HandleStatusChange(ctx, client, ev.Status)
		}

	case domain.EventJoinVoice:
		var ev domain.JoinVoiceEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.voiceSvc.HandleJoinVoice(ctx, client, ev)
		}

	case domain.EventLeaveVoice:
		var ev domain.JoinVoiceEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.voiceSvc.HandleLeaveVoice(ctx, client, ev.ChannelID)
		}

	case domain.EventWebRTCOffer, domain.EventWebRTCAnswer, domain.EventWebRTCCandidate:
		var ev domain.SignalEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.voiceSvc.HandleSignal(ctx, client, ev)
		}

	case domain.EventVoiceStateUpdate:
		var ev domain.VoiceStateEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.voiceSvc.HandleVoiceState(ctx, client, ev)
		}

	case domain.EventVideoStateUpdate:
		var ev domain.VideoStateEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.voiceSvc.HandleVideoState(ctx, client, ev)
		}

	case domain.EventStartScreenShare:
		var ev domain.ScreenShareEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.voiceSvc.HandleScreenShare(ctx, client, ev.ChannelID, true)
		}

	case domain.EventStopScreenShare:
		var ev domain.ScreenShareEvent
		if err = json.Unmarshal(message, &ev); err == nil {
			err = h.voiceSvc.HandleScreenShare(ctx, client, ev.ChannelID, false)
		}

	case domain.EventPing:
		client.SendMessage(&domain.PongEvent{Type: domain.EventPong})
		return

	default:
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeBadRequest, "Unknown event type"))
		return
	}

	if err != nil {
		if _, malformed := err.(*json.UnmarshalTypeError); malformed {
			client.SendMessage(domain.NewErrorEvent(domain.ErrCodeBadRequest, "Invalid "+base.Type+" payload"))
		}
		l.Warn().Err(err).Str("event", base.Type).Msg("event handling failed")
	}
}

// handleDisconnect runs before the client is unregistered so the
// implied leave-voice and presence withdrawal still see its session.
func (h *WSHandler) handleDisconnect(client *hub.Client) {
	userID := client.Session.GetUserID()

	l := pkglog.L().With().
		Str(pkglog.FieldClientID, client.ID).
		Str(pkglog.FieldUserID, userID).
		Logger()
	ctx := pkglog.WithLogger(context.Background(), l)

	h.voiceSvc.HandleDisconnect(ctx, client)

	// Remove is clientID-aware: a superseded connection's disconnect
	// must not evict its successor's record or directory key.
	if removed := h.registry.Remove(userID, client.ID); removed && h.directory != nil {
		if err := h.directory.Withdraw(ctx, userID); err != nil {
			l.Warn().Err(err).Msg("failed to withdraw presence")
		}
	}

	audit.LogWithDetail(ctx, audit.ActionDisconnect, userID, client.ID, "client disconnected")
}

// RegisterRoutes wires the live endpoint into the mux.
func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/live/ws", h.HandleWebSocket)
}
