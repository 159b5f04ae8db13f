package service

import (
	"context"

	"github.com/AnkitKumarMitra/Discordia/internal/audit"
	"github.com/AnkitKumarMitra/Discordia/internal/domain"
	"github.com/AnkitKumarMitra/Discordia/internal/fanout"
	"github.com/AnkitKumarMitra/Discordia/internal/hub"
	"github.com/AnkitKumarMitra/Discordia/internal/registry"
	"github.com/AnkitKumarMitra/Discordia/internal/store"
	pkglog "github.com/AnkitKumarMitra/Discordia/pkg/log"
)

type voiceService struct {
	hub         *hub.Hub
	broadcaster fanout.Broadcaster
	registry    registry.Registry
	store       store.MessageStore
}

// NewVoiceService creates the voice service.
func NewVoiceService(h *hub.Hub, b fanout.Broadcaster, reg registry.Registry, st store.MessageStore) VoiceService {
	return &voiceService{
		hub:         h,
		broadcaster: b,
		registry:    reg,
		store:       st,
	}
}

func (s *voiceService) reject(c *hub.Client, err error) error {
	c.SendMessage(domain.ErrorEventFor(err))
	return err
}

func (s *voiceService) HandleJoinVoice(ctx context.Context, c *hub.Client, ev domain.JoinVoiceEvent) error {
	if ev.ChannelID == "" {
		return s.reject(c, domain.NewValidationError("Channel ID is required"))
	}

	roomID := domain.VoiceRoomID(ev.ChannelID)

	serverID := ev.ServerID
	if serverID == "" && s.store != nil {
		if ref, err := s.store.GetChannelServerRef(ctx, ev.ChannelID); err == nil {
			serverID = ref
		}
	}

	// Roster snapshot before the join, so the joiner's reply lists only
	// existing occupants.
	existing := s.hub.RoomMembers(roomID)

	s.hub.JoinRoom(c, roomID)
	c.Session.JoinVoice(ev.ChannelID, serverID)
	c.Session.JoinRoom(roomID)

	audit.LogWithDetail(ctx, audit.ActionJoinVoice, c.Session.GetUserID(), ev.ChannelID, "joined voice channel")

	if err := s.broadcaster.Broadcast(ctx, roomID, domain.EventUserJoinedVoice, &domain.UserVoiceEvent{
		Type:      domain.EventUserJoinedVoice,
		UserID:    c.Session.GetUserID(),
		ChannelID: ev.ChannelID,
		Username:  c.Session.GetDisplayName(),
	}, c.ID); err != nil {
		return err
	}

	members := make([]domain.VoiceMember, 0, len(existing))
	for _, member := range existing {
		if member.ID == c.ID || member.Session == nil {
			continue
		}
		members = append(members, domain.VoiceMember{
			UserID:   member.Session.GetUserID(),
			Username: member.Session.GetDisplayName(),
		})
	}

	return c.SendMessage(&domain.VoiceMembersEvent{
		Type:      domain.EventVoiceMembers,
		ChannelID: ev.ChannelID,
		Members:   members,
	})
}

func (s *voiceService) HandleLeaveVoice(ctx context.Context, c *hub.Client, channelID string) error {
	if channelID == "" {
		return s.reject(c, domain.NewValidationError("Channel ID is required"))
	}

	roomID := domain.VoiceRoomID(channelID)
	s.hub.LeaveRoom(c, roomID)
	c.Session.LeaveRoom(roomID)
	c.Session.LeaveVoice()

	audit.LogWithDetail(ctx, audit.ActionLeaveVoice, c.Session.GetUserID(), channelID, "left voice channel")

	return s.broadcaster.Broadcast(ctx, roomID, domain.EventUserLeftVoice, &domain.UserVoiceEvent{
		Type:      domain.EventUserLeftVoice,
		UserID:    c.Session.GetUserID(),
		ChannelID: channelID,
		Username:  c.Session.GetDisplayName(),
	}, c.ID)
}

// HandleSignal relays a WebRTC offer, answer or ICE candidate to the
// target's connection on this instance. An unknown or remote target is
// dropped silently; the peer's departure notice is the caller's cue.
func (s *voiceService) HandleSignal(ctx context.Context, c *hub.Client, ev domain.SignalEvent) error {
	if ev.TargetUserID == "" {
		return s.reject(c, domain.NewValidationError("Target user ID is required"))
	}

	target, ok := s.registry.Lookup(ev.TargetUserID)
	if !ok {
		l := pkglog.Ctx(ctx)
		l.Debug().
			Str(pkglog.FieldUserID, c.Session.GetUserID()).
			Str("target_user_id", ev.TargetUserID).
			Str("signal", ev.Type).
			Msg("signal target not connected, dropping")
		return nil
	}

	relayType := ev.Type
	switch ev.Type {
	case domain.EventWebRTCOffer, domain.EventWebRTCAnswer, domain.EventWebRTCCandidate:
	default:
		return s.reject(c, domain.NewValidationError("Unknown signal type"))
	}

	return target.SendMessage(&domain.SignalRelayEvent{
		Type:         relayType,
		FromUserID:   c.Session.GetUserID(),
		FromUsername: c.Session.GetDisplayName(),
		ChannelID:    ev.ChannelID,
		Offer:        ev.Offer,
		Answer:       ev.Answer,
		Candidate:    ev.Candidate,
	})
}

func (s *voiceService) HandleVoiceState(ctx context.Context, c *hub.Client, ev domain.VoiceStateEvent) error {
	if ev.ChannelID == "" {
		return nil
	}

	c.Session.SetVoiceState(ev.Muted, ev.Deafened, ev.Speaking)

	return s.broadcaster.Broadcast(ctx, domain.VoiceRoomID(ev.ChannelID), domain.EventUserVoiceState, &domain.UserVoiceStateEvent{
		Type:     domain.EventUserVoiceState,
		UserID:   c.Session.GetUserID(),
		Username: c.Session.GetDisplayName(),
		Muted:    ev.Muted,
		Deafened: ev.Deafened,
		Speaking: ev.Speaking,
	}, c.ID)
}

func (s *voiceService) HandleVideoState(ctx context.Context, c *hub.Client, ev domain.VideoStateEvent) error {
	if ev.ChannelID == "" {
		return nil
	}

	c.Session.SetVideoEnabled(ev.VideoEnabled)

	return s.broadcaster.Broadcast(ctx, domain.VoiceRoomID(ev.ChannelID), domain.EventUserVideoState, &domain.UserVideoStateEvent{
		Type:         domain.EventUserVideoState,
		UserID:       c.Session.GetUserID(),
		Username:     c.Session.GetDisplayName(),
		VideoEnabled: ev.VideoEnabled,
	}, c.ID)
}

func (s *voiceService) HandleScreenShare(ctx context.Context, c *hub.Client, channelID string, sharing bool) error {
	if channelID == "" {
		return nil
	}

	c.Session.SetScreenSharing(sharing)

	eventType := domain.EventUserStartedShare
	if !sharing {
		eventType = domain.EventUserStoppedShare
	}

	return s.broadcaster.Broadcast(ctx, domain.VoiceRoomID(channelID), eventType, &domain.UserScreenShareEvent{
		Type:      eventType,
		UserID:    c.Session.GetUserID(),
		Username:  c.Session.GetDisplayName(),
		ChannelID: channelID,
	}, c.ID)
}

// HandleDisconnect runs the implied leave-voice when a connection in a
// voice channel drops without sending one.
func (s *voiceService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	channelID := c.Session.CurrentVoiceChannel()
	if channelID == "" {
		return
	}

	roomID := domain.VoiceRoomID(channelID)
	s.hub.LeaveRoom(c, roomID)
	c.Session.LeaveVoice()

	if err := s.broadcaster.Broadcast(ctx, roomID, domain.EventUserLeftVoice, &domain.UserVoiceEvent{
		Type:      domain.EventUserLeftVoice,
		UserID:    c.Session.GetUserID(),
		ChannelID: channelID,
		Username:  c.Session.GetDisplayName(),
	}, c.ID); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str(pkglog.FieldChannelID, channelID).Msg("failed to announce voice departure on disconnect")
	}
}
