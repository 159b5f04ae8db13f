package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/AnkitKumarMitra/Discordia/internal/domain"
	"github.com/AnkitKumarMitra/Discordia/internal/hub"
)

func newVoiceFixture(t *testing.T) (*voiceService, *fakeBroadcaster, *fakeRegistry, *fakeStore, *hub.Hub) {
	t.Helper()
	h := newTestHub()
	b := &fakeBroadcaster{}
	reg := newFakeRegistry()
	st := newFakeStore()
	svc := NewVoiceService(h, b, reg, st).(*voiceService)
	return svc, b, reg, st, h
}

func joinVoice(t *testing.T, svc *voiceService, c *hub.Client, channelID string) {
	t.Helper()
	if err := svc.HandleJoinVoice(context.Background(), c, domain.JoinVoiceEvent{ChannelID: channelID}); err != nil {
		t.Fatalf("HandleJoinVoice(%s): %v", c.ID, err)
	}
}

func TestJoinVoice(t *testing.T) {
	svc, b, reg, _, h := newVoiceFixture(t)

	occupant := newTestClient(h, "c-occ", "u-occ", "olivia")
	reg.Register("u-occ", occupant)
	joinVoice(t, svc, occupant, "v1")

	// First joiner's roster is empty.
	var roster domain.VoiceMembersEvent
	recvEvent(t, occupant, &roster)
	if roster.Type != domain.EventVoiceMembers || roster.ChannelID != "v1" || len(roster.Members) != 0 {
		t.Errorf("first roster = %+v", roster)
	}

	joiner := newTestClient(h, "c-join", "u-join", "jo")
	reg.Register("u-join", joiner)
	joinVoice(t, svc, joiner, "v1")

	// The joiner's roster lists only the existing occupant.
	recvEvent(t, joiner, &roster)
	if len(roster.Members) != 1 || roster.Members[0].UserID != "u-occ" || roster.Members[0].Username != "olivia" {
		t.Errorf("roster = %+v", roster.Members)
	}

	// The room saw a join announcement excluding the joiner.
	call := b.last(t)
	if call.roomID != domain.VoiceRoomID("v1") || call.eventType != domain.EventUserJoinedVoice || call.exclude != "c-join" {
		t.Errorf("broadcast = %+v", call)
	}

	if joiner.Session.CurrentVoiceChannel() != "v1" {
		t.Error("session voice channel not recorded")
	}
	if h.RoomMemberCount(domain.VoiceRoomID("v1")) != 2 {
		t.Errorf("room members = %d", h.RoomMemberCount(domain.VoiceRoomID("v1")))
	}
}

func TestJoinVoiceResolvesServerRef(t *testing.T) {
	svc, _, _, st, h := newVoiceFixture(t)
	st.channels["v1"] = &domain.Channel{ID: "v1", Type: "voice", ServerID: "srv9"}

	c := newTestClient(h, "c1", "u1", "alice")
	joinVoice(t, svc, c, "v1")

	if c.Session.VoiceServerID != "srv9" {
		t.Errorf("VoiceServerID = %q", c.Session.VoiceServerID)
	}
}

func TestJoinVoiceRequiresChannel(t *testing.T) {
	svc, b, _, _, h := newVoiceFixture(t)
	c := newTestClient(h, "c1", "u1", "alice")

	if err := svc.HandleJoinVoice(context.Background(), c, domain.JoinVoiceEvent{}); err == nil {
		t.Fatal("expected error")
	}
	if ev := recvError(t, c); ev.Code != domain.ErrCodeBadRequest {
		t.Errorf("code = %q", ev.Code)
	}
	if len(b.broadcasts()) != 0 {
		t.Error("rejection must not fan out")
	}
}

func TestLeaveVoice(t *testing.T) {
	svc, b, _, _, h := newVoiceFixture(t)
	c := newTestClient(h, "c1", "u1", "alice")
	joinVoice(t, svc, c, "v1")

	if err := svc.HandleLeaveVoice(context.Background(), c, "v1"); err != nil {
		t.Fatalf("HandleLeaveVoice: %v", err)
	}

	call := b.last(t)
	if call.eventType != domain.EventUserLeftVoice || call.exclude != "c1" {
		t.Errorf("broadcast = %+v", call)
	}
	if c.Session.CurrentVoiceChannel() != "" {
		t.Error("session voice channel not cleared")
	}
	if h.RoomMemberCount(domain.VoiceRoomID("v1")) != 0 {
		t.Error("client still in voice room")
	}
}

func TestSignalRelay(t *testing.T) {
	svc, _, reg, _, h := newVoiceFixture(t)

	caller := newTestClient(h, "c-caller", "u-caller", "carol")
	target := newTestClient(h, "c-target", "u-target", "tim")
	reg.Register("u-caller", caller)
	reg.Register("u-target", target)

	offer := json.RawMessage(`{"sdp":"v=0..."}`)
	err := svc.HandleSignal(context.Background(), caller, domain.SignalEvent{
		Type:         domain.EventWebRTCOffer,
		TargetUserID: "u-target",
		ChannelID:    "v1",
		Offer:        offer,
	})
	if err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}

	var relay domain.SignalRelayEvent
	recvEvent(t, target, &relay)
	if relay.Type != domain.EventWebRTCOffer {
		t.Errorf("type = %q", relay.Type)
	}
	if relay.FromUserID != "u-caller" || relay.FromUsername != "carol" {
		t.Errorf("from = %s/%s", relay.FromUserID, relay.FromUsername)
	}
	if string(relay.Offer) != string(offer) {
		t.Errorf("offer = %s", relay.Offer)
	}
	assertNoMessage(t, caller)
}

func TestSignalRelayToDisconnectingTarget(t *testing.T) {
	// The registry lookup can resolve a target whose connection is
	// tearing down at that moment; the relay must not panic.
	svc, _, reg, _, h := newVoiceFixture(t)
	caller := newTestClient(h, "c-caller", "u-caller", "carol")

	for i := 0; i < 50; i++ {
		target := newTestClient(h, "c-target", "u-target", "tim")
		reg.Register("u-target", target)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 20; j++ {
				err := svc.HandleSignal(context.Background(), caller, domain.SignalEvent{
					Type:         domain.EventWebRTCOffer,
					TargetUserID: "u-target",
					ChannelID:    "v1",
					Offer:        json.RawMessage(`{}`),
				})
				if err != nil {
					t.Errorf("HandleSignal: %v", err)
				}
			}
		}()

		h.Unregister(target)
		<-done
		reg.Remove("u-target", target.ID)
	}
}

func TestSignalUnknownTargetDroppedSilently(t *testing.T) {
	svc, _, _, _, h := newVoiceFixture(t)
	caller := newTestClient(h, "c-caller", "u-caller", "carol")

	err := svc.HandleSignal(context.Background(), caller, domain.SignalEvent{
		Type:         domain.EventWebRTCCandidate,
		TargetUserID: "u-gone",
		Candidate:    json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	// No error event; the caller learns of departures from leave notices.
	assertNoMessage(t, caller)
}

func TestSignalUnknownTypeRejected(t *testing.T) {
	svc, _, reg, _, h := newVoiceFixture(t)
	caller := newTestClient(h, "c-caller", "u-caller", "carol")
	target := newTestClient(h, "c-target", "u-target", "tim")
	reg.Register("u-target", target)

	err := svc.HandleSignal(context.Background(), caller, domain.SignalEvent{
		Type:         "webrtc-bogus",
		TargetUserID: "u-target",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if ev := recvError(t, caller); ev.Code != domain.ErrCodeBadRequest {
		t.Errorf("code = %q", ev.Code)
	}
	assertNoMessage(t, target)
}

func TestVoiceStateUpdate(t *testing.T) {
	svc, b, _, _, h := newVoiceFixture(t)
	c := newTestClient(h, "c1", "u1", "alice")
	joinVoice(t, svc, c, "v1")

	err := svc.HandleVoiceState(context.Background(), c, domain.VoiceStateEvent{
		ChannelID: "v1",
		Muted:     true,
		Speaking:  true,
	})
	if err != nil {
		t.Fatalf("HandleVoiceState: %v", err)
	}

	call := b.last(t)
	if call.roomID != domain.VoiceRoomID("v1") || call.eventType != domain.EventUserVoiceState || call.exclude != "c1" {
		t.Errorf("broadcast = %+v", call)
	}
	ev := call.message.(*domain.UserVoiceStateEvent)
	if !ev.Muted || ev.Deafened || !ev.Speaking {
		t.Errorf("event = %+v", ev)
	}

	vs := c.Session.VoiceStateSnapshot()
	if !vs.Muted || !vs.Speaking {
		t.Errorf("session voice state = %+v", vs)
	}
}

func TestScreenShare(t *testing.T) {
	svc, b, _, _, h := newVoiceFixture(t)
	c := newTestClient(h, "c1", "u1", "alice")
	joinVoice(t, svc, c, "v1")

	if err := svc.HandleScreenShare(context.Background(), c, "v1", true); err != nil {
		t.Fatalf("HandleScreenShare start: %v", err)
	}
	if call := b.last(t); call.eventType != domain.EventUserStartedShare {
		t.Errorf("broadcast = %+v", call)
	}
	if !c.Session.VoiceStateSnapshot().ScreenSharing {
		t.Error("screen sharing flag not set")
	}

	if err := svc.HandleScreenShare(context.Background(), c, "v1", false); err != nil {
		t.Fatalf("HandleScreenShare stop: %v", err)
	}
	if call := b.last(t); call.eventType != domain.EventUserStoppedShare {
		t.Errorf("broadcast = %+v", call)
	}
}

func TestDisconnectLeavesVoice(t *testing.T) {
	svc, b, _, _, h := newVoiceFixture(t)
	c := newTestClient(h, "c1", "u1", "alice")
	joinVoice(t, svc, c, "v1")

	svc.HandleDisconnect(context.Background(), c)

	call := b.last(t)
	if call.roomID != domain.VoiceRoomID("v1") || call.eventType != domain.EventUserLeftVoice {
		t.Errorf("broadcast = %+v", call)
	}
	if c.Session.CurrentVoiceChannel() != "" {
		t.Error("session voice channel not cleared")
	}
	if h.RoomMemberCount(domain.VoiceRoomID("v1")) != 0 {
		t.Error("client still in voice room")
	}
}

func TestDisconnectOutsideVoiceIsNoOp(t *testing.T) {
	svc, b, _, _, h := newVoiceFixture(t)
	c := newTestClient(h, "c1", "u1", "alice")

	svc.HandleDisconnect(context.Background(), c)

	if len(b.broadcasts()) != 0 {
		t.Error("disconnect outside voice must not fan out")
	}
}
