package domain

import (
	"sync"
	"time"
)

// StatusOnline is the presence status assigned at connect time.
const StatusOnline = "online"

// StatusOffline is broadcast when a session disconnects.
const StatusOffline = "offline"

// VoiceState holds a session's last-write-wins voice flags.
type VoiceState struct {
	Muted         bool
	Deafened      bool
	Speaking      bool
	VideoEnabled  bool
	ScreenSharing bool
}

// Session is the in-memory state for one live connection from one
// authenticated identity. Created on successful authentication at
// connect time, destroyed on disconnect.
type Session struct {
	ID             string
	UserID         string
	Username       string
	DisplayName    string
	Status         string
	Authenticated  bool
	VoiceChannelID string
	VoiceServerID  string
	Voice          VoiceState
	Rooms          map[string]struct{}
	CreatedAt      time.Time
	LastActiveAt   time.Time
	mu             sync.RWMutex
}

// NewSession creates a new session bound to connection id.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Status:       StatusOnline,
		Rooms:        make(map[string]struct{}),
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Authenticate sets the user identity after successful token verification.
func (s *Session) Authenticate(userID, username, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserID = userID
	s.Username = username
	s.DisplayName = displayName
	s.Authenticated = true
	s.LastActiveAt = time.Now()
}

// IsAuthenticated returns whether the session is authenticated.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Authenticated
}

// JoinRoom records a room subscription on the session.
func (s *Session) JoinRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Rooms[roomID] = struct{}{}
	s.LastActiveAt = time.Now()
}

// LeaveRoom drops a room subscription from the session.
func (s *Session) LeaveRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Rooms, roomID)
	s.LastActiveAt = time.Now()
}

// RoomIDs returns a snapshot of the session's joined rooms.
func (s *Session) RoomIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.Rooms))
	for id := range s.Rooms {
		ids = append(ids, id)
	}
	return ids
}

// SetStatus updates the presence status.
func (s *Session) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.LastActiveAt = time.Now()
}

// GetStatus returns the presence status.
func (s *Session) GetStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// JoinVoice records the voice channel the session participates in.
func (s *Session) JoinVoice(channelID, serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.VoiceChannelID = channelID
	s.VoiceServerID = serverID
	s.LastActiveAt = time.Now()
}

// LeaveVoice clears the recorded voice channel and resets voice flags.
func (s *Session) LeaveVoice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.VoiceChannelID = ""
	s.VoiceServerID = ""
	s.Voice = VoiceState{}
	s.LastActiveAt = time.Now()
}

// CurrentVoiceChannel returns the voice channel id, "" when not in voice.
func (s *Session) CurrentVoiceChannel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.VoiceChannelID
}

// SetVoiceState updates the mute/deafen/speaking flags.
func (s *Session) SetVoiceState(muted, deafened, speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Voice.Muted = muted
	s.Voice.Deafened = deafened
	s.Voice.Speaking = speaking
	s.LastActiveAt = time.Now()
}

// SetVideoEnabled updates the video flag.
func (s *Session) SetVideoEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Voice.VideoEnabled = enabled
	s.LastActiveAt = time.Now()
}

// SetScreenSharing updates the screen-share flag.
func (s *Session) SetScreenSharing(sharing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Voice.ScreenSharing = sharing
	s.LastActiveAt = time.Now()
}

// VoiceStateSnapshot returns a copy of the voice flags.
func (s *Session) VoiceStateSnapshot() VoiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Voice
}

// GetUserID returns the user identity.
func (s *Session) GetUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID
}

// GetUsername returns the username.
func (s *Session) GetUsername() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Username
}

// GetDisplayName returns the display name, falling back to username.
func (s *Session) GetDisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Username
}

// UpdateActivity refreshes the last active timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
