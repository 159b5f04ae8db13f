package registry

import (
	"sync"

	"github.com/AnkitKumarMitra/Discordia/internal/domain"
	"github.com/AnkitKumarMitra/Discordia/internal/hub"
	pkglog "github.com/AnkitKumarMitra/Discordia/pkg/log"
)

// Registry tracks one presence record per connected user on this
// instance. Process-lifetime state only; rebuilt from nothing on
// restart.
type Registry interface {
	// Register stores the presence record for a user, superseding any
	// prior record for the same identity (last-connect-wins). The
	// superseded connection is not closed; it dies on its own.
	Register(userID string, client *hub.Client)

	// Lookup resolves a user's current client, if connected here.
	Lookup(userID string) (*hub.Client, bool)

	// Mutate applies an in-place update to the user's session if
	// present; no-op otherwise.
	Mutate(userID string, fn func(*domain.Session))

	// Remove deletes the presence record if it still belongs to
	// clientID, reporting whether it did. Idempotent, and harmless when
	// called for a superseded connection.
	Remove(userID, clientID string) bool

	// OnlineUsers returns the identities currently registered.
	OnlineUsers() []string
}

type memoryRegistry struct {
	hub      *hub.Hub
	mu       sync.RWMutex
	sessions map[string]*hub.Client // userID -> client
}

// NewMemoryRegistry creates the instance-scoped in-memory registry.
// Register and Remove broadcast a user-status-change notice to all
// other local sessions.
func NewMemoryRegistry(h *hub.Hub) Registry {
	return &memoryRegistry{
		hub:      h,
		sessions: make(map[string]*hub.Client),
	}
}

func (r *memoryRegistry) Register(userID string, client *hub.Client) {
	r.mu.Lock()
	prior := r.sessions[userID]
	r.sessions[userID] = client
	r.mu.Unlock()

	if prior != nil {
		l := pkglog.L()
		l.Warn().
			Str(pkglog.FieldUserID, userID).
			Str(pkglog.FieldClientID, prior.ID).
			Msg("presence record superseded by new connection")
	}

	r.hub.BroadcastAll(&domain.UserStatusChangeEvent{
		Type:   domain.EventUserStatusChange,
		UserID: userID,
		Status: domain.StatusOnline,
	}, client.ID)
}

func (r *memoryRegistry) Lookup(userID string) (*hub.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.sessions[userID]
	return client, ok
}

func (r *memoryRegistry) Mutate(userID string, fn func(*domain.Session)) {
	r.mu.RLock()
	client, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	fn(client.Session)
}

func (r *memoryRegistry) Remove(userID, clientID string) bool {
	r.mu.Lock()
	client, ok := r.sessions[userID]
	if !ok || client.ID != clientID {
		// Already removed, or superseded by a newer connection.
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, userID)
	r.mu.Unlock()

	r.hub.BroadcastAll(&domain.UserStatusChangeEvent{
		Type:   domain.EventUserStatusChange,
		UserID: userID,
		Status: domain.StatusOffline,
	}, clientID)
	return true
}

func (r *memoryRegistry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		users = append(users, userID)
	}
	return users
}
