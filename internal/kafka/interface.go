package kafka

import (
	"context"

	"github.com/AnkitKumarMitra/Discordia/internal/domain"
)

// MessageArchiver streams persisted messages to downstream consumers
// (history indexing, search). Archival is best-effort; failures never
// fail the send path.
type MessageArchiver interface {
	ArchiveMessage(ctx context.Context, msg *domain.Message) error
	Close() error
}
