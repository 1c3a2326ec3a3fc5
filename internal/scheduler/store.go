package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/connpane/internal/domain"
)

// SnapshotStore is the persistence the background jobs write through to.
// A nil SnapshotStore disables persistence; the memory index stays the
// primary source either way.
type SnapshotStore interface {
	SaveConnectionsMany(ctx context.Context, conns []*domain.Connection) error
	DeleteConnection(ctx context.Context, id domain.ConnectionID) error
	GetAllConnections(ctx context.Context) ([]*domain.Connection, error)
}
