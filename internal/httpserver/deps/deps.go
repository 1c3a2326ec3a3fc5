package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/connpane/internal/domain"
	"github.com/MrSnakeDoc/connpane/internal/index"
	"github.com/MrSnakeDoc/connpane/internal/logger"
)

// ConnectionStore is the persistence handlers write through to.
type ConnectionStore interface {
	Ping(ctx context.Context) error
	GetConnection(ctx context.Context, id domain.ConnectionID) (*domain.Connection, error)
	SaveConnection(ctx context.Context, c *domain.Connection) error
	SaveConnectionsMany(ctx context.Context, conns []*domain.Connection) error
	DeleteConnection(ctx context.Context, id domain.ConnectionID) error
}

type Deps struct {
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	TimeNow         func() time.Time   // for testing, defaults to time.Now
	AllowedHosts    []string           // Host headers allowed to access the server
	AllowedCIDRS    []string           // IPs allowed to access the API
	TrustProxy      bool               // true if running behind a trusted reverse proxy
	ConnectionsFile string             // Path to the backend's registry file
	Store           ConnectionStore    // Redis snapshot store, nil when persistence is off
	MemoryIndex     *index.MemoryIndex // In-memory connection index
	ReloadTrigger   chan struct{}      // Channel to trigger a manual registry reload
	IngestBurst     int                // Rate limit burst for PUT/DELETE /connections
	IngestRefill    int                // Rate limit refill per client per minute
}
