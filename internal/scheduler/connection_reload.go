package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/connpane/internal/index"
	"github.com/MrSnakeDoc/connpane/internal/logger"
	"github.com/MrSnakeDoc/connpane/internal/sources/connfile"
)

// ConnectionReloader periodically re-reads the backend's registry file
type ConnectionReloader struct {
	loader        *connfile.Loader
	mapper        *connfile.Mapper
	store         SnapshotStore
	index         *index.MemoryIndex
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewConnectionReloader creates a new registry reloader
func NewConnectionReloader(
	connectionsFile string,
	store SnapshotStore,
	idx *index.MemoryIndex,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *ConnectionReloader {
	return &ConnectionReloader{
		loader:        connfile.NewLoader(connectionsFile),
		mapper:        connfile.NewMapper(),
		store:         store,
		index:         idx,
		logger:        log.With(logger.Component("reloader")),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the registry once, failing if that first load fails, then
// keeps reloading in the background until Stop or ctx cancellation.
func (cr *ConnectionReloader) Start(ctx context.Context) error {
	if err := cr.Reload(ctx); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	ticker := time.NewTicker(cr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := cr.Reload(ctx); err != nil {
					cr.logger.Error("failed to reload connections",
						logger.Error(err))
				}
			case <-cr.manualTrigger:
				cr.logger.Info("manual reload triggered")
				if err := cr.Reload(ctx); err != nil {
					cr.logger.Error("failed to reload connections",
						logger.Error(err))
				}
			case <-cr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (cr *ConnectionReloader) Stop() {
	close(cr.stopCh)
}

// Reload reads the registry file and swaps the file-sourced records in the
// index for the new snapshots. A file whose entries are all malformed is
// rejected and leaves the index untouched.
func (cr *ConnectionReloader) Reload(ctx context.Context) error {
	cr.logger.Debug("reloading connections", logger.String("file", cr.loader.Path()))

	file, err := cr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load connections: %w", err)
	}

	res := cr.mapper.MapConnections(file)
	if res.Skipped > 0 {
		cr.logger.Warn("skipped malformed connection entries",
			logger.Int("skipped", res.Skipped),
			logger.Error(res.FirstError))
	}
	if len(res.Connections) == 0 && res.Skipped > 0 {
		return errors.Join(errors.New("no valid connections in registry file"), res.FirstError)
	}

	removed := cr.index.ReplaceSource(index.SourceFile, res.Connections)

	cr.logger.Info("connections reloaded",
		logger.Int("count", len(res.Connections)),
		logger.Int("removed", len(removed)))

	if cr.store == nil {
		return nil
	}

	// Redis is best effort, the memory index is the primary source
	if err := cr.store.SaveConnectionsMany(ctx, res.Connections); err != nil {
		cr.logger.Warn("failed to save connections to redis", logger.Error(err))
	}
	for _, c := range removed {
		// A record pushed for the same key since ReplaceSource owns the snapshot now
		if _, taken := cr.index.SourceOf(c.ID().Key()); taken {
			continue
		}
		if err := cr.store.DeleteConnection(ctx, c.ID()); err != nil {
			cr.logger.Warn("failed to delete connection from redis",
				logger.String("connection", c.ID().Key()),
				logger.Error(err))
		}
	}

	return nil
}
