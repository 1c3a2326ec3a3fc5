package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/connpane/internal/domain"
	"github.com/MrSnakeDoc/connpane/internal/index"
	"github.com/MrSnakeDoc/connpane/internal/logger"
)

// Pruner drops connections that have not been used within the retention window
type Pruner struct {
	store     SnapshotStore
	index     *index.MemoryIndex
	logger    logger.Logger
	interval  time.Duration
	retention time.Duration
	unit      domain.LastUsedUnit
	now       func() time.Time
	stopCh    chan struct{}
}

// NewPruner creates a new pruner. A retention of 0 disables pruning.
func NewPruner(
	store SnapshotStore,
	idx *index.MemoryIndex,
	log logger.Logger,
	interval time.Duration,
	retention time.Duration,
	unit domain.LastUsedUnit,
) *Pruner {
	return &Pruner{
		store:     store,
		index:     idx,
		logger:    log.With(logger.Component("pruner")),
		interval:  interval,
		retention: retention,
		unit:      unit,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Enabled reports whether a retention window is configured
func (p *Pruner) Enabled() bool {
	return p.retention > 0 && p.interval > 0
}

// Start runs a first pass, then prunes periodically until Stop or ctx
// cancellation. It does nothing when pruning is disabled.
func (p *Pruner) Start(ctx context.Context) error {
	if !p.Enabled() {
		p.logger.Info("pruning disabled")
		return nil
	}

	p.Prune(ctx)

	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Prune(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the pruner
func (p *Pruner) Stop() {
	close(p.stopCh)
}

// Prune removes every connection last used before now - retention and
// returns how many were removed. Connections without a last_used value are
// never pruned.
func (p *Pruner) Prune(ctx context.Context) int {
	if p.retention <= 0 {
		return 0
	}

	cutoff := p.now().Add(-p.retention)
	deleted := 0

	for _, c := range p.index.All() {
		usedAt := c.LastUsedAt(p.unit)
		if usedAt.IsZero() || !usedAt.Before(cutoff) {
			continue
		}

		if !p.index.DeleteIfCurrent(c) {
			continue
		}

		if p.store != nil {
			if err := p.store.DeleteConnection(ctx, c.ID()); err != nil {
				p.logger.Warn("failed to delete connection from redis",
					logger.String("connection", c.ID().Key()),
					logger.Error(err))
			}
		}

		p.logger.Info("pruned stale connection",
			logger.String("connection", c.ID().Key()),
			logger.Time("last_used", usedAt))

		deleted++
	}

	if deleted > 0 {
		p.logger.Info("pruning completed", logger.Int("deleted", deleted))
	} else {
		p.logger.Debug("no connections to prune")
	}

	return deleted
}
