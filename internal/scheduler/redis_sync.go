package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/connpane/internal/index"
	"github.com/MrSnakeDoc/connpane/internal/logger"
)

// RedisSyncer restores persisted snapshots into the memory index on startup
type RedisSyncer struct {
	store  SnapshotStore
	index  *index.MemoryIndex
	logger logger.Logger
}

// NewRedisSyncer creates a new Redis syncer
func NewRedisSyncer(
	store SnapshotStore,
	idx *index.MemoryIndex,
	log logger.Logger,
) *RedisSyncer {
	return &RedisSyncer{
		store:  store,
		index:  idx,
		logger: log.With(logger.Component("redis-sync")),
	}
}

// Sync loads every stored snapshot into the index as api-sourced records.
// It must run before the first registry reload, which then re-tags the
// records the file still lists.
func (rs *RedisSyncer) Sync(ctx context.Context) error {
	conns, err := rs.store.GetAllConnections(ctx)
	if err != nil {
		return err
	}

	if len(conns) == 0 {
		rs.logger.Info("no connections found in redis")
		return nil
	}

	for _, c := range conns {
		rs.index.Put(index.SourceAPI, c)
	}

	rs.logger.Info("synced connections from redis",
		logger.Int("count", len(conns)))

	return nil
}
