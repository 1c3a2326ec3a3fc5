package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/connpane/internal/domain"
)

// DefaultConnectionTTL is how long a snapshot survives without being re-saved.
const DefaultConnectionTTL = 48 * time.Hour

// ErrNotFound is returned when no snapshot exists for a connection.
var ErrNotFound = errors.New("connection not found")

// Store persists connection snapshots in Redis, in the backend's wire format.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewStore creates a new Redis store
func NewStore(client redis.UniversalClient) *Store {
	return &Store{
		client: client,
		ttl:    DefaultConnectionTTL,
	}
}

// Ping checks that Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SaveConnection stores one snapshot, replacing any previous one with the same key
func (s *Store) SaveConnection(ctx context.Context, c *domain.Connection) error {
	return s.SaveConnectionsMany(ctx, []*domain.Connection{c})
}

// SaveConnectionsMany stores multiple snapshots in a single pipeline
func (s *Store) SaveConnectionsMany(ctx context.Context, conns []*domain.Connection) error {
	if len(conns) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, c := range conns {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal connection %s: %w", c.ID().Key(), err)
		}

		key := c.ID().Key()
		pipe.Set(ctx, ConnectionKey(key), data, s.ttl)
		pipe.SAdd(ctx, AllConnectionsKey(), key)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save connections: %w", err)
	}
	return nil
}

// GetConnection retrieves one snapshot by ConnectionID
func (s *Store) GetConnection(ctx context.Context, id domain.ConnectionID) (*domain.Connection, error) {
	data, err := s.client.Get(ctx, ConnectionKey(id.Key())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id.Key())
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	c, err := domain.ParseConnection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode connection %s: %w", id.Key(), err)
	}
	return c, nil
}

// GetAllConnections retrieves every stored snapshot. Keys whose data expired
// or no longer decodes are skipped.
func (s *Store) GetAllConnections(ctx context.Context) ([]*domain.Connection, error) {
	keys, err := s.client.SMembers(ctx, AllConnectionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection keys: %w", err)
	}

	if len(keys) == 0 {
		return []*domain.Connection{}, nil
	}

	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = ConnectionKey(key)
	}

	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get connections: %w", err)
	}

	conns := make([]*domain.Connection, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		c, err := domain.ParseConnection([]byte(raw))
		if err != nil {
			continue
		}
		conns = append(conns, c)
	}

	return conns, nil
}

// DeleteConnection removes a snapshot and its index entries
func (s *Store) DeleteConnection(ctx context.Context, id domain.ConnectionID) error {
	key := id.Key()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, ConnectionKey(key))
	pipe.SRem(ctx, AllConnectionsKey(), key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}
