// Package store talks to the external indexed store: a redis-backed cache of
// rift listings consulted before raw chain scans, and written back after
// successful mutations. Everything here is best effort; the chain remains
// the source of truth.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rifts-engine/internal/codec"
)

// ErrEmpty signals that the store holds no listing; callers fall back to
// chain scanning.
var ErrEmpty = errors.New("store: no entries")

const (
	indexKey  = "rifts:index"
	entityKey = "rifts:entity:"
	usageKey  = "rifts:usage:"
)

// Store is a thin typed layer over redis.
type Store struct {
	rdb *redis.Client
	log *zap.Logger
	ttl time.Duration
}

// Config carries redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New dials redis. A nil return means the store is disabled (no address).
func New(cfg Config, log *zap.Logger) *Store {
	if cfg.Addr == "" {
		return nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		log: log.Named("store"),
		ttl: cfg.TTL,
	}
}

// ListRifts loads every indexed rift record.
func (s *Store) ListRifts(ctx context.Context) ([]*codec.Rift, error) {
	addrs, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("store: read index: %w", err)
	}
	if len(addrs) == 0 {
		return nil, ErrEmpty
	}
	out := make([]*codec.Rift, 0, len(addrs))
	for _, addr := range addrs {
		raw, err := s.rdb.Get(ctx, entityKey+addr).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: read entity %s: %w", addr, err)
		}
		var r codec.Rift
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			s.log.Warn("dropping undecodable store entry", zap.String("rift", addr), zap.Error(err))
			continue
		}
		out = append(out, &r)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// SaveRift writes one rift record back to the store.
func (s *Store) SaveRift(ctx context.Context, r *codec.Rift) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal rift %s: %w", r.Address, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, entityKey+r.Address.String(), raw, s.ttl)
	pipe.SAdd(ctx, indexKey, r.Address.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: save rift %s: %w", r.Address, err)
	}
	return nil
}

// SaveRifts bulk-writes a listing refresh.
func (s *Store) SaveRifts(ctx context.Context, list []*codec.Rift) error {
	for _, r := range list {
		if err := s.SaveRift(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// UsageSnapshot is the persisted form of a rift's rolling usage window.
type UsageSnapshot struct {
	Rift         solana.PublicKey `json:"rift"`
	Volume24h    uint64           `json:"volume_24h"`
	Participants int              `json:"participants_24h"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// SaveUsage persists a usage snapshot.
func (s *Store) SaveUsage(ctx context.Context, snap UsageSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal usage for %s: %w", snap.Rift, err)
	}
	if err := s.rdb.Set(ctx, usageKey+snap.Rift.String(), raw, 48*time.Hour).Err(); err != nil {
		return fmt.Errorf("store: save usage for %s: %w", snap.Rift, err)
	}
	return nil
}
