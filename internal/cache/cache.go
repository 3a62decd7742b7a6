// Package cache holds the engine's layered state caches: an immutable static
// tier (mint facts, rift identities), a warm in-memory tier of recently
// listed rifts, and a short-lived prefetch tier that makes user-facing
// actions instant. Resolvers consult tiers in that order and write through
// on every network fetch.
package cache

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"rifts-engine/internal/codec"
	"rifts-engine/internal/rift"
)

// MintMetadata is an immutable per-asset fact: decimals and the owning token
// program never change after mint creation, so entries never expire.
type MintMetadata struct {
	Mint         solana.PublicKey
	Decimals     uint8
	TokenProgram solana.PublicKey
}

// Identity is the immutable core of a rift: its mints and vault.
type Identity struct {
	UnderlyingMint solana.PublicKey
	RiftMint       solana.PublicKey
	Vault          solana.PublicKey
}

// PrefetchEntry bundles everything a mutating operation needs, resolved
// ahead of the user action: rift state, a recent blockhash, and the
// token-account lookups the wrap and unwrap paths would otherwise make.
// The optional fields are nil when the entry was assembled on demand, in
// which case the operation falls back to live reads.
type PrefetchEntry struct {
	Rift                 *codec.Rift
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	MintMeta             *MintMetadata
	VaultExists          *bool
	VaultBalance         *uint64
	storedAt             time.Time
}

// Config tunes tier freshness windows.
type Config struct {
	WarmTTL     time.Duration
	PrefetchTTL time.Duration
	Blacklist   []solana.PublicKey
}

// Service owns all three tiers. Constructed once per process and handed to
// orchestrators by reference.
type Service struct {
	log         *zap.Logger
	warmTTL     time.Duration
	prefetchTTL time.Duration

	mu         sync.RWMutex
	mints      map[solana.PublicKey]MintMetadata
	identities map[solana.PublicKey]Identity
	warm       []warmEntry
	warmAt     time.Time // last bulk refresh, gates whole-list reads
	prefetch   map[solana.PublicKey]*PrefetchEntry
	blacklist  map[solana.PublicKey]struct{}
}

// warmEntry carries its own freshness stamp so a single write-through
// snapshot is servable without a bulk listing refresh.
type warmEntry struct {
	rift     *codec.Rift
	storedAt time.Time
}

// New builds the cache service with well-known mints pre-seeded, so the
// common assets never cost a first network round trip.
func New(cfg Config, log *zap.Logger) *Service {
	if cfg.WarmTTL <= 0 {
		cfg.WarmTTL = 30 * time.Second
	}
	if cfg.PrefetchTTL <= 0 {
		cfg.PrefetchTTL = 30 * time.Second
	}
	s := &Service{
		log:         log.Named("cache"),
		warmTTL:     cfg.WarmTTL,
		prefetchTTL: cfg.PrefetchTTL,
		mints:       make(map[solana.PublicKey]MintMetadata),
		identities:  make(map[solana.PublicKey]Identity),
		prefetch:    make(map[solana.PublicKey]*PrefetchEntry),
		blacklist:   make(map[solana.PublicKey]struct{}),
	}
	for _, pk := range cfg.Blacklist {
		s.blacklist[pk] = struct{}{}
	}
	for _, m := range wellKnownMints {
		s.mints[m.Mint] = m
	}
	return s
}

var wellKnownMints = []MintMetadata{
	{Mint: rift.WrappedSOLMint, Decimals: 9, TokenProgram: solana.TokenProgramID},
	{Mint: solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"), Decimals: 6, TokenProgram: solana.TokenProgramID},
	{Mint: solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"), Decimals: 6, TokenProgram: solana.TokenProgramID},
}

// MintMeta reads the static mint tier.
func (s *Service) MintMeta(mint solana.PublicKey) (MintMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mints[mint]
	return m, ok
}

// PutMintMeta records an immutable mint fact.
func (s *Service) PutMintMeta(m MintMetadata) {
	s.mu.Lock()
	s.mints[m.Mint] = m
	s.mu.Unlock()
}

// RiftIdentity reads the static identity tier.
func (s *Service) RiftIdentity(riftAddr solana.PublicKey) (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[riftAddr]
	return id, ok
}

// PutSnapshot write-through: identity into the static tier, the full record
// upserted into the warm tier.
func (s *Service) PutSnapshot(r *codec.Rift) {
	if r == nil || r.Failed() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[r.Address] = Identity{
		UnderlyingMint: r.UnderlyingMint,
		RiftMint:       r.RiftMint,
		Vault:          r.Vault,
	}
	entry := warmEntry{rift: r, storedAt: time.Now()}
	for i := range s.warm {
		if s.warm[i].rift.Address.Equals(r.Address) {
			s.warm[i] = entry
			return
		}
	}
	s.warm = append(s.warm, entry)
}

// WarmSnapshot returns a rift from the warm tier if its entry is fresh.
func (s *Service) WarmSnapshot(riftAddr solana.PublicKey) (*codec.Rift, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.warm {
		if e.rift.Address.Equals(riftAddr) {
			if time.Since(e.storedAt) > s.warmTTL {
				return nil, false
			}
			return e.rift, true
		}
	}
	return nil, false
}

// WarmList returns the full warm tier when a bulk refresh is still fresh;
// blacklisted rifts are filtered regardless of source. Individual upserts
// never revive an expired listing.
func (s *Service) WarmList() ([]*codec.Rift, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.warm) == 0 || time.Since(s.warmAt) > s.warmTTL {
		return nil, false
	}
	list := make([]*codec.Rift, 0, len(s.warm))
	for _, e := range s.warm {
		list = append(list, e.rift)
	}
	return s.filterLocked(list), true
}

// SetWarmList replaces the warm tier after a bulk listing refresh.
func (s *Service) SetWarmList(list []*codec.Rift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.warm = make([]warmEntry, 0, len(list))
	s.warmAt = now
	for _, r := range list {
		if r.Failed() {
			continue
		}
		s.warm = append(s.warm, warmEntry{rift: r, storedAt: now})
		s.identities[r.Address] = Identity{
			UnderlyingMint: r.UnderlyingMint,
			RiftMint:       r.RiftMint,
			Vault:          r.Vault,
		}
	}
}

// Filter removes blacklisted rifts from a listing.
func (s *Service) Filter(list []*codec.Rift) []*codec.Rift {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(list)
}

func (s *Service) filterLocked(list []*codec.Rift) []*codec.Rift {
	out := make([]*codec.Rift, 0, len(list))
	for _, r := range list {
		if _, banned := s.blacklist[r.Address]; banned {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Blacklisted reports whether a rift id is excluded from all listings.
func (s *Service) Blacklisted(riftAddr solana.PublicKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, banned := s.blacklist[riftAddr]
	return banned
}

// PutPrefetch stores a pre-resolved operation bundle keyed by rift id.
func (s *Service) PutPrefetch(riftAddr solana.PublicKey, e *PrefetchEntry) {
	e.storedAt = time.Now()
	s.mu.Lock()
	s.prefetch[riftAddr] = e
	s.mu.Unlock()
}

// TakePrefetch consumes a prefetch entry when still within its validity
// window. Entries are single-use: a blockhash should not back two builds.
func (s *Service) TakePrefetch(riftAddr solana.PublicKey) (*PrefetchEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.prefetch[riftAddr]
	if !ok {
		return nil, false
	}
	delete(s.prefetch, riftAddr)
	if time.Since(e.storedAt) > s.prefetchTTL {
		return nil, false
	}
	return e, true
}
