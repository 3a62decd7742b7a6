// Package tracker maintains rolling 24-hour usage windows per rift: volume
// and distinct participants, pruned on every write, with callback fan-out
// and best-effort background persistence.
package tracker

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const window = 24 * time.Hour

type sample struct {
	amount uint64
	wallet solana.PublicKey
	at     time.Time
}

// Stats aggregates one rift's rolling window.
type Stats struct {
	Rift         solana.PublicKey
	Volume24h    uint64
	Participants int
	UpdatedAt    time.Time
}

// Persister receives snapshots off the hot path. Errors are logged and
// swallowed; persistence is never allowed to fail an operation.
type Persister interface {
	Persist(stats Stats) error
}

// Tracker owns the per-rift windows.
type Tracker struct {
	log       *zap.Logger
	persister Persister

	mu        sync.Mutex
	samples   map[solana.PublicKey][]sample
	callbacks []func(Stats)
}

// New builds a tracker. persister may be nil.
func New(log *zap.Logger, persister Persister) *Tracker {
	return &Tracker{
		log:       log.Named("tracker"),
		persister: persister,
		samples:   make(map[solana.PublicKey][]sample),
	}
}

// Subscribe registers a callback invoked after every recorded sample.
func (t *Tracker) Subscribe(fn func(Stats)) {
	t.mu.Lock()
	t.callbacks = append(t.callbacks, fn)
	t.mu.Unlock()
}

// Record adds a usage sample, prunes the window, and fans out the fresh
// aggregate. Persistence runs in the background.
func (t *Tracker) Record(riftAddr, wallet solana.PublicKey, amount uint64) {
	now := time.Now()

	t.mu.Lock()
	kept := pruned(t.samples[riftAddr], now)
	kept = append(kept, sample{amount: amount, wallet: wallet, at: now})
	t.samples[riftAddr] = kept
	stats := aggregate(riftAddr, kept, now)
	callbacks := make([]func(Stats), len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn(stats)
	}
	if t.persister != nil {
		go func() {
			if err := t.persister.Persist(stats); err != nil {
				t.log.Debug("usage persistence failed", zap.String("rift", riftAddr.String()), zap.Error(err))
			}
		}()
	}
}

// Stats returns the current aggregate for a rift.
func (t *Tracker) Stats(riftAddr solana.PublicKey) Stats {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := pruned(t.samples[riftAddr], now)
	t.samples[riftAddr] = kept
	return aggregate(riftAddr, kept, now)
}

func pruned(samples []sample, now time.Time) []sample {
	cutoff := now.Add(-window)
	kept := samples[:0]
	for _, s := range samples {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	return kept
}

func aggregate(riftAddr solana.PublicKey, samples []sample, now time.Time) Stats {
	stats := Stats{Rift: riftAddr, UpdatedAt: now}
	seen := make(map[solana.PublicKey]struct{}, len(samples))
	for _, s := range samples {
		stats.Volume24h += s.amount
		seen[s.wallet] = struct{}{}
	}
	stats.Participants = len(seen)
	return stats
}
