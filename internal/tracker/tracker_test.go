package tracker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testKey(seed byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = seed
	}
	return k
}

func TestRecordAggregatesVolumeAndParticipants(t *testing.T) {
	tr := New(zap.NewNop(), nil)
	riftAddr := testKey(1)

	tr.Record(riftAddr, testKey(10), 100)
	tr.Record(riftAddr, testKey(11), 250)
	tr.Record(riftAddr, testKey(10), 50) // repeat wallet

	stats := tr.Stats(riftAddr)
	require.EqualValues(t, 400, stats.Volume24h)
	require.Equal(t, 2, stats.Participants)
	require.Equal(t, riftAddr, stats.Rift)
}

func TestStatsIsolatedPerRift(t *testing.T) {
	tr := New(zap.NewNop(), nil)
	tr.Record(testKey(1), testKey(10), 100)
	tr.Record(testKey(2), testKey(10), 999)

	require.EqualValues(t, 100, tr.Stats(testKey(1)).Volume24h)
	require.EqualValues(t, 999, tr.Stats(testKey(2)).Volume24h)
	require.EqualValues(t, 0, tr.Stats(testKey(3)).Volume24h)
}

func TestPrunedDropsExpiredSamples(t *testing.T) {
	now := time.Now()
	samples := []sample{
		{amount: 1, wallet: testKey(1), at: now.Add(-25 * time.Hour)},
		{amount: 2, wallet: testKey(2), at: now.Add(-23 * time.Hour)},
		{amount: 3, wallet: testKey(3), at: now},
	}
	kept := pruned(samples, now)
	require.Len(t, kept, 2)
	require.EqualValues(t, 2, kept[0].amount)
}

func TestSubscribeReceivesEveryRecord(t *testing.T) {
	tr := New(zap.NewNop(), nil)
	var mu sync.Mutex
	var got []Stats
	tr.Subscribe(func(s Stats) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	tr.Record(testKey(1), testKey(10), 100)
	tr.Record(testKey(1), testKey(11), 200)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	require.EqualValues(t, 300, got[1].Volume24h)
}

type failingPersister struct {
	mu    sync.Mutex
	calls int
}

func (p *failingPersister) Persist(Stats) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return errors.New("store down")
}

func TestPersistenceFailureNeverSurfaces(t *testing.T) {
	p := &failingPersister{}
	tr := New(zap.NewNop(), p)

	require.NotPanics(t, func() {
		tr.Record(testKey(1), testKey(10), 100)
	})

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.calls == 1
	}, time.Second, 5*time.Millisecond)
	require.EqualValues(t, 100, tr.Stats(testKey(1)).Volume24h)
}
