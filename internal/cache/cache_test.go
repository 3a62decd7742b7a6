package cache

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rifts-engine/internal/codec"
	"rifts-engine/internal/rift"
)

func testKey(seed byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = seed
	}
	return k
}

func testRift(addr byte) *codec.Rift {
	return &codec.Rift{
		Address:        testKey(addr),
		Creator:        testKey(addr + 1),
		UnderlyingMint: testKey(addr + 2),
		RiftMint:       testKey(addr + 3),
		Vault:          testKey(addr + 4),
	}
}

func TestWellKnownMintsPreSeeded(t *testing.T) {
	s := New(Config{}, zap.NewNop())
	m, ok := s.MintMeta(rift.WrappedSOLMint)
	require.True(t, ok)
	require.EqualValues(t, 9, m.Decimals)
	require.Equal(t, solana.TokenProgramID, m.TokenProgram)
}

func TestMintMetaRoundTrip(t *testing.T) {
	s := New(Config{}, zap.NewNop())
	mint := testKey(1)

	_, ok := s.MintMeta(mint)
	require.False(t, ok)

	s.PutMintMeta(MintMetadata{Mint: mint, Decimals: 6, TokenProgram: rift.Token2022ProgramID})
	m, ok := s.MintMeta(mint)
	require.True(t, ok)
	require.EqualValues(t, 6, m.Decimals)
	require.Equal(t, rift.Token2022ProgramID, m.TokenProgram)
}

func TestPutSnapshotWritesIdentity(t *testing.T) {
	s := New(Config{WarmTTL: time.Minute}, zap.NewNop())
	r := testRift(10)
	s.PutSnapshot(r)

	id, ok := s.RiftIdentity(r.Address)
	require.True(t, ok)
	require.Equal(t, r.UnderlyingMint, id.UnderlyingMint)
	require.Equal(t, r.RiftMint, id.RiftMint)
	require.Equal(t, r.Vault, id.Vault)
}

func TestPutSnapshotIgnoresSentinel(t *testing.T) {
	s := New(Config{}, zap.NewNop())
	bad := &codec.Rift{Address: testKey(1), Creator: codec.SentinelAddress}
	s.PutSnapshot(bad)
	_, ok := s.RiftIdentity(bad.Address)
	require.False(t, ok)
}

func TestWarmListExpires(t *testing.T) {
	s := New(Config{WarmTTL: 10 * time.Millisecond}, zap.NewNop())
	s.SetWarmList([]*codec.Rift{testRift(10)})

	list, ok := s.WarmList()
	require.True(t, ok)
	require.Len(t, list, 1)

	time.Sleep(20 * time.Millisecond)
	_, ok = s.WarmList()
	require.False(t, ok)
}

func TestWarmSnapshotUpsert(t *testing.T) {
	s := New(Config{WarmTTL: time.Minute}, zap.NewNop())
	s.SetWarmList([]*codec.Rift{testRift(10)})

	updated := testRift(10)
	updated.TotalVolume24h = 777
	s.PutSnapshot(updated)

	got, ok := s.WarmSnapshot(updated.Address)
	require.True(t, ok)
	require.EqualValues(t, 777, got.TotalVolume24h)
}

func TestPutSnapshotServableWithoutBulkRefresh(t *testing.T) {
	s := New(Config{WarmTTL: time.Minute}, zap.NewNop())
	r := testRift(10)
	s.PutSnapshot(r)

	got, ok := s.WarmSnapshot(r.Address)
	require.True(t, ok)
	require.Equal(t, r, got)
}

func TestWarmSnapshotEntryExpires(t *testing.T) {
	s := New(Config{WarmTTL: 10 * time.Millisecond}, zap.NewNop())
	r := testRift(10)
	s.PutSnapshot(r)

	time.Sleep(20 * time.Millisecond)
	_, ok := s.WarmSnapshot(r.Address)
	require.False(t, ok)
}

func TestPutSnapshotDoesNotReviveExpiredList(t *testing.T) {
	s := New(Config{WarmTTL: 10 * time.Millisecond}, zap.NewNop())
	s.SetWarmList([]*codec.Rift{testRift(10)})
	time.Sleep(20 * time.Millisecond)

	s.PutSnapshot(testRift(12))
	_, ok := s.WarmList()
	require.False(t, ok, "a single upsert must not refresh the whole listing")
}

func TestBlacklistFiltersListings(t *testing.T) {
	banned := testRift(20)
	s := New(Config{WarmTTL: time.Minute, Blacklist: []solana.PublicKey{banned.Address}}, zap.NewNop())
	s.SetWarmList([]*codec.Rift{testRift(10), banned})

	require.True(t, s.Blacklisted(banned.Address))
	list, ok := s.WarmList()
	require.True(t, ok)
	require.Len(t, list, 1)
	require.Equal(t, testKey(10), list[0].Address)
}

func TestPrefetchSingleUse(t *testing.T) {
	s := New(Config{PrefetchTTL: time.Minute}, zap.NewNop())
	addr := testKey(10)
	s.PutPrefetch(addr, &PrefetchEntry{Rift: testRift(10)})

	entry, ok := s.TakePrefetch(addr)
	require.True(t, ok)
	require.NotNil(t, entry.Rift)

	_, ok = s.TakePrefetch(addr)
	require.False(t, ok, "prefetch entries must not back two builds")
}

func TestPrefetchExpires(t *testing.T) {
	s := New(Config{PrefetchTTL: 5 * time.Millisecond}, zap.NewNop())
	addr := testKey(10)
	s.PutPrefetch(addr, &PrefetchEntry{Rift: testRift(10)})

	time.Sleep(10 * time.Millisecond)
	_, ok := s.TakePrefetch(addr)
	require.False(t, ok)
}
