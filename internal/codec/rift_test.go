package codec

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"rifts-engine/internal/rift"
)

type fixtureWriter struct {
	buf []byte
}

func (w *fixtureWriter) bytes(b []byte)       { w.buf = append(w.buf, b...) }
func (w *fixtureWriter) u8(v uint8)           { w.buf = append(w.buf, v) }
func (w *fixtureWriter) u16(v uint16)         { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *fixtureWriter) u32(v uint32)         { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *fixtureWriter) u64(v uint64)         { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *fixtureWriter) i64(v int64)          { w.u64(uint64(v)) }
func (w *fixtureWriter) key(k solana.PublicKey) { w.bytes(k[:]) }

func (w *fixtureWriter) optKey(k *solana.PublicKey) {
	if k == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.key(*k)
}

func pk(seed byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = seed
	}
	return k
}

// buildRiftAccount produces a full on-chain layout buffer.
func buildRiftAccount(t *testing.T) ([]byte, map[string]solana.PublicKey) {
	t.Helper()
	keys := map[string]solana.PublicKey{
		"creator":    pk(1),
		"underlying": pk(2),
		"riftMint":   pk(3),
		"vault":      pk(4),
		"feesVault":  pk(5),
		"withheld":   pk(6),
		"treasury":   pk(7),
	}

	w := &fixtureWriter{}
	w.bytes(rift.RiftAccountDiscriminator[:])
	var name [32]byte
	copy(name[:], "wSOL-rift")
	w.bytes(name[:])
	w.key(keys["creator"])
	w.key(keys["underlying"])
	w.key(keys["riftMint"])
	w.key(keys["vault"])
	w.key(keys["feesVault"])
	w.key(keys["withheld"])

	w.u16(50) // partner fee
	w.optKey(nil)
	treasury := keys["treasury"]
	w.optKey(&treasury)
	w.u16(80) // wrap fee
	w.u16(80) // unwrap fee

	w.u64(1_000_000_000) // wrapped
	w.u64(990_000_000)   // minted
	w.u64(10_000_000)    // burned
	w.u64(10_500)        // backing ratio
	w.i64(1_700_000_000) // last rebalance
	w.i64(1_690_000_000) // created at

	for i := 0; i < 10; i++ {
		w.u64(uint64(100 + i)) // price
		w.u64(5)               // confidence
		w.i64(1_700_000_000)   // timestamp
	}
	w.u8(3)             // price index
	w.i64(1800)         // oracle update interval
	w.i64(86400)        // max rebalance interval
	w.u16(25)           // arbitrage threshold bps
	w.i64(1_700_000_100) // last oracle update
	w.u64(123_456)      // volume 24h
	w.u64(9)            // price deviation
	w.u16(12)           // arbitrage opportunity bps
	w.u32(4)            // rebalance count

	w.u64(500_000) // fees collected
	w.u64(200_000) // distributed
	w.u64(100_000) // burned
	w.optKey(nil)  // switchboard feed

	w.i64(1_700_000_200) // last manual oracle update
	w.u64(105)           // manual oracle base price
	w.i64(1_700_000_000) // drift window start

	w.u8(0)   // reentrancy guard
	w.u64(0)  // guard slot
	w.u8(0)   // is closed
	w.u64(0)  // closed at slot
	w.u8(0)   // oracle change pending
	w.optKey(nil)
	w.i64(0) // oracle change timestamp

	return w.buf, keys
}

func TestDecodeFullAccount(t *testing.T) {
	data, keys := buildRiftAccount(t)
	addr := pk(9)

	r := DecodeRift(addr, data)
	require.False(t, r.Failed())
	require.Equal(t, addr, r.Address)
	require.Equal(t, "wSOL-rift", r.DisplayName())
	require.Equal(t, keys["creator"], r.Creator)
	require.Equal(t, keys["underlying"], r.UnderlyingMint)
	require.Equal(t, keys["riftMint"], r.RiftMint)
	require.Equal(t, keys["vault"], r.Vault)
	require.Equal(t, keys["feesVault"], r.FeesVault)
	require.Equal(t, keys["withheld"], r.WithheldVault)

	require.Nil(t, r.PartnerWallet)
	require.NotNil(t, r.TreasuryWallet)
	require.Equal(t, keys["treasury"], *r.TreasuryWallet)
	require.EqualValues(t, 80, r.WrapFeeBps)
	require.EqualValues(t, 80, r.UnwrapFeeBps)

	require.EqualValues(t, 1_000_000_000, r.TotalUnderlyingWrapped)
	require.EqualValues(t, 10_500, r.BackingRatio)
	require.EqualValues(t, 3, r.PriceIndex)
	require.EqualValues(t, 4, r.RebalanceCount)
	require.EqualValues(t, 109, r.OraclePrices[9].Price)
	require.False(t, r.IsClosed)
}

func TestDecodeTruncatedTailDefaultsToZero(t *testing.T) {
	data, _ := buildRiftAccount(t)
	// Cut into the oracle window; everything past the cut must read as zero.
	r := DecodeRift(pk(9), data[:300])
	require.False(t, r.Failed())
	require.Equal(t, pk(1), r.Creator)
	require.EqualValues(t, 0, r.RebalanceCount)
	require.EqualValues(t, 0, r.TotalFeesCollected)
	require.Nil(t, r.SwitchboardFeedAccount)
	require.False(t, r.IsClosed)
}

func TestDecodeReducedLegacyLayout(t *testing.T) {
	w := &fixtureWriter{}
	w.bytes(rift.RiftAccountDiscriminator[:])
	var name [32]byte
	copy(name[:], "legacy")
	w.bytes(name[:])
	w.key(pk(1))
	w.key(pk(2))
	w.key(pk(3))
	w.key(pk(4))

	r := DecodeRift(pk(8), w.buf)
	require.False(t, r.Failed())
	require.Equal(t, "legacy", r.DisplayName())
	require.Equal(t, pk(1), r.Creator)
	require.Equal(t, pk(4), r.Vault)
	require.Equal(t, solana.PublicKey{}, r.FeesVault)
}

func TestDecodeNeverPanics(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {0x01}, make([]byte, 8), make([]byte, 41)} {
		require.NotPanics(t, func() { DecodeRift(pk(9), data) })
	}
}

func TestPendingFees(t *testing.T) {
	r := &Rift{TotalFeesCollected: 500, RiftsTokensDistributed: 200, RiftsTokensBurned: 100}
	require.EqualValues(t, 200, r.PendingFees())

	r.RiftsTokensBurned = 400
	require.EqualValues(t, 0, r.PendingFees())
}

func TestShouldTriggerRebalance(t *testing.T) {
	now := time.Unix(2_000_000_000, 0)

	overdue := &Rift{MaxRebalanceInterval: 3600, LastRebalance: now.Unix() - 7200}
	require.True(t, overdue.ShouldTriggerRebalance(now))

	heavyVolume := &Rift{
		MaxRebalanceInterval: 86400,
		LastRebalance:        now.Unix() - 60,
		TotalRiftMinted:      1000,
		TotalVolume24h:       200,
	}
	require.True(t, heavyVolume.ShouldTriggerRebalance(now))

	quiet := &Rift{
		MaxRebalanceInterval: 86400,
		LastRebalance:        now.Unix() - 60,
		TotalRiftMinted:      1000,
		TotalVolume24h:       50,
	}
	require.False(t, quiet.ShouldTriggerRebalance(now))
}

func TestRiskTiers(t *testing.T) {
	require.Equal(t, RiskLow, (&Rift{BackingRatio: BackingRatioScale}).Risk())
	require.Equal(t, RiskModerate, (&Rift{BackingRatio: BackingRatioScale * 95 / 100}).Risk())
	require.Equal(t, RiskHigh, (&Rift{BackingRatio: BackingRatioScale / 2}).Risk())
}

func TestAverageOraclePriceSkipsEmptySlots(t *testing.T) {
	r := &Rift{}
	r.OraclePrices[0] = PricePoint{Price: 100}
	r.OraclePrices[1] = PricePoint{Price: 200}
	require.EqualValues(t, 150, r.AverageOraclePrice())
	require.EqualValues(t, 0, (&Rift{}).AverageOraclePrice())
}
