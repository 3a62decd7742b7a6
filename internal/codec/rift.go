// Package codec decodes raw Rifts protocol account buffers into typed records.
//
// Decoding is deliberately tolerant: every field read is bounds-checked and a
// missing tail yields zero values instead of an error, so accounts written by
// older program versions with shorter layouts still decode. Callers detect a
// hard decode failure by sentinel inspection (see Failed), never by panic.
package codec

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/gagliardetto/solana-go"
)

// BackingRatioScale is the fixed-point denominator of Rift.BackingRatio.
const BackingRatioScale = 10_000

// reducedLayoutThreshold routes short legacy buffers to the reduced decoder,
// which recovers only the core address fields.
const reducedLayoutThreshold = 232

// sentinelBytes fills every address of a failed decode; no real account key
// is all 0xFF.
var sentinelBytes = bytes.Repeat([]byte{0xff}, 32)

// SentinelAddress marks a record produced by a failed decode.
var SentinelAddress = solana.PublicKeyFromBytes(sentinelBytes)

// PricePoint is one entry of the rift's rolling oracle window.
type PricePoint struct {
	Price      uint64
	Confidence uint64
	Timestamp  int64
}

// Rift is the decoded protocol entity state.
type Rift struct {
	Address solana.PublicKey // account key, set by the caller

	Name           [32]byte
	Creator        solana.PublicKey
	UnderlyingMint solana.PublicKey
	RiftMint       solana.PublicKey
	Vault          solana.PublicKey
	FeesVault      solana.PublicKey
	WithheldVault  solana.PublicKey

	PartnerFeeBps  uint16
	PartnerWallet  *solana.PublicKey
	TreasuryWallet *solana.PublicKey
	WrapFeeBps     uint16
	UnwrapFeeBps   uint16

	TotalUnderlyingWrapped uint64
	TotalRiftMinted        uint64
	TotalBurned            uint64
	BackingRatio           uint64 // scaled by BackingRatioScale
	LastRebalance          int64
	CreatedAt              int64

	OraclePrices           [10]PricePoint
	PriceIndex             uint8
	OracleUpdateInterval   int64
	MaxRebalanceInterval   int64
	ArbitrageThresholdBps  uint16
	LastOracleUpdate       int64
	TotalVolume24h         uint64
	PriceDeviation         uint64
	ArbitrageOpportunityBps uint16
	RebalanceCount         uint32

	TotalFeesCollected     uint64
	RiftsTokensDistributed uint64
	RiftsTokensBurned      uint64

	SwitchboardFeedAccount *solana.PublicKey

	LastManualOracleUpdate        int64
	ManualOracleBasePrice         uint64
	ManualOracleDriftWindowStart  int64

	ReentrancyGuard     bool
	ReentrancyGuardSlot uint64
	IsClosed            bool
	ClosedAtSlot        uint64

	OracleChangePending       bool
	PendingSwitchboardAccount *solana.PublicKey
	OracleChangeTimestamp     int64
}

// Failed reports whether this record is the sentinel result of a decode that
// hit an unexpected condition.
func (r *Rift) Failed() bool {
	return r.Creator.Equals(SentinelAddress)
}

// DisplayName trims the fixed-width name field to its used prefix.
func (r *Rift) DisplayName() string {
	n := bytes.IndexByte(r.Name[:], 0)
	if n < 0 {
		n = len(r.Name)
	}
	return string(r.Name[:n])
}

// PendingFees returns fees collected but not yet distributed or burned.
func (r *Rift) PendingFees() uint64 {
	spent := r.RiftsTokensDistributed + r.RiftsTokensBurned
	if spent >= r.TotalFeesCollected {
		return 0
	}
	return r.TotalFeesCollected - spent
}

// ShouldTriggerRebalance mirrors the program's eligibility check so the
// client can skip submissions destined to no-op.
func (r *Rift) ShouldTriggerRebalance(now time.Time) bool {
	ts := now.Unix()
	if r.MaxRebalanceInterval > 0 && ts-r.LastRebalance > r.MaxRebalanceInterval {
		return true
	}
	// Volume threshold: 24h volume above 10% of minted supply.
	if r.TotalRiftMinted > 0 && r.TotalVolume24h > r.TotalRiftMinted/10 {
		return true
	}
	return r.ArbitrageOpportunityBps > r.ArbitrageThresholdBps
}

// AverageOraclePrice averages the non-empty entries of the rolling window.
func (r *Rift) AverageOraclePrice() uint64 {
	var sum, n uint64
	for _, p := range r.OraclePrices {
		if p.Price == 0 {
			continue
		}
		sum += p.Price
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// RiskTier grades a rift from its backing ratio.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskModerate RiskTier = "moderate"
	RiskHigh     RiskTier = "high"
)

// Risk classifies the rift by how fully the vault backs outstanding supply.
func (r *Rift) Risk() RiskTier {
	switch {
	case r.BackingRatio >= BackingRatioScale:
		return RiskLow
	case r.BackingRatio >= BackingRatioScale*9/10:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// OracleHealthy reports whether the most recent oracle update is within two
// update intervals of now.
func (r *Rift) OracleHealthy(now time.Time) bool {
	if r.LastOracleUpdate == 0 {
		return false
	}
	interval := r.OracleUpdateInterval
	if interval <= 0 {
		interval = 1800
	}
	return now.Unix()-r.LastOracleUpdate <= 2*interval
}

// reader walks a fixed-offset buffer; reads past the end return zero values.
type reader struct {
	data []byte
	off  int
}

func (rd *reader) remaining() int { return len(rd.data) - rd.off }

func (rd *reader) skip(n int) { rd.off += n }

func (rd *reader) u8() uint8 {
	if rd.remaining() < 1 {
		rd.off = len(rd.data)
		return 0
	}
	v := rd.data[rd.off]
	rd.off++
	return v
}

func (rd *reader) boolean() bool { return rd.u8() != 0 }

func (rd *reader) u16() uint16 {
	if rd.remaining() < 2 {
		rd.off = len(rd.data)
		return 0
	}
	v := binary.LittleEndian.Uint16(rd.data[rd.off:])
	rd.off += 2
	return v
}

func (rd *reader) u32() uint32 {
	if rd.remaining() < 4 {
		rd.off = len(rd.data)
		return 0
	}
	v := binary.LittleEndian.Uint32(rd.data[rd.off:])
	rd.off += 4
	return v
}

func (rd *reader) u64() uint64 {
	if rd.remaining() < 8 {
		rd.off = len(rd.data)
		return 0
	}
	v := binary.LittleEndian.Uint64(rd.data[rd.off:])
	rd.off += 8
	return v
}

func (rd *reader) i64() int64 { return int64(rd.u64()) }

func (rd *reader) pubkey() solana.PublicKey {
	if rd.remaining() < 32 {
		rd.off = len(rd.data)
		return solana.PublicKey{}
	}
	pk := solana.PublicKeyFromBytes(rd.data[rd.off : rd.off+32])
	rd.off += 32
	return pk
}

// optPubkey reads a Borsh Option<Pubkey>: 1-byte tag, then 32 bytes when set.
func (rd *reader) optPubkey() *solana.PublicKey {
	if rd.u8() == 0 {
		return nil
	}
	pk := rd.pubkey()
	return &pk
}

// DecodeRift reconstructs a Rift record from raw account bytes. It never
// returns an error: truncated layouts decode with zeroed tails, buffers at or
// below the reduced threshold go through the legacy address-only path, and an
// unexpected panic yields a sentinel record (see Failed).
func DecodeRift(address solana.PublicKey, data []byte) (r *Rift) {
	defer func() {
		if recover() != nil {
			r = sentinelRift(address)
		}
	}()

	if len(data) <= reducedLayoutThreshold {
		return decodeReduced(address, data)
	}

	rd := &reader{data: data}
	rd.skip(8) // account discriminator

	r = &Rift{Address: address}
	if rd.remaining() >= 32 {
		copy(r.Name[:], rd.data[rd.off:rd.off+32])
	}
	rd.skip(32)

	r.Creator = rd.pubkey()
	r.UnderlyingMint = rd.pubkey()
	r.RiftMint = rd.pubkey()
	r.Vault = rd.pubkey()
	r.FeesVault = rd.pubkey()
	r.WithheldVault = rd.pubkey()

	r.PartnerFeeBps = rd.u16()
	r.PartnerWallet = rd.optPubkey()
	r.TreasuryWallet = rd.optPubkey()
	r.WrapFeeBps = rd.u16()
	r.UnwrapFeeBps = rd.u16()

	r.TotalUnderlyingWrapped = rd.u64()
	r.TotalRiftMinted = rd.u64()
	r.TotalBurned = rd.u64()
	r.BackingRatio = rd.u64()
	r.LastRebalance = rd.i64()
	r.CreatedAt = rd.i64()

	for i := range r.OraclePrices {
		r.OraclePrices[i] = PricePoint{
			Price:      rd.u64(),
			Confidence: rd.u64(),
			Timestamp:  rd.i64(),
		}
	}
	r.PriceIndex = rd.u8()
	r.OracleUpdateInterval = rd.i64()
	r.MaxRebalanceInterval = rd.i64()
	r.ArbitrageThresholdBps = rd.u16()
	r.LastOracleUpdate = rd.i64()
	r.TotalVolume24h = rd.u64()
	r.PriceDeviation = rd.u64()
	r.ArbitrageOpportunityBps = rd.u16()
	r.RebalanceCount = rd.u32()

	r.TotalFeesCollected = rd.u64()
	r.RiftsTokensDistributed = rd.u64()
	r.RiftsTokensBurned = rd.u64()

	r.SwitchboardFeedAccount = rd.optPubkey()

	r.LastManualOracleUpdate = rd.i64()
	r.ManualOracleBasePrice = rd.u64()
	r.ManualOracleDriftWindowStart = rd.i64()

	r.ReentrancyGuard = rd.boolean()
	r.ReentrancyGuardSlot = rd.u64()
	r.IsClosed = rd.boolean()
	r.ClosedAtSlot = rd.u64()

	r.OracleChangePending = rd.boolean()
	r.PendingSwitchboardAccount = rd.optPubkey()
	r.OracleChangeTimestamp = rd.i64()

	return r
}

// decodeReduced handles minimal legacy accounts: discriminator, name, then
// only the core address fields. Everything else keeps safe defaults.
func decodeReduced(address solana.PublicKey, data []byte) *Rift {
	rd := &reader{data: data}
	rd.skip(8)

	r := &Rift{Address: address}
	if rd.remaining() >= 32 {
		copy(r.Name[:], rd.data[rd.off:rd.off+32])
	}
	rd.skip(32)

	r.Creator = rd.pubkey()
	r.UnderlyingMint = rd.pubkey()
	r.RiftMint = rd.pubkey()
	r.Vault = rd.pubkey()
	return r
}

func sentinelRift(address solana.PublicKey) *Rift {
	return &Rift{
		Address:        address,
		Creator:        SentinelAddress,
		UnderlyingMint: SentinelAddress,
		RiftMint:       SentinelAddress,
		Vault:          SentinelAddress,
		FeesVault:      SentinelAddress,
		WithheldVault:  SentinelAddress,
	}
}
