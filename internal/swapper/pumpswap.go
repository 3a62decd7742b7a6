// Package swapper adapts external AMM venues behind the engine's pool
// interface. The PumpSwap venue builds buy/sell instructions directly from
// the program's account layout.
package swapper

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"rifts-engine/internal/engine"
	"rifts-engine/internal/rift"
)

var (
	// PumpSwapProgramID is the PumpSwap AMM program.
	PumpSwapProgramID = solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")
	// globalConfig and eventAuthority are fixed program accounts.
	globalConfig   = solana.MustPublicKeyFromBase58("ADyA8hdefvWN2dbGGWFotbzWxrAvLW83WG6QCVXvJKqw")
	eventAuthority = solana.MustPublicKeyFromBase58("GS4CU59F31iL7aR2Q8zVS8DRrcRnXX1yjQ66TqNVQnaR")

	discBuy        = [8]byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	discSell       = [8]byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
	discDeposit    = [8]byte{0xf2, 0x23, 0xc6, 0x89, 0x52, 0xe1, 0xf2, 0xb6}
	discWithdraw   = [8]byte{0xb7, 0x12, 0x46, 0x9c, 0x94, 0x6d, 0xa1, 0x22}
	discCreatePool = [8]byte{0xe9, 0x92, 0xd1, 0x8e, 0xcf, 0x68, 0x40, 0xbc}
)

// protocolFeeRecipients are the accounts the program accepts as fee sinks.
var protocolFeeRecipients = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("62qc2CNXwrYqQScmEdiZFFAnJR262PxWEuNQtxfafNgV"),
	solana.MustPublicKeyFromBase58("7VtfL8fvgNfhz17qKRMjzQEXgbdpnHHHQRh54R9jP2RJ"),
	solana.MustPublicKeyFromBase58("7hTckgnGnLQR6sdH7YkqFTAA7VwTfYFaZ6EhEsU3saCX"),
	solana.MustPublicKeyFromBase58("9rPYyANsfQZw3DnDmKE3YCQF5E8oD89UXoHn9JFEhJUz"),
	solana.MustPublicKeyFromBase58("AVmoTthdrX6tKt4nDjco2D775W2YK3sDhxPcMmzUAmTY"),
	solana.MustPublicKeyFromBase58("FWsW1xNtWscwNmKv6wVsU1iTzRN6wmmk3MjxRP5tT7hz"),
	solana.MustPublicKeyFromBase58("G5UZAVbAf46s7cKWoyKu8kYTip9DGTpbLZ2qa9Aq69dP"),
}

// PoolEntry is one registry record; fee recipient token accounts are
// venue-specific so they ride along with the pool.
type PoolEntry struct {
	Pool                             engine.PoolInfo
	ProtocolFeeRecipient             solana.PublicKey
	ProtocolFeeRecipientTokenAccount solana.PublicKey
	BaseTokenProgram                 solana.PublicKey
	QuoteTokenProgram                solana.PublicKey
}

// PumpSwap is a registry-backed venue: pools are configured, not discovered.
type PumpSwap struct {
	log   *zap.Logger
	pools []PoolEntry
}

// New builds the venue from a configured pool registry.
func New(pools []PoolEntry, log *zap.Logger) (*PumpSwap, error) {
	for i := range pools {
		if err := validateFeeRecipient(pools[i].ProtocolFeeRecipient); err != nil {
			return nil, err
		}
		if pools[i].BaseTokenProgram.IsZero() {
			pools[i].BaseTokenProgram = solana.TokenProgramID
		}
		if pools[i].QuoteTokenProgram.IsZero() {
			pools[i].QuoteTokenProgram = solana.TokenProgramID
		}
	}
	return &PumpSwap{log: log.Named("pumpswap"), pools: pools}, nil
}

func validateFeeRecipient(recipient solana.PublicKey) error {
	for _, ok := range protocolFeeRecipients {
		if recipient.Equals(ok) {
			return nil
		}
	}
	return fmt.Errorf("pumpswap: invalid protocol fee recipient %s", recipient)
}

// ResolvePool finds the configured pool for a mint pair, either orientation.
func (p *PumpSwap) ResolvePool(_ context.Context, baseMint, quoteMint solana.PublicKey) (*engine.PoolInfo, error) {
	for i := range p.pools {
		pool := p.pools[i].Pool
		if (pool.BaseMint.Equals(baseMint) && pool.QuoteMint.Equals(quoteMint)) ||
			(pool.BaseMint.Equals(quoteMint) && pool.QuoteMint.Equals(baseMint)) {
			info := pool
			return &info, nil
		}
	}
	return nil, fmt.Errorf("pumpswap: no pool configured for %s / %s", baseMint, quoteMint)
}

func (p *PumpSwap) entryFor(pool *engine.PoolInfo) (*PoolEntry, error) {
	for i := range p.pools {
		if p.pools[i].Pool.Address.Equals(pool.Address) {
			return &p.pools[i], nil
		}
	}
	return nil, fmt.Errorf("pumpswap: pool %s not in registry", pool.Address)
}

// BuildSwap produces the venue instructions for a swap. Input equal to the
// quote mint buys base tokens; input equal to the base mint sells them.
func (p *PumpSwap) BuildSwap(_ context.Context, pool *engine.PoolInfo, user solana.PublicKey, inputMint solana.PublicKey, amountIn, minAmountOut uint64) ([]solana.Instruction, error) {
	entry, err := p.entryFor(pool)
	if err != nil {
		return nil, err
	}
	userBase, _, err := rift.FindAssociatedTokenAddress(user, pool.BaseMint, entry.BaseTokenProgram)
	if err != nil {
		return nil, err
	}
	userQuote, _, err := rift.FindAssociatedTokenAddress(user, pool.QuoteMint, entry.QuoteTokenProgram)
	if err != nil {
		return nil, err
	}

	var disc [8]byte
	var amount1, amount2 uint64
	switch {
	case inputMint.Equals(pool.QuoteMint):
		// Buy: args are base_amount_out, max_quote_amount_in.
		disc, amount1, amount2 = discBuy, minAmountOut, amountIn
	case inputMint.Equals(pool.BaseMint):
		// Sell: args are base_amount_in, min_quote_amount_out.
		disc, amount1, amount2 = discSell, amountIn, minAmountOut
	default:
		return nil, fmt.Errorf("pumpswap: mint %s not in pool %s", inputMint, pool.Address)
	}

	data := make([]byte, 8, 24)
	copy(data, disc[:])
	data = binary.LittleEndian.AppendUint64(data, amount1)
	data = binary.LittleEndian.AppendUint64(data, amount2)

	accounts := solana.AccountMetaSlice{
		solana.Meta(pool.Address).WRITE(),
		solana.Meta(user).WRITE().SIGNER(),
		solana.Meta(globalConfig),
		solana.Meta(pool.BaseMint),
		solana.Meta(pool.QuoteMint),
		solana.Meta(userBase).WRITE(),
		solana.Meta(userQuote).WRITE(),
		solana.Meta(pool.BaseVault).WRITE(),
		solana.Meta(pool.QuoteVault).WRITE(),
		solana.Meta(entry.ProtocolFeeRecipient),
		solana.Meta(entry.ProtocolFeeRecipientTokenAccount).WRITE(),
		solana.Meta(entry.BaseTokenProgram),
		solana.Meta(entry.QuoteTokenProgram),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
		solana.Meta(eventAuthority),
		solana.Meta(PumpSwapProgramID),
	}
	return []solana.Instruction{solana.NewInstruction(PumpSwapProgramID, accounts, data)}, nil
}

// BuildDeposit adds liquidity. Args are pool tokens out plus caps on both
// input legs.
func (p *PumpSwap) BuildDeposit(_ context.Context, pool *engine.PoolInfo, user solana.PublicKey, params engine.DepositParams) ([]solana.Instruction, error) {
	return p.buildLiquidity(pool, user, discDeposit, params.LPTokenOut, params.MaxBaseIn, params.MaxQuoteIn)
}

// BuildWithdraw removes liquidity. Args are pool tokens in plus floors on
// both output legs.
func (p *PumpSwap) BuildWithdraw(_ context.Context, pool *engine.PoolInfo, user solana.PublicKey, params engine.WithdrawParams) ([]solana.Instruction, error) {
	return p.buildLiquidity(pool, user, discWithdraw, params.LPTokenIn, params.MinBaseOut, params.MinQuoteOut)
}

// DerivePoolAddress derives the pool account for an (index, creator, pair).
func DerivePoolAddress(index uint16, creator, baseMint, quoteMint solana.PublicKey) (solana.PublicKey, error) {
	var idx [2]byte
	binary.LittleEndian.PutUint16(idx[:], index)
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("pool"), idx[:], creator[:], baseMint[:], quoteMint[:],
	}, PumpSwapProgramID)
	return addr, err
}

// DeriveLPMint derives the pool token mint owned by the pool account.
func DeriveLPMint(pool solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("pool_lp_mint"), pool[:],
	}, PumpSwapProgramID)
	return addr, err
}

// BuildCreatePool derives the pool, its Token-2022 lp mint, and both vault
// token accounts, then assembles create_pool seeded with the initial
// deposit. The new pool is registered so later swaps and liquidity ops can
// resolve it without reconfiguring the venue.
func (p *PumpSwap) BuildCreatePool(_ context.Context, creator solana.PublicKey, params engine.CreatePoolParams) (*engine.PoolInfo, []solana.Instruction, error) {
	baseProgram, quoteProgram := params.BaseTokenProgram, params.QuoteTokenProgram
	if baseProgram.IsZero() {
		baseProgram = solana.TokenProgramID
	}
	if quoteProgram.IsZero() {
		quoteProgram = solana.TokenProgramID
	}

	poolAddr, err := DerivePoolAddress(params.Index, creator, params.BaseMint, params.QuoteMint)
	if err != nil {
		return nil, nil, fmt.Errorf("pumpswap: derive pool: %w", err)
	}
	lpMint, err := DeriveLPMint(poolAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("pumpswap: derive lp mint: %w", err)
	}
	creatorBase, _, err := rift.FindAssociatedTokenAddress(creator, params.BaseMint, baseProgram)
	if err != nil {
		return nil, nil, err
	}
	creatorQuote, _, err := rift.FindAssociatedTokenAddress(creator, params.QuoteMint, quoteProgram)
	if err != nil {
		return nil, nil, err
	}
	creatorPoolTokens, _, err := rift.FindAssociatedTokenAddress(creator, lpMint, rift.Token2022ProgramID)
	if err != nil {
		return nil, nil, err
	}
	poolBase, _, err := rift.FindAssociatedTokenAddress(poolAddr, params.BaseMint, baseProgram)
	if err != nil {
		return nil, nil, err
	}
	poolQuote, _, err := rift.FindAssociatedTokenAddress(poolAddr, params.QuoteMint, quoteProgram)
	if err != nil {
		return nil, nil, err
	}

	data := make([]byte, 8, 26)
	copy(data, discCreatePool[:])
	data = binary.LittleEndian.AppendUint16(data, params.Index)
	data = binary.LittleEndian.AppendUint64(data, params.BaseAmountIn)
	data = binary.LittleEndian.AppendUint64(data, params.QuoteAmountIn)

	accounts := solana.AccountMetaSlice{
		solana.Meta(poolAddr).WRITE(),
		solana.Meta(globalConfig),
		solana.Meta(creator).WRITE().SIGNER(),
		solana.Meta(params.BaseMint),
		solana.Meta(params.QuoteMint),
		solana.Meta(lpMint).WRITE(),
		solana.Meta(creatorBase).WRITE(),
		solana.Meta(creatorQuote).WRITE(),
		solana.Meta(creatorPoolTokens).WRITE(),
		solana.Meta(poolBase).WRITE(),
		solana.Meta(poolQuote).WRITE(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(rift.Token2022ProgramID),
		solana.Meta(baseProgram),
		solana.Meta(quoteProgram),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
		solana.Meta(eventAuthority),
		solana.Meta(PumpSwapProgramID),
	}

	info := engine.PoolInfo{
		Address:    poolAddr,
		BaseMint:   params.BaseMint,
		QuoteMint:  params.QuoteMint,
		LPMint:     lpMint,
		BaseVault:  poolBase,
		QuoteVault: poolQuote,
	}
	recipient := protocolFeeRecipients[0]
	recipientTokens, _, err := rift.FindAssociatedTokenAddress(recipient, params.QuoteMint, quoteProgram)
	if err != nil {
		return nil, nil, err
	}
	p.pools = append(p.pools, PoolEntry{
		Pool:                             info,
		ProtocolFeeRecipient:             recipient,
		ProtocolFeeRecipientTokenAccount: recipientTokens,
		BaseTokenProgram:                 baseProgram,
		QuoteTokenProgram:                quoteProgram,
	})
	p.log.Info("registered new pool",
		zap.String("pool", poolAddr.String()),
		zap.String("lp_mint", lpMint.String()),
	)

	out := info
	return &out, []solana.Instruction{solana.NewInstruction(PumpSwapProgramID, accounts, data)}, nil
}

// buildLiquidity assembles the shared deposit/withdraw shape: the program
// uses the same account list for both, keyed by discriminator.
func (p *PumpSwap) buildLiquidity(pool *engine.PoolInfo, user solana.PublicKey, disc [8]byte, lpAmount, baseBound, quoteBound uint64) ([]solana.Instruction, error) {
	entry, err := p.entryFor(pool)
	if err != nil {
		return nil, err
	}
	if pool.LPMint.IsZero() {
		return nil, fmt.Errorf("pumpswap: pool %s has no lp mint configured", pool.Address)
	}
	userBase, _, err := rift.FindAssociatedTokenAddress(user, pool.BaseMint, entry.BaseTokenProgram)
	if err != nil {
		return nil, err
	}
	userQuote, _, err := rift.FindAssociatedTokenAddress(user, pool.QuoteMint, entry.QuoteTokenProgram)
	if err != nil {
		return nil, err
	}
	// Pool tokens live under Token-2022.
	userPoolTokens, _, err := rift.FindAssociatedTokenAddress(user, pool.LPMint, rift.Token2022ProgramID)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 8, 32)
	copy(data, disc[:])
	data = binary.LittleEndian.AppendUint64(data, lpAmount)
	data = binary.LittleEndian.AppendUint64(data, baseBound)
	data = binary.LittleEndian.AppendUint64(data, quoteBound)

	accounts := solana.AccountMetaSlice{
		solana.Meta(pool.Address).WRITE(),
		solana.Meta(globalConfig),
		solana.Meta(user).WRITE().SIGNER(),
		solana.Meta(pool.BaseMint),
		solana.Meta(pool.QuoteMint),
		solana.Meta(pool.LPMint).WRITE(),
		solana.Meta(userBase).WRITE(),
		solana.Meta(userQuote).WRITE(),
		solana.Meta(userPoolTokens).WRITE(),
		solana.Meta(pool.BaseVault).WRITE(),
		solana.Meta(pool.QuoteVault).WRITE(),
		solana.Meta(entry.BaseTokenProgram),
		solana.Meta(rift.Token2022ProgramID),
		solana.Meta(eventAuthority),
		solana.Meta(PumpSwapProgramID),
	}
	return []solana.Instruction{solana.NewInstruction(PumpSwapProgramID, accounts, data)}, nil
}
