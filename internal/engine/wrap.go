package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rifts-engine/internal/rift"
)

const allBps = 10_000

// minOutAfter deducts a sequence of bps haircuts from amount, truncating
// toward zero at the end so the floor never exceeds the true entitlement.
func minOutAfter(amount uint64, haircutsBps ...uint32) uint64 {
	out := decimal.NewFromUint64(amount)
	for _, bps := range haircutsBps {
		factor := decimal.NewFromInt(int64(allBps) - int64(bps)).Div(decimal.NewFromInt(allBps))
		out = out.Mul(factor)
	}
	v := out.Truncate(0).BigInt()
	if !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

// maxInAfter widens an input leg by marginBps, rounding up.
func maxInAfter(amount uint64, marginBps uint32) uint64 {
	out := decimal.NewFromUint64(amount).
		Mul(decimal.NewFromInt(int64(allBps) + int64(marginBps))).
		Div(decimal.NewFromInt(allBps)).
		Ceil().BigInt()
	if !out.IsUint64() {
		return amount
	}
	return out.Uint64()
}

// proRata returns total * part / whole truncated toward zero.
func proRata(total, part, whole uint64) uint64 {
	if whole == 0 {
		return 0
	}
	out := decimal.NewFromUint64(total).
		Mul(decimal.NewFromUint64(part)).
		Div(decimal.NewFromUint64(whole)).
		Truncate(0).BigInt()
	if !out.IsUint64() {
		return 0
	}
	return out.Uint64()
}

// Wrap deposits amountRaw base units of the rift's underlying token and
// mints rift tokens to the wallet. For native SOL underlyings the wrapped
// SOL account is funded and synced inside the same transaction.
func (e *Engine) Wrap(ctx context.Context, riftAddr solana.PublicKey, amountRaw uint64) (res *OpResult, err error) {
	defer func() { e.recordOutcome("wrap", err) }()
	if amountRaw == 0 {
		return nil, ErrInvalidAmount
	}
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	entry, err := e.resolveForOp(ctx, riftAddr)
	if err != nil {
		return nil, err
	}
	r, blockhash := entry.Rift, entry.Blockhash
	if r.IsClosed {
		return nil, fmt.Errorf("%w: %s", ErrRiftClosed, riftAddr)
	}
	addrs, err := rift.AddressesForRift(riftAddr, r.RiftMint)
	if err != nil {
		return nil, err
	}
	meta, err := e.mintMetaFor(ctx, entry, r.UnderlyingMint)
	if err != nil {
		return nil, err
	}

	user := e.wallet.PublicKey()
	userUnderlying, _, err := rift.FindAssociatedTokenAddress(user, r.UnderlyingMint, meta.TokenProgram)
	if err != nil {
		return nil, err
	}
	userRiftTokens, _, err := rift.FindAssociatedTokenAddress(user, r.RiftMint, rift.Token2022ProgramID)
	if err != nil {
		return nil, err
	}

	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
	}

	createUnderlying, err := rift.NewCreateATAIdempotentInstruction(user, user, r.UnderlyingMint, meta.TokenProgram)
	if err != nil {
		return nil, err
	}
	createRiftATA, err := rift.NewCreateATAIdempotentInstruction(user, user, r.RiftMint, rift.Token2022ProgramID)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, createUnderlying, createRiftATA)

	// Native underlyings wrap lamports into the WSOL ATA in-transaction.
	if r.UnderlyingMint.Equals(rift.WrappedSOLMint) {
		ixs = append(ixs,
			system.NewTransferInstruction(amountRaw, user, userUnderlying).Build(),
			rift.NewSyncNativeInstruction(userUnderlying),
		)
	}

	// First wrap against a rift whose vault was never initialized pays the
	// one-time vault setup; the instruction is a no-op once it exists.
	vaultExists := false
	if entry.VaultExists != nil {
		vaultExists = *entry.VaultExists
	} else {
		vaultExists = e.accountExists(ctx, addrs.Vault)
	}
	if !vaultExists {
		initVault, err := rift.NewInitializeVaultInstruction(user, r.UnderlyingMint, meta.TokenProgram, addrs)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, initVault)
	}

	minOut := minOutAfter(amountRaw, uint32(r.WrapFeeBps), e.cfg.SlippageBps, e.cfg.SafetyBufferBps)
	wrapIx, err := rift.NewWrapTokensInstruction(&rift.WrapParam{
		Amount:                 amountRaw,
		MinRiftOut:             minOut,
		User:                   user,
		UserUnderlying:         userUnderlying,
		UserRiftTokens:         userRiftTokens,
		UnderlyingMint:         r.UnderlyingMint,
		UnderlyingTokenProgram: meta.TokenProgram,
		Addrs:                  addrs,
	})
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, wrapIx)

	sig, err := e.submitAndConfirm(ctx, ixs, blockhash, false)
	if err != nil {
		return nil, err
	}
	e.log.Info("wrap confirmed",
		zap.String("rift", riftAddr.String()),
		zap.Uint64("amount", amountRaw),
		zap.Uint64("min_out", minOut),
		zap.String("sig", sig.String()),
	)
	e.usage.Record(riftAddr, user, amountRaw)
	e.refreshAsync(riftAddr)
	return &OpResult{Signature: sig, AmountRaw: amountRaw}, nil
}

// refreshAsync re-reads a rift after a state-changing operation so the warm
// tier converges without blocking the caller.
func (e *Engine) refreshAsync(riftAddr solana.PublicKey) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := e.fetchRift(ctx, riftAddr, true); err != nil {
			e.log.Debug("post-op refresh failed", zap.Error(err))
		}
	}()
}
