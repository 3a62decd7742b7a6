package engine

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"rifts-engine/internal/rift"
)

// Unwrap burns riftTokenAmount base units of rift tokens and releases the
// underlying from the vault. The vault balance is checked before anything
// is signed, from the prefetch bundle when one is still valid and with a
// fresh read otherwise; an underfunded vault aborts with zero transactions
// submitted.
func (e *Engine) Unwrap(ctx context.Context, riftAddr solana.PublicKey, riftTokenAmount uint64) (res *OpResult, err error) {
	defer func() { e.recordOutcome("unwrap", err) }()
	if riftTokenAmount == 0 {
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

	// Liquidity guard. The vault must cover the full after-fee entitlement
	// before the transaction is built; slippage and the safety buffer only
	// shape the instruction floor, not what the vault owes.
	var vaultBalance uint64
	if entry.VaultBalance != nil {
		vaultBalance = *entry.VaultBalance
	} else {
		vaultBalance, err = e.rpc.GetTokenAccountBalanceFresh(ctx, addrs.Vault)
		if err != nil {
			return nil, fmt.Errorf("read vault balance: %w", err)
		}
	}
	afterFee := minOutAfter(riftTokenAmount, uint32(r.UnwrapFeeBps))
	if vaultBalance < afterFee {
		return nil, fmt.Errorf("%w: vault holds %d, redemption needs %d",
			ErrInsufficientLiquidity, vaultBalance, afterFee)
	}
	minOut := minOutAfter(riftTokenAmount, uint32(r.UnwrapFeeBps), e.cfg.SlippageBps, e.cfg.SafetyBufferBps)

	user := e.wallet.PublicKey()
	userUnderlying, _, err := rift.FindAssociatedTokenAddress(user, r.UnderlyingMint, meta.TokenProgram)
	if err != nil {
		return nil, err
	}
	userRiftTokens, _, err := rift.FindAssociatedTokenAddress(user, r.RiftMint, rift.Token2022ProgramID)
	if err != nil {
		return nil, err
	}

	createUnderlying, err := rift.NewCreateATAIdempotentInstruction(user, user, r.UnderlyingMint, meta.TokenProgram)
	if err != nil {
		return nil, err
	}

	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
		createUnderlying,
	}

	unwrapIx, err := rift.NewUnwrapInstruction(&rift.UnwrapParam{
		RiftTokenAmount:        riftTokenAmount,
		MinUnderlyingOut:       minOut,
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
	ixs = append(ixs, unwrapIx)

	// Native underlyings: close the WSOL ATA afterwards so the released
	// lamports land back in the wallet instead of staying wrapped.
	if r.UnderlyingMint.Equals(rift.WrappedSOLMint) {
		ixs = append(ixs, token.NewCloseAccountInstruction(
			userUnderlying, user, user, nil,
		).Build())
	}

	sig, err := e.submitAndConfirm(ctx, ixs, blockhash, false)
	if err != nil {
		return nil, err
	}
	e.log.Info("unwrap confirmed",
		zap.String("rift", riftAddr.String()),
		zap.Uint64("amount", riftTokenAmount),
		zap.Uint64("min_out", minOut),
		zap.String("sig", sig.String()),
	)
	e.usage.Record(riftAddr, user, riftTokenAmount)
	e.refreshAsync(riftAddr)
	return &OpResult{Signature: sig, AmountRaw: riftTokenAmount}, nil
}
