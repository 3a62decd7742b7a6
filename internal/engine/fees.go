package engine

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"go.uber.org/zap"

	"rifts-engine/internal/rift"
)

// DistributeFees pushes amountRaw base units of accumulated fees from the
// fees vault to the treasury and, when configured, the partner wallet.
// Fee routing is fund movement: the rift state is re-read fresh so stale
// cached wallets can never redirect funds, and confirmation waits for
// finalized commitment.
func (e *Engine) DistributeFees(ctx context.Context, riftAddr solana.PublicKey, amountRaw uint64) (res *OpResult, err error) {
	defer func() { e.recordOutcome("distribute_fees", err) }()
	if amountRaw == 0 {
		return nil, ErrInvalidAmount
	}
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	// Authoritative state only. The prefetch and warm tiers are skipped on
	// purpose for this operation.
	r, err := e.fetchRift(ctx, riftAddr, true)
	if err != nil {
		return nil, err
	}
	if r.IsClosed {
		return nil, fmt.Errorf("%w: %s", ErrRiftClosed, riftAddr)
	}
	addrs, err := rift.AddressesForRift(riftAddr, r.RiftMint)
	if err != nil {
		return nil, err
	}
	meta, err := e.ResolveMintMeta(ctx, r.UnderlyingMint)
	if err != nil {
		return nil, err
	}

	treasury := rift.DefaultTreasuryWallet
	if r.TreasuryWallet != nil {
		treasury = *r.TreasuryWallet
	}
	treasuryATA, _, err := rift.FindAssociatedTokenAddress(treasury, r.UnderlyingMint, meta.TokenProgram)
	if err != nil {
		return nil, err
	}

	payer := e.wallet.PublicKey()
	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
	}
	createTreasury, err := rift.NewCreateATAIdempotentInstruction(payer, treasury, r.UnderlyingMint, meta.TokenProgram)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, createTreasury)

	param := &rift.DistributeFeesParam{
		Amount:          amountRaw,
		Payer:           payer,
		UnderlyingMint:  r.UnderlyingMint,
		TreasuryWallet:  treasury,
		TreasuryAccount: treasuryATA,
		TokenProgram:    meta.TokenProgram,
		Addrs:           addrs,
	}
	if r.PartnerWallet != nil {
		partnerATA, _, err := rift.FindAssociatedTokenAddress(*r.PartnerWallet, r.UnderlyingMint, meta.TokenProgram)
		if err != nil {
			return nil, err
		}
		createPartner, err := rift.NewCreateATAIdempotentInstruction(payer, *r.PartnerWallet, r.UnderlyingMint, meta.TokenProgram)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, createPartner)
		param.PartnerWallet = r.PartnerWallet
		param.PartnerAccount = &partnerATA
	}

	distIx, err := rift.NewDistributeFeesInstruction(param)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, distIx)

	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	sig, err := e.submitAndConfirm(ctx, ixs, bh.Blockhash, true)
	if err != nil {
		return nil, err
	}
	e.log.Info("fee distribution finalized",
		zap.String("rift", riftAddr.String()),
		zap.Uint64("amount", amountRaw),
		zap.String("treasury", treasury.String()),
		zap.Bool("partner", r.PartnerWallet != nil),
		zap.String("sig", sig.String()),
	)
	e.refreshAsync(riftAddr)
	return &OpResult{Signature: sig, AmountRaw: amountRaw}, nil
}

// ClaimWithheldFees harvests Token-2022 transfer fees withheld inside source
// into the rift's withheld vault. Only the rift's treasury wallet may sign.
func (e *Engine) ClaimWithheldFees(ctx context.Context, riftAddr, source solana.PublicKey) (res *OpResult, err error) {
	defer func() { e.recordOutcome("claim_withheld_fees", err) }()
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	r, err := e.fetchRift(ctx, riftAddr, true)
	if err != nil {
		return nil, err
	}
	if r.TreasuryWallet == nil || !r.TreasuryWallet.Equals(e.wallet.PublicKey()) {
		return nil, fmt.Errorf("%w: wallet is not the rift treasury", ErrUnauthorized)
	}
	addrs, err := rift.AddressesForRift(riftAddr, r.RiftMint)
	if err != nil {
		return nil, err
	}
	claimIx, err := rift.NewClaimWithheldFeesInstruction(e.wallet.PublicKey(), source, addrs)
	if err != nil {
		return nil, err
	}
	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
		claimIx,
	}
	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	sig, err := e.submitAndConfirm(ctx, ixs, bh.Blockhash, true)
	if err != nil {
		return nil, err
	}
	e.log.Info("withheld fees claimed",
		zap.String("rift", riftAddr.String()),
		zap.String("source", source.String()),
		zap.String("sig", sig.String()),
	)
	return &OpResult{Signature: sig}, nil
}
