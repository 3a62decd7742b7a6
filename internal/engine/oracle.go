package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"go.uber.org/zap"

	"rifts-engine/internal/rift"
)

// On-chain manual oracle constraints, mirrored client-side so rejected
// updates never cost a transaction fee.
const (
	manualOracleMinInterval = time.Hour
	manualOracleMaxDriftBps = 1000
)

// UpdateManualOracle pushes a creator-signed price observation. The on-chain
// rate limit and drift bound are checked locally first.
func (e *Engine) UpdateManualOracle(ctx context.Context, riftAddr solana.PublicKey, price, confidence uint64) (res *OpResult, err error) {
	defer func() { e.recordOutcome("update_manual_oracle", err) }()
	if price == 0 {
		return nil, ErrInvalidAmount
	}
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	r, err := e.fetchRift(ctx, riftAddr, true)
	if err != nil {
		return nil, err
	}
	if !r.Creator.Equals(e.wallet.PublicKey()) {
		return nil, fmt.Errorf("%w: only the rift creator may update the manual oracle", ErrUnauthorized)
	}
	now := time.Now()
	if r.LastManualOracleUpdate > 0 {
		elapsed := now.Sub(time.Unix(r.LastManualOracleUpdate, 0))
		if elapsed < manualOracleMinInterval {
			return nil, fmt.Errorf("%w: next update allowed in %s",
				ErrOracleTooFrequent, (manualOracleMinInterval - elapsed).Round(time.Second))
		}
	}
	if avg := r.AverageOraclePrice(); avg > 0 {
		drift := priceDriftBps(price, avg)
		if drift > manualOracleMaxDriftBps {
			return nil, fmt.Errorf("%w: %d bps from trailing average %d",
				ErrOracleDriftTooLarge, drift, avg)
		}
	}

	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
		rift.NewUpdateManualOracleInstruction(riftAddr, e.wallet.PublicKey(), price, confidence),
	}
	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	sig, err := e.submitAndConfirm(ctx, ixs, bh.Blockhash, false)
	if err != nil {
		return nil, err
	}
	e.log.Info("manual oracle updated",
		zap.String("rift", riftAddr.String()),
		zap.Uint64("price", price),
		zap.String("sig", sig.String()),
	)
	e.refreshAsync(riftAddr)
	return &OpResult{Signature: sig}, nil
}

// priceDriftBps is the absolute deviation of price from reference in bps.
func priceDriftBps(price, reference uint64) uint64 {
	if reference == 0 {
		return 0
	}
	var diff uint64
	if price > reference {
		diff = price - reference
	} else {
		diff = reference - price
	}
	return diff * allBps / reference
}

// UpdateSwitchboardOracle refreshes the rift price from its configured
// Switchboard feed. Rifts without a feed cannot use this path.
func (e *Engine) UpdateSwitchboardOracle(ctx context.Context, riftAddr solana.PublicKey) (res *OpResult, err error) {
	defer func() { e.recordOutcome("update_switchboard_oracle", err) }()
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	r, err := e.fetchRift(ctx, riftAddr, true)
	if err != nil {
		return nil, err
	}
	if r.SwitchboardFeedAccount == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSwitchboardFeed, riftAddr)
	}
	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
		rift.NewUpdateSwitchboardOracleInstruction(riftAddr, e.wallet.PublicKey(), *r.SwitchboardFeedAccount),
	}
	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	sig, err := e.submitAndConfirm(ctx, ixs, bh.Blockhash, false)
	if err != nil {
		return nil, err
	}
	e.log.Info("switchboard oracle updated",
		zap.String("rift", riftAddr.String()),
		zap.String("feed", r.SwitchboardFeedAccount.String()),
		zap.String("sig", sig.String()),
	)
	e.refreshAsync(riftAddr)
	return &OpResult{Signature: sig}, nil
}

// TriggerRebalance fires a permissionless rebalance once the rift's own
// eligibility conditions hold. Ineligible rifts abort locally.
func (e *Engine) TriggerRebalance(ctx context.Context, riftAddr solana.PublicKey) (res *OpResult, err error) {
	defer func() { e.recordOutcome("trigger_rebalance", err) }()
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	r, err := e.fetchRift(ctx, riftAddr, true)
	if err != nil {
		return nil, err
	}
	if r.IsClosed {
		return nil, fmt.Errorf("%w: %s", ErrRiftClosed, riftAddr)
	}
	if !r.ShouldTriggerRebalance(time.Now()) {
		return nil, fmt.Errorf("%w: %s", ErrRebalanceNotDue, riftAddr)
	}
	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
		rift.NewTriggerRebalanceInstruction(riftAddr, e.wallet.PublicKey()),
	}
	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	sig, err := e.submitAndConfirm(ctx, ixs, bh.Blockhash, false)
	if err != nil {
		return nil, err
	}
	e.log.Info("rebalance triggered",
		zap.String("rift", riftAddr.String()),
		zap.String("sig", sig.String()),
	)
	e.refreshAsync(riftAddr)
	return &OpResult{Signature: sig}, nil
}

// CloseRift winds a rift down. Creator-only; the vaults must already be
// drained or the program rejects the close.
func (e *Engine) CloseRift(ctx context.Context, riftAddr solana.PublicKey) (res *OpResult, err error) {
	defer func() { e.recordOutcome("close_rift", err) }()
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	r, err := e.fetchRift(ctx, riftAddr, true)
	if err != nil {
		return nil, err
	}
	if !r.Creator.Equals(e.wallet.PublicKey()) {
		return nil, fmt.Errorf("%w: only the rift creator may close it", ErrUnauthorized)
	}
	addrs, err := rift.AddressesForRift(riftAddr, r.RiftMint)
	if err != nil {
		return nil, err
	}
	closeIx, err := rift.NewCloseRiftInstruction(e.wallet.PublicKey(), addrs)
	if err != nil {
		return nil, err
	}
	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
		closeIx,
	}
	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	sig, err := e.submitAndConfirm(ctx, ixs, bh.Blockhash, true)
	if err != nil {
		return nil, err
	}
	e.log.Info("rift closed",
		zap.String("rift", riftAddr.String()),
		zap.String("sig", sig.String()),
	)
	e.caches.SetWarmList(nil)
	return &OpResult{Signature: sig}, nil
}

// CreateRiftSpec carries the user-facing inputs for rift creation.
type CreateRiftSpec struct {
	Name           string
	UnderlyingMint solana.PublicKey
	TransferFeeBps uint16
	Monorift       bool
	PartnerWallet  *solana.PublicKey
}

// CreateRift deploys a new rift over an underlying mint, initializing the
// rift account, its Token-2022 mint, and all three vaults in one transaction.
func (e *Engine) CreateRift(ctx context.Context, spec CreateRiftSpec) (addr solana.PublicKey, res *OpResult, err error) {
	defer func() { e.recordOutcome("create_rift", err) }()
	if len(spec.Name) == 0 || len(spec.Name) > 32 {
		return solana.PublicKey{}, nil, fmt.Errorf("rift name must be 1..32 bytes, got %d", len(spec.Name))
	}
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	meta, err := e.ResolveMintMeta(ctx, spec.UnderlyingMint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	creator := e.wallet.PublicKey()
	riftAddr, _, err := rift.DeriveRiftAddress(spec.UnderlyingMint, creator)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	riftMint, _, err := rift.DeriveRiftMint(spec.UnderlyingMint, creator)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	addrs, err := rift.AddressesForRift(riftAddr, riftMint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}

	var name [32]byte
	copy(name[:], spec.Name)
	prefixType := uint8(0)
	if spec.Monorift {
		prefixType = 1
	}
	createIx, err := rift.NewCreateRiftInstruction(&rift.CreateRiftParam{
		Name:                   name,
		NameLen:                uint8(len(spec.Name)),
		TransferFeeBps:         spec.TransferFeeBps,
		PrefixType:             prefixType,
		PartnerWallet:          spec.PartnerWallet,
		Creator:                creator,
		UnderlyingMint:         spec.UnderlyingMint,
		UnderlyingTokenProgram: meta.TokenProgram,
		Addrs:                  addrs,
	})
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	initVault, err := rift.NewInitializeVaultInstruction(creator, spec.UnderlyingMint, meta.TokenProgram, addrs)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}

	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
		createIx,
		initVault,
	}
	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	sig, err := e.submitAndConfirm(ctx, ixs, bh.Blockhash, false)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	e.log.Info("rift created",
		zap.String("rift", riftAddr.String()),
		zap.String("name", spec.Name),
		zap.String("underlying", spec.UnderlyingMint.String()),
		zap.String("sig", sig.String()),
	)
	e.caches.SetWarmList(nil)
	e.refreshAsync(riftAddr)
	return riftAddr, &OpResult{Signature: sig}, nil
}
