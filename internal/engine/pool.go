package engine

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rifts-engine/internal/quote"
)

// PoolInfo is the decoded live state of an AMM pool pairing a rift token
// with its counter asset.
type PoolInfo struct {
	Address      solana.PublicKey
	BaseMint     solana.PublicKey
	QuoteMint    solana.PublicKey
	LPMint       solana.PublicKey
	BaseReserve  uint64
	QuoteReserve uint64
	BaseVault    solana.PublicKey
	QuoteVault   solana.PublicKey
}

// DepositParams carries the bounds for a liquidity deposit.
type DepositParams struct {
	LPTokenOut uint64 // pool tokens to mint
	MaxBaseIn  uint64
	MaxQuoteIn uint64
}

// WithdrawParams carries the floors for a liquidity withdrawal.
type WithdrawParams struct {
	LPTokenIn   uint64 // pool tokens to burn
	MinBaseOut  uint64
	MinQuoteOut uint64
}

// CreatePoolParams seeds a brand-new pool. Both legs are required; their
// ratio fixes the opening price. Zero token programs default to the legacy
// token program in the venue adapter.
type CreatePoolParams struct {
	Index             uint16
	BaseMint          solana.PublicKey
	QuoteMint         solana.PublicKey
	BaseAmountIn      uint64
	QuoteAmountIn     uint64
	BaseTokenProgram  solana.PublicKey
	QuoteTokenProgram solana.PublicKey
}

// PoolSDK builds AMM instructions the engine treats as opaque. Implemented
// by per-venue adapters; the engine only sequences, simulates, and submits.
type PoolSDK interface {
	// ResolvePool finds the canonical pool for a mint pair.
	ResolvePool(ctx context.Context, baseMint, quoteMint solana.PublicKey) (*PoolInfo, error)
	// BuildSwap returns instructions swapping amountIn of inputMint with the
	// given floor on output.
	BuildSwap(ctx context.Context, pool *PoolInfo, user solana.PublicKey, inputMint solana.PublicKey, amountIn, minAmountOut uint64) ([]solana.Instruction, error)
	// BuildDeposit returns instructions adding liquidity within the bounds.
	BuildDeposit(ctx context.Context, pool *PoolInfo, user solana.PublicKey, params DepositParams) ([]solana.Instruction, error)
	// BuildWithdraw returns instructions removing liquidity above the floors.
	BuildWithdraw(ctx context.Context, pool *PoolInfo, user solana.PublicKey, params WithdrawParams) ([]solana.Instruction, error)
	// BuildCreatePool returns the derived pool plus instructions creating it
	// seeded with the initial deposit.
	BuildCreatePool(ctx context.Context, creator solana.PublicKey, params CreatePoolParams) (*PoolInfo, []solana.Instruction, error)
}

// RefreshPoolReserves re-reads both vault balances in one batched call.
func (e *Engine) RefreshPoolReserves(ctx context.Context, pool *PoolInfo) error {
	amounts, err := e.readReserves(ctx, pool.BaseVault, pool.QuoteVault)
	if err != nil {
		return fmt.Errorf("refresh pool %s reserves: %w", pool.Address, err)
	}
	if len(amounts) != 2 {
		return fmt.Errorf("pool %s: expected 2 vault accounts, decoded %d", pool.Address, len(amounts))
	}
	pool.BaseReserve = amounts[0]
	pool.QuoteReserve = amounts[1]
	return nil
}

// SwapQuote prices a swap against current reserves. The venue quoter is
// asked first; on error the constant-product fallback answers so pricing
// never hard-fails while reserves are readable.
func (e *Engine) SwapQuote(ctx context.Context, pool *PoolInfo, inputMint solana.PublicKey, amountIn uint64) (*quote.Quote, error) {
	if amountIn == 0 {
		return nil, ErrInvalidAmount
	}
	reserveIn, reserveOut := pool.BaseReserve, pool.QuoteReserve
	if inputMint.Equals(pool.QuoteMint) {
		reserveIn, reserveOut = pool.QuoteReserve, pool.BaseReserve
	}
	if reserveIn == 0 || reserveOut == 0 {
		return nil, fmt.Errorf("%w: pool %s has empty reserves", ErrInsufficientLiquidity, pool.Address)
	}
	if e.quoter != nil {
		q, err := e.quoter.SwapQuote(ctx, amountIn, reserveIn, reserveOut, e.cfg.SlippageBps)
		if err == nil {
			return q, nil
		}
		e.log.Warn("venue quoter failed, using constant-product fallback", zap.Error(err))
	}
	return quote.FallbackQuoter{}.SwapQuote(ctx, amountIn, reserveIn, reserveOut, e.cfg.SlippageBps)
}

// Swap executes a pool swap: refresh reserves, quote, build via the venue
// SDK, simulate, then submit. A failed simulation aborts before any fee is
// spent.
func (e *Engine) Swap(ctx context.Context, sdk PoolSDK, pool *PoolInfo, inputMint solana.PublicKey, amountIn uint64) (res *OpResult, err error) {
	defer func() { e.recordOutcome("swap", err) }()
	if sdk == nil {
		return nil, fmt.Errorf("swap: no pool SDK configured")
	}
	if amountIn == 0 {
		return nil, ErrInvalidAmount
	}
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	if err := e.RefreshPoolReserves(ctx, pool); err != nil {
		return nil, err
	}
	q, err := e.SwapQuote(ctx, pool, inputMint, amountIn)
	if err != nil {
		return nil, err
	}

	user := e.wallet.PublicKey()
	swapIxs, err := sdk.BuildSwap(ctx, pool, user, inputMint, amountIn, q.MinAmountOut)
	if err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}
	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
	}
	ixs = append(ixs, swapIxs...)

	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	if err := e.simulate(ctx, ixs, bh.Blockhash); err != nil {
		return nil, err
	}
	sig, err := e.submitAndConfirm(ctx, ixs, bh.Blockhash, false)
	if err != nil {
		return nil, err
	}
	e.log.Info("swap confirmed",
		zap.String("pool", pool.Address.String()),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("min_out", q.MinAmountOut),
		zap.String("sig", sig.String()),
	)
	return &OpResult{Signature: sig, AmountRaw: amountIn}, nil
}

// AddLiquidity deposits baseAmount of the pool's base asset plus the
// proportional counter amount, minting pool tokens to the wallet. Both input
// legs are capped with the configured slippage so a moving ratio cannot pull
// in more than quoted.
func (e *Engine) AddLiquidity(ctx context.Context, sdk PoolSDK, pool *PoolInfo, baseAmount uint64) (res *OpResult, err error) {
	defer func() { e.recordOutcome("add_liquidity", err) }()
	if sdk == nil {
		return nil, fmt.Errorf("add liquidity: no pool SDK configured")
	}
	if baseAmount == 0 {
		return nil, ErrInvalidAmount
	}
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	if err := e.RefreshPoolReserves(ctx, pool); err != nil {
		return nil, err
	}
	if pool.BaseReserve == 0 || pool.QuoteReserve == 0 {
		return nil, fmt.Errorf("%w: pool %s has empty reserves", ErrInsufficientLiquidity, pool.Address)
	}
	q, err := e.depositQuote(ctx, baseAmount, pool.BaseReserve, pool.QuoteReserve)
	if err != nil {
		return nil, err
	}
	lpSupply, err := e.readMintSupply(ctx, pool.LPMint)
	if err != nil {
		return nil, fmt.Errorf("read lp supply: %w", err)
	}
	// Pro-rata share of the pool token supply, floored, then haircut so a
	// small reserve drift between quote and execution cannot fail the mint.
	lpOut := minOutAfter(proRata(lpSupply, baseAmount, pool.BaseReserve), e.cfg.SlippageBps)
	if lpOut == 0 {
		return nil, fmt.Errorf("%w: deposit too small to mint pool tokens", ErrInvalidAmount)
	}

	ixs, err := sdk.BuildDeposit(ctx, pool, e.wallet.PublicKey(), DepositParams{
		LPTokenOut: lpOut,
		MaxBaseIn:  maxInAfter(baseAmount, e.cfg.SlippageBps),
		MaxQuoteIn: maxInAfter(q.AmountOut, e.cfg.SlippageBps),
	})
	if err != nil {
		return nil, fmt.Errorf("build deposit: %w", err)
	}
	sig, err := e.executePoolOp(ctx, ixs)
	if err != nil {
		return nil, err
	}
	e.log.Info("liquidity added",
		zap.String("pool", pool.Address.String()),
		zap.Uint64("base_in", baseAmount),
		zap.Uint64("lp_out", lpOut),
		zap.String("sig", sig.String()),
	)
	return &OpResult{Signature: sig, AmountRaw: baseAmount}, nil
}

// CreatePool creates a venue pool seeded with the initial deposit. The
// deposit ratio is the opening price, so it is logged before anything is
// sent, and the build goes through the same simulate-then-submit tail as
// every other pool mutation.
func (e *Engine) CreatePool(ctx context.Context, sdk PoolSDK, params CreatePoolParams) (pool *PoolInfo, res *OpResult, err error) {
	defer func() { e.recordOutcome("create_pool", err) }()
	if sdk == nil {
		return nil, nil, fmt.Errorf("create pool: no pool SDK configured")
	}
	if params.BaseAmountIn == 0 || params.QuoteAmountIn == 0 {
		return nil, nil, fmt.Errorf("%w: pool creation needs both deposit legs", ErrInvalidAmount)
	}
	if params.BaseMint.Equals(params.QuoteMint) {
		return nil, nil, fmt.Errorf("create pool: base and quote mint are identical")
	}
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	openPrice := decimal.NewFromUint64(params.QuoteAmountIn).
		Div(decimal.NewFromUint64(params.BaseAmountIn))
	e.log.Info("creating pool",
		zap.String("base_mint", params.BaseMint.String()),
		zap.String("quote_mint", params.QuoteMint.String()),
		zap.Uint64("base_in", params.BaseAmountIn),
		zap.Uint64("quote_in", params.QuoteAmountIn),
		zap.String("open_price", openPrice.StringFixed(9)),
	)

	pool, ixs, err := sdk.BuildCreatePool(ctx, e.wallet.PublicKey(), params)
	if err != nil {
		return nil, nil, fmt.Errorf("build create pool: %w", err)
	}
	sig, err := e.executePoolOp(ctx, ixs)
	if err != nil {
		return nil, nil, err
	}
	pool.BaseReserve = params.BaseAmountIn
	pool.QuoteReserve = params.QuoteAmountIn
	e.log.Info("pool created",
		zap.String("pool", pool.Address.String()),
		zap.String("lp_mint", pool.LPMint.String()),
		zap.String("sig", sig.String()),
	)
	return pool, &OpResult{Signature: sig, AmountRaw: params.BaseAmountIn}, nil
}

// RemoveLiquidity burns lpAmount pool tokens for a pro-rata share of both
// reserves, floored by the configured slippage.
func (e *Engine) RemoveLiquidity(ctx context.Context, sdk PoolSDK, pool *PoolInfo, lpAmount uint64) (res *OpResult, err error) {
	defer func() { e.recordOutcome("remove_liquidity", err) }()
	if sdk == nil {
		return nil, fmt.Errorf("remove liquidity: no pool SDK configured")
	}
	if lpAmount == 0 {
		return nil, ErrInvalidAmount
	}
	e.pendingOp.Store(true)
	defer e.pendingOp.Store(false)

	if err := e.RefreshPoolReserves(ctx, pool); err != nil {
		return nil, err
	}
	lpSupply, err := e.readMintSupply(ctx, pool.LPMint)
	if err != nil {
		return nil, fmt.Errorf("read lp supply: %w", err)
	}
	baseQ, err := e.withdrawQuote(ctx, lpAmount, lpSupply, pool.BaseReserve, pool.QuoteReserve)
	if err != nil {
		return nil, err
	}
	quoteQ, err := e.withdrawQuote(ctx, lpAmount, lpSupply, pool.QuoteReserve, pool.BaseReserve)
	if err != nil {
		return nil, err
	}

	ixs, err := sdk.BuildWithdraw(ctx, pool, e.wallet.PublicKey(), WithdrawParams{
		LPTokenIn:   lpAmount,
		MinBaseOut:  baseQ.MinAmountOut,
		MinQuoteOut: quoteQ.MinAmountOut,
	})
	if err != nil {
		return nil, fmt.Errorf("build withdraw: %w", err)
	}
	sig, err := e.executePoolOp(ctx, ixs)
	if err != nil {
		return nil, err
	}
	e.log.Info("liquidity removed",
		zap.String("pool", pool.Address.String()),
		zap.Uint64("lp_in", lpAmount),
		zap.Uint64("min_base_out", baseQ.MinAmountOut),
		zap.Uint64("min_quote_out", quoteQ.MinAmountOut),
		zap.String("sig", sig.String()),
	)
	return &OpResult{Signature: sig, AmountRaw: lpAmount}, nil
}

// executePoolOp shares the tail of every pool mutation: compute budget,
// fresh blockhash, preflight simulation, submit, confirm.
func (e *Engine) executePoolOp(ctx context.Context, poolIxs []solana.Instruction) (solana.Signature, error) {
	ixs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(e.cfg.ComputeUnitPrice).Build(),
	}
	ixs = append(ixs, poolIxs...)

	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetch blockhash: %w", err)
	}
	if err := e.simulate(ctx, ixs, bh.Blockhash); err != nil {
		return solana.Signature{}, err
	}
	return e.submitAndConfirm(ctx, ixs, bh.Blockhash, false)
}

// depositQuote asks the venue quoter for the counter leg, falling back to
// the reserve-ratio calculation on error.
func (e *Engine) depositQuote(ctx context.Context, amount, reserveA, reserveB uint64) (*quote.Quote, error) {
	if e.quoter != nil {
		q, err := e.quoter.DepositQuote(ctx, amount, reserveA, reserveB, e.cfg.SlippageBps)
		if err == nil {
			return q, nil
		}
		e.log.Warn("venue deposit quote failed, using reserve ratio", zap.Error(err))
	}
	return quote.FallbackQuoter{}.DepositQuote(ctx, amount, reserveA, reserveB, e.cfg.SlippageBps)
}

func (e *Engine) withdrawQuote(ctx context.Context, lpAmount, lpSupply, reserveA, reserveB uint64) (*quote.Quote, error) {
	if e.quoter != nil {
		q, err := e.quoter.WithdrawQuote(ctx, lpAmount, lpSupply, reserveA, reserveB, e.cfg.SlippageBps)
		if err == nil {
			return q, nil
		}
		e.log.Warn("venue withdraw quote failed, using pro-rata share", zap.Error(err))
	}
	return quote.FallbackQuoter{}.WithdrawQuote(ctx, lpAmount, lpSupply, reserveA, reserveB, e.cfg.SlippageBps)
}

// simulate dry-runs a transaction and rejects on any program error.
func (e *Engine) simulate(ctx context.Context, instructions []solana.Instruction, blockhash solana.Hash) error {
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(e.wallet.PublicKey()))
	if err != nil {
		return fmt.Errorf("build simulation transaction: %w", err)
	}
	out, err := e.rpc.SimulateTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSimulationFailed, err)
	}
	if out != nil && out.Value != nil && out.Value.Err != nil {
		for _, line := range out.Value.Logs {
			e.log.Debug("simulation log", zap.String("line", line))
		}
		return fmt.Errorf("%w: %v", ErrSimulationFailed, out.Value.Err)
	}
	return nil
}
