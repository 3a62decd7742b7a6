// Package quote abstracts the external AMM SDK behind a Quoter interface and
// provides a constant-product fallback computed from raw vault reserves, so
// pool operations survive SDK outages.
package quote

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Quote is the result of pricing a swap or liquidity move.
type Quote struct {
	AmountOut    uint64
	MinAmountOut uint64
	FeeAmount    uint64
}

// Quoter prices operations against live pool state. Implemented by the AMM
// SDK adapter; the engine falls back to ConstantProduct when it errors.
type Quoter interface {
	SwapQuote(ctx context.Context, amountIn, reserveIn, reserveOut uint64, slippageBps uint32) (*Quote, error)
	DepositQuote(ctx context.Context, amountA, reserveA, reserveB uint64, slippageBps uint32) (*Quote, error)
	WithdrawQuote(ctx context.Context, lpAmount, lpSupply, reserveA, reserveB uint64, slippageBps uint32) (*Quote, error)
}

// feeRateDenominator matches the AMM's fee convention (parts per million).
var feeRateDenominator = decimal.NewFromUint64(1_000_000)

var allBps = decimal.NewFromInt(10_000)

// ConstantProduct computes x*y=k pricing from raw reserves with a
// parts-per-million fee and a basis-point slippage haircut.
func ConstantProduct(amountIn, reserveIn, reserveOut, feeRatePpm uint64, slippageBps uint32) (*Quote, error) {
	if amountIn == 0 {
		return nil, fmt.Errorf("quote: amount in must be positive")
	}
	if reserveIn == 0 || reserveOut == 0 {
		return nil, fmt.Errorf("quote: empty reserves")
	}

	amountInDec := decimal.NewFromUint64(amountIn)
	inReserve := decimal.NewFromUint64(reserveIn)
	outReserve := decimal.NewFromUint64(reserveOut)
	feeRate := decimal.NewFromUint64(feeRatePpm).Div(feeRateDenominator)

	fee := amountInDec.Mul(feeRate)
	amountAfterFee := amountInDec.Sub(fee)

	k := inReserve.Mul(outReserve)
	newInReserve := inReserve.Add(amountAfterFee)
	newOutReserve := k.Div(newInReserve)
	amountOut := outReserve.Sub(newOutReserve)

	minAmountOut := amountOut.
		Mul(allBps.Sub(decimal.NewFromUint64(uint64(slippageBps)))).
		Div(allBps)

	if amountOut.LessThanOrEqual(decimal.Zero) || minAmountOut.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("quote: calculated amount out is zero or negative")
	}
	return &Quote{
		AmountOut:    uint64(amountOut.IntPart()),
		MinAmountOut: uint64(minAmountOut.IntPart()),
		FeeAmount:    uint64(fee.IntPart()),
	}, nil
}

// FallbackQuoter prices everything via ConstantProduct. It backs the engine
// when the SDK adapter is unavailable.
type FallbackQuoter struct {
	FeeRatePpm uint64
}

func (f FallbackQuoter) feeRate() uint64 {
	if f.FeeRatePpm == 0 {
		return 2500 // 0.25%, the AMM default
	}
	return f.FeeRatePpm
}

func (f FallbackQuoter) SwapQuote(_ context.Context, amountIn, reserveIn, reserveOut uint64, slippageBps uint32) (*Quote, error) {
	return ConstantProduct(amountIn, reserveIn, reserveOut, f.feeRate(), slippageBps)
}

func (f FallbackQuoter) DepositQuote(_ context.Context, amountA, reserveA, reserveB uint64, slippageBps uint32) (*Quote, error) {
	if reserveA == 0 {
		return nil, fmt.Errorf("quote: empty reserves")
	}
	// Proportional deposit: counter amount preserves the reserve ratio.
	counter := decimal.NewFromUint64(amountA).
		Mul(decimal.NewFromUint64(reserveB)).
		Div(decimal.NewFromUint64(reserveA))
	minCounter := counter.
		Mul(allBps.Sub(decimal.NewFromUint64(uint64(slippageBps)))).
		Div(allBps)
	return &Quote{
		AmountOut:    uint64(counter.IntPart()),
		MinAmountOut: uint64(minCounter.IntPart()),
	}, nil
}

func (f FallbackQuoter) WithdrawQuote(_ context.Context, lpAmount, lpSupply, reserveA, _ uint64, slippageBps uint32) (*Quote, error) {
	if lpSupply == 0 {
		return nil, fmt.Errorf("quote: zero LP supply")
	}
	share := decimal.NewFromUint64(lpAmount).Div(decimal.NewFromUint64(lpSupply))
	amountOut := share.Mul(decimal.NewFromUint64(reserveA))
	minOut := amountOut.
		Mul(allBps.Sub(decimal.NewFromUint64(uint64(slippageBps)))).
		Div(allBps)
	return &Quote{
		AmountOut:    uint64(amountOut.IntPart()),
		MinAmountOut: uint64(minOut.IntPart()),
	}, nil
}
