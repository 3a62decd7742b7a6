package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"rifts-engine/internal/metrics"
)

// waitForConfirmation polls signature status until the transaction lands or
// the timeout elapses. requireFinal waits for finalized commitment instead
// of confirmed; fund-routing operations use it so a fork cannot unwind them.
func (e *Engine) waitForConfirmation(ctx context.Context, sig solana.Signature, requireFinal bool) error {
	start := time.Now()
	deadline := start.Add(e.cfg.ConfirmTimeout)
	ticker := time.NewTicker(e.cfg.ConfirmInterval)
	defer ticker.Stop()

	for {
		res, err := e.rpc.GetSignatureStatuses(ctx, sig)
		if err != nil {
			e.log.Debug("status poll failed", zap.Error(err), zap.String("sig", sig.String()))
		} else if res != nil && len(res.Value) > 0 && res.Value[0] != nil {
			st := res.Value[0]
			if st.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, st.Err)
			}
			switch st.ConfirmationStatus {
			case rpc.ConfirmationStatusFinalized:
				metrics.ConfirmLatency.Observe(time.Since(start).Seconds())
				return nil
			case rpc.ConfirmationStatusConfirmed:
				if !requireFinal {
					metrics.ConfirmLatency.Observe(time.Since(start).Seconds())
					return nil
				}
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrConfirmTimeout, sig, e.cfg.ConfirmTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// submitAndConfirm is the shared tail of every mutating operation.
func (e *Engine) submitAndConfirm(ctx context.Context, instructions []solana.Instruction, blockhash solana.Hash, requireFinal bool) (solana.Signature, error) {
	sig, err := e.signAndSend(ctx, instructions, blockhash)
	if err != nil {
		return solana.Signature{}, err
	}
	e.log.Info("transaction submitted", zap.String("sig", sig.String()))
	if err := e.waitForConfirmation(ctx, sig, requireFinal); err != nil {
		return sig, err
	}
	return sig, nil
}
