// Package engine implements the operation orchestrators: wrap, unwrap, fee
// distribution, rift creation, oracle updates, rebalance, and pool flows.
// Each is a short linear pipeline over the cache hierarchy, the RPC access
// layer, and the instruction builders: validate, resolve state, derive
// addresses, build, submit, confirm, update caches and trackers.
package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"rifts-engine/internal/cache"
	"rifts-engine/internal/codec"
	"rifts-engine/internal/metrics"
	"rifts-engine/internal/quote"
	"rifts-engine/internal/rift"
	"rifts-engine/internal/rpcx"
	"rifts-engine/internal/store"
	"rifts-engine/internal/tracker"
)

// OpResult is returned by every successful orchestrator run.
type OpResult struct {
	Signature solana.Signature
	// AmountRaw is the base-unit amount the operation moved, when applicable.
	AmountRaw uint64
}

// Config tunes orchestrator behavior.
type Config struct {
	SlippageBps     uint32
	SafetyBufferBps uint32
	ConfirmInterval time.Duration
	ConfirmTimeout  time.Duration
	ComputeUnitPrice uint64
	ComputeUnitLimit uint32
}

// DefaultConfig matches production tunings.
func DefaultConfig() Config {
	return Config{
		SlippageBps:      100, // 1%
		SafetyBufferBps:  10,
		ConfirmInterval:  time.Second,
		ConfirmTimeout:   60 * time.Second,
		ComputeUnitPrice: 150_000,
		ComputeUnitLimit: 300_000,
	}
}

// Engine ties the building blocks together. Construct once per process.
type Engine struct {
	log    *zap.Logger
	rpc    *rpcx.Client
	caches *cache.Service
	idx    *store.Store // optional indexed store, may be nil
	usage  *tracker.Tracker
	quoter quote.Quoter // optional AMM SDK adapter, may be nil
	wallet solana.PrivateKey
	cfg    Config

	// pendingOp suspends background prefetch while a mutating operation is
	// in flight; user-initiated operations are never blocked by it.
	pendingOp atomic.Bool
}

// New wires an engine from its collaborators.
func New(cfg Config, wallet solana.PrivateKey, rpcClient *rpcx.Client, caches *cache.Service, idx *store.Store, usage *tracker.Tracker, quoter quote.Quoter, log *zap.Logger) *Engine {
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	return &Engine{
		log:    log.Named("engine"),
		rpc:    rpcClient,
		caches: caches,
		idx:    idx,
		usage:  usage,
		quoter: quoter,
		wallet: wallet,
		cfg:    cfg,
	}
}

// Wallet returns the engine's signing key's public half.
func (e *Engine) Wallet() solana.PublicKey { return e.wallet.PublicKey() }

// ResolveRift resolves a rift snapshot through the cache hierarchy:
// warm tier first, then the network, writing through on fetch.
func (e *Engine) ResolveRift(ctx context.Context, riftAddr solana.PublicKey) (*codec.Rift, error) {
	if r, ok := e.caches.WarmSnapshot(riftAddr); ok {
		return r, nil
	}
	return e.fetchRift(ctx, riftAddr, false)
}

// fetchRift pulls a rift account from the chain and writes it through the
// cache tiers. fresh bypasses the RPC response cache.
func (e *Engine) fetchRift(ctx context.Context, riftAddr solana.PublicKey, fresh bool) (*codec.Rift, error) {
	var (
		acc *rpc.Account
		err error
	)
	if fresh {
		acc, err = e.rpc.GetAccountInfoFresh(ctx, riftAddr)
	} else {
		acc, err = e.rpc.GetAccountInfo(ctx, riftAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch rift %s: %w", riftAddr, err)
	}
	if acc == nil || acc.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrRiftNotFound, riftAddr)
	}
	r := codec.DecodeRift(riftAddr, acc.Data.GetBinary())
	if r.Failed() {
		metrics.DecodeFailures.Inc()
		return nil, fmt.Errorf("%w: %s", ErrDecodeFailed, riftAddr)
	}
	e.caches.PutSnapshot(r)
	e.persistAsync(r)
	return r, nil
}

// persistAsync mirrors a snapshot into the indexed store, best effort.
func (e *Engine) persistAsync(r *codec.Rift) {
	if e.idx == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.idx.SaveRift(ctx, r); err != nil {
			e.log.Debug("indexed store write failed", zap.Error(err))
		}
	}()
}

// ListRifts returns every known rift, preferring the warm tier, then the
// indexed store, then a raw chain scan. Blacklisted rifts never appear.
func (e *Engine) ListRifts(ctx context.Context) ([]*codec.Rift, error) {
	if list, ok := e.caches.WarmList(); ok {
		return list, nil
	}
	if e.idx != nil {
		list, err := e.idx.ListRifts(ctx)
		if err == nil && len(list) > 0 {
			e.caches.SetWarmList(list)
			return e.caches.Filter(list), nil
		}
		if err != nil && err != store.ErrEmpty {
			e.log.Warn("indexed store listing failed, scanning chain", zap.Error(err))
		}
	}
	return e.scanRifts(ctx)
}

func (e *Engine) scanRifts(ctx context.Context) ([]*codec.Rift, error) {
	accounts, err := e.rpc.GetProgramAccounts(ctx, rift.ProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: rift.RiftAccountDiscriminator[:]}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scan rift accounts: %w", err)
	}
	list := make([]*codec.Rift, 0, len(accounts))
	for _, ka := range accounts {
		if ka == nil || ka.Account == nil || ka.Account.Data == nil {
			continue
		}
		r := codec.DecodeRift(ka.Pubkey, ka.Account.Data.GetBinary())
		if r.Failed() {
			metrics.DecodeFailures.Inc()
			continue
		}
		list = append(list, r)
	}
	e.caches.SetWarmList(list)
	if e.idx != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.idx.SaveRifts(ctx, list); err != nil {
				e.log.Debug("indexed store bulk write failed", zap.Error(err))
			}
		}()
	}
	return e.caches.Filter(list), nil
}

// ResolveMintMeta learns a mint's decimals and owning token program, static
// tier first. Both facts are immutable, so a hit costs zero network calls.
func (e *Engine) ResolveMintMeta(ctx context.Context, mint solana.PublicKey) (cache.MintMetadata, error) {
	if m, ok := e.caches.MintMeta(mint); ok {
		return m, nil
	}
	acc, err := e.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return cache.MintMetadata{}, fmt.Errorf("resolve mint %s: %w", mint, err)
	}
	if acc == nil || acc.Data == nil {
		return cache.MintMetadata{}, fmt.Errorf("mint account %s not found", mint)
	}
	data := acc.Data.GetBinary()
	if len(data) < 45 {
		return cache.MintMetadata{}, fmt.Errorf("mint account %s too short: %d bytes", mint, len(data))
	}
	meta := cache.MintMetadata{
		Mint:         mint,
		Decimals:     data[44], // decimals offset in the SPL mint layout
		TokenProgram: acc.Owner,
	}
	e.caches.PutMintMeta(meta)
	return meta, nil
}

// Prefetch resolves a rift's state, a fresh blockhash, and the
// token-account reads an imminent wrap or unwrap would make, ahead of the
// user action. Skipped while a mutating operation is in flight so it cannot
// race a live transaction build.
func (e *Engine) Prefetch(ctx context.Context, riftAddr solana.PublicKey) error {
	if e.pendingOp.Load() {
		e.log.Debug("prefetch suppressed: operation in flight", zap.String("rift", riftAddr.String()))
		return nil
	}
	r, err := e.ResolveRift(ctx, riftAddr)
	if err != nil {
		return err
	}
	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("prefetch blockhash: %w", err)
	}
	entry := &cache.PrefetchEntry{
		Rift:                 r,
		Blockhash:            bh.Blockhash,
		LastValidBlockHeight: bh.LastValidBlockHeight,
	}
	// Token-account lookups are advisory: a failure leaves the field nil
	// and the operation reads live instead.
	if meta, err := e.ResolveMintMeta(ctx, r.UnderlyingMint); err == nil {
		entry.MintMeta = &meta
	}
	if addrs, err := rift.AddressesForRift(riftAddr, r.RiftMint); err == nil {
		exists := e.accountExists(ctx, addrs.Vault)
		entry.VaultExists = &exists
		if exists {
			if balance, err := e.rpc.GetTokenAccountBalanceFresh(ctx, addrs.Vault); err == nil {
				entry.VaultBalance = &balance
			}
		}
	}
	e.caches.PutPrefetch(riftAddr, entry)
	return nil
}

// resolveForOp gathers the state a mutating operation needs: prefetch tier
// first (instant hot path), otherwise resolve plus a fresh blockhash. On a
// prefetch miss the optional token-account fields stay nil.
func (e *Engine) resolveForOp(ctx context.Context, riftAddr solana.PublicKey) (*cache.PrefetchEntry, error) {
	if entry, ok := e.caches.TakePrefetch(riftAddr); ok {
		return entry, nil
	}
	r, err := e.ResolveRift(ctx, riftAddr)
	if err != nil {
		return nil, err
	}
	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve blockhash: %w", err)
	}
	return &cache.PrefetchEntry{
		Rift:                 r,
		Blockhash:            bh.Blockhash,
		LastValidBlockHeight: bh.LastValidBlockHeight,
	}, nil
}

// mintMetaFor uses the prefetched mint metadata when present, otherwise
// resolves through the static tier.
func (e *Engine) mintMetaFor(ctx context.Context, entry *cache.PrefetchEntry, mint solana.PublicKey) (cache.MintMetadata, error) {
	if entry.MintMeta != nil && entry.MintMeta.Mint.Equals(mint) {
		return *entry.MintMeta, nil
	}
	return e.ResolveMintMeta(ctx, mint)
}

// signAndSend assembles, signs, and submits a transaction.
func (e *Engine) signAndSend(ctx context.Context, instructions []solana.Instruction, blockhash solana.Hash) (solana.Signature, error) {
	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(e.wallet.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(e.wallet.PublicKey()) {
			return &e.wallet
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}
	sig, err := e.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// accountExists checks for a live account; soft read failures count as
// missing so builders emit idempotent creates rather than skipping them.
func (e *Engine) accountExists(ctx context.Context, addr solana.PublicKey) bool {
	acc, err := e.rpc.GetAccountInfo(ctx, addr)
	return err == nil && acc != nil && !acc.Owner.IsZero()
}

// readReserves decodes raw token-account balances in one batched read.
func (e *Engine) readReserves(ctx context.Context, accounts ...solana.PublicKey) ([]uint64, error) {
	res, err := e.rpc.GetMultipleAccounts(ctx, accounts...)
	if err != nil {
		return nil, err
	}
	amounts := make([]uint64, 0, len(res))
	for i := range res {
		if res[i] == nil || res[i].Data == nil {
			continue
		}
		var tokenAcc token.Account
		if err := bin.NewBinDecoder(res[i].Data.GetBinary()).Decode(&tokenAcc); err != nil {
			return nil, fmt.Errorf("decode token account %s: %w", accounts[i], err)
		}
		amounts = append(amounts, tokenAcc.Amount)
	}
	return amounts, nil
}

// readMintSupply reads a mint's current supply with a fresh account fetch.
// The supply sits at a fixed offset in the SPL mint layout.
func (e *Engine) readMintSupply(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	acc, err := e.rpc.GetAccountInfoFresh(ctx, mint)
	if err != nil {
		return 0, err
	}
	if acc == nil || acc.Data == nil {
		return 0, fmt.Errorf("mint account %s not found", mint)
	}
	data := acc.Data.GetBinary()
	if len(data) < 44 {
		return 0, fmt.Errorf("mint account %s too short: %d bytes", mint, len(data))
	}
	return binary.LittleEndian.Uint64(data[36:44]), nil
}

func (e *Engine) recordOutcome(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.OperationsTotal.WithLabelValues(op, outcome).Inc()
}
