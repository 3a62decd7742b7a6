// Package rpcx wraps the raw Solana RPC client with minimum-interval
// throttling, TTL response caching, multi-endpoint fallback, and per-class
// error recovery. Read paths fail soft (cached or absent results); write
// paths propagate failures.
package rpcx

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"rifts-engine/internal/metrics"
)

// Conn is the subset of the raw RPC client consumed by this layer.
// *rpc.Client satisfies it; tests substitute fakes.
type Conn interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
	GetProgramAccountsWithOpts(ctx context.Context, publicKey solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	SimulateTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Config tunes the access layer.
type Config struct {
	Endpoints        []string
	MinInterval      time.Duration // spacing between consecutive calls
	AccountTTL       time.Duration // account/balance/program-account reads
	BlockhashTTL     time.Duration // blockhashes expire quickly on-chain
	RateLimitBackoff time.Duration // sleep before the single fallback retry
	CacheSize        int
}

// DefaultConfig matches the tunings the engine ships with.
func DefaultConfig(endpoints []string) Config {
	return Config{
		Endpoints:        endpoints,
		MinInterval:      50 * time.Millisecond,
		AccountTTL:       5 * time.Minute,
		BlockhashTTL:     5 * time.Second,
		RateLimitBackoff: 2 * time.Second,
		CacheSize:        4096,
	}
}

const maxRateLimitBackoff = 15 * time.Second

// Client is the resilient RPC access layer.
type Client struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	conns   []Conn
	active  int
	limiter ratelimit.Limiter

	cache *responseCache
}

// New dials every configured endpoint.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("rpcx: at least one endpoint required")
	}
	conns := make([]Conn, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		conns[i] = rpc.New(ep)
	}
	return NewWithConns(cfg, log, conns)
}

// NewWithConns builds a client over pre-constructed connections.
func NewWithConns(cfg Config, log *zap.Logger, conns []Conn) (*Client, error) {
	if len(conns) == 0 {
		return nil, fmt.Errorf("rpcx: at least one connection required")
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 50 * time.Millisecond
	}
	if cfg.RateLimitBackoff > maxRateLimitBackoff {
		cfg.RateLimitBackoff = maxRateLimitBackoff
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	cache, err := newResponseCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("rpcx: build cache: %w", err)
	}
	return &Client{
		cfg:     cfg,
		log:     log.Named("rpcx"),
		conns:   conns,
		limiter: newLimiter(cfg.MinInterval),
		cache:   cache,
	}, nil
}

func newLimiter(minInterval time.Duration) ratelimit.Limiter {
	rps := int(time.Second / minInterval)
	if rps < 1 {
		rps = 1
	}
	return ratelimit.New(rps)
}

// throttle spaces calls at least MinInterval apart across all methods.
func (c *Client) throttle() {
	c.mu.Lock()
	limiter := c.limiter
	c.mu.Unlock()
	limiter.Take()
}

func (c *Client) conn() Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[c.active]
}

// rotate advances to the next endpoint round-robin and resets the throttle
// clock, so the fresh endpoint is not penalized for the old one's pacing.
func (c *Client) rotate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = (c.active + 1) % len(c.conns)
	c.limiter = newLimiter(c.cfg.MinInterval)
	metrics.FallbackRotations.Inc()
	c.log.Warn("rotated rpc endpoint", zap.Int("active", c.active))
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.cache.purge()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// invoke runs one throttled call with the rate-limit fallback policy: on a
// detected rate-limit error it backs off (capped), rotates endpoints, and
// retries exactly once before handing the error back.
func invoke[T any](ctx context.Context, c *Client, method string, fn func(Conn) (T, error)) (T, error) {
	metrics.RPCCalls.WithLabelValues(method).Inc()
	c.throttle()
	out, err := fn(c.conn())
	if err == nil {
		return out, nil
	}
	if classify(err) != classRateLimit {
		return out, err
	}
	c.log.Warn("rate limited, backing off", zap.String("method", method), zap.Error(err))
	if serr := sleepCtx(ctx, c.cfg.RateLimitBackoff); serr != nil {
		return out, serr
	}
	c.rotate()
	c.throttle()
	out, err = fn(c.conn())
	if err != nil && classify(err) == classRateLimit {
		return out, fmt.Errorf("%w: %s", ErrRateLimited, err)
	}
	return out, err
}

// GetAccountInfo resolves an account, serving cache within AccountTTL.
// Soft failure policy: transient or rate-limit errors degrade to the
// last-known value when present, otherwise to absent (nil, nil).
func (c *Client) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.Account, error) {
	return c.getAccountInfo(ctx, account, true)
}

// GetAccountInfoFresh bypasses the cache read but still refreshes it, for
// decisions that must never act on stale state (fund routing). Unlike
// GetAccountInfo it propagates soft failures instead of serving stale data.
func (c *Client) GetAccountInfoFresh(ctx context.Context, account solana.PublicKey) (*rpc.Account, error) {
	return c.getAccountInfo(ctx, account, false)
}

func (c *Client) getAccountInfo(ctx context.Context, account solana.PublicKey, useCache bool) (*rpc.Account, error) {
	key := "getAccountInfo:" + account.String()
	if useCache {
		if v, ok := c.cache.get(key, c.cfg.AccountTTL); ok {
			metrics.CacheHits.WithLabelValues("getAccountInfo").Inc()
			return v.(*rpc.Account), nil
		}
	}
	res, err := invoke(ctx, c, "getAccountInfo", func(conn Conn) (*rpc.GetAccountInfoResult, error) {
		return conn.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
			Commitment: rpc.CommitmentConfirmed,
			Encoding:   solana.EncodingBase64,
		})
	})
	if err != nil {
		// Fresh reads back fund-routing decisions; they must surface the
		// failure rather than degrade to a last-known value.
		if !useCache {
			return nil, err
		}
		switch classify(err) {
		case classTransient, classRateLimit:
			if stale, ok := c.cache.getStale(key); ok {
				c.log.Debug("serving stale account after soft failure", zap.String("account", account.String()))
				return stale.(*rpc.Account), nil
			}
			c.cache.put(key, (*rpc.Account)(nil))
			return nil, nil
		default:
			return nil, err
		}
	}
	var acc *rpc.Account
	if res != nil {
		acc = res.Value
	}
	c.cache.put(key, acc)
	return acc, nil
}

// GetBalance returns lamports for an account, cache TTL AccountTTL.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	key := "getBalance:" + account.String()
	if v, ok := c.cache.get(key, c.cfg.AccountTTL); ok {
		metrics.CacheHits.WithLabelValues("getBalance").Inc()
		return v.(uint64), nil
	}
	res, err := invoke(ctx, c, "getBalance", func(conn Conn) (*rpc.GetBalanceResult, error) {
		return conn.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	})
	if err != nil {
		switch classify(err) {
		case classTransient, classRateLimit:
			if stale, ok := c.cache.getStale(key); ok {
				return stale.(uint64), nil
			}
			return 0, nil
		default:
			return 0, err
		}
	}
	c.cache.put(key, res.Value)
	return res.Value, nil
}

// GetProgramAccounts scans accounts owned by a program. Structural or
// network failures collapse to an empty result set; callers cannot tell a
// failed scan from an empty one (tracked by the scan-failure counter).
func (c *Client) GetProgramAccounts(ctx context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) ([]*rpc.KeyedAccount, error) {
	key := programAccountsKey(program, opts)
	if v, ok := c.cache.get(key, c.cfg.AccountTTL); ok {
		metrics.CacheHits.WithLabelValues("getProgramAccounts").Inc()
		return v.([]*rpc.KeyedAccount), nil
	}
	res, err := invoke(ctx, c, "getProgramAccounts", func(conn Conn) (rpc.GetProgramAccountsResult, error) {
		return conn.GetProgramAccountsWithOpts(ctx, program, opts)
	})
	if err != nil {
		metrics.ScanFailures.Inc()
		c.log.Warn("program account scan failed, returning empty set", zap.Error(err))
		return nil, nil
	}
	out := []*rpc.KeyedAccount(res)
	c.cache.put(key, out)
	return out, nil
}

func programAccountsKey(program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) string {
	key := "getProgramAccounts:" + program.String()
	if opts != nil {
		for _, f := range opts.Filters {
			if f.DataSize > 0 {
				key += ":size=" + strconv.FormatUint(f.DataSize, 10)
			}
			if f.Memcmp != nil {
				key += ":memcmp=" + strconv.FormatUint(f.Memcmp.Offset, 10) + "/" + base58.Encode(f.Memcmp.Bytes)
			}
		}
	}
	return key
}

// GetMultipleAccounts resolves a batch of accounts in one round trip.
func (c *Client) GetMultipleAccounts(ctx context.Context, accounts ...solana.PublicKey) ([]*rpc.Account, error) {
	res, err := invoke(ctx, c, "getMultipleAccounts", func(conn Conn) (*rpc.GetMultipleAccountsResult, error) {
		return conn.GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{
			Commitment: rpc.CommitmentConfirmed,
		})
	})
	if err != nil {
		if cls := classify(err); cls == classTransient || cls == classRateLimit {
			return nil, nil
		}
		return nil, err
	}
	return res.Value, nil
}

// GetTokenAccountsByOwner lists token accounts for an owner, optionally
// filtered by mint. Unfiltered listings query both the legacy and the
// Token-2022 program, since holdings can live under either.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, mint *solana.PublicKey) (*rpc.GetTokenAccountsResult, error) {
	key := "getTokenAccountsByOwner:" + owner.String()
	var confs []*rpc.GetTokenAccountsConfig
	if mint != nil {
		confs = []*rpc.GetTokenAccountsConfig{{Mint: mint}}
		key += ":" + mint.String()
	} else {
		confs = []*rpc.GetTokenAccountsConfig{
			{ProgramId: &solana.TokenProgramID},
			{ProgramId: &solana.Token2022ProgramID},
		}
	}
	if v, ok := c.cache.get(key, c.cfg.AccountTTL); ok {
		metrics.CacheHits.WithLabelValues("getTokenAccountsByOwner").Inc()
		return v.(*rpc.GetTokenAccountsResult), nil
	}
	out := &rpc.GetTokenAccountsResult{}
	for _, conf := range confs {
		conf := conf
		res, err := invoke(ctx, c, "getTokenAccountsByOwner", func(conn Conn) (*rpc.GetTokenAccountsResult, error) {
			return conn.GetTokenAccountsByOwner(ctx, owner, conf, &rpc.GetTokenAccountsOpts{
				Encoding: solana.EncodingBase64,
			})
		})
		if err != nil {
			if cls := classify(err); cls == classTransient || cls == classRateLimit {
				if stale, ok := c.cache.getStale(key); ok {
					return stale.(*rpc.GetTokenAccountsResult), nil
				}
				return nil, nil
			}
			return nil, err
		}
		if res != nil {
			out.RPCContext = res.RPCContext
			out.Value = append(out.Value, res.Value...)
		}
	}
	c.cache.put(key, out)
	return out, nil
}

// GetLatestBlockhash returns a recent blockhash, cached only briefly: a
// stale blockhash is rejected by the chain.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*rpc.LatestBlockhashResult, error) {
	const key = "getLatestBlockhash"
	if v, ok := c.cache.get(key, c.cfg.BlockhashTTL); ok {
		metrics.CacheHits.WithLabelValues("getLatestBlockhash").Inc()
		return v.(*rpc.LatestBlockhashResult), nil
	}
	res, err := invoke(ctx, c, "getLatestBlockhash", func(conn Conn) (*rpc.GetLatestBlockhashResult, error) {
		return conn.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	})
	if err != nil {
		return nil, err
	}
	c.cache.put(key, res.Value)
	return res.Value, nil
}

// GetTokenAccountBalance returns a token account's raw amount, cached.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	key := "getTokenAccountBalance:" + account.String()
	if v, ok := c.cache.get(key, c.cfg.AccountTTL); ok {
		metrics.CacheHits.WithLabelValues("getTokenAccountBalance").Inc()
		return v.(uint64), nil
	}
	return c.tokenAccountBalance(ctx, account, key)
}

// GetTokenAccountBalanceFresh always hits the network; the liquidity guard
// must not pass on a stale vault balance.
func (c *Client) GetTokenAccountBalanceFresh(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return c.tokenAccountBalance(ctx, account, "getTokenAccountBalance:"+account.String())
}

func (c *Client) tokenAccountBalance(ctx context.Context, account solana.PublicKey, key string) (uint64, error) {
	res, err := invoke(ctx, c, "getTokenAccountBalance", func(conn Conn) (*rpc.GetTokenAccountBalanceResult, error) {
		return conn.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	})
	if err != nil {
		return 0, err
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("%w: token account %s", ErrAccountNotFound, account)
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token balance for %s: %w", account, err)
	}
	c.cache.put(key, amount)
	return amount, nil
}

// SendTransaction submits a signed transaction. Write path: errors propagate.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return invoke(ctx, c, "sendTransaction", func(conn Conn) (solana.Signature, error) {
		return conn.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
	})
}

// SimulateTransaction dry-runs a transaction.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResponse, error) {
	return invoke(ctx, c, "simulateTransaction", func(conn Conn) (*rpc.SimulateTransactionResponse, error) {
		return conn.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
			Commitment: rpc.CommitmentConfirmed,
		})
	})
}

// GetSignatureStatuses polls transaction statuses. Never cached.
func (c *Client) GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return invoke(ctx, c, "getSignatureStatuses", func(conn Conn) (*rpc.GetSignatureStatusesResult, error) {
		return conn.GetSignatureStatuses(ctx, true, sigs...)
	})
}
