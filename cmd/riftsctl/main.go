// riftsctl drives the rifts engine from the command line: list rifts, wrap
// and unwrap tokens, distribute fees, update oracles, trigger rebalances.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rifts-engine/internal/cache"
	"rifts-engine/internal/config"
	"rifts-engine/internal/engine"
	"rifts-engine/internal/logging"
	"rifts-engine/internal/rpcx"
	"rifts-engine/internal/store"
	"rifts-engine/internal/tracker"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("RIFTS_CONFIG"), "path to YAML config")
		op         = flag.String("op", "list", "operation: list, wrap, unwrap, distribute-fees, claim-withheld, update-oracle, update-switchboard, rebalance, create, close, prefetch")
		riftFlag   = flag.String("rift", "", "rift account address")
		amountFlag = flag.String("amount", "0", "raw base-unit amount")
		priceFlag  = flag.Uint64("price", 0, "manual oracle price")
		confFlag   = flag.Uint64("confidence", 0, "manual oracle confidence")
		sourceFlag = flag.String("source", "", "token account holding withheld fees")
		nameFlag   = flag.String("name", "", "rift name for create")
		mintFlag   = flag.String("mint", "", "underlying mint for create")
		feeFlag    = flag.Uint("fee-bps", 80, "transfer fee bps for create")
		timeout    = flag.Duration("timeout", 2*time.Minute, "overall operation timeout")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	privateKeyStr := os.Getenv("PRIVATE_KEY")
	if privateKeyStr == "" {
		log.Fatal("PRIVATE_KEY environment variable is required")
	}
	wallet, err := solana.PrivateKeyFromBase58(privateKeyStr)
	if err != nil {
		log.Fatal("invalid private key", zap.Error(err))
	}

	if cfg.Metrics.ListenAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				log.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	rpcClient, err := rpcx.New(rpcx.Config{
		Endpoints:        cfg.RPC.Endpoints,
		MinInterval:      cfg.RPC.MinInterval.Std(),
		AccountTTL:       cfg.RPC.AccountTTL.Std(),
		BlockhashTTL:     cfg.RPC.BlockhashTTL.Std(),
		RateLimitBackoff: cfg.RPC.RateLimitBackoff.Std(),
		CacheSize:        cfg.RPC.CacheSize,
	}, log)
	if err != nil {
		log.Fatal("rpc client init failed", zap.Error(err))
	}

	blacklist := make([]solana.PublicKey, 0, len(cfg.Cache.Blacklist))
	for _, s := range cfg.Cache.Blacklist {
		blacklist = append(blacklist, solana.MustPublicKeyFromBase58(s))
	}
	caches := cache.New(cache.Config{
		WarmTTL:     cfg.Cache.WarmTTL.Std(),
		PrefetchTTL: cfg.Cache.PrefetchTTL.Std(),
		Blacklist:   blacklist,
	}, log)

	idx := store.New(store.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL.Std(),
	}, log)
	var persister tracker.Persister
	if idx != nil {
		persister = usagePersister{idx}
	}
	usage := tracker.New(log, persister)

	eng := engine.New(engine.Config{
		SlippageBps:      cfg.Engine.SlippageBps,
		SafetyBufferBps:  cfg.Engine.SafetyBufferBps,
		ConfirmInterval:  cfg.Engine.ConfirmInterval.Std(),
		ConfirmTimeout:   cfg.Engine.ConfirmTimeout.Std(),
		ComputeUnitPrice: cfg.Engine.ComputeUnitPrice,
		ComputeUnitLimit: cfg.Engine.ComputeUnitLimit,
	}, wallet, rpcClient, caches, idx, usage, nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, eng, log, *op, *riftFlag, *amountFlag, *priceFlag, *confFlag, *sourceFlag, *nameFlag, *mintFlag, uint16(*feeFlag)); err != nil {
		log.Fatal("operation failed", zap.String("op", *op), zap.Error(err))
	}
}

// usagePersister bridges the tracker to the indexed store.
type usagePersister struct {
	idx *store.Store
}

func (p usagePersister) Persist(stats tracker.Stats) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.idx.SaveUsage(ctx, store.UsageSnapshot{
		Rift:         stats.Rift,
		Volume24h:    stats.Volume24h,
		Participants: stats.Participants,
		UpdatedAt:    stats.UpdatedAt,
	})
}

func run(ctx context.Context, eng *engine.Engine, log *zap.Logger, op, riftStr, amountStr string, price, confidence uint64, sourceStr, name, mintStr string, feeBps uint16) error {
	switch op {
	case "list":
		rifts, err := eng.ListRifts(ctx)
		if err != nil {
			return err
		}
		for _, r := range rifts {
			fmt.Printf("%s  %-32s  backing %.4f  volume24h %d\n",
				r.Address, r.DisplayName(), float64(r.BackingRatio)/10_000, r.TotalVolume24h)
		}
		return nil
	case "create":
		if name == "" || mintStr == "" {
			return fmt.Errorf("create requires -name and -mint")
		}
		mint, err := solana.PublicKeyFromBase58(mintStr)
		if err != nil {
			return fmt.Errorf("invalid mint: %w", err)
		}
		addr, res, err := eng.CreateRift(ctx, engine.CreateRiftSpec{
			Name:           name,
			UnderlyingMint: mint,
			TransferFeeBps: feeBps,
		})
		if err != nil {
			return err
		}
		fmt.Printf("rift %s created, sig %s\n", addr, res.Signature)
		return nil
	}

	riftAddr, err := solana.PublicKeyFromBase58(riftStr)
	if err != nil {
		return fmt.Errorf("invalid rift address: %w", err)
	}
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	var res *engine.OpResult
	switch op {
	case "prefetch":
		return eng.Prefetch(ctx, riftAddr)
	case "wrap":
		res, err = eng.Wrap(ctx, riftAddr, amount)
	case "unwrap":
		res, err = eng.Unwrap(ctx, riftAddr, amount)
	case "distribute-fees":
		res, err = eng.DistributeFees(ctx, riftAddr, amount)
	case "claim-withheld":
		source, perr := solana.PublicKeyFromBase58(sourceStr)
		if perr != nil {
			return fmt.Errorf("invalid source account: %w", perr)
		}
		res, err = eng.ClaimWithheldFees(ctx, riftAddr, source)
	case "update-oracle":
		res, err = eng.UpdateManualOracle(ctx, riftAddr, price, confidence)
	case "update-switchboard":
		res, err = eng.UpdateSwitchboardOracle(ctx, riftAddr)
	case "rebalance":
		res, err = eng.TriggerRebalance(ctx, riftAddr)
	case "close":
		res, err = eng.CloseRift(ctx, riftAddr)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	if err != nil {
		return err
	}
	fmt.Printf("done, sig %s\n", res.Signature)
	fmt.Printf("https://solscan.io/tx/%s\n", res.Signature)
	return nil
}
