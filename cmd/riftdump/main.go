// riftdump fetches rift accounts and prints their decoded state. Debugging
// aid: it talks straight to the RPC layer and never signs anything.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"rifts-engine/internal/codec"
	"rifts-engine/internal/config"
	"rifts-engine/internal/logging"
	"rifts-engine/internal/rift"
	"rifts-engine/internal/rpcx"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("RIFTS_CONFIG"), "path to YAML config")
		timeout    = flag.Duration("timeout", 30*time.Second, "fetch timeout")
	)
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: riftdump [flags] <rift-address>...")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New("development", cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	client, err := rpcx.New(rpcx.Config{
		Endpoints:   cfg.RPC.Endpoints,
		MinInterval: cfg.RPC.MinInterval.Std(),
	}, log)
	if err != nil {
		log.Fatal("rpc client init failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	for _, arg := range flag.Args() {
		addr, err := solana.PublicKeyFromBase58(arg)
		if err != nil {
			log.Error("bad address", zap.String("arg", arg), zap.Error(err))
			continue
		}
		acc, err := client.GetAccountInfoFresh(ctx, addr)
		if err != nil {
			log.Error("fetch failed", zap.String("rift", arg), zap.Error(err))
			continue
		}
		if acc == nil || acc.Data == nil {
			fmt.Printf("%s: account not found\n", addr)
			continue
		}
		dump(codec.DecodeRift(addr, acc.Data.GetBinary()))
	}
}

func dump(r *codec.Rift) {
	if r.Failed() {
		fmt.Printf("%s: undecodable account data\n", r.Address)
		return
	}
	derived, err := rift.AddressesForRift(r.Address, r.RiftMint)
	fmt.Printf("rift        %s (%s)\n", r.Address, r.DisplayName())
	fmt.Printf("creator     %s\n", r.Creator)
	fmt.Printf("underlying  %s\n", r.UnderlyingMint)
	fmt.Printf("rift mint   %s\n", r.RiftMint)
	fmt.Printf("vault       %s\n", r.Vault)
	if err == nil && !derived.Vault.Equals(r.Vault) {
		fmt.Printf("            warning: stored vault differs from derived %s\n", derived.Vault)
	}
	fmt.Printf("fees vault  %s   withheld vault %s\n", r.FeesVault, r.WithheldVault)
	fmt.Printf("fees        wrap %d bps, unwrap %d bps, partner %d bps\n", r.WrapFeeBps, r.UnwrapFeeBps, r.PartnerFeeBps)
	if r.TreasuryWallet != nil {
		fmt.Printf("treasury    %s\n", *r.TreasuryWallet)
	}
	if r.PartnerWallet != nil {
		fmt.Printf("partner     %s\n", *r.PartnerWallet)
	}
	fmt.Printf("supply      wrapped %d, minted %d, burned %d\n", r.TotalUnderlyingWrapped, r.TotalRiftMinted, r.TotalBurned)
	fmt.Printf("backing     %.4f (risk: %s)\n", float64(r.BackingRatio)/float64(codec.BackingRatioScale), r.Risk())
	fmt.Printf("fees owed   %d (collected %d)\n", r.PendingFees(), r.TotalFeesCollected)
	fmt.Printf("volume 24h  %d, rebalances %d\n", r.TotalVolume24h, r.RebalanceCount)
	now := time.Now()
	fmt.Printf("oracle      avg %d, healthy %v, last update %s\n",
		r.AverageOraclePrice(), r.OracleHealthy(now), time.Unix(r.LastOracleUpdate, 0).Format(time.RFC3339))
	fmt.Printf("rebalance   due %v, last %s\n",
		r.ShouldTriggerRebalance(now), time.Unix(r.LastRebalance, 0).Format(time.RFC3339))
	if r.IsClosed {
		fmt.Printf("status      CLOSED at slot %d\n", r.ClosedAtSlot)
	}
	fmt.Println()
}
