package rift

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Addresses carries every program-owned PDA derived for a single rift.
type Addresses struct {
	Rift          solana.PublicKey
	RiftBump      uint8
	RiftMint      solana.PublicKey
	MintAuthority solana.PublicKey
	Vault         solana.PublicKey
	VaultAuth     solana.PublicKey
	FeesVault     solana.PublicKey
	WithheldVault solana.PublicKey
}

// DeriveRiftAddress derives the rift state PDA from its underlying mint and creator.
func DeriveRiftAddress(underlyingMint, creator solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(SeedRift), underlyingMint.Bytes(), creator.Bytes()},
		ProgramID,
	)
}

// DeriveRiftMint derives the wrapped-asset mint PDA.
func DeriveRiftMint(underlyingMint, creator solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(SeedRiftMint), underlyingMint.Bytes(), creator.Bytes()},
		ProgramID,
	)
}

// DeriveAddresses resolves all sub-PDAs hanging off a rift account. The seed
// scheme must match the on-chain program exactly; a mismatch is rejected by
// the chain, not here.
func DeriveAddresses(riftAccount solana.PublicKey) (*Addresses, error) {
	addrs := &Addresses{Rift: riftAccount}

	derivations := []struct {
		seed string
		dst  *solana.PublicKey
	}{
		{SeedRiftMintAuth, &addrs.MintAuthority},
		{SeedVault, &addrs.Vault},
		{SeedVaultAuth, &addrs.VaultAuth},
		{SeedFeesVault, &addrs.FeesVault},
		{SeedWithheldVault, &addrs.WithheldVault},
	}
	for _, d := range derivations {
		pk, _, err := solana.FindProgramAddress(
			[][]byte{[]byte(d.seed), riftAccount.Bytes()},
			ProgramID,
		)
		if err != nil {
			return nil, fmt.Errorf("derive %q PDA for %s: %w", d.seed, riftAccount, err)
		}
		*d.dst = pk
	}
	return addrs, nil
}

// AddressesForRift derives all sub-PDAs and records the rift mint taken from
// decoded state. The mint is seeded on (underlying, creator), not on the rift
// account, so it cannot be re-derived from the rift address alone.
func AddressesForRift(riftAccount, riftMint solana.PublicKey) (*Addresses, error) {
	addrs, err := DeriveAddresses(riftAccount)
	if err != nil {
		return nil, err
	}
	addrs.RiftMint = riftMint
	return addrs, nil
}

// FindAssociatedTokenAddress derives the ATA for wallet+mint under the given
// token program. The token-program variant must match the one owning the
// mint; deriving with the wrong variant yields an address the chain rejects.
func FindAssociatedTokenAddress(wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{wallet.Bytes(), tokenProgram.Bytes(), mint.Bytes()},
		solana.SPLAssociatedTokenAccountProgramID,
	)
}
