package rift

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func testKey(seed byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = seed
	}
	return k
}

func TestDeriveRiftAddressDeterministic(t *testing.T) {
	mint, creator := testKey(1), testKey(2)

	a1, bump1, err := DeriveRiftAddress(mint, creator)
	require.NoError(t, err)
	a2, bump2, err := DeriveRiftAddress(mint, creator)
	require.NoError(t, err)
	require.Equal(t, a1, a2)
	require.Equal(t, bump1, bump2)

	// Different creator, different rift.
	a3, _, err := DeriveRiftAddress(mint, testKey(3))
	require.NoError(t, err)
	require.NotEqual(t, a1, a3)
}

func TestDeriveAddressesDistinctPerSeed(t *testing.T) {
	riftAccount, _, err := DeriveRiftAddress(testKey(1), testKey(2))
	require.NoError(t, err)

	addrs, err := DeriveAddresses(riftAccount)
	require.NoError(t, err)

	seen := map[solana.PublicKey]string{}
	for name, k := range map[string]solana.PublicKey{
		"mint_auth":      addrs.MintAuthority,
		"vault":          addrs.Vault,
		"vault_auth":     addrs.VaultAuth,
		"fees_vault":     addrs.FeesVault,
		"withheld_vault": addrs.WithheldVault,
	} {
		require.False(t, k.IsZero(), "%s is zero", name)
		prev, dup := seen[k]
		require.False(t, dup, "%s collides with %s", name, prev)
		seen[k] = name
	}
}

func TestFindAssociatedTokenAddressMatchesSDKForLegacyProgram(t *testing.T) {
	wallet, mint := testKey(4), testKey(5)

	ours, _, err := FindAssociatedTokenAddress(wallet, mint, solana.TokenProgramID)
	require.NoError(t, err)
	theirs, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	require.NoError(t, err)
	require.Equal(t, theirs, ours)
}

func TestFindAssociatedTokenAddressVariesByTokenProgram(t *testing.T) {
	wallet, mint := testKey(4), testKey(5)

	legacy, _, err := FindAssociatedTokenAddress(wallet, mint, solana.TokenProgramID)
	require.NoError(t, err)
	t22, _, err := FindAssociatedTokenAddress(wallet, mint, Token2022ProgramID)
	require.NoError(t, err)
	require.NotEqual(t, legacy, t22)
}
