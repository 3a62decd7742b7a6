package rift

import "github.com/gagliardetto/solana-go"

var (
	// Rifts protocol program on mainnet
	ProgramID = solana.MustPublicKeyFromBase58("29JgMGWZ28CSF7JLStKFp8xb4BZyf7QitG5CHcfRBYoR")
	// Default treasury wallet receiving fee distributions when a rift carries none
	DefaultTreasuryWallet = solana.MustPublicKeyFromBase58("5NrHu6zpWqYT6LH74WmTNFHGcxZEmRMVK4hR7sHjS9Fc")
	// Wrapped SOL mint (9 decimals)
	WrappedSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	// Token-2022 program; RIFT mints are always owned by it
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// PDA seed prefixes used by the on-chain program.
const (
	SeedRift          = "rift"
	SeedRiftMint      = "rift_mint"
	SeedRiftMintAuth  = "rift_mint_auth"
	SeedVault         = "vault"
	SeedVaultAuth     = "vault_auth"
	SeedFeesVault     = "fees_vault"
	SeedWithheldVault = "withheld_vault"
)

// Anchor instruction discriminators, sha256("global:<name>")[0:8].
var (
	DiscCreateRift          = [8]byte{0x1c, 0x61, 0x68, 0xa3, 0x24, 0xb6, 0xd4, 0x33}
	DiscInitializeVault     = [8]byte{0x30, 0xbf, 0xa3, 0x2c, 0x47, 0x81, 0x3f, 0xa4}
	DiscInitializeFeesVault = [8]byte{0x09, 0x20, 0x79, 0xac, 0x3b, 0x9b, 0xf6, 0x1e}
	DiscInitWithheldVault   = [8]byte{0x35, 0x69, 0xe9, 0xa1, 0x58, 0x8f, 0xd1, 0xc8}
	DiscWrapTokens          = [8]byte{0xf4, 0x89, 0x39, 0xfb, 0xe8, 0xe0, 0x36, 0x0e}
	DiscUnwrapFromVault     = [8]byte{0xd4, 0xa2, 0xe5, 0x8c, 0x49, 0xd9, 0xf5, 0xaf}
	DiscDistributeFees      = [8]byte{0x5c, 0xfb, 0x3a, 0x6c, 0x5a, 0xd5, 0xee, 0x03}
	DiscClaimWithheldFees   = [8]byte{0x6f, 0x5b, 0x0d, 0xc9, 0x28, 0x58, 0xb6, 0xb1}
	DiscUpdateManualOracle  = [8]byte{0xf7, 0x9c, 0xbe, 0x5c, 0x69, 0x97, 0x3f, 0x0d}
	DiscUpdateSwitchboard   = [8]byte{0x03, 0xb7, 0x12, 0x0d, 0x52, 0x2e, 0x6c, 0xeb}
	DiscTriggerRebalance    = [8]byte{0xb5, 0x19, 0x6d, 0xdf, 0xa7, 0xb8, 0x21, 0xd1}
	DiscCloseRift           = [8]byte{0x36, 0xf4, 0x7e, 0xd6, 0x6c, 0x20, 0x25, 0x31}
)

// Rift account discriminator, sha256("account:Rift")[0:8].
var RiftAccountDiscriminator = [8]byte{0xbf, 0x91, 0x97, 0x25, 0xe2, 0x8d, 0x73, 0xad}

// RiftAccountSize is the full on-chain account size: 8-byte discriminator
// plus the 774-byte Borsh payload.
const RiftAccountSize = 782
