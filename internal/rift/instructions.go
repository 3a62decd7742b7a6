package rift

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Instruction data is always an 8-byte discriminator followed by
// little-endian fixed-width arguments, matching the program's Borsh layout.

func instructionData(disc [8]byte, args ...uint64) []byte {
	data := make([]byte, 8, 8+8*len(args))
	copy(data, disc[:])
	for _, a := range args {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], a)
		data = append(data, buf[:]...)
	}
	return data
}

func appendU16(data []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(data, buf[:]...)
}

func appendOptionPubkey(data []byte, pk *solana.PublicKey) []byte {
	if pk == nil {
		return append(data, 0)
	}
	data = append(data, 1)
	return append(data, pk.Bytes()...)
}

func meta(pk solana.PublicKey, writable, signer bool) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: pk, IsWritable: writable, IsSigner: signer}
}

// WrapParam collects the accounts and arguments for a wrap_tokens instruction.
type WrapParam struct {
	Amount     uint64
	MinRiftOut uint64

	User                   solana.PublicKey
	UserUnderlying         solana.PublicKey
	UserRiftTokens         solana.PublicKey
	UnderlyingMint         solana.PublicKey
	UnderlyingTokenProgram solana.PublicKey
	Addrs                  *Addresses
}

// NewWrapTokensInstruction assembles the wrap_tokens instruction. Account
// order is program-mandated and must not be reordered.
func NewWrapTokensInstruction(p *WrapParam) (solana.Instruction, error) {
	if p.Addrs == nil {
		return nil, fmt.Errorf("wrap_tokens: missing derived addresses")
	}
	accounts := solana.AccountMetaSlice{
		meta(p.User, true, true),
		meta(p.Addrs.Rift, true, false),
		meta(p.UserUnderlying, true, false),
		meta(p.UserRiftTokens, true, false),
		meta(p.Addrs.Vault, true, false),
		meta(p.UnderlyingMint, false, false),
		meta(p.Addrs.RiftMint, true, false),
		meta(p.Addrs.MintAuthority, false, false),
		meta(p.Addrs.FeesVault, true, false),
		meta(p.Addrs.VaultAuth, false, false),
		meta(p.UnderlyingTokenProgram, false, false),
		meta(Token2022ProgramID, false, false),
		meta(solana.SystemProgramID, false, false),
	}
	data := instructionData(DiscWrapTokens, p.Amount, p.MinRiftOut)
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// UnwrapParam collects the accounts and arguments for unwrap_from_vault.
type UnwrapParam struct {
	RiftTokenAmount  uint64
	MinUnderlyingOut uint64

	User                   solana.PublicKey
	UserUnderlying         solana.PublicKey
	UserRiftTokens         solana.PublicKey
	UnderlyingMint         solana.PublicKey
	UnderlyingTokenProgram solana.PublicKey
	Addrs                  *Addresses
}

// NewUnwrapInstruction assembles the unwrap_from_vault instruction.
func NewUnwrapInstruction(p *UnwrapParam) (solana.Instruction, error) {
	if p.Addrs == nil {
		return nil, fmt.Errorf("unwrap_from_vault: missing derived addresses")
	}
	accounts := solana.AccountMetaSlice{
		meta(p.User, true, true),
		meta(p.Addrs.Rift, true, false),
		meta(p.UserUnderlying, true, false),
		meta(p.UserRiftTokens, true, false),
		meta(p.Addrs.Vault, true, false),
		meta(p.UnderlyingMint, false, false),
		meta(p.Addrs.VaultAuth, false, false),
		meta(p.Addrs.MintAuthority, false, false),
		meta(p.Addrs.RiftMint, true, false),
		meta(p.Addrs.FeesVault, true, false),
		meta(p.UnderlyingTokenProgram, false, false),
		meta(Token2022ProgramID, false, false),
		meta(solana.SystemProgramID, false, false),
	}
	data := instructionData(DiscUnwrapFromVault, p.RiftTokenAmount, p.MinUnderlyingOut)
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// DistributeFeesParam collects the accounts for distribute_fees_from_vault.
// PartnerWallet/PartnerAccount are nil when the rift has no partner; the
// program's optional-account convention substitutes the program id.
type DistributeFeesParam struct {
	Amount uint64

	Payer           solana.PublicKey
	UnderlyingMint  solana.PublicKey
	TreasuryWallet  solana.PublicKey
	TreasuryAccount solana.PublicKey
	PartnerWallet   *solana.PublicKey
	PartnerAccount  *solana.PublicKey
	TokenProgram    solana.PublicKey
	Addrs           *Addresses
}

// NewDistributeFeesInstruction assembles the distribute_fees_from_vault instruction.
func NewDistributeFeesInstruction(p *DistributeFeesParam) (solana.Instruction, error) {
	if p.Addrs == nil {
		return nil, fmt.Errorf("distribute_fees_from_vault: missing derived addresses")
	}
	partnerWallet := ProgramID
	partnerAccount := ProgramID
	partnerWritable := false
	if p.PartnerWallet != nil && p.PartnerAccount != nil {
		partnerWallet = *p.PartnerWallet
		partnerAccount = *p.PartnerAccount
		partnerWritable = true
	}
	accounts := solana.AccountMetaSlice{
		meta(p.Payer, true, true),
		meta(p.Addrs.Rift, true, false),
		meta(p.Addrs.FeesVault, true, false),
		meta(p.Addrs.VaultAuth, false, false),
		meta(p.UnderlyingMint, false, false),
		meta(p.TreasuryWallet, false, false),
		meta(p.TreasuryAccount, true, false),
		meta(partnerWallet, false, false),
		meta(partnerAccount, partnerWritable, false),
		meta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		meta(solana.SystemProgramID, false, false),
		meta(p.TokenProgram, false, false),
	}
	data := instructionData(DiscDistributeFees, p.Amount)
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// NewClaimWithheldFeesInstruction assembles claim_withheld_fees, harvesting
// transfer fees withheld in source into the rift's withheld vault. Signer
// must be the rift's treasury wallet.
func NewClaimWithheldFeesInstruction(treasurySigner, source solana.PublicKey, addrs *Addresses) (solana.Instruction, error) {
	if addrs == nil {
		return nil, fmt.Errorf("claim_withheld_fees: missing derived addresses")
	}
	accounts := solana.AccountMetaSlice{
		meta(treasurySigner, false, true),
		meta(addrs.Rift, true, false),
		meta(addrs.RiftMint, true, false),
		meta(addrs.WithheldVault, true, false),
		meta(source, true, false),
		meta(Token2022ProgramID, false, false),
	}
	return solana.NewInstruction(ProgramID, accounts, instructionData(DiscClaimWithheldFees)), nil
}

// NewUpdateManualOracleInstruction assembles update_manual_oracle. Only the
// rift creator is accepted as oracle authority on-chain.
func NewUpdateManualOracleInstruction(riftAccount, authority solana.PublicKey, price, confidence uint64) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		meta(riftAccount, true, false),
		meta(authority, false, true),
	}
	data := instructionData(DiscUpdateManualOracle, price, confidence)
	return solana.NewInstruction(ProgramID, accounts, data)
}

// NewUpdateSwitchboardOracleInstruction assembles update_switchboard_oracle.
func NewUpdateSwitchboardOracleInstruction(riftAccount, authority, switchboardFeed solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		meta(riftAccount, true, false),
		meta(authority, false, true),
		meta(switchboardFeed, false, false),
	}
	return solana.NewInstruction(ProgramID, accounts, instructionData(DiscUpdateSwitchboard))
}

// NewTriggerRebalanceInstruction assembles trigger_rebalance.
func NewTriggerRebalanceInstruction(riftAccount, user solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		meta(user, true, true),
		meta(riftAccount, true, false),
	}
	return solana.NewInstruction(ProgramID, accounts, instructionData(DiscTriggerRebalance))
}

// NewCloseRiftInstruction assembles close_rift. Creator-only on-chain. The
// program declares exactly five accounts; the vaults are unchecked on-chain so
// uninitialized ones still pass.
func NewCloseRiftInstruction(creator solana.PublicKey, addrs *Addresses) (solana.Instruction, error) {
	if addrs == nil {
		return nil, fmt.Errorf("close_rift: missing derived addresses")
	}
	accounts := solana.AccountMetaSlice{
		meta(creator, true, true),
		meta(addrs.Rift, true, false),
		meta(addrs.Vault, true, false),
		meta(addrs.FeesVault, true, false),
		meta(addrs.WithheldVault, true, false),
	}
	return solana.NewInstruction(ProgramID, accounts, instructionData(DiscCloseRift)), nil
}

// NewInitializeVaultInstruction assembles initialize_vault for rifts created
// before atomic vault init.
func NewInitializeVaultInstruction(user, underlyingMint, tokenProgram solana.PublicKey, addrs *Addresses) (solana.Instruction, error) {
	if addrs == nil {
		return nil, fmt.Errorf("initialize_vault: missing derived addresses")
	}
	accounts := solana.AccountMetaSlice{
		meta(user, true, true),
		meta(addrs.Rift, true, false),
		meta(addrs.Vault, true, false),
		meta(underlyingMint, false, false),
		meta(addrs.VaultAuth, false, false),
		meta(addrs.MintAuthority, false, false),
		meta(tokenProgram, false, false),
		meta(solana.SystemProgramID, false, false),
		meta(solana.SysVarRentPubkey, false, false),
	}
	return solana.NewInstruction(ProgramID, accounts, instructionData(DiscInitializeVault)), nil
}

// CreateRiftParam collects arguments for the create_rift instruction.
type CreateRiftParam struct {
	Name           [32]byte
	NameLen        uint8
	TransferFeeBps uint16 // 70..100 accepted on-chain
	PrefixType     uint8  // 0 = rift, 1 = monorift
	PartnerWallet  *solana.PublicKey

	Creator                solana.PublicKey
	UnderlyingMint         solana.PublicKey
	UnderlyingTokenProgram solana.PublicKey
	Addrs                  *Addresses
}

// NewCreateRiftInstruction assembles create_rift. Argument order follows the
// program signature: partner_wallet, rift_name, name_len, transfer_fee_bps,
// prefix_type.
func NewCreateRiftInstruction(p *CreateRiftParam) (solana.Instruction, error) {
	if p.Addrs == nil {
		return nil, fmt.Errorf("create_rift: missing derived addresses")
	}
	if p.NameLen > 32 {
		return nil, fmt.Errorf("create_rift: name length %d exceeds 32", p.NameLen)
	}
	data := make([]byte, 8)
	copy(data, DiscCreateRift[:])
	data = appendOptionPubkey(data, p.PartnerWallet)
	data = append(data, p.Name[:]...)
	data = append(data, p.NameLen)
	data = appendU16(data, p.TransferFeeBps)
	data = append(data, p.PrefixType)

	accounts := solana.AccountMetaSlice{
		meta(p.Creator, true, true),
		meta(p.Addrs.Rift, true, false),
		meta(p.UnderlyingMint, false, false),
		meta(p.Addrs.RiftMint, true, false),
		meta(p.Addrs.MintAuthority, false, false),
		meta(p.Addrs.Vault, true, false),
		meta(p.Addrs.FeesVault, true, false),
		meta(p.Addrs.WithheldVault, true, false),
		meta(p.Addrs.VaultAuth, false, false),
		meta(Token2022ProgramID, false, false),
		meta(solana.SystemProgramID, false, false),
		meta(solana.SysVarRentPubkey, false, false),
		meta(p.UnderlyingTokenProgram, false, false),
	}
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// NewCreateATAIdempotentInstruction builds the associated-token-program
// CreateIdempotent instruction (opcode 1). Unlike the SDK helper this threads
// an explicit token program so Token-2022 ATAs derive correctly.
func NewCreateATAIdempotentInstruction(payer, wallet, mint, tokenProgram solana.PublicKey) (solana.Instruction, error) {
	ataAddr, _, err := FindAssociatedTokenAddress(wallet, mint, tokenProgram)
	if err != nil {
		return nil, fmt.Errorf("derive ATA for %s/%s: %w", wallet, mint, err)
	}
	accounts := solana.AccountMetaSlice{
		meta(payer, true, true),
		meta(ataAddr, true, false),
		meta(wallet, false, false),
		meta(mint, false, false),
		meta(solana.SystemProgramID, false, false),
		meta(tokenProgram, false, false),
	}
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, []byte{1}), nil
}

// NewSyncNativeInstruction builds the SPL Token SyncNative instruction
// (opcode 17) for a wrapped-SOL account.
func NewSyncNativeInstruction(wsolAccount solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		meta(wsolAccount, true, false),
	}
	return solana.NewInstruction(solana.TokenProgramID, accounts, []byte{17})
}
