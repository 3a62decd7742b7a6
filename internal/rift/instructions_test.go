package rift

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func testAddrs(t *testing.T) *Addresses {
	t.Helper()
	riftAccount, _, err := DeriveRiftAddress(testKey(1), testKey(2))
	require.NoError(t, err)
	addrs, err := AddressesForRift(riftAccount, testKey(3))
	require.NoError(t, err)
	return addrs
}

func TestWrapInstructionData(t *testing.T) {
	addrs := testAddrs(t)
	ix, err := NewWrapTokensInstruction(&WrapParam{
		Amount:                 1_000_000_000, // 1.0 at 9 decimals
		MinRiftOut:             987_654_321,
		User:                   testKey(4),
		UserUnderlying:         testKey(5),
		UserRiftTokens:         testKey(6),
		UnderlyingMint:         testKey(1),
		UnderlyingTokenProgram: solana.TokenProgramID,
		Addrs:                  addrs,
	})
	require.NoError(t, err)
	require.Equal(t, ProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 24)
	require.Equal(t, DiscWrapTokens[:], data[:8])
	require.EqualValues(t, 1_000_000_000, binary.LittleEndian.Uint64(data[8:16]))
	require.EqualValues(t, 987_654_321, binary.LittleEndian.Uint64(data[16:24]))
}

func TestWrapInstructionAccountOrder(t *testing.T) {
	addrs := testAddrs(t)
	user := testKey(4)
	ix, err := NewWrapTokensInstruction(&WrapParam{
		Amount: 1, MinRiftOut: 1,
		User:                   user,
		UserUnderlying:         testKey(5),
		UserRiftTokens:         testKey(6),
		UnderlyingMint:         testKey(1),
		UnderlyingTokenProgram: solana.TokenProgramID,
		Addrs:                  addrs,
	})
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 13)
	require.Equal(t, user, accounts[0].PublicKey)
	require.True(t, accounts[0].IsSigner)
	require.True(t, accounts[0].IsWritable)
	require.Equal(t, addrs.Rift, accounts[1].PublicKey)
	require.Equal(t, addrs.Vault, accounts[4].PublicKey)
	require.Equal(t, addrs.RiftMint, accounts[6].PublicKey)
	require.Equal(t, Token2022ProgramID, accounts[11].PublicKey)
	require.Equal(t, solana.SystemProgramID, accounts[12].PublicKey)
}

func TestUnwrapInstructionData(t *testing.T) {
	addrs := testAddrs(t)
	ix, err := NewUnwrapInstruction(&UnwrapParam{
		RiftTokenAmount:        500,
		MinUnderlyingOut:       490,
		User:                   testKey(4),
		UserUnderlying:         testKey(5),
		UserRiftTokens:         testKey(6),
		UnderlyingMint:         testKey(1),
		UnderlyingTokenProgram: solana.TokenProgramID,
		Addrs:                  addrs,
	})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Equal(t, DiscUnwrapFromVault[:], data[:8])
	require.EqualValues(t, 500, binary.LittleEndian.Uint64(data[8:16]))
	require.EqualValues(t, 490, binary.LittleEndian.Uint64(data[16:24]))
}

func TestDistributeFeesWithoutPartnerUsesPlaceholder(t *testing.T) {
	addrs := testAddrs(t)
	ix, err := NewDistributeFeesInstruction(&DistributeFeesParam{
		Amount:          100,
		Payer:           testKey(4),
		UnderlyingMint:  testKey(1),
		TreasuryWallet:  testKey(7),
		TreasuryAccount: testKey(8),
		TokenProgram:    solana.TokenProgramID,
		Addrs:           addrs,
	})
	require.NoError(t, err)

	var placeholders int
	for _, acc := range ix.Accounts() {
		if acc.PublicKey.Equals(ProgramID) {
			placeholders++
			require.False(t, acc.IsWritable, "optional placeholder must not be writable")
		}
	}
	require.Equal(t, 2, placeholders, "partner wallet and partner account slots")
}

func TestDistributeFeesWithPartnerIsWritable(t *testing.T) {
	addrs := testAddrs(t)
	partner, partnerATA := testKey(9), testKey(10)
	ix, err := NewDistributeFeesInstruction(&DistributeFeesParam{
		Amount:          100,
		Payer:           testKey(4),
		UnderlyingMint:  testKey(1),
		TreasuryWallet:  testKey(7),
		TreasuryAccount: testKey(8),
		PartnerWallet:   &partner,
		PartnerAccount:  &partnerATA,
		TokenProgram:    solana.TokenProgramID,
		Addrs:           addrs,
	})
	require.NoError(t, err)

	var sawPartnerATA bool
	for _, acc := range ix.Accounts() {
		require.False(t, acc.PublicKey.Equals(ProgramID) && acc.IsWritable)
		if acc.PublicKey.Equals(partnerATA) {
			sawPartnerATA = true
			require.True(t, acc.IsWritable)
		}
	}
	require.True(t, sawPartnerATA)
}

func TestCreateRiftArgEncoding(t *testing.T) {
	addrs := testAddrs(t)
	partner := testKey(11)
	var name [32]byte
	copy(name[:], "myrift")

	ix, err := NewCreateRiftInstruction(&CreateRiftParam{
		Name:                   name,
		NameLen:                6,
		TransferFeeBps:         85,
		PrefixType:             1,
		PartnerWallet:          &partner,
		Creator:                testKey(2),
		UnderlyingMint:         testKey(1),
		UnderlyingTokenProgram: solana.TokenProgramID,
		Addrs:                  addrs,
	})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Equal(t, DiscCreateRift[:], data[:8])
	require.EqualValues(t, 1, data[8], "option tag")
	require.Equal(t, partner[:], data[9:41])
	require.Equal(t, name[:], data[41:73])
	require.EqualValues(t, 6, data[73], "name_len")
	require.EqualValues(t, 85, binary.LittleEndian.Uint16(data[74:76]))
	require.EqualValues(t, 1, data[76], "prefix_type")
	require.Len(t, data, 77)
}

func TestCreateRiftRejectsLongName(t *testing.T) {
	addrs := testAddrs(t)
	_, err := NewCreateRiftInstruction(&CreateRiftParam{
		NameLen: 33,
		Addrs:   addrs,
	})
	require.Error(t, err)
}

func TestCloseRiftAccountList(t *testing.T) {
	addrs := testAddrs(t)
	creator := testKey(2)
	ix, err := NewCloseRiftInstruction(creator, addrs)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Equal(t, DiscCloseRift[:], data)

	accounts := ix.Accounts()
	require.Len(t, accounts, 5, "creator, rift and the three vaults only")
	require.Equal(t, creator, accounts[0].PublicKey)
	require.True(t, accounts[0].IsSigner)
	require.Equal(t, addrs.Rift, accounts[1].PublicKey)
	require.Equal(t, addrs.Vault, accounts[2].PublicKey)
	require.Equal(t, addrs.FeesVault, accounts[3].PublicKey)
	require.Equal(t, addrs.WithheldVault, accounts[4].PublicKey)
	for _, acc := range accounts {
		require.True(t, acc.IsWritable, acc.PublicKey.String())
	}
}

func TestManualOracleInstructionData(t *testing.T) {
	ix := NewUpdateManualOracleInstruction(testKey(1), testKey(2), 12345, 67)
	data, err := ix.Data()
	require.NoError(t, err)
	require.Equal(t, DiscUpdateManualOracle[:], data[:8])
	require.EqualValues(t, 12345, binary.LittleEndian.Uint64(data[8:16]))
	require.EqualValues(t, 67, binary.LittleEndian.Uint64(data[16:24]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 2)
	require.True(t, accounts[1].IsSigner, "authority signs")
}

func TestSyncNativeInstruction(t *testing.T) {
	ix := NewSyncNativeInstruction(testKey(3))
	data, err := ix.Data()
	require.NoError(t, err)
	require.Equal(t, []byte{17}, data)
	require.Equal(t, solana.TokenProgramID, ix.ProgramID())
}

func TestCreateATAIdempotentUsesExplicitTokenProgram(t *testing.T) {
	payer, wallet, mint := testKey(1), testKey(2), testKey(3)
	ix, err := NewCreateATAIdempotentInstruction(payer, wallet, mint, Token2022ProgramID)
	require.NoError(t, err)
	require.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Equal(t, []byte{1}, data, "idempotent create opcode")

	accounts := ix.Accounts()
	require.Equal(t, Token2022ProgramID, accounts[len(accounts)-1].PublicKey)

	expected, _, err := FindAssociatedTokenAddress(wallet, mint, Token2022ProgramID)
	require.NoError(t, err)
	require.Equal(t, expected, accounts[1].PublicKey)
}
