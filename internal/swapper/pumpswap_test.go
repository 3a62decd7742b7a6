package swapper

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rifts-engine/internal/engine"
	"rifts-engine/internal/rift"
)

func testKey(seed byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = seed
	}
	return k
}

func testEntry() PoolEntry {
	return PoolEntry{
		Pool: engine.PoolInfo{
			Address:    testKey(1),
			BaseMint:   testKey(2),
			QuoteMint:  testKey(3),
			BaseVault:  testKey(4),
			QuoteVault: testKey(5),
		},
		ProtocolFeeRecipient:             protocolFeeRecipients[0],
		ProtocolFeeRecipientTokenAccount: testKey(6),
	}
}

func testVenue(t *testing.T) *PumpSwap {
	t.Helper()
	venue, err := New([]PoolEntry{testEntry()}, zap.NewNop())
	require.NoError(t, err)
	return venue
}

func TestNewRejectsUnknownFeeRecipient(t *testing.T) {
	entry := testEntry()
	entry.ProtocolFeeRecipient = testKey(99)

	_, err := New([]PoolEntry{entry}, zap.NewNop())
	require.ErrorContains(t, err, "invalid protocol fee recipient")
}

func TestNewDefaultsTokenPrograms(t *testing.T) {
	venue := testVenue(t)
	require.Equal(t, solana.TokenProgramID, venue.pools[0].BaseTokenProgram)
	require.Equal(t, solana.TokenProgramID, venue.pools[0].QuoteTokenProgram)
}

func TestResolvePoolEitherOrientation(t *testing.T) {
	venue := testVenue(t)
	base, quote := testKey(2), testKey(3)

	fwd, err := venue.ResolvePool(context.Background(), base, quote)
	require.NoError(t, err)
	require.Equal(t, testKey(1), fwd.Address)

	rev, err := venue.ResolvePool(context.Background(), quote, base)
	require.NoError(t, err)
	require.Equal(t, testKey(1), rev.Address)

	_, err = venue.ResolvePool(context.Background(), testKey(7), testKey(8))
	require.ErrorContains(t, err, "no pool configured")
}

func TestBuildSwapBuyEncoding(t *testing.T) {
	venue := testVenue(t)
	pool := &venue.pools[0].Pool
	user := testKey(9)

	// Quote in means buying base tokens.
	ixs, err := venue.BuildSwap(context.Background(), pool, user, pool.QuoteMint, 5_000, 4_900)
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	ix := ixs[0]
	require.Equal(t, PumpSwapProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 24)
	require.Equal(t, discBuy[:], data[:8])
	// Buy encodes base_amount_out then max_quote_amount_in.
	require.Equal(t, uint64(4_900), binary.LittleEndian.Uint64(data[8:16]))
	require.Equal(t, uint64(5_000), binary.LittleEndian.Uint64(data[16:24]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 17)
	require.Equal(t, pool.Address, accounts[0].PublicKey)
	require.True(t, accounts[0].IsWritable)
	require.Equal(t, user, accounts[1].PublicKey)
	require.True(t, accounts[1].IsSigner)
	require.True(t, accounts[1].IsWritable)
	require.Equal(t, globalConfig, accounts[2].PublicKey)
	require.Equal(t, pool.BaseVault, accounts[7].PublicKey)
	require.Equal(t, pool.QuoteVault, accounts[8].PublicKey)
	require.Equal(t, eventAuthority, accounts[15].PublicKey)
	require.Equal(t, PumpSwapProgramID, accounts[16].PublicKey)

	userBase, _, err := rift.FindAssociatedTokenAddress(user, pool.BaseMint, solana.TokenProgramID)
	require.NoError(t, err)
	require.Equal(t, userBase, accounts[5].PublicKey)
}

func TestBuildSwapSellEncoding(t *testing.T) {
	venue := testVenue(t)
	pool := &venue.pools[0].Pool

	ixs, err := venue.BuildSwap(context.Background(), pool, testKey(9), pool.BaseMint, 1_000, 950)
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	data, err := ixs[0].Data()
	require.NoError(t, err)
	require.Equal(t, discSell[:], data[:8])
	// Sell encodes base_amount_in then min_quote_amount_out.
	require.Equal(t, uint64(1_000), binary.LittleEndian.Uint64(data[8:16]))
	require.Equal(t, uint64(950), binary.LittleEndian.Uint64(data[16:24]))
}

func TestBuildSwapRejectsForeignMint(t *testing.T) {
	venue := testVenue(t)
	pool := &venue.pools[0].Pool

	_, err := venue.BuildSwap(context.Background(), pool, testKey(9), testKey(30), 1_000, 950)
	require.ErrorContains(t, err, "not in pool")
}

func TestBuildDepositEncoding(t *testing.T) {
	entry := testEntry()
	entry.Pool.LPMint = testKey(20)
	venue, err := New([]PoolEntry{entry}, zap.NewNop())
	require.NoError(t, err)
	pool := &venue.pools[0].Pool
	user := testKey(9)

	ixs, err := venue.BuildDeposit(context.Background(), pool, user, engine.DepositParams{
		LPTokenOut: 777,
		MaxBaseIn:  10_000,
		MaxQuoteIn: 20_000,
	})
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	data, err := ixs[0].Data()
	require.NoError(t, err)
	require.Len(t, data, 32)
	require.Equal(t, discDeposit[:], data[:8])
	require.Equal(t, uint64(777), binary.LittleEndian.Uint64(data[8:16]))
	require.Equal(t, uint64(10_000), binary.LittleEndian.Uint64(data[16:24]))
	require.Equal(t, uint64(20_000), binary.LittleEndian.Uint64(data[24:32]))

	accounts := ixs[0].Accounts()
	require.Len(t, accounts, 15)
	require.Equal(t, pool.Address, accounts[0].PublicKey)
	require.Equal(t, user, accounts[2].PublicKey)
	require.True(t, accounts[2].IsSigner)
	require.Equal(t, pool.LPMint, accounts[5].PublicKey)
	require.True(t, accounts[5].IsWritable)
	require.Equal(t, rift.Token2022ProgramID, accounts[12].PublicKey)

	userPoolTokens, _, err := rift.FindAssociatedTokenAddress(user, pool.LPMint, rift.Token2022ProgramID)
	require.NoError(t, err)
	require.Equal(t, userPoolTokens, accounts[8].PublicKey)
}

func TestBuildWithdrawEncoding(t *testing.T) {
	entry := testEntry()
	entry.Pool.LPMint = testKey(20)
	venue, err := New([]PoolEntry{entry}, zap.NewNop())
	require.NoError(t, err)
	pool := &venue.pools[0].Pool

	ixs, err := venue.BuildWithdraw(context.Background(), pool, testKey(9), engine.WithdrawParams{
		LPTokenIn:   500,
		MinBaseOut:  4_000,
		MinQuoteOut: 8_000,
	})
	require.NoError(t, err)

	data, err := ixs[0].Data()
	require.NoError(t, err)
	require.Equal(t, discWithdraw[:], data[:8])
	require.Equal(t, uint64(500), binary.LittleEndian.Uint64(data[8:16]))
	require.Equal(t, uint64(4_000), binary.LittleEndian.Uint64(data[16:24]))
	require.Equal(t, uint64(8_000), binary.LittleEndian.Uint64(data[24:32]))
}

func TestBuildDepositRequiresLPMint(t *testing.T) {
	venue := testVenue(t)
	pool := &venue.pools[0].Pool

	_, err := venue.BuildDeposit(context.Background(), pool, testKey(9), engine.DepositParams{LPTokenOut: 1})
	require.ErrorContains(t, err, "no lp mint")
}

func TestBuildCreatePoolEncoding(t *testing.T) {
	venue := testVenue(t)
	creator := testKey(9)
	baseMint, quoteMint := testKey(21), testKey(22)

	pool, ixs, err := venue.BuildCreatePool(context.Background(), creator, engine.CreatePoolParams{
		Index:         3,
		BaseMint:      baseMint,
		QuoteMint:     quoteMint,
		BaseAmountIn:  1_000_000,
		QuoteAmountIn: 2_500_000,
	})
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	wantPool, err := DerivePoolAddress(3, creator, baseMint, quoteMint)
	require.NoError(t, err)
	require.Equal(t, wantPool, pool.Address)
	wantLP, err := DeriveLPMint(wantPool)
	require.NoError(t, err)
	require.Equal(t, wantLP, pool.LPMint)

	data, err := ixs[0].Data()
	require.NoError(t, err)
	require.Len(t, data, 26)
	require.Equal(t, discCreatePool[:], data[:8])
	require.Equal(t, uint16(3), binary.LittleEndian.Uint16(data[8:10]))
	require.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(data[10:18]))
	require.Equal(t, uint64(2_500_000), binary.LittleEndian.Uint64(data[18:26]))

	accounts := ixs[0].Accounts()
	require.Len(t, accounts, 18)
	require.Equal(t, pool.Address, accounts[0].PublicKey)
	require.True(t, accounts[0].IsWritable)
	require.Equal(t, globalConfig, accounts[1].PublicKey)
	require.Equal(t, creator, accounts[2].PublicKey)
	require.True(t, accounts[2].IsSigner)
	require.Equal(t, pool.LPMint, accounts[5].PublicKey)
	require.Equal(t, pool.BaseVault, accounts[9].PublicKey)
	require.Equal(t, pool.QuoteVault, accounts[10].PublicKey)
	require.Equal(t, solana.SystemProgramID, accounts[11].PublicKey)
	require.Equal(t, rift.Token2022ProgramID, accounts[12].PublicKey)
	require.Equal(t, solana.TokenProgramID, accounts[13].PublicKey)
	require.Equal(t, eventAuthority, accounts[16].PublicKey)
	require.Equal(t, PumpSwapProgramID, accounts[17].PublicKey)
}

func TestBuildCreatePoolRegistersPool(t *testing.T) {
	venue := testVenue(t)
	baseMint, quoteMint := testKey(21), testKey(22)

	pool, _, err := venue.BuildCreatePool(context.Background(), testKey(9), engine.CreatePoolParams{
		Index:         0,
		BaseMint:      baseMint,
		QuoteMint:     quoteMint,
		BaseAmountIn:  100,
		QuoteAmountIn: 100,
	})
	require.NoError(t, err)

	resolved, err := venue.ResolvePool(context.Background(), baseMint, quoteMint)
	require.NoError(t, err)
	require.Equal(t, pool.Address, resolved.Address)

	// The registered entry must be immediately usable for liquidity builds.
	_, err = venue.BuildDeposit(context.Background(), resolved, testKey(9), engine.DepositParams{LPTokenOut: 1, MaxBaseIn: 1, MaxQuoteIn: 1})
	require.NoError(t, err)
}

func TestBuildSwapUnknownPool(t *testing.T) {
	venue := testVenue(t)
	foreign := &engine.PoolInfo{Address: testKey(40), BaseMint: testKey(2), QuoteMint: testKey(3)}

	_, err := venue.BuildSwap(context.Background(), foreign, testKey(9), testKey(3), 1, 1)
	require.ErrorContains(t, err, "not in registry")
}
