package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"moneymarket/core/events"
	nativecommon "moneymarket/native/common"
	"moneymarket/native/lending"
	"moneymarket/native/lending/state"
	"moneymarket/storage"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	cUSD     = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	cETH     = common.HexToAddress("0x0000000000000000000000000000000000000c02")
	usdToken = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	ethToken = common.HexToAddress("0x0000000000000000000000000000000000000d02")
)

type harness struct {
	local  *Local
	engine *lending.Engine
	oracle *lending.SimplePriceOracle
	feed   *Feed
	db     storage.Database
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	e := lending.NewEngine(state.New(db), admin)
	feed := NewFeed(64, nil)
	e.SetEmitter(feed)
	oracle := lending.NewSimplePriceOracle()
	model := lending.ModelConfig{Kink: "0.8"}
	genesis := lending.Genesis{
		Comptroller: lending.ComptrollerGenesis{Admin: admin.Hex()},
		Markets: []lending.MarketGenesis{
			{Address: cUSD.Hex(), Underlying: usdToken.Hex(), Symbol: "cUSD", Price: "1", Model: model},
			{Address: cETH.Hex(), Underlying: ethToken.Hex(), Symbol: "cETH", Price: "1", CollateralFactor: "0.5", Model: model},
		},
		Balances: []lending.BalanceGenesis{
			{Asset: usdToken.Hex(), Holder: alice.Hex(), Amount: "2000"},
			{Asset: ethToken.Hex(), Holder: bob.Hex(), Amount: "1000"},
		},
	}
	require.NoError(t, lending.Bootstrap(e, genesis, oracle, true))
	return &harness{local: NewLocal(e, db, feed, nil), engine: e, oracle: oracle, feed: feed, db: db}
}

// seed leaves alice supplying 1000 cUSD and bob borrowing 400 against 1000 cETH.
func (h *harness) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := h.local.Approve(ctx, bob.Hex(), cETH.Hex(), "max")
	require.NoError(t, err)
	receipt, err := h.local.Mint(ctx, bob.Hex(), cETH.Hex(), "1000")
	require.NoError(t, err)
	require.Equal(t, "1000", receipt.Tokens)
	_, err = h.local.Approve(ctx, alice.Hex(), cUSD.Hex(), "max")
	require.NoError(t, err)
	_, err = h.local.Mint(ctx, alice.Hex(), cUSD.Hex(), "1000")
	require.NoError(t, err)
	_, err = h.local.EnterMarkets(ctx, bob.Hex(), []string{cETH.Hex()})
	require.NoError(t, err)
	_, err = h.local.Borrow(ctx, bob.Hex(), cUSD.Hex(), "400")
	require.NoError(t, err)
}

func TestLocalSupplyAndBorrow(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	liq, err := h.local.GetLiquidity(ctx, bob.Hex())
	require.NoError(t, err)
	require.Equal(t, "100", liq.Liquidity)
	require.Equal(t, "0", liq.Shortfall)
	require.Equal(t, []string{cETH.Hex(), cUSD.Hex()}, liq.AssetsIn, "borrowing enters the borrowed market")

	pos, err := h.local.GetPosition(ctx, bob.Hex(), cUSD.Hex())
	require.NoError(t, err)
	require.Equal(t, "400", pos.BorrowBalance)
	require.Equal(t, "400", pos.WalletBalance)
	require.True(t, pos.Entered)

	market, err := h.local.GetMarket(ctx, cUSD.Hex())
	require.NoError(t, err)
	require.Equal(t, "600", market.Cash)
	require.Equal(t, "400", market.TotalBorrows)
	require.Equal(t, "1", market.ExchangeRate)
	require.True(t, market.Listed)

	markets, err := h.local.ListMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	_, err = h.local.Borrow(ctx, bob.Hex(), cUSD.Hex(), "200")
	require.ErrorIs(t, err, ErrInsufficientCollateral)
	var lerr *lending.Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, lending.ReasonInsufficientLiquidity, lerr.Reason)
}

func TestLocalRepayAndRedeem(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	_, err := h.local.Approve(ctx, bob.Hex(), cUSD.Hex(), "max")
	require.NoError(t, err)
	receipt, err := h.local.Repay(ctx, bob.Hex(), "", cUSD.Hex(), "max")
	require.NoError(t, err)
	require.Equal(t, "400", receipt.Amount)

	_, err = h.local.ExitMarket(ctx, bob.Hex(), cETH.Hex())
	require.NoError(t, err)
	receipt, err = h.local.Redeem(ctx, bob.Hex(), cETH.Hex(), "max")
	require.NoError(t, err)
	require.Equal(t, "1000", receipt.Amount)
	require.Equal(t, "1000", receipt.Tokens)

	receipt, err = h.local.RedeemUnderlying(ctx, alice.Hex(), cUSD.Hex(), "250")
	require.NoError(t, err)
	require.Equal(t, "250", receipt.Tokens)

	receipt, err = h.local.Transfer(ctx, alice.Hex(), bob.Hex(), cUSD.Hex(), "50")
	require.NoError(t, err)
	require.Equal(t, "50", receipt.Tokens)
	pos, err := h.local.GetPosition(ctx, bob.Hex(), cUSD.Hex())
	require.NoError(t, err)
	require.Equal(t, "50", pos.Tokens)
}

func TestLocalLiquidate(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	_, err := h.local.Liquidate(ctx, alice.Hex(), bob.Hex(), cUSD.Hex(), cETH.Hex(), "100")
	require.ErrorIs(t, err, ErrInsufficientCollateral)
	require.Equal(t, lending.ReasonInsufficientShortfall, lending.ReasonOf(err))

	h.oracle.SetUnderlyingPrice(cETH, uint256.NewInt(5e17))
	liq, err := h.local.GetLiquidity(ctx, bob.Hex())
	require.NoError(t, err)
	require.Equal(t, "150", liq.Shortfall)

	receipt, err := h.local.Liquidate(ctx, alice.Hex(), bob.Hex(), cUSD.Hex(), cETH.Hex(), "100")
	require.NoError(t, err)
	require.Equal(t, "216", receipt.Seized)
	pos, err := h.local.GetPosition(ctx, alice.Hex(), cETH.Hex())
	require.NoError(t, err)
	require.Equal(t, "216", pos.Tokens)
}

func TestLocalErrorClassification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.local.GetMarket(ctx, common.HexToAddress("0x99").Hex())
	require.ErrorIs(t, err, ErrNotFound)
	_, err = h.local.Mint(ctx, alice.Hex(), cUSD.Hex(), "lots")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.local.Mint(ctx, alice.Hex(), cUSD.Hex(), "0")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.local.Mint(ctx, "0x12", cUSD.Hex(), "1")
	require.ErrorIs(t, err, ErrInvalidAddress)
	_, err = h.local.EnterMarkets(ctx, alice.Hex(), nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.local.Mint(ctx, alice.Hex(), cUSD.Hex(), "10")
	require.ErrorIs(t, err, ErrRejected, "no allowance granted yet")

	h.engine.SetPauses(nativecommon.StaticPauses{nativecommon.ActionKey("lending", "mint"): true})
	_, err = h.local.Approve(ctx, alice.Hex(), cUSD.Hex(), "max")
	require.NoError(t, err)
	_, err = h.local.Mint(ctx, alice.Hex(), cUSD.Hex(), "10")
	require.ErrorIs(t, err, ErrPaused)
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.local.ListMarkets(cancelled)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLocalValue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	value, err := h.local.Value(ctx, cETH.Hex(), "250")
	require.NoError(t, err)
	require.Equal(t, uint64(250), value)

	h.oracle.SetUnderlyingPrice(cETH, uint256.NewInt(2e18))
	value, err = h.local.Value(ctx, cETH.Hex(), "250")
	require.NoError(t, err)
	require.Equal(t, uint64(500), value)

	value, err = h.local.Value(ctx, cETH.Hex(), "max")
	require.NoError(t, err)
	require.Zero(t, value)
}

func TestLocalAdvanceBlockPersists(t *testing.T) {
	h := newHarness(t)

	block, err := h.local.AdvanceBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(1), block)
	block, err = h.local.AdvanceBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(2), block)

	stored, found, err := state.LoadBlockNumber(h.db)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(2), stored)
	require.Equal(t, uint64(2), h.local.BlockNumber())
}

func TestLocalRecentEvents(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	recent, err := h.local.RecentEvents(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, events.TypeBorrow, recent[0].Type)
	require.Equal(t, strings.ToLower(cUSD.Hex()), recent[0].Attributes["market"])
}
