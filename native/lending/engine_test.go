package lending

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"moneymarket/core/events"
	nativecommon "moneymarket/native/common"
	"moneymarket/native/lending/fixedpoint"
	"moneymarket/native/lending/state"
	"moneymarket/observability/metrics"
)

type hookReceiver struct {
	onReceive func(asset, from common.Address, amount *uint256.Int) error
}

func (h hookReceiver) OnTokenReceived(asset, from common.Address, amount *uint256.Int) error {
	return h.onReceive(asset, from, amount)
}

func TestModulePauseGuard(t *testing.T) {
	f := newFixture(t)
	usd := f.list(cUSD, usdToken, "cUSD", Standard, flatModel(0))
	f.fund(usd, alice, u(100))

	f.engine.SetPauses(nativecommon.StaticPauses{"lending": true})
	_, err := usd.Mint(alice, u(10))
	require.True(t, errors.Is(err, nativecommon.ErrModulePaused))

	f.engine.SetPauses(nativecommon.StaticPauses{nativecommon.ActionKey("lending", "mint"): true})
	_, err = usd.Mint(alice, u(10))
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	require.NoError(t, usd.AccrueInterest())

	f.engine.SetPauses(nil)
	_, err = usd.Mint(alice, u(10))
	require.NoError(t, err)
}

func TestTokenHookReentryAbortsBorrow(t *testing.T) {
	f := newFixture(t)
	usd, eth := f.standardPair()
	f.supply(eth, alice, e18(100))
	f.enter(alice, eth)
	f.fund(usd, alice, e18(1))

	var inner error
	f.engine.RegisterReceiver(alice, hookReceiver{onReceive: func(common.Address, common.Address, *uint256.Int) error {
		_, inner = usd.Mint(alice, e18(1))
		return nil
	}})

	before := f.capture(usd, alice)
	err := usd.Borrow(alice, e18(10))
	require.True(t, IsReentered(err))
	require.True(t, IsReentered(inner))
	require.Equal(t, before, f.capture(usd, alice))

	f.engine.RegisterReceiver(alice, nil)
	require.NoError(t, usd.Borrow(alice, e18(10)))
}

func TestNativeSendFailure(t *testing.T) {
	f := newFixture(t)
	native := f.list(cNative, common.Address{}, "cNative", WrappedNative, flatModel(0))
	require.Equal(t, state.NativeAsset, native.Underlying())
	f.supply(native, alice, u(1_000))
	require.True(t, f.engine.TokenBalance(state.NativeAsset, alice).IsZero())

	rejected := errors.New("receiver rejected value")
	f.engine.RegisterReceiver(alice, hookReceiver{onReceive: func(common.Address, common.Address, *uint256.Int) error {
		return rejected
	}})

	before := f.capture(native, alice)
	_, err := native.Redeem(alice, Exact(u(100)))
	require.Equal(t, TokenTransferOutFailed, CodeOf(err))
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, InfoNativeSendFailed, lerr.Info)
	require.ErrorIs(t, err, ErrNativeSendFailed)
	require.ErrorIs(t, err, rejected)
	require.Equal(t, before, f.capture(native, alice))

	f.engine.RegisterReceiver(alice, nil)
	paid, err := native.Redeem(alice, Exact(u(100)))
	require.NoError(t, err)
	require.Equal(t, uint64(100), paid.Uint64())
}

func TestBlockNumberNeverRegresses(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.SetBlockNumber(10))
	require.Error(t, f.engine.SetBlockNumber(9))
	require.Equal(t, uint64(10), f.engine.BlockNumber())
}

func TestRejectedOperationEmitsNothing(t *testing.T) {
	f := newFixture(t)
	usd, eth := f.standardPair()
	f.supply(eth, alice, e18(10))
	f.enter(alice, eth)
	f.advance(1)
	f.emitter.events = nil

	err := usd.Borrow(alice, e18(6))
	require.Equal(t, ReasonInsufficientLiquidity, ReasonOf(err))
	require.Empty(t, f.emitter.events, "accrual inside a rejected borrow is rolled back too")

	ledger, _ := f.engine.State().Market(cUSD)
	require.Zero(t, ledger.AccrualBlock)
}

func TestMintEmitsInOrder(t *testing.T) {
	f := newFixture(t)
	usd := f.list(cUSD, usdToken, "cUSD", Standard, flatModel(0))
	f.fund(usd, alice, u(10))
	f.advance(1)
	f.emitter.events = nil

	_, err := usd.Mint(alice, u(10))
	require.NoError(t, err)
	require.Equal(t, []string{
		events.TypeAccrueInterest,
		events.TypeMint,
		events.TypePoolTransfer,
		events.TypeTokenSupply,
	}, f.emitter.types())
}

func TestLookupMarket(t *testing.T) {
	f := newFixture(t)
	usd := f.list(cUSD, usdToken, "cUSD", Standard, flatModel(0))

	got, err := f.engine.LookupMarket(cUSD)
	require.NoError(t, err)
	require.Same(t, usd, got)
	_, err = f.engine.LookupMarket(cETH)
	require.ErrorIs(t, err, ErrUnknownMarket)

	_, err = f.engine.ListMarket(admin, MarketConfig{Address: cUSD, Underlying: usdToken, Model: flatModel(0), InitialExchangeRate: fixedpoint.One()})
	require.Error(t, err)
	_, err = f.engine.ListMarket(alice, MarketConfig{Address: cETH, Underlying: ethToken, Model: flatModel(0), InitialExchangeRate: fixedpoint.One()})
	require.Equal(t, Unauthorized, CodeOf(err))
	_, ok := f.engine.Market(cETH)
	require.False(t, ok, "a rejected listing must not register the market")
	require.Len(t, f.engine.Markets(), 1)
}

func TestStateSurvivesReload(t *testing.T) {
	f := newFixture(t)
	usd, eth := f.standardPair()
	f.supply(eth, alice, e18(100))
	f.enter(alice, eth)
	require.NoError(t, usd.Borrow(alice, e18(20)))

	reloaded := NewEngine(state.New(f.db), admin)
	oracle := NewSimplePriceOracle()
	require.NoError(t, reloaded.Comptroller().SetPriceOracle(admin, oracle))
	for _, m := range f.engine.Markets() {
		_, err := reloaded.ListMarket(admin, MarketConfig{
			Address:             m.Address(),
			Underlying:          m.Underlying(),
			Symbol:              m.Symbol(),
			Model:               flatModel(0),
			InitialExchangeRate: fixedpoint.One(),
		})
		require.NoError(t, err)
	}

	want, _ := f.engine.State().Market(cUSD)
	got, ok := reloaded.State().Market(cUSD)
	require.True(t, ok)
	require.Equal(t, want, got)
	require.Equal(t, []common.Address{cETH, cUSD}, reloaded.Comptroller().AssetsIn(alice))
	require.Equal(t, e18(20).Dec(), reloaded.TokenBalance(usdToken, alice).Dec())

	m, err := reloaded.LookupMarket(cETH)
	require.NoError(t, err)
	require.Equal(t, e18(100).Dec(), m.BalanceOf(alice).Dec())
}

func TestPanicInsideTransactionRollsBack(t *testing.T) {
	f := newFixture(t)
	usd := f.list(cUSD, usdToken, "cUSD", Standard, flatModel(0))
	f.fund(usd, alice, u(100))
	f.engine.RegisterReceiver(cUSD, hookReceiver{onReceive: func(common.Address, common.Address, *uint256.Int) error {
		panic("receiver exploded")
	}})

	before := f.capture(usd, alice)
	require.Panics(t, func() { _, _ = usd.Mint(alice, u(10)) })
	require.Equal(t, before, f.capture(usd, alice))

	f.engine.RegisterReceiver(cUSD, nil)
	_, err := usd.Mint(alice, u(10))
	require.NoError(t, err, "the guard is released after a panic")
}

func TestAccrualMetricCountsCommittedAccrualsOnly(t *testing.T) {
	f := newFixture(t)
	usd := f.list(cUSD, usdToken, "cACR", Standard, flatModel(0))
	f.engine.SetMetrics(metrics.Lending())
	accruals := metrics.Lending().Accruals("cACR")
	f.fund(usd, alice, u(100))
	require.NoError(t, f.engine.Comptroller().SetMintPaused(guardian, cUSD, true))
	f.advance(1)

	before := testutil.ToFloat64(accruals)
	_, err := usd.Mint(alice, u(10))
	require.Equal(t, ReasonActionPaused, ReasonOf(err))
	require.Equal(t, before, testutil.ToFloat64(accruals))

	require.NoError(t, f.engine.Comptroller().SetMintPaused(admin, cUSD, false))
	_, err = usd.Mint(alice, u(10))
	require.NoError(t, err)
	require.Equal(t, before+1, testutil.ToFloat64(accruals))
}
