package lending

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"moneymarket/core/events"
)

func TestSeizeTokensExtremePriceRatio(t *testing.T) {
	f := newFixture(t)
	usd := f.list(cUSD, usdToken, "cUSD", Standard, flatModel(0))
	eth := f.list(cETH, ethToken, "cETH", Standard, flatModel(0))
	require.NoError(t, f.engine.Comptroller().SetLiquidationIncentive(admin, exp(t, "1.1")))
	f.oracle.SetUnderlyingPrice(usd.Address(), u(20_000_000_000))
	f.oracle.SetUnderlyingPrice(eth.Address(), e18(1))

	seize, err := f.engine.Comptroller().LiquidateCalculateSeizeTokens(cUSD, cETH, e18(1))
	require.NoError(t, err)
	// 1e18 * 1.1 * 2e10 / (1e18 * 1.0), all prices as raw mantissas.
	require.Equal(t, "22000000000", seize.Dec())
}

func TestSeizeTokensRequirePrices(t *testing.T) {
	f := newFixture(t)
	f.list(cUSD, usdToken, "cUSD", Standard, flatModel(0))
	f.list(cETH, ethToken, "cETH", Standard, flatModel(0))
	f.oracle.SetUnderlyingPrice(cETH, new(uint256.Int))

	_, err := f.engine.Comptroller().LiquidateCalculateSeizeTokens(cUSD, cETH, e18(1))
	require.Equal(t, PriceError, CodeOf(err))
	require.Equal(t, ReasonPriceError, ReasonOf(err))
}

// underwater sets alice up with 100 ETH of collateral and 50 USD of debt,
// then halves the ETH price.
func underwater(t *testing.T) (*fixture, *Market, *Market) {
	f := newFixture(t)
	usd, eth := f.standardPair()
	f.supply(eth, alice, e18(100))
	f.enter(alice, eth)
	require.NoError(t, usd.Borrow(alice, e18(50)))
	f.fund(usd, bob, e18(100))

	_, err := usd.LiquidateBorrow(bob, alice, e18(20), eth)
	require.Equal(t, ComptrollerRejection, CodeOf(err))
	require.Equal(t, ReasonInsufficientShortfall, ReasonOf(err))

	f.oracle.SetUnderlyingPrice(cETH, exp(t, "0.5").Raw())
	liq, err := f.engine.Comptroller().GetAccountLiquidity(alice)
	require.NoError(t, err)
	require.True(t, liq.Liquidity.IsZero())
	require.Equal(t, e18(25).Dec(), liq.Shortfall.Dec())
	return f, usd, eth
}

func TestLiquidateBorrow(t *testing.T) {
	f, usd, eth := underwater(t)

	_, err := usd.LiquidateBorrow(bob, alice, e18(26), eth)
	require.Equal(t, ReasonTooMuchRepay, ReasonOf(err))

	f.emitter.events = nil
	seized, err := usd.LiquidateBorrow(bob, alice, e18(20), eth)
	require.NoError(t, err)
	// 20 * 1.08 * 1.0 / 0.5
	require.Equal(t, "43200000000000000000", seized.Dec())
	require.Equal(t, seized.Dec(), eth.BalanceOf(bob).Dec())
	require.Equal(t, "56800000000000000000", eth.BalanceOf(alice).Dec())

	owed, err := usd.BorrowBalanceStored(alice)
	require.NoError(t, err)
	require.Equal(t, e18(30).Dec(), owed.Dec())
	require.Equal(t, e18(80).Dec(), f.engine.TokenBalance(usdToken, bob).Dec())

	types := f.emitter.types()
	require.Contains(t, types, events.TypeRepayBorrow)
	require.Equal(t, events.TypeLiquidateBorrow, types[len(types)-1])
}

func TestLiquidateSelfIsRejected(t *testing.T) {
	f, usd, eth := underwater(t)
	f.fund(usd, alice, e18(10))

	_, err := usd.LiquidateBorrow(alice, alice, e18(5), eth)
	require.Equal(t, InvalidAccountPair, CodeOf(err))
}

func TestLiquidateRejectsZeroAndMax(t *testing.T) {
	_, usd, eth := underwater(t)

	_, err := usd.LiquidateBorrow(bob, alice, new(uint256.Int), eth)
	require.Equal(t, InvalidCloseAmountRequested, CodeOf(err))
	_, err = usd.LiquidateBorrow(bob, alice, maxUint256, eth)
	require.Error(t, err)
}

func TestSeizePausedRevertsRepay(t *testing.T) {
	f, usd, eth := underwater(t)
	require.NoError(t, f.engine.Comptroller().SetSeizePaused(guardian, true))

	before := f.capture(usd, alice, bob)
	_, err := usd.LiquidateBorrow(bob, alice, e18(10), eth)
	require.Equal(t, ReasonActionPaused, ReasonOf(err))
	require.Equal(t, before, f.capture(usd, alice, bob))
	require.Equal(t, e18(100).Dec(), eth.BalanceOf(alice).Dec())

	require.Equal(t, Unauthorized, CodeOf(f.engine.Comptroller().SetSeizePaused(guardian, false)))
	require.NoError(t, f.engine.Comptroller().SetSeizePaused(admin, false))
	_, err = usd.LiquidateBorrow(bob, alice, e18(10), eth)
	require.NoError(t, err)
}

func TestLiquidateDeprecatedMarketInFull(t *testing.T) {
	f := newFixture(t)
	usd, eth := f.standardPair()
	f.supply(eth, alice, e18(100))
	f.enter(alice, eth)
	require.NoError(t, usd.Borrow(alice, e18(10)))
	f.fund(usd, bob, e18(20))

	require.NoError(t, f.engine.Comptroller().SoftDelistMarket(admin, cUSD))
	require.True(t, f.engine.Comptroller().IsDeprecated(cUSD))
	require.Equal(t, ReasonActionPaused, ReasonOf(usd.Borrow(alice, e18(1))))

	_, err := usd.LiquidateBorrow(bob, alice, e18(11), eth)
	require.Equal(t, ReasonTooMuchRepay, ReasonOf(err))

	seized, err := usd.LiquidateBorrow(bob, alice, e18(10), eth)
	require.NoError(t, err)
	require.Equal(t, "10800000000000000000", seized.Dec())
	owed, err := usd.BorrowBalanceStored(alice)
	require.NoError(t, err)
	require.True(t, owed.IsZero())
}

func TestCreditLimitBorrowing(t *testing.T) {
	f := newFixture(t)
	usd, eth := f.standardPair()
	c := f.engine.Comptroller()

	require.Equal(t, Unauthorized, CodeOf(c.SetCreditLimit(guardian, protocol, cUSD, e18(100))))
	require.NoError(t, c.SetCreditLimit(admin, protocol, cUSD, e18(100)))
	require.Equal(t, e18(100).Dec(), c.CreditLimit(protocol, cUSD).Amount.Dec())

	require.NoError(t, usd.Borrow(protocol, e18(80)))
	err := usd.Borrow(protocol, e18(30))
	require.Equal(t, ReasonInsufficientLiquidity, ReasonOf(err))
	require.True(t, c.CheckMembership(protocol, cUSD))

	// Unentered collateral does not count, but it can still be seized.
	f.supply(eth, protocol, e18(100))
	f.fund(usd, bob, e18(100))

	_, err = usd.LiquidateBorrow(bob, protocol, e18(10), eth)
	require.Equal(t, ReasonInsufficientShortfall, ReasonOf(err))

	require.Equal(t, Unauthorized, CodeOf(c.PauseCreditLimit(alice, protocol, cUSD)))
	require.NoError(t, c.PauseCreditLimit(guardian, protocol, cUSD))
	limit := c.CreditLimit(protocol, cUSD)
	require.True(t, limit.Paused)
	require.Equal(t, uint64(1), limit.Amount.Uint64())
	require.Equal(t, "1 paused=true", limit.String())

	_, err = usd.LiquidateBorrow(bob, protocol, e18(80), eth)
	require.Equal(t, ReasonTooMuchRepay, ReasonOf(err))

	repay := new(uint256.Int).Sub(e18(80), u(1))
	_, err = usd.LiquidateBorrow(bob, protocol, repay, eth)
	require.NoError(t, err)
	owed, err := usd.BorrowBalanceStored(protocol)
	require.NoError(t, err)
	require.Equal(t, uint64(1), owed.Uint64())
}

func TestPauseCreditLimitRequiresExistingLine(t *testing.T) {
	f := newFixture(t)
	f.standardPair()
	err := f.engine.Comptroller().PauseCreditLimit(admin, protocol, cUSD)
	require.Equal(t, ReasonRejection, ReasonOf(err))
}

func TestCreditLimitRevoked(t *testing.T) {
	f := newFixture(t)
	usd, _ := f.standardPair()
	c := f.engine.Comptroller()
	require.NoError(t, c.SetCreditLimit(admin, protocol, cUSD, e18(10)))
	require.NoError(t, c.SetCreditLimit(admin, protocol, cUSD, new(uint256.Int)))
	require.True(t, c.CreditLimit(protocol, cUSD).Amount.IsZero())

	err := usd.Borrow(protocol, e18(1))
	require.Equal(t, ReasonInsufficientLiquidity, ReasonOf(err))
	require.False(t, c.CheckMembership(protocol, cUSD), "rejected borrow must not leave a membership behind")
}
