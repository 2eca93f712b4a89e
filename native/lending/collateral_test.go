package lending

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func cappedMarket(t *testing.T, limit uint64) (*fixture, *Market) {
	f := newFixture(t)
	m := f.list(cCapped, cappedCoin, "cCAP", CollateralCap, flatModel(0))
	require.NoError(t, m.SetCollateralCap(admin, u(limit)))
	return f, m
}

func requireCollateralConsistent(t *testing.T, m *Market, holders ...common.Address) {
	t.Helper()
	sum := new(uint256.Int)
	for _, h := range holders {
		acct := m.account(h)
		require.False(t, acct.CollateralTokens.Gt(&acct.Tokens), "collateral exceeds balance of %s", h.Hex())
		sum.Add(sum, &acct.CollateralTokens)
	}
	ledger := m.ledger()
	require.Equal(t, ledger.TotalCollateralTokens.Dec(), sum.Dec())
	require.False(t, ledger.TotalCollateralTokens.Gt(&ledger.TotalSupply))
	if !m.CollateralCap().IsZero() {
		require.False(t, ledger.TotalCollateralTokens.Gt(m.CollateralCap()))
	}
}

func TestCollateralCapFillsHeadroom(t *testing.T) {
	f, m := cappedMarket(t, 150)

	f.enter(alice, m)
	f.supply(m, alice, u(100))
	require.Equal(t, uint64(100), m.CollateralBalanceOf(alice).Uint64())

	f.enter(bob, m)
	f.supply(m, bob, u(100))
	require.Equal(t, uint64(100), m.BalanceOf(bob).Uint64())
	require.Equal(t, uint64(50), m.CollateralBalanceOf(bob).Uint64(), "enrolment stops at the cap without failing")
	requireCollateralConsistent(t, m, alice, bob)

	snap, err := m.AccountSnapshot(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(50), snap.Tokens.Uint64())
	require.Equal(t, uint64(100), snap.Balance.Uint64())
}

func TestCollateralRedeemConsumesCollateralFirst(t *testing.T) {
	f, m := cappedMarket(t, 150)
	f.enter(alice, m)
	f.supply(m, alice, u(100))
	f.enter(bob, m)
	f.supply(m, bob, u(100))

	_, err := m.Redeem(bob, Exact(u(30)))
	require.NoError(t, err)
	require.Equal(t, uint64(70), m.BalanceOf(bob).Uint64())
	require.Equal(t, uint64(20), m.CollateralBalanceOf(bob).Uint64())

	_, err = m.Redeem(bob, Exact(u(40)))
	require.NoError(t, err)
	require.Equal(t, uint64(30), m.BalanceOf(bob).Uint64())
	require.True(t, m.CollateralBalanceOf(bob).IsZero())
	requireCollateralConsistent(t, m, alice, bob)

	// The freed headroom goes to the next enrolment.
	f.supply(m, alice, u(50))
	require.Equal(t, uint64(150), m.CollateralBalanceOf(alice).Uint64())
	requireCollateralConsistent(t, m, alice, bob)
}

func TestCollateralTransferConsumesCollateralFirst(t *testing.T) {
	f, m := cappedMarket(t, 50)
	f.enter(alice, m)
	f.supply(m, alice, u(100))
	require.Equal(t, uint64(50), m.CollateralBalanceOf(alice).Uint64())

	require.NoError(t, m.Transfer(alice, carol, u(30)))
	require.Equal(t, uint64(70), m.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(20), m.CollateralBalanceOf(alice).Uint64())
	require.True(t, m.CollateralBalanceOf(carol).IsZero())
	requireCollateralConsistent(t, m, alice, carol)
}

func TestCollateralFollowsMembership(t *testing.T) {
	f, m := cappedMarket(t, 150)
	c := f.engine.Comptroller()
	f.enter(alice, m)
	f.supply(m, alice, u(130))

	f.supply(m, carol, u(50))
	require.True(t, m.CollateralBalanceOf(carol).IsZero())

	f.enter(carol, m)
	require.Equal(t, uint64(20), m.CollateralBalanceOf(carol).Uint64())
	requireCollateralConsistent(t, m, alice, carol)

	require.NoError(t, c.SetCollateralFactor(admin, cCapped, exp(t, "0.5")))
	liq, err := c.GetAccountLiquidity(carol)
	require.NoError(t, err)
	require.Equal(t, uint64(10), liq.Liquidity.Uint64(), "only enrolled tokens back borrowing")

	require.NoError(t, c.ExitMarket(carol, cCapped))
	require.True(t, m.CollateralBalanceOf(carol).IsZero())
	require.Equal(t, uint64(50), m.BalanceOf(carol).Uint64())
	requireCollateralConsistent(t, m, alice, carol)
}

func TestCollateralTransferBetweenMembers(t *testing.T) {
	f, m := cappedMarket(t, 0)
	f.enter(alice, m)
	f.supply(m, alice, u(100))
	f.enter(bob, m)

	require.NoError(t, m.Transfer(alice, bob, u(40)))
	require.Equal(t, uint64(60), m.CollateralBalanceOf(alice).Uint64())
	require.Equal(t, uint64(40), m.CollateralBalanceOf(bob).Uint64())

	require.NoError(t, m.Transfer(bob, carol, u(40)))
	require.True(t, m.CollateralBalanceOf(carol).IsZero())
	require.Equal(t, uint64(40), m.BalanceOf(carol).Uint64())
	requireCollateralConsistent(t, m, alice, bob, carol)
}

func TestCollateralRedeemNeedsLiquidity(t *testing.T) {
	f, m := cappedMarket(t, 100)
	usd := f.list(cUSD, usdToken, "cUSD", Standard, flatModel(0))
	f.supply(usd, bob, u(1_000))
	f.setCollateralFactor(m, "0.5")

	f.enter(alice, m)
	f.supply(m, alice, u(150))
	require.Equal(t, uint64(100), m.CollateralBalanceOf(alice).Uint64())
	require.NoError(t, usd.Borrow(alice, u(40)))

	// Redeems draw on the enrolled collateral before the buffer.
	_, err := m.Redeem(alice, Exact(u(20)))
	require.NoError(t, err)
	require.Equal(t, uint64(80), m.CollateralBalanceOf(alice).Uint64())
	require.Equal(t, uint64(130), m.BalanceOf(alice).Uint64())

	_, err = m.Redeem(alice, Exact(u(2)))
	require.Equal(t, ReasonInsufficientLiquidity, ReasonOf(err))
	err = m.Transfer(alice, bob, u(2))
	require.Equal(t, ReasonInsufficientLiquidity, ReasonOf(err))
	requireCollateralConsistent(t, m, alice, bob)
}

// pledgedBorrower gives alice 150 capped tokens, 100 of them enrolled at a
// 50% collateral factor, and a 50 USD loan against them.
func pledgedBorrower(t *testing.T) (*fixture, *Market, *Market) {
	f, m := cappedMarket(t, 100)
	usd := f.list(cUSD, usdToken, "cUSD", Standard, flatModel(0))
	f.supply(usd, bob, u(1_000))
	f.setCollateralFactor(m, "0.5")
	f.enter(alice, m)
	f.supply(m, alice, u(150))
	require.NoError(t, usd.Borrow(alice, u(50)))
	f.fund(usd, carol, u(100))
	return f, m, usd
}

func TestLiquidationSeizesEnrolledCollateral(t *testing.T) {
	f, m, usd := pledgedBorrower(t)
	f.oracle.SetUnderlyingPrice(cCapped, exp(t, "0.5").Raw())

	seized, err := usd.LiquidateBorrow(carol, alice, u(20), m)
	require.NoError(t, err)
	// 20 * 1.08 / 0.5, truncated.
	require.Equal(t, uint64(43), seized.Uint64())
	require.Equal(t, uint64(107), m.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(57), m.CollateralBalanceOf(alice).Uint64())
	require.Equal(t, uint64(43), m.BalanceOf(carol).Uint64())
	require.True(t, m.CollateralBalanceOf(carol).IsZero())
	requireCollateralConsistent(t, m, alice, carol)
}

func TestLiquidationCannotSeizeUnenrolledBuffer(t *testing.T) {
	f, m, usd := pledgedBorrower(t)
	f.oracle.SetUnderlyingPrice(cCapped, exp(t, "0.2").Raw())

	before := f.capture(m, alice, carol)
	// 25 * 1.08 / 0.2 = 135 exceeds the 100 enrolled tokens.
	_, err := usd.LiquidateBorrow(carol, alice, u(25), m)
	require.Equal(t, TokenInsufficientBalance, CodeOf(err))
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, InfoLiquidateSeizeTooMuch, lerr.Info)
	require.Equal(t, before, f.capture(m, alice, carol))
	requireCollateralConsistent(t, m, alice, carol)
}

func TestCollateralCapOnlyForCappedVariants(t *testing.T) {
	f, m := cappedMarket(t, 10)
	require.Equal(t, Unauthorized, CodeOf(m.SetCollateralCap(alice, u(1))))
	require.NoError(t, m.SetCollateralCap(admin, u(0)))
	require.True(t, m.CollateralCap().IsZero())

	native := f.list(cNative, common.Address{}, "cNative", WrappedNative, flatModel(0))
	f.enter(alice, native)
	f.supply(native, alice, u(10))
	require.Equal(t, uint64(10), native.CollateralBalanceOf(alice).Uint64())
}
