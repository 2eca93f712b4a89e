package irm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"moneymarket/native/lending/fixedpoint"
)

func e18(v string) *uint256.Int {
	exp, err := fixedpoint.ParseExp(v)
	if err != nil {
		panic(err)
	}
	return exp.Raw()
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestUtilization(t *testing.T) {
	util, err := Utilization(u(900), u(100), u(0))
	require.NoError(t, err)
	require.Equal(t, e18("0.1"), util)

	util, err = Utilization(u(900), u(0), u(0))
	require.NoError(t, err)
	require.True(t, util.IsZero())

	util, err = Utilization(u(0), u(100), u(100))
	require.NoError(t, err)
	require.True(t, util.IsZero(), "collapsed denominator yields zero")

	_, err = Utilization(u(0), u(100), u(200))
	require.ErrorIs(t, err, fixedpoint.ErrSubUnderflow)
}

func TestJumpRateModelSegments(t *testing.T) {
	m := &JumpRateModel{
		BaseRatePerBlock:       u(100),
		MultiplierPerBlock:     u(1000),
		JumpMultiplierPerBlock: u(10_000),
		Kink:                   e18("0.8"),
	}

	rate, err := m.BorrowRate(u(0), u(0), u(0))
	require.NoError(t, err)
	require.Equal(t, uint64(100), rate.Uint64(), "empty pool returns the base rate")

	rate, err = m.BorrowRate(u(50), u(50), u(0))
	require.NoError(t, err)
	require.Equal(t, uint64(600), rate.Uint64())

	// util 0.9: 100 + 0.8*1000 + 0.1*10000
	rate, err = m.BorrowRate(u(10), u(90), u(0))
	require.NoError(t, err)
	require.Equal(t, uint64(1900), rate.Uint64())
}

func TestJumpRateModelAnnualConversion(t *testing.T) {
	m := NewJumpRateModel(u(BlocksPerYear*5), u(BlocksPerYear*10), u(0), e18("1"))
	require.Equal(t, uint64(5), m.BaseRatePerBlock.Uint64())
	require.Equal(t, uint64(10), m.MultiplierPerBlock.Uint64())
}

func TestSupplyRate(t *testing.T) {
	m := &JumpRateModel{
		BaseRatePerBlock:       e18("0.0001"),
		MultiplierPerBlock:     u(0),
		JumpMultiplierPerBlock: u(0),
		Kink:                   u(0),
	}
	// util 0.5, rate 0.0001, reserve factor 0.2 -> 0.00004
	rate, err := m.SupplyRate(u(50), u(50), u(0), e18("0.2"))
	require.NoError(t, err)
	require.Equal(t, e18("0.00004"), rate)

	rate, err = m.SupplyRate(u(50), u(0), u(0), e18("0.2"))
	require.NoError(t, err)
	require.True(t, rate.IsZero())

	_, err = m.SupplyRate(u(50), u(50), u(0), e18("1.5"))
	require.ErrorIs(t, err, fixedpoint.ErrSubUnderflow)
}

func TestTripleSlopeFlatBetweenKinksAndRoofCap(t *testing.T) {
	m, err := NewTripleSlopeRateModel(u(0), u(BlocksPerYear*1000), u(BlocksPerYear*10_000), e18("0.5"), e18("0.8"), e18("1"))
	require.NoError(t, err)

	below, err := m.BorrowRate(u(75), u(25), u(0))
	require.NoError(t, err)
	require.Equal(t, uint64(250), below.Uint64())

	flat, err := m.BorrowRate(u(30), u(70), u(0))
	require.NoError(t, err)
	require.Equal(t, uint64(500), flat.Uint64())

	above, err := m.BorrowRate(u(10), u(90), u(0))
	require.NoError(t, err)
	require.Equal(t, uint64(1500), above.Uint64())

	// Reserves above cash push utilisation past 100%; the roof caps it.
	capped, err := m.BorrowRate(u(10), u(100), u(20))
	require.NoError(t, err)
	require.Equal(t, uint64(2500), capped.Uint64())
}

func TestTripleSlopeValidation(t *testing.T) {
	_, err := NewTripleSlopeRateModel(u(0), u(0), u(0), e18("0.5"), e18("0.8"), e18("0.9"))
	require.ErrorIs(t, err, errRoofTooLow)
	_, err = NewTripleSlopeRateModel(u(0), u(0), u(0), e18("0.9"), e18("0.8"), e18("1"))
	require.ErrorIs(t, err, errKinkOrdering)
}

func TestPiecewiseMatchesJumpRate(t *testing.T) {
	jump := NewJumpRateModel(u(BlocksPerYear*100), u(BlocksPerYear*1000), u(BlocksPerYear*10_000), e18("0.8"))
	piecewise, err := NewPiecewiseRateModel(u(BlocksPerYear*100), []Segment{
		{Start: u(0), Slope: u(BlocksPerYear * 1000)},
		{Start: e18("0.8"), Slope: u(BlocksPerYear * 10_000)},
	}, nil)
	require.NoError(t, err)

	for _, borrows := range []uint64{0, 10, 50, 80, 85, 99} {
		cash := u(100 - borrows)
		want, err := jump.BorrowRate(cash, u(borrows), u(0))
		require.NoError(t, err)
		got, err := piecewise.BorrowRate(cash, u(borrows), u(0))
		require.NoError(t, err)
		require.Equal(t, want, got, "borrows=%d", borrows)
	}

	_, err = NewPiecewiseRateModel(u(0), []Segment{{Start: e18("0.5")}, {Start: e18("0.5")}}, nil)
	require.ErrorIs(t, err, errSegmentOrder)
}
