// Package irm holds the interest rate curves consulted by lending markets.
// Rates are per-block 18-decimal mantissas.
package irm

import (
	"errors"

	"github.com/holiman/uint256"

	"moneymarket/native/lending/fixedpoint"
)

// BlocksPerYear converts annual parameters to per-block rates.
const BlocksPerYear = 2_102_400

var (
	errRoofTooLow   = errors.New("irm: roof must be at least 1e18")
	errKinkOrdering = errors.New("irm: kink1 must not exceed kink2")
)

// Model maps pool balances to borrow and supply rates per block.
type Model interface {
	BorrowRate(cash, borrows, reserves *uint256.Int) (*uint256.Int, error)
	SupplyRate(cash, borrows, reserves, reserveFactor *uint256.Int) (*uint256.Int, error)
}

// Utilization returns borrows / (cash + borrows - reserves) as a mantissa. It is
// zero when there are no borrows or the denominator collapses to zero.
func Utilization(cash, borrows, reserves *uint256.Int) (*uint256.Int, error) {
	if borrows.IsZero() {
		return new(uint256.Int), nil
	}
	total, err := fixedpoint.AddUint(cash, borrows)
	if err != nil {
		return nil, err
	}
	total, err = fixedpoint.SubUint(total, reserves)
	if err != nil {
		return nil, err
	}
	if total.IsZero() {
		return new(uint256.Int), nil
	}
	util, err := fixedpoint.Fraction(borrows, total)
	if err != nil {
		return nil, err
	}
	return util.Raw(), nil
}

// supplyRate applies the shared supply curve: util * borrowRate * (1 - reserveFactor).
func supplyRate(util, borrowRate, reserveFactor *uint256.Int) (*uint256.Int, error) {
	oneMinus, err := fixedpoint.SubUint(fixedpoint.ExpScale(), reserveFactor)
	if err != nil {
		return nil, err
	}
	rateToPool, err := fixedpoint.Mul(fixedpoint.NewExp(borrowRate), fixedpoint.NewExp(oneMinus))
	if err != nil {
		return nil, err
	}
	rate, err := fixedpoint.Mul(fixedpoint.NewExp(util), rateToPool)
	if err != nil {
		return nil, err
	}
	return rate.Raw(), nil
}

// linear returns base + util*slope.
func linear(base, slope, util *uint256.Int) (*uint256.Int, error) {
	scaled, err := fixedpoint.Mul(fixedpoint.NewExp(util), fixedpoint.NewExp(slope))
	if err != nil {
		return nil, err
	}
	return fixedpoint.AddUint(scaled.Raw(), base)
}

func perBlock(annual *uint256.Int) *uint256.Int {
	if annual == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Div(annual, uint256.NewInt(BlocksPerYear))
}

func clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
