package irm

import (
	"github.com/holiman/uint256"

	"moneymarket/native/lending/fixedpoint"
)

// JumpRateModel is a two-segment curve: a linear slope up to Kink and a steeper
// jump slope beyond it.
type JumpRateModel struct {
	BaseRatePerBlock       *uint256.Int
	MultiplierPerBlock     *uint256.Int
	JumpMultiplierPerBlock *uint256.Int
	Kink                   *uint256.Int
}

// NewJumpRateModel builds a model from annualised parameters.
func NewJumpRateModel(baseRatePerYear, multiplierPerYear, jumpMultiplierPerYear, kink *uint256.Int) *JumpRateModel {
	return &JumpRateModel{
		BaseRatePerBlock:       perBlock(baseRatePerYear),
		MultiplierPerBlock:     perBlock(multiplierPerYear),
		JumpMultiplierPerBlock: perBlock(jumpMultiplierPerYear),
		Kink:                   clone(kink),
	}
}

// BorrowRate implements Model.
func (m *JumpRateModel) BorrowRate(cash, borrows, reserves *uint256.Int) (*uint256.Int, error) {
	util, err := Utilization(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	base, mult, jump, kink := clone(m.BaseRatePerBlock), clone(m.MultiplierPerBlock), clone(m.JumpMultiplierPerBlock), clone(m.Kink)
	if kink.IsZero() || !util.Gt(kink) {
		return linear(base, mult, util)
	}
	normal, err := linear(base, mult, kink)
	if err != nil {
		return nil, err
	}
	excess, err := fixedpoint.SubUint(util, kink)
	if err != nil {
		return nil, err
	}
	return linear(normal, jump, excess)
}

// SupplyRate implements Model.
func (m *JumpRateModel) SupplyRate(cash, borrows, reserves, reserveFactor *uint256.Int) (*uint256.Int, error) {
	util, err := Utilization(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	borrowRate, err := m.BorrowRate(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	return supplyRate(util, borrowRate, reserveFactor)
}
