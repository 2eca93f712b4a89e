package irm

import (
	"github.com/holiman/uint256"

	"moneymarket/native/lending/fixedpoint"
)

// TripleSlopeRateModel rises linearly up to Kink1, stays flat until Kink2 and
// then follows the jump slope. Utilisation is capped at Roof, so the rate
// stops growing once borrows exceed the roof share of the pool.
type TripleSlopeRateModel struct {
	BaseRatePerBlock       *uint256.Int
	MultiplierPerBlock     *uint256.Int
	JumpMultiplierPerBlock *uint256.Int
	Kink1                  *uint256.Int
	Kink2                  *uint256.Int
	Roof                   *uint256.Int
}

// NewTripleSlopeRateModel builds a model from annualised parameters.
func NewTripleSlopeRateModel(baseRatePerYear, multiplierPerYear, jumpMultiplierPerYear, kink1, kink2, roof *uint256.Int) (*TripleSlopeRateModel, error) {
	if roof == nil || roof.Lt(fixedpoint.ExpScale()) {
		return nil, errRoofTooLow
	}
	if kink1 != nil && kink2 != nil && kink1.Gt(kink2) {
		return nil, errKinkOrdering
	}
	return &TripleSlopeRateModel{
		BaseRatePerBlock:       perBlock(baseRatePerYear),
		MultiplierPerBlock:     perBlock(multiplierPerYear),
		JumpMultiplierPerBlock: perBlock(jumpMultiplierPerYear),
		Kink1:                  clone(kink1),
		Kink2:                  clone(kink2),
		Roof:                   clone(roof),
	}, nil
}

// Utilization returns the roof-capped utilisation.
func (m *TripleSlopeRateModel) Utilization(cash, borrows, reserves *uint256.Int) (*uint256.Int, error) {
	util, err := Utilization(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	if roof := clone(m.Roof); !roof.IsZero() && util.Gt(roof) {
		return roof, nil
	}
	return util, nil
}

// BorrowRate implements Model.
func (m *TripleSlopeRateModel) BorrowRate(cash, borrows, reserves *uint256.Int) (*uint256.Int, error) {
	util, err := m.Utilization(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	return m.rateAt(util)
}

func (m *TripleSlopeRateModel) rateAt(util *uint256.Int) (*uint256.Int, error) {
	base, mult, jump := clone(m.BaseRatePerBlock), clone(m.MultiplierPerBlock), clone(m.JumpMultiplierPerBlock)
	kink1, kink2 := clone(m.Kink1), clone(m.Kink2)
	if !util.Gt(kink1) {
		return linear(base, mult, util)
	}
	normal, err := linear(base, mult, kink1)
	if err != nil {
		return nil, err
	}
	if !util.Gt(kink2) {
		return normal, nil
	}
	excess, err := fixedpoint.SubUint(util, kink2)
	if err != nil {
		return nil, err
	}
	return linear(normal, jump, excess)
}

// SupplyRate implements Model.
func (m *TripleSlopeRateModel) SupplyRate(cash, borrows, reserves, reserveFactor *uint256.Int) (*uint256.Int, error) {
	util, err := m.Utilization(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	borrowRate, err := m.rateAt(util)
	if err != nil {
		return nil, err
	}
	return supplyRate(util, borrowRate, reserveFactor)
}
