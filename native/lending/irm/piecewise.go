package irm

import (
	"errors"

	"github.com/holiman/uint256"

	"moneymarket/native/lending/fixedpoint"
)

var errSegmentOrder = errors.New("irm: segment kinks must be strictly increasing")

// Segment applies Slope to utilisation above Start until the next segment
// begins.
type Segment struct {
	Start *uint256.Int
	Slope *uint256.Int
}

// PiecewiseRateModel is a general multi-kink curve. The first segment should
// start at zero; every later segment starts at a kink. Utilisation is capped
// at Roof when Roof is non-zero.
type PiecewiseRateModel struct {
	BaseRatePerBlock *uint256.Int
	Segments         []Segment
	Roof             *uint256.Int
}

// NewPiecewiseRateModel validates the segment ordering and converts annual
// slopes to per-block values.
func NewPiecewiseRateModel(baseRatePerYear *uint256.Int, annual []Segment, roof *uint256.Int) (*PiecewiseRateModel, error) {
	segments := make([]Segment, 0, len(annual))
	for i, seg := range annual {
		start := clone(seg.Start)
		if i > 0 && !start.Gt(segments[i-1].Start) {
			return nil, errSegmentOrder
		}
		segments = append(segments, Segment{Start: start, Slope: perBlock(seg.Slope)})
	}
	if roof != nil && !roof.IsZero() && roof.Lt(fixedpoint.ExpScale()) {
		return nil, errRoofTooLow
	}
	return &PiecewiseRateModel{
		BaseRatePerBlock: perBlock(baseRatePerYear),
		Segments:         segments,
		Roof:             clone(roof),
	}, nil
}

func (m *PiecewiseRateModel) utilization(cash, borrows, reserves *uint256.Int) (*uint256.Int, error) {
	util, err := Utilization(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	if roof := clone(m.Roof); !roof.IsZero() && util.Gt(roof) {
		return roof, nil
	}
	return util, nil
}

func (m *PiecewiseRateModel) rateAt(util *uint256.Int) (*uint256.Int, error) {
	rate := clone(m.BaseRatePerBlock)
	for i, seg := range m.Segments {
		start := clone(seg.Start)
		if !util.Gt(start) {
			break
		}
		end := util
		if i+1 < len(m.Segments) {
			if next := m.Segments[i+1].Start; util.Gt(next) {
				end = next
			}
		}
		width, err := fixedpoint.SubUint(end, start)
		if err != nil {
			return nil, err
		}
		rate, err = linear(rate, clone(seg.Slope), width)
		if err != nil {
			return nil, err
		}
	}
	return rate, nil
}

// BorrowRate implements Model.
func (m *PiecewiseRateModel) BorrowRate(cash, borrows, reserves *uint256.Int) (*uint256.Int, error) {
	util, err := m.utilization(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	return m.rateAt(util)
}

// SupplyRate implements Model.
func (m *PiecewiseRateModel) SupplyRate(cash, borrows, reserves, reserveFactor *uint256.Int) (*uint256.Int, error) {
	util, err := m.utilization(cash, borrows, reserves)
	if err != nil {
		return nil, err
	}
	borrowRate, err := m.rateAt(util)
	if err != nil {
		return nil, err
	}
	return supplyRate(util, borrowRate, reserveFactor)
}
