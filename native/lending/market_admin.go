package lending

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
	"moneymarket/native/lending/irm"
)

// SetReserveFactor accrues interest and updates the reserve factor, which
// must not exceed 1e18.
func (m *Market) SetReserveFactor(caller common.Address, factor fixedpoint.Exp) error {
	return m.engine.execute("set_reserve_factor", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		if caller != m.admin {
			return fail(Unauthorized, InfoSetReserveFactorAdminCheck)
		}
		ledger := m.ledger()
		if !m.isFresh(&ledger) {
			return fail(MarketNotFresh, InfoSetReserveFactorFreshCheck)
		}
		if factor.Cmp(fixedpoint.One()) > 0 {
			return fail(BadInput, InfoSetReserveFactorBoundsCheck)
		}
		old := m.reserveFactor
		m.reserveFactor = factor
		m.engine.emit(events.ParameterUpdated{Market: m.address, Parameter: "reserve_factor", Old: old.String(), New: factor.String()})
		return nil
	})
}

// SetInterestRateModel accrues interest under the old model and switches to
// model.
func (m *Market) SetInterestRateModel(caller common.Address, model irm.Model) error {
	return m.engine.execute("set_interest_rate_model", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		if caller != m.admin {
			return fail(Unauthorized, InfoSetInterestRateModelOwnerCheck)
		}
		ledger := m.ledger()
		if !m.isFresh(&ledger) {
			return fail(MarketNotFresh, InfoSetInterestRateModelFreshCheck)
		}
		if model == nil {
			return failWrap(BadInput, InfoSetInterestRateModelOwnerCheck, errNilModel)
		}
		m.model = model
		m.engine.emit(events.ParameterUpdated{Market: m.address, Parameter: "interest_rate_model", New: modelName(model)})
		return nil
	})
}

// SetCollateralCap changes the cap on enrolled collateral. Lowering it below
// the current total does not unenrol anything; it only blocks new enrolment.
func (m *Market) SetCollateralCap(caller common.Address, limit *uint256.Int) error {
	return m.engine.execute("set_collateral_cap", func() error {
		if caller != m.admin {
			return fail(Unauthorized, InfoSetCollateralCapOwnerCheck)
		}
		if !m.version.tracksCollateral() || limit == nil {
			return fail(BadInput, InfoSetCollateralCapOwnerCheck)
		}
		old := m.CollateralCap()
		m.collateralCap = new(uint256.Int).Set(limit)
		m.engine.emit(events.ParameterUpdated{Market: m.address, Parameter: "collateral_cap", Old: old.Dec(), New: limit.Dec()})
		return nil
	})
}

// SetFlashloanFee sets the flashloan fee in basis points.
func (m *Market) SetFlashloanFee(caller common.Address, bps uint64) error {
	return m.engine.execute("set_flashloan_fee", func() error {
		if caller != m.admin {
			return fail(Unauthorized, InfoSetFlashloanFeeOwnerCheck)
		}
		if bps > MaxFlashloanFeeBps {
			return fail(BadInput, InfoSetFlashloanFeeBoundsCheck)
		}
		old := m.flashloanFeeBps
		m.flashloanFeeBps = bps
		m.engine.emit(events.ParameterUpdated{
			Market:    m.address,
			Parameter: "flashloan_fee_bps",
			Old:       strconv.FormatUint(old, 10),
			New:       strconv.FormatUint(bps, 10),
		})
		return nil
	})
}

// SetRateExclusions replaces the accounts whose borrow principal is left out
// of the borrows fed to the interest rate model. Interest accrued so far is
// settled under the previous set.
func (m *Market) SetRateExclusions(caller common.Address, accounts []common.Address) error {
	return m.engine.execute("set_rate_exclusions", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		if caller != m.admin {
			return fail(Unauthorized, InfoSetRateExclusionsOwnerCheck)
		}
		next := make(map[common.Address]struct{}, len(accounts))
		names := make([]string, 0, len(accounts))
		for _, addr := range accounts {
			if _, dup := next[addr]; dup {
				continue
			}
			next[addr] = struct{}{}
			names = append(names, strings.ToLower(addr.Hex()))
		}
		m.rateExclusions = next
		m.engine.emit(events.ParameterUpdated{Market: m.address, Parameter: "rate_exclusions", New: strings.Join(names, ",")})
		return nil
	})
}

// RateExclusions lists the accounts excluded from the rate borrows figure.
func (m *Market) RateExclusions() []common.Address {
	out := make([]common.Address, 0, len(m.rateExclusions))
	for addr := range m.rateExclusions {
		out = append(out, addr)
	}
	return out
}

func modelName(model irm.Model) string {
	switch model.(type) {
	case *irm.JumpRateModel:
		return "jump_rate"
	case *irm.TripleSlopeRateModel:
		return "triple_slope"
	case *irm.PiecewiseRateModel:
		return "piecewise"
	default:
		return "custom"
	}
}
