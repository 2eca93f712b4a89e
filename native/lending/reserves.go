package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
)

// AddReserves pulls amount of underlying from benefactor straight into
// reserves.
func (m *Market) AddReserves(benefactor common.Address, amount *uint256.Int) error {
	return m.engine.execute("add_reserves", func() error {
		if amount == nil {
			return fail(BadInput, InfoAddReservesTransferInFailed)
		}
		if err := m.accrueInterest(); err != nil {
			return err
		}
		ledger := m.ledger()
		if !m.isFresh(&ledger) {
			return fail(MarketNotFresh, InfoAddReservesFreshCheck)
		}
		if err := m.adapter.TransferIn(benefactor, amount); err != nil {
			return transferInError(InfoAddReservesTransferInFailed, err)
		}
		reservesNew, err := fixedpoint.AddUint(&ledger.TotalReserves, amount)
		if err != nil {
			return failMath(InfoAddReservesTransferInFailed, err)
		}
		cashNew, err := fixedpoint.AddUint(&ledger.Cash, amount)
		if err != nil {
			return failMath(InfoAddReservesTransferInFailed, err)
		}
		ledger.TotalReserves.Set(reservesNew)
		ledger.Cash.Set(cashNew)
		m.setLedger(ledger)
		m.engine.emit(events.ReservesAdded{Market: m.address, Benefactor: benefactor, AddAmount: amount, NewTotalReserves: reservesNew})
		return nil
	})
}

// ReduceReserves sends amount of reserves to the market admin.
func (m *Market) ReduceReserves(caller common.Address, amount *uint256.Int) error {
	return m.engine.execute("reduce_reserves", func() error {
		if amount == nil {
			return fail(BadInput, InfoReduceReservesValidation)
		}
		if err := m.accrueInterest(); err != nil {
			return err
		}
		if caller != m.admin {
			return fail(Unauthorized, InfoReduceReservesAdminCheck)
		}
		ledger := m.ledger()
		if !m.isFresh(&ledger) {
			return fail(MarketNotFresh, InfoReduceReservesFreshCheck)
		}
		if ledger.Cash.Lt(amount) {
			return fail(TokenInsufficientCash, InfoReduceReservesCashNotAvailable)
		}
		if ledger.TotalReserves.Lt(amount) {
			return fail(BadInput, InfoReduceReservesValidation)
		}
		ledger.TotalReserves.Sub(&ledger.TotalReserves, amount)
		ledger.Cash.Sub(&ledger.Cash, amount)
		m.setLedger(ledger)
		if err := m.adapter.TransferOut(m.admin, amount); err != nil {
			return transferOutError(InfoReduceReservesTransferOutFailed, err)
		}
		m.engine.emit(events.ReservesReduced{
			Market:           m.address,
			Admin:            m.admin,
			ReduceAmount:     amount,
			NewTotalReserves: new(uint256.Int).Set(&ledger.TotalReserves),
		})
		return nil
	})
}

// Gulp folds underlying sent to the pool outside the protocol into reserves
// and resynchronises cash with the raw balance.
func (m *Market) Gulp() error {
	return m.engine.execute("gulp", func() error {
		ledger := m.ledger()
		onChain := m.adapter.BalanceOf(m.address)
		excess := fixedpoint.SaturatingSub(onChain, &ledger.Cash)
		if excess.IsZero() {
			return nil
		}
		reservesNew, err := fixedpoint.AddUint(&ledger.TotalReserves, excess)
		if err != nil {
			return failMath(InfoGulpCalculationFailed, err)
		}
		ledger.TotalReserves.Set(reservesNew)
		ledger.Cash.Set(onChain)
		m.setLedger(ledger)
		m.engine.emit(events.ReservesAdded{Market: m.address, Benefactor: m.address, AddAmount: excess, NewTotalReserves: reservesNew})
		return nil
	})
}
