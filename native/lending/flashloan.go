package lending

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
)

var errFlashloanReceiver = errors.New("lending engine: flashloan receiver not configured")

// FlashloanReceiver is called with the borrowed funds already credited to
// Address. It must return amount + fee of the underlying to the market's
// address before returning.
type FlashloanReceiver interface {
	Address() common.Address
	OnFlashloan(initiator, asset common.Address, amount, fee *uint256.Int, data []byte) error
}

var bpsDenominator = uint256.NewInt(10_000)

// Flashloan lends amount to receiver for the duration of its callback and
// charges FlashloanFeeBps. The engine-wide guard stays held while the
// callback runs, so any nested protocol call fails and aborts the loan.
func (m *Market) Flashloan(initiator common.Address, receiver FlashloanReceiver, amount *uint256.Int, data []byte) error {
	return m.engine.execute("flashloan", func() error {
		if receiver == nil {
			return failWrap(BadInput, InfoFlashloanReceiverFailed, errFlashloanReceiver)
		}
		if amount == nil || amount.IsZero() {
			return fail(BadInput, InfoFlashloanCashNotAvailable)
		}
		if err := m.accrueInterest(); err != nil {
			return err
		}
		if err := m.engine.comptroller.flashloanAllowed(m, receiver.Address(), amount); err != nil {
			return withInfo(err, InfoFlashloanComptrollerRejection)
		}

		ledger := m.ledger()
		if ledger.Cash.Lt(amount) {
			return fail(TokenInsufficientCash, InfoFlashloanCashNotAvailable)
		}
		product, err := fixedpoint.MulUint(amount, uint256.NewInt(m.flashloanFeeBps))
		if err != nil {
			return failMath(InfoFlashloanFeeCalculationFailed, err)
		}
		totalFee := new(uint256.Int).Div(product, bpsDenominator)
		reservesFee, err := fixedpoint.MulScalarTruncate(m.reserveFactor, totalFee)
		if err != nil {
			return failMath(InfoFlashloanFeeCalculationFailed, err)
		}

		balanceBefore := m.adapter.BalanceOf(m.address)
		ledger.Cash.Sub(&ledger.Cash, amount)
		m.setLedger(ledger)

		if err := m.adapter.TransferOut(receiver.Address(), amount); err != nil {
			return transferOutError(InfoFlashloanTransferOutFailed, err)
		}
		if err := receiver.OnFlashloan(initiator, m.underlying, new(uint256.Int).Set(amount), new(uint256.Int).Set(totalFee), data); err != nil {
			if IsReentered(err) {
				return reentered()
			}
			return failWrap(BadInput, InfoFlashloanReceiverFailed, err)
		}

		required, err := fixedpoint.AddUint(balanceBefore, totalFee)
		if err != nil {
			return failMath(InfoFlashloanFeeCalculationFailed, err)
		}
		if m.adapter.BalanceOf(m.address).Lt(required) {
			return fail(TokenTransferInFailed, InfoFlashloanInconsistentBalance)
		}

		ledger = m.ledger()
		cashNew, err := fixedpoint.AddUint(&ledger.Cash, amount)
		if err == nil {
			cashNew, err = fixedpoint.AddUint(cashNew, totalFee)
		}
		if err != nil {
			return failMath(InfoFlashloanFeeCalculationFailed, err)
		}
		reservesNew, err := fixedpoint.AddUint(&ledger.TotalReserves, reservesFee)
		if err != nil {
			return failMath(InfoFlashloanFeeCalculationFailed, err)
		}
		ledger.Cash.Set(cashNew)
		ledger.TotalReserves.Set(reservesNew)
		m.setLedger(ledger)

		m.engine.emit(events.Flashloan{
			Market:      m.address,
			Receiver:    receiver.Address(),
			Amount:      amount,
			TotalFee:    totalFee,
			ReservesFee: reservesFee,
		})
		return nil
	})
}
