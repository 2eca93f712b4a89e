package lending

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
)

// Borrow lends amount of underlying to borrower.
func (m *Market) Borrow(borrower common.Address, amount *uint256.Int) error {
	return m.engine.execute("borrow", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		return m.borrowFresh(borrower, amount)
	})
}

func (m *Market) borrowFresh(borrower common.Address, amount *uint256.Int) error {
	if amount == nil {
		return fail(BadInput, InfoBorrowNewAccountBalanceFailed)
	}
	if err := m.engine.comptroller.borrowAllowed(m, borrower, amount); err != nil {
		return withInfo(err, InfoBorrowComptrollerRejection)
	}
	ledger := m.ledger()
	if !m.isFresh(&ledger) {
		return fail(MarketNotFresh, InfoBorrowFreshnessCheck)
	}
	if ledger.Cash.Lt(amount) {
		return fail(TokenInsufficientCash, InfoBorrowCashNotAvailable)
	}

	acct := m.account(borrower)
	accountBorrows, err := m.borrowBalanceStored(&ledger, &acct)
	if err != nil {
		return failMath(InfoBorrowNewAccountBalanceFailed, err)
	}
	accountBorrowsNew, err := fixedpoint.AddUint(accountBorrows, amount)
	if err != nil {
		return failMath(InfoBorrowNewAccountBalanceFailed, err)
	}
	totalBorrowsNew, err := fixedpoint.AddUint(&ledger.TotalBorrows, amount)
	if err != nil {
		return failMath(InfoBorrowNewTotalBalanceFailed, err)
	}

	acct.BorrowPrincipal.Set(accountBorrowsNew)
	acct.BorrowIndex.Set(&ledger.BorrowIndex)
	ledger.TotalBorrows.Set(totalBorrowsNew)
	ledger.Cash.Sub(&ledger.Cash, amount)
	m.setAccount(borrower, acct)
	m.setLedger(ledger)

	if err := m.adapter.TransferOut(borrower, amount); err != nil {
		return transferOutError(InfoBorrowTransferOutFailed, err)
	}

	m.engine.emit(events.Borrow{
		Market:         m.address,
		Borrower:       borrower,
		BorrowAmount:   amount,
		AccountBorrows: accountBorrowsNew,
		TotalBorrows:   totalBorrowsNew,
	})
	return nil
}

// RepayBorrow repays the caller's own debt. Max repays the full outstanding
// balance. It returns the amount actually repaid.
func (m *Market) RepayBorrow(payer common.Address, amount Amount) (*uint256.Int, error) {
	return m.RepayBorrowBehalf(payer, payer, amount)
}

// RepayBorrowBehalf repays borrower's debt with payer's underlying.
func (m *Market) RepayBorrowBehalf(payer, borrower common.Address, amount Amount) (*uint256.Int, error) {
	var repaid *uint256.Int
	err := m.engine.execute("repay_borrow", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		var err error
		repaid, err = m.repayBorrowFresh(payer, borrower, amount)
		return err
	})
	return repaid, err
}

func (m *Market) repayBorrowFresh(payer, borrower common.Address, amount Amount) (*uint256.Int, error) {
	if err := m.engine.comptroller.repayBorrowAllowed(m, payer, borrower); err != nil {
		return nil, withInfo(err, InfoRepayComptrollerRejection)
	}
	ledger := m.ledger()
	if !m.isFresh(&ledger) {
		return nil, fail(MarketNotFresh, InfoRepayFreshnessCheck)
	}

	acct := m.account(borrower)
	accountBorrows, err := m.borrowBalanceStored(&ledger, &acct)
	if err != nil {
		return nil, failMath(InfoRepayNewAccountBalanceFailed, err)
	}
	repayAmount := amount.resolve(accountBorrows)

	accountBorrowsNew, err := fixedpoint.SubUint(accountBorrows, repayAmount)
	if err != nil {
		return nil, failMath(InfoRepayNewAccountBalanceFailed, err)
	}
	totalBorrowsNew, err := fixedpoint.SubUint(&ledger.TotalBorrows, repayAmount)
	if err != nil {
		return nil, failMath(InfoRepayNewTotalBalanceFailed, err)
	}
	cashNew, err := fixedpoint.AddUint(&ledger.Cash, repayAmount)
	if err != nil {
		return nil, failMath(InfoRepayNewTotalBalanceFailed, err)
	}

	if err := m.adapter.TransferIn(payer, repayAmount); err != nil {
		return nil, transferInError(InfoRepayTransferInFailed, err)
	}

	acct.BorrowPrincipal.Set(accountBorrowsNew)
	acct.BorrowIndex.Set(&ledger.BorrowIndex)
	ledger.TotalBorrows.Set(totalBorrowsNew)
	ledger.Cash.Set(cashNew)
	m.setAccount(borrower, acct)
	m.setLedger(ledger)

	m.engine.emit(events.RepayBorrow{
		Market:         m.address,
		Payer:          payer,
		Borrower:       borrower,
		RepayAmount:    repayAmount,
		AccountBorrows: accountBorrowsNew,
		TotalBorrows:   totalBorrowsNew,
	})
	return repayAmount, nil
}

// LiquidateBorrow repays repayAmount of borrower's debt in this market on
// behalf of liquidator and seizes discounted collateral from collateral. It
// returns the pool tokens seized.
func (m *Market) LiquidateBorrow(liquidator, borrower common.Address, repayAmount *uint256.Int, collateral *Market) (*uint256.Int, error) {
	var seized *uint256.Int
	err := m.engine.execute("liquidate_borrow", func() error {
		if collateral == nil {
			return fail(MarketNotListed, InfoLiquidateComptrollerRejection)
		}
		if err := m.accrueInterest(); err != nil {
			return err
		}
		if err := collateral.accrueInterest(); err != nil {
			return err
		}
		var err error
		seized, err = m.liquidateBorrowFresh(liquidator, borrower, repayAmount, collateral)
		return err
	})
	if err == nil {
		m.engine.metrics.ObserveLiquidation(m.symbolOrAddress())
	}
	return seized, err
}

func (m *Market) liquidateBorrowFresh(liquidator, borrower common.Address, repayAmount *uint256.Int, collateral *Market) (*uint256.Int, error) {
	if repayAmount == nil {
		return nil, fail(InvalidCloseAmountRequested, InfoLiquidateCloseAmountIsZero)
	}
	if err := m.engine.comptroller.liquidateBorrowAllowed(m, collateral, liquidator, borrower, repayAmount); err != nil {
		return nil, withInfo(err, InfoLiquidateComptrollerRejection)
	}
	ledger := m.ledger()
	if !m.isFresh(&ledger) {
		return nil, fail(MarketNotFresh, InfoLiquidateFreshnessCheck)
	}
	collateralLedger := collateral.ledger()
	if !collateral.isFresh(&collateralLedger) {
		return nil, fail(MarketNotFresh, InfoLiquidateCollateralFreshness)
	}
	if borrower == liquidator {
		return nil, fail(InvalidAccountPair, InfoLiquidateLiquidatorIsBorrower)
	}
	if repayAmount.IsZero() {
		return nil, fail(InvalidCloseAmountRequested, InfoLiquidateCloseAmountIsZero)
	}
	if repayAmount.Eq(maxUint256) {
		return nil, fail(InvalidCloseAmountRequested, InfoLiquidateCloseAmountIsMax)
	}

	actualRepay, err := m.repayBorrowFresh(liquidator, borrower, Exact(repayAmount))
	if err != nil {
		return nil, err
	}

	seizeTokens, err := m.engine.comptroller.LiquidateCalculateSeizeTokens(m.address, collateral.address, actualRepay)
	if err != nil {
		var lerr *Error
		if errors.As(err, &lerr) {
			return nil, &Error{Code: ComptrollerCalculationError, Reason: lerr.Reason, Info: InfoLiquidateSeizeCalculationFailed, Err: lerr.Err}
		}
		return nil, failWrap(ComptrollerCalculationError, InfoLiquidateSeizeCalculationFailed, err)
	}
	if collateral.seizableTokens(borrower).Lt(seizeTokens) {
		return nil, fail(TokenInsufficientBalance, InfoLiquidateSeizeTooMuch)
	}

	if err := collateral.seizeInternal(m, liquidator, borrower, seizeTokens); err != nil {
		return nil, err
	}

	m.engine.emit(events.LiquidateBorrow{
		Market:           m.address,
		Liquidator:       liquidator,
		Borrower:         borrower,
		RepayAmount:      actualRepay,
		CollateralMarket: collateral.address,
		SeizeTokens:      seizeTokens,
	})
	return seizeTokens, nil
}

// seizeInternal moves seizeTokens of borrower's pool tokens in m to the
// liquidator. seizer is the market whose debt was repaid.
func (m *Market) seizeInternal(seizer *Market, liquidator, borrower common.Address, seizeTokens *uint256.Int) error {
	if err := m.engine.comptroller.seizeAllowed(m, seizer, liquidator, borrower); err != nil {
		return withInfo(err, InfoLiquidateSeizeComptrollerReject)
	}
	if borrower == liquidator {
		return fail(InvalidAccountPair, InfoLiquidateSeizeLiquidatorBorrower)
	}

	ledger := m.ledger()
	borrowerAcct := m.account(borrower)
	if err := m.debitTokens(&ledger, &borrowerAcct, borrower, seizeTokens); err != nil {
		return failMath(InfoLiquidateSeizeBalanceDecrement, err)
	}
	m.setAccount(borrower, borrowerAcct)

	liquidatorAcct := m.account(liquidator)
	if err := m.creditTokens(&ledger, &liquidatorAcct, liquidator, seizeTokens); err != nil {
		return failMath(InfoLiquidateSeizeBalanceIncrement, err)
	}
	m.setAccount(liquidator, liquidatorAcct)
	m.setLedger(ledger)

	m.engine.emit(events.PoolTransfer{Market: m.address, From: borrower, To: liquidator, Amount: seizeTokens})
	return nil
}
