package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/native/lending/fixedpoint"
)

// The *Allowed hooks are consulted by markets before any state changes. They
// return nil to approve, or a rejection whose Info is left for the calling
// operation to fill in.

func (c *Comptroller) mintAllowed(m *Market, minter common.Address, amount *uint256.Int) *Error {
	p, rerr := c.listedPolicy(m.address)
	if rerr != nil {
		return rerr
	}
	if p.mintPaused {
		return deny(ReasonActionPaused)
	}
	if p.supplyCap.IsZero() {
		return nil
	}
	ledger := m.ledger()
	rate, err := m.exchangeRateStored(&ledger)
	if err != nil {
		return failMath("", err)
	}
	supplied, err := fixedpoint.MulScalarTruncate(rate, &ledger.TotalSupply)
	if err != nil {
		return failMath("", err)
	}
	next, err := fixedpoint.AddUint(supplied, amount)
	if err != nil {
		return failMath("", err)
	}
	if !next.Lt(p.supplyCap) {
		return deny(ReasonSupplyCapReached)
	}
	return nil
}

// redeemAllowed checks that removing redeemTokens of collateral leaves the
// account solvent. Accounts outside the market are not at risk.
func (c *Comptroller) redeemAllowed(m *Market, redeemer common.Address, redeemTokens *uint256.Int) *Error {
	if _, rerr := c.listedPolicy(m.address); rerr != nil {
		return rerr
	}
	if !c.CheckMembership(redeemer, m.address) || isZero(redeemTokens) {
		return nil
	}
	liq, rerr := c.hypotheticalLiquidity(redeemer, m, redeemTokens, nil)
	if rerr != nil {
		return rerr
	}
	if !liq.Shortfall.IsZero() {
		return deny(ReasonInsufficientLiquidity)
	}
	return nil
}

// borrowAllowed enters the borrower into m when needed, then checks the
// price, the borrow cap and the account's liquidity after the borrow.
func (c *Comptroller) borrowAllowed(m *Market, borrower common.Address, amount *uint256.Int) *Error {
	p, rerr := c.listedPolicy(m.address)
	if rerr != nil {
		return rerr
	}
	if p.borrowPaused {
		return deny(ReasonActionPaused)
	}
	if err := c.addToMarket(m, borrower); err != nil {
		return snapshotError(err)
	}
	price, err := c.engine.price(m.address)
	if err != nil || price.IsZero() {
		return &Error{Code: PriceError, Reason: ReasonPriceError, Err: err}
	}
	if !p.borrowCap.IsZero() {
		ledger := m.ledger()
		next, err := fixedpoint.AddUint(&ledger.TotalBorrows, amount)
		if err != nil {
			return failMath("", err)
		}
		if !next.Lt(p.borrowCap) {
			return deny(ReasonBorrowCapReached)
		}
	}
	liq, rerr := c.hypotheticalLiquidity(borrower, m, nil, amount)
	if rerr != nil {
		return rerr
	}
	if !liq.Shortfall.IsZero() {
		return deny(ReasonInsufficientLiquidity)
	}
	return nil
}

func (c *Comptroller) repayBorrowAllowed(m *Market, payer, borrower common.Address) *Error {
	_, rerr := c.listedPolicy(m.address)
	return rerr
}

// liquidateBorrowAllowed admits a liquidation when the borrower is under
// water and repayAmount respects the close factor. Deprecated markets and
// paused credit limits lift the shortfall requirement.
func (c *Comptroller) liquidateBorrowAllowed(m, collateral *Market, liquidator, borrower common.Address, repayAmount *uint256.Int) *Error {
	if _, rerr := c.listedPolicy(m.address); rerr != nil {
		return rerr
	}
	if _, rerr := c.listedPolicy(collateral.address); rerr != nil {
		return rerr
	}
	borrowBalance, err := m.BorrowBalanceStored(borrower)
	if err != nil {
		return snapshotError(err)
	}

	if limit, ok := c.creditLimits[creditKey{protocol: borrower, market: m.address}]; ok && limit.Paused {
		maxRepay := fixedpoint.SaturatingSub(borrowBalance, pausedCreditLimitResidue)
		if repayAmount.Gt(maxRepay) {
			return deny(ReasonTooMuchRepay)
		}
		return nil
	}
	if c.IsDeprecated(m.address) {
		if repayAmount.Gt(borrowBalance) {
			return deny(ReasonTooMuchRepay)
		}
		return nil
	}

	liq, rerr := c.hypotheticalLiquidity(borrower, nil, nil, nil)
	if rerr != nil {
		return rerr
	}
	if liq.Shortfall.IsZero() {
		return deny(ReasonInsufficientShortfall)
	}
	maxClose, err := fixedpoint.MulScalarTruncate(c.closeFactor, borrowBalance)
	if err != nil {
		return failMath("", err)
	}
	if repayAmount.Gt(maxClose) {
		return deny(ReasonTooMuchRepay)
	}
	return nil
}

func (c *Comptroller) seizeAllowed(collateral, seizer *Market, liquidator, borrower common.Address) *Error {
	if c.seizePaused {
		return deny(ReasonActionPaused)
	}
	if _, rerr := c.listedPolicy(collateral.address); rerr != nil {
		return rerr
	}
	if _, rerr := c.listedPolicy(seizer.address); rerr != nil {
		return rerr
	}
	return nil
}

func (c *Comptroller) transferAllowed(m *Market, src, dst common.Address, tokens *uint256.Int) *Error {
	if c.transferPaused {
		return deny(ReasonActionPaused)
	}
	return c.redeemAllowed(m, src, tokens)
}

// flashloanAllowed rejects credit accounts as receivers: they could borrow
// without collateral and repay the loan with the proceeds.
func (c *Comptroller) flashloanAllowed(m *Market, receiver common.Address, amount *uint256.Int) *Error {
	p, rerr := c.listedPolicy(m.address)
	if rerr != nil {
		return rerr
	}
	if p.flashloanPaused {
		return deny(ReasonActionPaused)
	}
	if c.isCreditAccount(receiver, m.address) {
		return deny(ReasonRejection)
	}
	return nil
}
