package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
)

// Mint supplies amount of underlying from minter and returns the pool tokens
// created.
func (m *Market) Mint(minter common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	err := m.engine.execute("mint", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		var err error
		minted, err = m.mintFresh(minter, amount)
		return err
	})
	return minted, err
}

func (m *Market) mintFresh(minter common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return nil, fail(BadInput, InfoMintExchangeCalculationFailed)
	}
	if err := m.engine.comptroller.mintAllowed(m, minter, amount); err != nil {
		return nil, withInfo(err, InfoMintComptrollerRejection)
	}
	ledger := m.ledger()
	if !m.isFresh(&ledger) {
		return nil, fail(MarketNotFresh, InfoMintFreshnessCheck)
	}
	rate, err := m.exchangeRateStored(&ledger)
	if err != nil {
		return nil, failMath(InfoMintExchangeCalculationFailed, err)
	}

	if err := m.adapter.TransferIn(minter, amount); err != nil {
		return nil, transferInError(InfoMintTransferInFailed, err)
	}

	mintTokens, err := fixedpoint.DivScalarByExpTruncate(amount, rate)
	if err != nil {
		return nil, failMath(InfoMintExchangeCalculationFailed, err)
	}
	totalSupplyNew, err := fixedpoint.AddUint(&ledger.TotalSupply, mintTokens)
	if err != nil {
		return nil, failMath(InfoMintNewTotalSupplyFailed, err)
	}
	cashNew, err := fixedpoint.AddUint(&ledger.Cash, amount)
	if err != nil {
		return nil, failMath(InfoMintNewTotalSupplyFailed, err)
	}
	acct := m.account(minter)
	ledger.TotalSupply.Set(totalSupplyNew)
	ledger.Cash.Set(cashNew)
	if err := m.creditTokens(&ledger, &acct, minter, mintTokens); err != nil {
		return nil, failMath(InfoMintNewAccountBalanceFailed, err)
	}
	m.setLedger(ledger)
	m.setAccount(minter, acct)

	m.engine.emit(events.Mint{Market: m.address, Minter: minter, MintAmount: amount, MintTokens: mintTokens})
	m.engine.emit(events.PoolTransfer{Market: m.address, From: m.address, To: minter, Amount: mintTokens})
	m.engine.emit(events.TokenSupply{Token: m.symbol, Total: totalSupplyNew, Delta: mintTokens, Reason: events.SupplyReasonMint})
	return mintTokens, nil
}

// Redeem burns pool tokens for underlying. Max redeems the whole balance.
// It returns the underlying paid out.
func (m *Market) Redeem(redeemer common.Address, tokens Amount) (*uint256.Int, error) {
	var paid *uint256.Int
	err := m.engine.execute("redeem", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		redeemTokens := tokens.resolve(m.BalanceOf(redeemer))
		var err error
		paid, _, err = m.redeemFresh(redeemer, redeemTokens, nil)
		return err
	})
	return paid, err
}

// RedeemUnderlying burns as many pool tokens as are worth amount of
// underlying. It returns the pool tokens burnt.
func (m *Market) RedeemUnderlying(redeemer common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var burnt *uint256.Int
	err := m.engine.execute("redeem_underlying", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		if amount == nil {
			return fail(BadInput, InfoRedeemExchangeCalculationFailed)
		}
		var err error
		_, burnt, err = m.redeemFresh(redeemer, nil, amount)
		return err
	})
	return burnt, err
}

// redeemFresh takes exactly one of tokensIn and amountIn and derives the
// other from the stored exchange rate.
func (m *Market) redeemFresh(redeemer common.Address, tokensIn, amountIn *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	ledger := m.ledger()
	rate, err := m.exchangeRateStored(&ledger)
	if err != nil {
		return nil, nil, failMath(InfoRedeemExchangeCalculationFailed, err)
	}
	var redeemTokens, redeemAmount *uint256.Int
	if tokensIn != nil {
		redeemTokens = tokensIn
		redeemAmount, err = fixedpoint.MulScalarTruncate(rate, tokensIn)
	} else {
		redeemAmount = amountIn
		redeemTokens, err = fixedpoint.DivScalarByExpTruncate(amountIn, rate)
	}
	if err != nil {
		return nil, nil, failMath(InfoRedeemExchangeCalculationFailed, err)
	}

	acct := m.account(redeemer)
	if err := m.engine.comptroller.redeemAllowed(m, redeemer, m.riskTokens(&acct, redeemTokens)); err != nil {
		return nil, nil, withInfo(err, InfoRedeemComptrollerRejection)
	}
	if !m.isFresh(&ledger) {
		return nil, nil, fail(MarketNotFresh, InfoRedeemFreshnessCheck)
	}

	totalSupplyNew, err := fixedpoint.SubUint(&ledger.TotalSupply, redeemTokens)
	if err != nil {
		return nil, nil, failMath(InfoRedeemNewTotalSupplyFailed, err)
	}
	if err := m.debitTokens(&ledger, &acct, redeemer, redeemTokens); err != nil {
		return nil, nil, failMath(InfoRedeemNewAccountBalanceFailed, err)
	}
	if ledger.Cash.Lt(redeemAmount) {
		return nil, nil, fail(TokenInsufficientCash, InfoRedeemTransferOutNotPossible)
	}
	ledger.Cash.Sub(&ledger.Cash, redeemAmount)
	ledger.TotalSupply.Set(totalSupplyNew)
	m.setLedger(ledger)
	m.setAccount(redeemer, acct)

	if err := m.adapter.TransferOut(redeemer, redeemAmount); err != nil {
		return nil, nil, transferOutError(InfoRedeemTransferOutFailed, err)
	}

	m.engine.emit(events.PoolTransfer{Market: m.address, From: redeemer, To: m.address, Amount: redeemTokens})
	m.engine.emit(events.Redeem{Market: m.address, Redeemer: redeemer, RedeemAmount: redeemAmount, RedeemTokens: redeemTokens})
	m.engine.emit(events.TokenSupply{Token: m.symbol, Total: totalSupplyNew, Delta: redeemTokens, Reason: events.SupplyReasonBurn})
	return redeemAmount, redeemTokens, nil
}

func withInfo(err *Error, info Info) *Error {
	if err.Info == "" {
		err.Info = info
	}
	return err
}
