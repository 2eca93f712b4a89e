package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
)

// Transfer moves tokens of src's pool tokens to dst.
func (m *Market) Transfer(src, dst common.Address, tokens *uint256.Int) error {
	return m.engine.execute("transfer", func() error {
		return m.transferTokens(src, src, dst, tokens)
	})
}

// TransferFrom moves pool tokens from src to dst using spender's allowance.
func (m *Market) TransferFrom(spender, src, dst common.Address, tokens *uint256.Int) error {
	return m.engine.execute("transfer", func() error {
		return m.transferTokens(spender, src, dst, tokens)
	})
}

// Approve lets spender transfer up to amount of owner's pool tokens.
func (m *Market) Approve(owner, spender common.Address, amount *uint256.Int) error {
	return m.engine.execute("approve", func() error {
		if amount == nil {
			return fail(BadInput, InfoTransferNotAllowed)
		}
		m.engine.state.SetAllowance(m.address, owner, spender, amount)
		m.engine.emit(events.Approval{Market: m.address, Owner: owner, Spender: spender, Amount: amount})
		return nil
	})
}

func (m *Market) transferTokens(spender, src, dst common.Address, tokens *uint256.Int) error {
	if tokens == nil {
		return fail(BadInput, InfoTransferNotEnough)
	}
	if src == dst {
		return fail(BadInput, InfoTransferNotAllowed)
	}
	srcAcct := m.account(src)
	if err := m.engine.comptroller.transferAllowed(m, src, dst, m.riskTokens(&srcAcct, tokens)); err != nil {
		return withInfo(err, InfoTransferComptrollerRejection)
	}

	startingAllowance := maxUint256
	if spender != src {
		startingAllowance = m.engine.state.Allowance(m.address, src, spender)
	}
	allowanceNew, err := fixedpoint.SubUint(startingAllowance, tokens)
	if err != nil {
		return failWrap(TokenInsufficientAllowance, InfoTransferNotAllowed, err)
	}

	ledger := m.ledger()
	if err := m.debitTokens(&ledger, &srcAcct, src, tokens); err != nil {
		return failWrap(TokenInsufficientBalance, InfoTransferNotEnough, err)
	}
	m.setAccount(src, srcAcct)

	dstAcct := m.account(dst)
	if err := m.creditTokens(&ledger, &dstAcct, dst, tokens); err != nil {
		return failMath(InfoTransferTooMuch, err)
	}
	m.setAccount(dst, dstAcct)
	m.setLedger(ledger)

	if !startingAllowance.Eq(maxUint256) {
		m.engine.state.SetAllowance(m.address, src, spender, allowanceNew)
	}

	m.engine.emit(events.PoolTransfer{Market: m.address, From: src, To: dst, Amount: tokens})
	return nil
}
