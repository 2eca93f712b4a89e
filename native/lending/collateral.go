package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
	"moneymarket/native/lending/state"
)

// collateralPortion is the part of a debit of tokens from acct that comes
// out of the collateral sub-ledger. Collateral is consumed first, so the
// portion is min(tokens, collateral).
func collateralPortion(acct *state.AccountLedger, tokens *uint256.Int) *uint256.Int {
	return fixedpoint.Min(tokens, &acct.CollateralTokens)
}

// headroom is how much more collateral the cap admits.
func (m *Market) headroom(ledger *state.MarketLedger) *uint256.Int {
	if m.collateralCap.IsZero() {
		return new(uint256.Int).Set(maxUint256)
	}
	return fixedpoint.SaturatingSub(m.collateralCap, &ledger.TotalCollateralTokens)
}

// increaseCollateral enrols up to amount of holder's unenrolled tokens,
// stopping silently at the cap. It returns the amount enrolled.
func (m *Market) increaseCollateral(ledger *state.MarketLedger, acct *state.AccountLedger, holder common.Address, amount *uint256.Int) (*uint256.Int, error) {
	unenrolled := fixedpoint.SaturatingSub(&acct.Tokens, &acct.CollateralTokens)
	enrol := fixedpoint.Min(fixedpoint.Min(amount, unenrolled), m.headroom(ledger))
	if enrol.IsZero() {
		return enrol, nil
	}
	total, err := fixedpoint.AddUint(&ledger.TotalCollateralTokens, enrol)
	if err != nil {
		return nil, err
	}
	collateral, err := fixedpoint.AddUint(&acct.CollateralTokens, enrol)
	if err != nil {
		return nil, err
	}
	ledger.TotalCollateralTokens.Set(total)
	acct.CollateralTokens.Set(collateral)
	m.engine.emit(events.UserCollateralChanged{Market: m.address, Account: holder, CollateralTokens: collateral})
	return enrol, nil
}

// decreaseCollateral removes amount from holder's collateral sub-ledger.
func (m *Market) decreaseCollateral(ledger *state.MarketLedger, acct *state.AccountLedger, holder common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	total, err := fixedpoint.SubUint(&ledger.TotalCollateralTokens, amount)
	if err != nil {
		return err
	}
	collateral, err := fixedpoint.SubUint(&acct.CollateralTokens, amount)
	if err != nil {
		return err
	}
	ledger.TotalCollateralTokens.Set(total)
	acct.CollateralTokens.Set(collateral)
	m.engine.emit(events.UserCollateralChanged{Market: m.address, Account: holder, CollateralTokens: collateral})
	return nil
}

// registerCollateral enrols holder's whole balance, up to the cap. It is
// called when holder enters the market.
func (m *Market) registerCollateral(holder common.Address) error {
	if !m.version.tracksCollateral() {
		return nil
	}
	ledger := m.ledger()
	acct := m.account(holder)
	if _, err := m.increaseCollateral(&ledger, &acct, holder, &acct.Tokens); err != nil {
		return failMath(InfoCollateralCalculationFailed, err)
	}
	m.setLedger(ledger)
	m.setAccount(holder, acct)
	return nil
}

// unregisterCollateral releases all of holder's collateral. It is called when
// holder exits the market.
func (m *Market) unregisterCollateral(holder common.Address) error {
	if !m.version.tracksCollateral() {
		return nil
	}
	ledger := m.ledger()
	acct := m.account(holder)
	if acct.CollateralTokens.IsZero() {
		return nil
	}
	amount := new(uint256.Int).Set(&acct.CollateralTokens)
	if err := m.decreaseCollateral(&ledger, &acct, holder, amount); err != nil {
		return failMath(InfoCollateralCalculationFailed, err)
	}
	m.setLedger(ledger)
	m.setAccount(holder, acct)
	return nil
}

// creditTokens adds tokens to holder and, for capped variants, enrols them
// when holder has entered the market.
func (m *Market) creditTokens(ledger *state.MarketLedger, acct *state.AccountLedger, holder common.Address, tokens *uint256.Int) error {
	balance, err := fixedpoint.AddUint(&acct.Tokens, tokens)
	if err != nil {
		return err
	}
	acct.Tokens.Set(balance)
	if m.version.tracksCollateral() && m.engine.comptroller.CheckMembership(holder, m.address) {
		if _, err := m.increaseCollateral(ledger, acct, holder, tokens); err != nil {
			return err
		}
	}
	return nil
}

// debitTokens removes tokens from holder, drawing the collateral sub-ledger
// down first.
func (m *Market) debitTokens(ledger *state.MarketLedger, acct *state.AccountLedger, holder common.Address, tokens *uint256.Int) error {
	portion := collateralPortion(acct, tokens)
	balance, err := fixedpoint.SubUint(&acct.Tokens, tokens)
	if err != nil {
		return err
	}
	if m.version.tracksCollateral() {
		if err := m.decreaseCollateral(ledger, acct, holder, portion); err != nil {
			return err
		}
	}
	acct.Tokens.Set(balance)
	return nil
}

// riskTokens is the part of a debit of tokens that the risk controller must
// approve. Capped variants only submit the collateral portion.
func (m *Market) riskTokens(acct *state.AccountLedger, tokens *uint256.Int) *uint256.Int {
	if m.version.tracksCollateral() {
		return collateralPortion(acct, tokens)
	}
	return new(uint256.Int).Set(tokens)
}

// seizableTokens is how many of holder's tokens a liquidation may take.
// Capped variants only give up enrolled collateral.
func (m *Market) seizableTokens(holder common.Address) *uint256.Int {
	acct := m.account(holder)
	if m.version.tracksCollateral() {
		return new(uint256.Int).Set(&acct.CollateralTokens)
	}
	return new(uint256.Int).Set(&acct.Tokens)
}
