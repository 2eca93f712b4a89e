package lending

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
)

// Pausable actions. Mint, borrow and flashloan are per market; transfer and
// seize are protocol wide.
const (
	ActionMint      = "mint"
	ActionBorrow    = "borrow"
	ActionFlashloan = "flashloan"
	ActionTransfer  = "transfer"
	ActionSeize     = "seize"
)

func unauthorized(info Info) *Error {
	return &Error{Code: Unauthorized, Reason: ReasonUnauthorized, Info: info}
}

// SetPriceOracle replaces the oracle used for liquidity and seize math.
func (c *Comptroller) SetPriceOracle(caller common.Address, oracle PriceOracle) error {
	return c.engine.execute("set_price_oracle", func() error {
		if caller != c.admin {
			return unauthorized(InfoSetOracleOwnerCheck)
		}
		if oracle == nil {
			return failWrap(BadInput, InfoSetOracleOwnerCheck, errNilOracle)
		}
		c.oracle = oracle
		c.engine.emit(events.ParameterUpdated{Parameter: "price_oracle"})
		return nil
	})
}

// SetPauseGuardian names the account allowed to pause actions.
func (c *Comptroller) SetPauseGuardian(caller, guardian common.Address) error {
	return c.engine.execute("set_pause_guardian", func() error {
		if caller != c.admin {
			return unauthorized(InfoSetPauseGuardianOwnerCheck)
		}
		old := c.pauseGuardian
		c.pauseGuardian = guardian
		c.engine.emit(events.ParameterUpdated{Parameter: "pause_guardian", Old: old.Hex(), New: guardian.Hex()})
		return nil
	})
}

// SetCloseFactor bounds the share of a debt repayable in one liquidation.
func (c *Comptroller) SetCloseFactor(caller common.Address, factor fixedpoint.Exp) error {
	return c.engine.execute("set_close_factor", func() error {
		if caller != c.admin {
			return unauthorized(InfoSetCloseFactorOwnerCheck)
		}
		if factor.Cmp(minCloseFactor) < 0 || factor.Cmp(maxCloseFactor) > 0 {
			return reject(InfoSetCloseFactorValidation, ReasonInvalidCloseFactor)
		}
		old := c.closeFactor
		c.closeFactor = factor
		c.engine.emit(events.ParameterUpdated{Parameter: "close_factor", Old: old.String(), New: factor.String()})
		return nil
	})
}

// SetLiquidationIncentive sets the collateral bonus paid to liquidators.
func (c *Comptroller) SetLiquidationIncentive(caller common.Address, incentive fixedpoint.Exp) error {
	return c.engine.execute("set_liquidation_incentive", func() error {
		if caller != c.admin {
			return unauthorized(InfoSetLiquidationIncentive)
		}
		if incentive.Cmp(fixedpoint.One()) < 0 || incentive.Cmp(maxLiquidationIncentive) > 0 {
			return reject(InfoSetLiquidationIncentiveVal, ReasonInvalidLiquidationIncentive)
		}
		old := c.liquidationIncentive
		c.liquidationIncentive = incentive
		c.engine.emit(events.ParameterUpdated{Parameter: "liquidation_incentive", Old: old.String(), New: incentive.String()})
		return nil
	})
}

// SetCollateralFactor sets how much of market's collateral value counts
// toward borrowing power. A nonzero factor needs a known price.
func (c *Comptroller) SetCollateralFactor(caller, market common.Address, factor fixedpoint.Exp) error {
	return c.engine.execute("set_collateral_factor", func() error {
		if caller != c.admin {
			return unauthorized(InfoSetCollateralFactorOwner)
		}
		p, ok := c.policies[market]
		if !ok || !p.listed {
			return &Error{Code: MarketNotListed, Reason: ReasonMarketNotListed, Info: InfoSetCollateralFactorNoExist}
		}
		if factor.Cmp(maxCollateralFactor) > 0 {
			return &Error{Code: InvalidCollateralFactor, Reason: ReasonInvalidCollateralFactor, Info: InfoSetCollateralFactorBounds}
		}
		if !factor.IsZero() {
			price, err := c.engine.price(market)
			if err != nil || price.IsZero() {
				return &Error{Code: PriceError, Reason: ReasonPriceError, Info: InfoSetCollateralFactorPrice, Err: err}
			}
		}
		old := p.collateralFactor
		p.collateralFactor = factor
		c.engine.emit(events.ParameterUpdated{Market: market, Parameter: "collateral_factor", Old: old.String(), New: factor.String()})
		return nil
	})
}

// SetMarketSupplyCaps sets the supply caps of markets; zero lifts the cap.
func (c *Comptroller) SetMarketSupplyCaps(caller common.Address, markets []common.Address, caps []*uint256.Int) error {
	return c.setCaps(caller, "set_supply_caps", "supply_cap", markets, caps, func(p *marketPolicy) **uint256.Int { return &p.supplyCap })
}

// SetMarketBorrowCaps sets the borrow caps of markets; zero lifts the cap.
func (c *Comptroller) SetMarketBorrowCaps(caller common.Address, markets []common.Address, caps []*uint256.Int) error {
	return c.setCaps(caller, "set_borrow_caps", "borrow_cap", markets, caps, func(p *marketPolicy) **uint256.Int { return &p.borrowCap })
}

func (c *Comptroller) setCaps(caller common.Address, op, param string, markets []common.Address, caps []*uint256.Int, field func(*marketPolicy) **uint256.Int) error {
	return c.engine.execute(op, func() error {
		if caller != c.admin {
			return unauthorized(InfoSetCapsOwnerCheck)
		}
		if len(markets) == 0 || len(markets) != len(caps) {
			return fail(BadInput, InfoSetCapsOwnerCheck)
		}
		policies := make([]*marketPolicy, len(markets))
		for i, addr := range markets {
			p, ok := c.policies[addr]
			if !ok || !p.listed {
				return &Error{Code: MarketNotListed, Reason: ReasonMarketNotListed, Info: InfoSetCapsOwnerCheck}
			}
			if caps[i] == nil {
				return fail(BadInput, InfoSetCapsOwnerCheck)
			}
			policies[i] = p
		}
		for i, p := range policies {
			slot := field(p)
			old := *slot
			*slot = new(uint256.Int).Set(caps[i])
			c.engine.emit(events.ParameterUpdated{Market: p.market.address, Parameter: param, Old: old.Dec(), New: caps[i].Dec()})
		}
		return nil
	})
}

// SetMintPaused pauses or resumes minting in market.
func (c *Comptroller) SetMintPaused(caller, market common.Address, paused bool) error {
	return c.setMarketPaused(caller, market, ActionMint, paused)
}

// SetBorrowPaused pauses or resumes borrowing in market.
func (c *Comptroller) SetBorrowPaused(caller, market common.Address, paused bool) error {
	return c.setMarketPaused(caller, market, ActionBorrow, paused)
}

// SetFlashloanPaused pauses or resumes flashloans from market.
func (c *Comptroller) SetFlashloanPaused(caller, market common.Address, paused bool) error {
	return c.setMarketPaused(caller, market, ActionFlashloan, paused)
}

// SetTransferPaused pauses or resumes pool token transfers in every market.
func (c *Comptroller) SetTransferPaused(caller common.Address, paused bool) error {
	return c.engine.execute("set_paused", func() error {
		if err := c.checkPauseRole(caller, paused); err != nil {
			return err
		}
		c.transferPaused = paused
		c.engine.emit(events.ActionPaused{Action: ActionTransfer, Paused: paused})
		return nil
	})
}

// SetSeizePaused pauses or resumes collateral seizure in every market.
func (c *Comptroller) SetSeizePaused(caller common.Address, paused bool) error {
	return c.engine.execute("set_paused", func() error {
		if err := c.checkPauseRole(caller, paused); err != nil {
			return err
		}
		c.seizePaused = paused
		c.engine.emit(events.ActionPaused{Action: ActionSeize, Paused: paused})
		return nil
	})
}

// TransferPaused reports whether pool token transfers are paused.
func (c *Comptroller) TransferPaused() bool { return c.transferPaused }

// SeizePaused reports whether seizure is paused.
func (c *Comptroller) SeizePaused() bool { return c.seizePaused }

func (c *Comptroller) setMarketPaused(caller, market common.Address, action string, paused bool) error {
	return c.engine.execute("set_paused", func() error {
		if err := c.checkPauseRole(caller, paused); err != nil {
			return err
		}
		p, ok := c.policies[market]
		if !ok || !p.listed {
			return &Error{Code: MarketNotListed, Reason: ReasonMarketNotListed, Info: InfoSetPausedOwnerCheck}
		}
		switch action {
		case ActionMint:
			p.mintPaused = paused
		case ActionBorrow:
			p.borrowPaused = paused
		case ActionFlashloan:
			p.flashloanPaused = paused
		}
		c.engine.emit(events.ActionPaused{Market: market, Action: action, Paused: paused})
		return nil
	})
}

// checkPauseRole lets the admin and the guardian pause, and only the admin
// unpause.
func (c *Comptroller) checkPauseRole(caller common.Address, paused bool) *Error {
	if caller == c.admin {
		return nil
	}
	if paused && c.pauseGuardian != (common.Address{}) && caller == c.pauseGuardian {
		return nil
	}
	return unauthorized(InfoSetPausedOwnerCheck)
}

// SoftDelistMarket winds market down: minting, borrowing and flashloans are
// paused, its collateral no longer counts and all interest goes to reserves.
// Borrowers can then be liquidated in full.
func (c *Comptroller) SoftDelistMarket(caller, market common.Address) error {
	return c.engine.execute("soft_delist_market", func() error {
		if caller != c.admin {
			return unauthorized(InfoDelistMarketOwnerCheck)
		}
		p, ok := c.policies[market]
		if !ok || !p.listed {
			return &Error{Code: MarketNotListed, Reason: ReasonMarketNotListed, Info: InfoDelistMarketValidation}
		}
		if err := p.market.accrueInterest(); err != nil {
			return err
		}
		p.mintPaused = true
		p.borrowPaused = true
		p.flashloanPaused = true
		p.collateralFactor = fixedpoint.Zero()
		p.market.reserveFactor = fixedpoint.One()
		c.engine.emit(events.MarketDelisted{Market: market, Soft: true})
		return nil
	})
}

// DelistMarket permanently deactivates an empty market. Its ledger stays
// queryable but every hook rejects it from then on.
func (c *Comptroller) DelistMarket(caller, market common.Address) error {
	return c.engine.execute("delist_market", func() error {
		if caller != c.admin {
			return unauthorized(InfoDelistMarketOwnerCheck)
		}
		p, ok := c.policies[market]
		if !ok || !p.listed {
			return &Error{Code: MarketNotListed, Reason: ReasonMarketNotListed, Info: InfoDelistMarketValidation}
		}
		ledger := p.market.ledger()
		if !ledger.TotalSupply.IsZero() || !ledger.TotalBorrows.IsZero() {
			return reject(InfoDelistMarketValidation, ReasonMarketNotEmpty)
		}
		ledger.Delisted = true
		p.market.setLedger(ledger)
		p.listed = false
		p.delisted = true
		p.collateralFactor = fixedpoint.Zero()
		c.engine.emit(events.MarketDelisted{Market: market, Soft: false})
		return nil
	})
}

// SetCreditLimit lets protocol borrow from market up to limit without
// collateral. A zero limit revokes the credit line.
func (c *Comptroller) SetCreditLimit(caller, protocol, market common.Address, limit *uint256.Int) error {
	return c.engine.execute("set_credit_limit", func() error {
		if caller != c.admin {
			return unauthorized(InfoSetCreditLimitOwnerCheck)
		}
		if !c.IsListed(market) {
			return &Error{Code: MarketNotListed, Reason: ReasonMarketNotListed, Info: InfoSetCreditLimitOwnerCheck}
		}
		if limit == nil {
			return fail(BadInput, InfoSetCreditLimitOwnerCheck)
		}
		key := creditKey{protocol: protocol, market: market}
		if limit.IsZero() {
			delete(c.creditLimits, key)
		} else {
			c.creditLimits[key] = CreditLimit{Amount: new(uint256.Int).Set(limit)}
		}
		c.engine.emit(events.CreditLimitChanged{Protocol: protocol, Market: market, Limit: limit})
		return nil
	})
}

// PauseCreditLimit shrinks protocol's credit line in market to a single unit
// and flags it, so its debt can be liquidated down to that residue without a
// shortfall.
func (c *Comptroller) PauseCreditLimit(caller, protocol, market common.Address) error {
	return c.engine.execute("pause_credit_limit", func() error {
		if err := c.checkPauseRole(caller, true); err != nil {
			return err
		}
		key := creditKey{protocol: protocol, market: market}
		if _, ok := c.creditLimits[key]; !ok {
			return reject(InfoSetCreditLimitOwnerCheck, ReasonRejection)
		}
		limit := new(uint256.Int).Set(pausedCreditLimitResidue)
		c.creditLimits[key] = CreditLimit{Amount: limit, Paused: true}
		c.engine.emit(events.CreditLimitChanged{Protocol: protocol, Market: market, Limit: limit, Paused: true})
		return nil
	})
}

// String renders a limit for logs and API payloads.
func (l CreditLimit) String() string {
	amount := "0"
	if l.Amount != nil {
		amount = l.Amount.Dec()
	}
	return amount + " paused=" + strconv.FormatBool(l.Paused)
}
