package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
)

var (
	// DefaultCloseFactor caps a single liquidation at half of the debt.
	DefaultCloseFactor = fixedpoint.FromUint64(500_000_000_000_000_000)
	// DefaultLiquidationIncentive pays liquidators an 8% bonus.
	DefaultLiquidationIncentive = fixedpoint.FromUint64(1_080_000_000_000_000_000)

	minCloseFactor           = fixedpoint.FromUint64(50_000_000_000_000_000)
	maxCloseFactor           = fixedpoint.FromUint64(900_000_000_000_000_000)
	maxCollateralFactor      = fixedpoint.FromUint64(900_000_000_000_000_000)
	maxLiquidationIncentive  = fixedpoint.FromUint64(1_500_000_000_000_000_000)
	pausedCreditLimitResidue = uint256.NewInt(1)
)

// marketPolicy is the risk controller's view of one market.
type marketPolicy struct {
	market           *Market
	listed           bool
	delisted         bool
	version          Version
	collateralFactor fixedpoint.Exp
	supplyCap        *uint256.Int
	borrowCap        *uint256.Int
	mintPaused       bool
	borrowPaused     bool
	flashloanPaused  bool
}

type creditKey struct {
	protocol common.Address
	market   common.Address
}

// CreditLimit lets a protocol account borrow from a market without posting
// collateral up to Amount. A paused limit marks the account for liquidation.
type CreditLimit struct {
	Amount *uint256.Int
	Paused bool
}

// Comptroller is the cross-market risk controller. Its parameters live in
// memory and are seeded from genesis; account memberships live in the
// journaled state.
type Comptroller struct {
	engine *Engine

	admin         common.Address
	pauseGuardian common.Address
	oracle        PriceOracle

	closeFactor          fixedpoint.Exp
	liquidationIncentive fixedpoint.Exp

	policies       map[common.Address]*marketPolicy
	transferPaused bool
	seizePaused    bool
	creditLimits   map[creditKey]CreditLimit
}

func newComptroller(e *Engine, admin common.Address) *Comptroller {
	return &Comptroller{
		engine:               e,
		admin:                admin,
		closeFactor:          DefaultCloseFactor,
		liquidationIncentive: DefaultLiquidationIncentive,
		policies:             make(map[common.Address]*marketPolicy),
		creditLimits:         make(map[creditKey]CreditLimit),
	}
}

func (c *Comptroller) Admin() common.Address         { return c.admin }
func (c *Comptroller) PauseGuardian() common.Address { return c.pauseGuardian }
func (c *Comptroller) Oracle() PriceOracle           { return c.oracle }
func (c *Comptroller) CloseFactor() fixedpoint.Exp   { return c.closeFactor }

func (c *Comptroller) LiquidationIncentive() fixedpoint.Exp { return c.liquidationIncentive }

// IsListed reports whether market is currently listed.
func (c *Comptroller) IsListed(market common.Address) bool {
	p, ok := c.policies[market]
	return ok && p.listed
}

// IsDelisted reports whether market was hard-delisted.
func (c *Comptroller) IsDelisted(market common.Address) bool {
	p, ok := c.policies[market]
	return ok && p.delisted
}

// restoreDelisting re-applies a hard delisting recorded in the ledger when
// the market is registered again after a restart.
func (c *Comptroller) restoreDelisting(market common.Address) {
	if p, ok := c.policies[market]; ok {
		p.listed = false
		p.delisted = true
		p.collateralFactor = fixedpoint.Zero()
	}
}

// CollateralFactor returns the share of market's collateral value that counts
// toward borrowing power.
func (c *Comptroller) CollateralFactor(market common.Address) fixedpoint.Exp {
	if p, ok := c.policies[market]; ok {
		return p.collateralFactor
	}
	return fixedpoint.Zero()
}

// IsDeprecated reports whether market has been soft-delisted: collateral
// factor zero, borrowing paused and every unit of interest routed to
// reserves. Borrowers in a deprecated market can be liquidated in full.
func (c *Comptroller) IsDeprecated(market common.Address) bool {
	p, ok := c.policies[market]
	if !ok || !p.listed {
		return false
	}
	return p.collateralFactor.IsZero() && p.borrowPaused && p.market.reserveFactor.Cmp(fixedpoint.One()) == 0
}

// CreditLimit returns the credit limit of protocol in market.
func (c *Comptroller) CreditLimit(protocol, market common.Address) CreditLimit {
	limit, ok := c.creditLimits[creditKey{protocol: protocol, market: market}]
	if !ok {
		return CreditLimit{Amount: new(uint256.Int)}
	}
	return CreditLimit{Amount: new(uint256.Int).Set(limit.Amount), Paused: limit.Paused}
}

func (c *Comptroller) creditLimit(protocol, market common.Address) *uint256.Int {
	if limit, ok := c.creditLimits[creditKey{protocol: protocol, market: market}]; ok {
		return limit.Amount
	}
	return nil
}

func (c *Comptroller) isCreditAccount(protocol, market common.Address) bool {
	limit := c.creditLimit(protocol, market)
	return limit != nil && !limit.IsZero()
}

// CheckMembership reports whether account has entered market.
func (c *Comptroller) CheckMembership(account, market common.Address) bool {
	for _, addr := range c.engine.state.Memberships(account) {
		if addr == market {
			return true
		}
	}
	return false
}

// AssetsIn lists the markets account has entered, in entry order.
func (c *Comptroller) AssetsIn(account common.Address) []common.Address {
	return c.engine.state.Memberships(account)
}

// EnterMarkets adds markets to account's collateral set. The call is all or
// nothing: an unlisted market rejects the whole batch. Markets already
// entered are skipped.
func (c *Comptroller) EnterMarkets(account common.Address, markets []common.Address) error {
	return c.engine.execute("enter_markets", func() error {
		for _, addr := range markets {
			p, ok := c.policies[addr]
			if !ok || !p.listed {
				return &Error{Code: MarketNotListed, Reason: ReasonMarketNotListed, Info: InfoEnterMarkets}
			}
			if err := c.addToMarket(p.market, account); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Comptroller) addToMarket(m *Market, account common.Address) error {
	if c.CheckMembership(account, m.address) {
		return nil
	}
	list := c.engine.state.Memberships(account)
	c.engine.state.SetMemberships(account, append(list, m.address))
	if err := m.registerCollateral(account); err != nil {
		return err
	}
	c.engine.emit(events.MarketEntered{Market: m.address, Account: account})
	return nil
}

// ExitMarket removes market from account's collateral set. The account must
// hold no debt in market and the liquidity left after dropping its collateral
// must cover its other borrows. Exiting a market not entered is a no-op.
func (c *Comptroller) ExitMarket(account, market common.Address) error {
	return c.engine.execute("exit_market", func() error {
		p, ok := c.policies[market]
		if !ok {
			return &Error{Code: MarketNotListed, Reason: ReasonMarketNotListed, Info: InfoExitMarketRejection}
		}
		m := p.market
		snap, err := m.AccountSnapshot(account)
		if err != nil {
			return err
		}
		if !snap.BorrowBalance.IsZero() {
			return reject(InfoExitMarketBalanceOwed, ReasonNonzeroBorrowBalance)
		}
		if !snap.Entered {
			return nil
		}
		if rerr := c.redeemAllowed(m, account, snap.Tokens); rerr != nil {
			return withInfo(rerr, InfoExitMarketRejection)
		}

		list := c.engine.state.Memberships(account)
		kept := list[:0]
		for _, addr := range list {
			if addr != market {
				kept = append(kept, addr)
			}
		}
		c.engine.state.SetMemberships(account, kept)
		if err := m.unregisterCollateral(account); err != nil {
			return err
		}
		c.engine.emit(events.MarketExited{Market: market, Account: account})
		return nil
	})
}

// supportMarket lists m. Listing is irreversible: a delisted address cannot
// be listed again.
func (c *Comptroller) supportMarket(caller common.Address, m *Market) error {
	if caller != c.admin {
		return &Error{Code: Unauthorized, Reason: ReasonUnauthorized, Info: InfoSupportMarketOwnerCheck}
	}
	if _, exists := c.policies[m.address]; exists {
		return reject(InfoSupportMarketExists, ReasonMarketAlreadyListed)
	}
	c.policies[m.address] = &marketPolicy{
		market:           m,
		listed:           true,
		version:          m.version,
		collateralFactor: fixedpoint.Zero(),
		supplyCap:        new(uint256.Int),
		borrowCap:        new(uint256.Int),
	}
	c.engine.emit(events.MarketListed{Market: m.address, Symbol: m.symbol, Version: m.version.String()})
	return nil
}

func (c *Comptroller) fillSnapshot(market common.Address, snap *MarketSnapshot) {
	p, ok := c.policies[market]
	if !ok {
		snap.CollateralFactor = new(uint256.Int)
		snap.SupplyCap = new(uint256.Int)
		snap.BorrowCap = new(uint256.Int)
		return
	}
	snap.CollateralFactor = p.collateralFactor.Raw()
	snap.SupplyCap = new(uint256.Int).Set(p.supplyCap)
	snap.BorrowCap = new(uint256.Int).Set(p.borrowCap)
	snap.Listed = p.listed
	snap.Delisted = p.delisted
	snap.MintPaused = p.mintPaused
	snap.BorrowPaused = p.borrowPaused
	snap.FlashloanPaused = p.flashloanPaused
}

// listedPolicy returns the policy of a listed market or a rejection.
func (c *Comptroller) listedPolicy(market common.Address) (*marketPolicy, *Error) {
	p, ok := c.policies[market]
	if !ok || !p.listed {
		return nil, deny(ReasonMarketNotListed)
	}
	return p, nil
}

// deny builds a rejection without step information; the calling market
// operation fills in Info.
func deny(reason Reason) *Error {
	return &Error{Code: ComptrollerRejection, Reason: reason}
}
