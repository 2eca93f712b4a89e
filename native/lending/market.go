package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
	"moneymarket/native/lending/irm"
	"moneymarket/native/lending/state"
)

// Market is one asset pool. Its ledger lives in the engine state; the struct
// carries configuration only.
type Market struct {
	engine *Engine

	address    common.Address
	underlying common.Address
	symbol     string
	version    Version
	admin      common.Address
	adapter    TokenAdapter

	model               irm.Model
	reserveFactor       fixedpoint.Exp
	initialExchangeRate fixedpoint.Exp
	borrowRateMax       *uint256.Int
	flashloanFeeBps     uint64
	collateralCap       *uint256.Int
	rateExclusions      map[common.Address]struct{}
}

func newMarket(e *Engine, cfg MarketConfig) (*Market, error) {
	if cfg.Model == nil {
		return nil, errNilModel
	}
	if cfg.InitialExchangeRate.IsZero() {
		return nil, errZeroInitialRate
	}
	if cfg.Version != WrappedNative && cfg.Underlying == (common.Address{}) && cfg.Adapter == nil {
		return nil, errUnderlyingMissing
	}
	if cfg.ReserveFactor.Cmp(fixedpoint.One()) > 0 {
		return nil, fail(BadInput, InfoSetReserveFactorBoundsCheck)
	}
	if cfg.FlashloanFeeBps > MaxFlashloanFeeBps {
		return nil, fail(BadInput, InfoSetFlashloanFeeBoundsCheck)
	}
	m := &Market{
		engine:              e,
		address:             cfg.Address,
		underlying:          cfg.Underlying,
		symbol:              cfg.Symbol,
		version:             cfg.Version,
		admin:               cfg.Admin,
		model:               cfg.Model,
		reserveFactor:       cfg.ReserveFactor,
		initialExchangeRate: cfg.InitialExchangeRate,
		borrowRateMax:       new(uint256.Int).Set(DefaultBorrowRateMax),
		flashloanFeeBps:     cfg.FlashloanFeeBps,
		collateralCap:       new(uint256.Int),
		rateExclusions:      make(map[common.Address]struct{}),
	}
	if cfg.BorrowRateMax != nil {
		m.borrowRateMax.Set(cfg.BorrowRateMax)
	}
	if cfg.CollateralCap != nil {
		m.collateralCap.Set(cfg.CollateralCap)
	}
	for _, addr := range cfg.RateExclusions {
		m.rateExclusions[addr] = struct{}{}
	}
	switch {
	case cfg.Adapter != nil:
		m.adapter = cfg.Adapter
	case cfg.Version == WrappedNative:
		m.underlying = state.NativeAsset
		m.adapter = &NativeAdapter{engine: e, pool: cfg.Address}
	default:
		m.adapter = &ERC20Adapter{engine: e, token: cfg.Underlying, pool: cfg.Address}
	}
	return m, nil
}

func (m *Market) Address() common.Address    { return m.address }
func (m *Market) Underlying() common.Address { return m.underlying }
func (m *Market) Symbol() string             { return m.symbol }
func (m *Market) Version() Version           { return m.version }
func (m *Market) Admin() common.Address      { return m.admin }

func (m *Market) symbolOrAddress() string {
	if m.symbol != "" {
		return m.symbol
	}
	return m.address.Hex()
}

// ReserveFactor returns the share of interest routed to reserves.
func (m *Market) ReserveFactor() fixedpoint.Exp { return m.reserveFactor }

// CollateralCap returns the cap on enrolled collateral; zero is unlimited.
func (m *Market) CollateralCap() *uint256.Int { return new(uint256.Int).Set(m.collateralCap) }

func (m *Market) ledger() state.MarketLedger {
	ledger, _ := m.engine.state.Market(m.address)
	return ledger
}

func (m *Market) setLedger(ledger state.MarketLedger) {
	m.engine.state.SetMarket(m.address, ledger)
}

func (m *Market) account(holder common.Address) state.AccountLedger {
	return m.engine.state.Account(m.address, holder)
}

func (m *Market) setAccount(holder common.Address, ledger state.AccountLedger) {
	m.engine.state.SetAccount(m.address, holder, ledger)
}

// isFresh reports whether interest has been accrued up to the current block.
func (m *Market) isFresh(ledger *state.MarketLedger) bool {
	return ledger.AccrualBlock == m.engine.blockNumber
}

// rateBorrows is totalBorrows without the principal of excluded accounts.
func (m *Market) rateBorrows(ledger *state.MarketLedger) *uint256.Int {
	borrows := new(uint256.Int).Set(&ledger.TotalBorrows)
	for addr := range m.rateExclusions {
		acct := m.account(addr)
		borrows = fixedpoint.SaturatingSub(borrows, &acct.BorrowPrincipal)
	}
	return borrows
}

// accrueInterest brings the ledger up to the current block. Calling it twice
// in one block is a no-op.
func (m *Market) accrueInterest() error {
	ledger := m.ledger()
	current := m.engine.blockNumber
	if ledger.AccrualBlock == current {
		return nil
	}
	if ledger.AccrualBlock > current {
		return errAccrualInFuture
	}

	cashPrior := new(uint256.Int).Set(&ledger.Cash)
	borrowsPrior := new(uint256.Int).Set(&ledger.TotalBorrows)
	reservesPrior := new(uint256.Int).Set(&ledger.TotalReserves)
	indexPrior := new(uint256.Int).Set(&ledger.BorrowIndex)

	borrowRate, err := m.model.BorrowRate(cashPrior, m.rateBorrows(&ledger), reservesPrior)
	if err != nil {
		return failWrap(InterestRateModelError, InfoAccrueInterestBorrowRateCalculationFailed, err)
	}
	if borrowRate.Gt(m.borrowRateMax) {
		return fail(InterestRateModelError, InfoAccrueInterestBorrowRateTooHigh)
	}

	blockDelta := uint256.NewInt(current - ledger.AccrualBlock)
	simpleInterestFactor, err := fixedpoint.MulScalar(fixedpoint.NewExp(borrowRate), blockDelta)
	if err != nil {
		return failMath(InfoAccrueInterestSimpleInterestFactorFailed, err)
	}
	interestAccumulated, err := fixedpoint.MulScalarTruncate(simpleInterestFactor, borrowsPrior)
	if err != nil {
		return failMath(InfoAccrueInterestAccumulatedFailed, err)
	}
	totalBorrowsNew, err := fixedpoint.AddUint(interestAccumulated, borrowsPrior)
	if err != nil {
		return failMath(InfoAccrueInterestNewTotalBorrowsFailed, err)
	}
	totalReservesNew, err := fixedpoint.MulScalarTruncateAdd(m.reserveFactor, interestAccumulated, reservesPrior)
	if err != nil {
		return failMath(InfoAccrueInterestNewTotalReservesFailed, err)
	}
	borrowIndexNew, err := fixedpoint.MulScalarTruncateAdd(simpleInterestFactor, indexPrior, indexPrior)
	if err != nil {
		return failMath(InfoAccrueInterestNewBorrowIndexFailed, err)
	}

	ledger.AccrualBlock = current
	ledger.BorrowIndex.Set(borrowIndexNew)
	ledger.TotalBorrows.Set(totalBorrowsNew)
	ledger.TotalReserves.Set(totalReservesNew)
	m.setLedger(ledger)

	m.engine.emit(events.AccrueInterest{
		Market:              m.address,
		CashPrior:           cashPrior,
		InterestAccumulated: interestAccumulated,
		BorrowIndex:         borrowIndexNew,
		TotalBorrows:        totalBorrowsNew,
	})
	return nil
}

// AccrueInterest applies interest up to the current block.
func (m *Market) AccrueInterest() error {
	return m.engine.execute("accrue_interest", m.accrueInterest)
}

// exchangeRateStored is (cash + borrows - reserves) / supply, or the initial
// rate while no pool tokens exist.
func (m *Market) exchangeRateStored(ledger *state.MarketLedger) (fixedpoint.Exp, error) {
	if ledger.TotalSupply.IsZero() {
		return m.initialExchangeRate, nil
	}
	cashPlusBorrows, err := fixedpoint.AddUint(&ledger.Cash, &ledger.TotalBorrows)
	if err != nil {
		return fixedpoint.Exp{}, err
	}
	underlying, err := fixedpoint.SubUint(cashPlusBorrows, &ledger.TotalReserves)
	if err != nil {
		return fixedpoint.Exp{}, err
	}
	return fixedpoint.Fraction(underlying, &ledger.TotalSupply)
}

// ExchangeRateStored returns the exchange rate as of the last accrual.
func (m *Market) ExchangeRateStored() (fixedpoint.Exp, error) {
	ledger := m.ledger()
	rate, err := m.exchangeRateStored(&ledger)
	if err != nil {
		return fixedpoint.Exp{}, failMath(InfoExchangeRateCalculationFailed, err)
	}
	return rate, nil
}

// ExchangeRateCurrent accrues interest and returns the updated exchange rate.
func (m *Market) ExchangeRateCurrent() (fixedpoint.Exp, error) {
	var rate fixedpoint.Exp
	err := m.engine.execute("exchange_rate_current", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		var err error
		rate, err = m.ExchangeRateStored()
		return err
	})
	return rate, err
}

// borrowBalanceStored is principal * borrowIndex / interestIndex.
func (m *Market) borrowBalanceStored(ledger *state.MarketLedger, acct *state.AccountLedger) (*uint256.Int, error) {
	if acct.BorrowPrincipal.IsZero() {
		return new(uint256.Int), nil
	}
	product, err := fixedpoint.MulUint(&acct.BorrowPrincipal, &ledger.BorrowIndex)
	if err != nil {
		return nil, err
	}
	return fixedpoint.DivUint(product, &acct.BorrowIndex)
}

// BorrowBalanceStored returns account's debt as of the last accrual.
func (m *Market) BorrowBalanceStored(account common.Address) (*uint256.Int, error) {
	ledger := m.ledger()
	acct := m.account(account)
	bal, err := m.borrowBalanceStored(&ledger, &acct)
	if err != nil {
		return nil, failMath(InfoBorrowBalanceCalculationFailed, err)
	}
	return bal, nil
}

// BorrowBalanceCurrent accrues interest and returns account's debt.
func (m *Market) BorrowBalanceCurrent(account common.Address) (*uint256.Int, error) {
	var bal *uint256.Int
	err := m.engine.execute("borrow_balance_current", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		var err error
		bal, err = m.BorrowBalanceStored(account)
		return err
	})
	return bal, err
}

// BalanceOf returns account's pool tokens.
func (m *Market) BalanceOf(account common.Address) *uint256.Int {
	acct := m.account(account)
	return new(uint256.Int).Set(&acct.Tokens)
}

// CollateralBalanceOf returns account's collateral-enrolled pool tokens.
func (m *Market) CollateralBalanceOf(account common.Address) *uint256.Int {
	acct := m.account(account)
	return new(uint256.Int).Set(&acct.CollateralTokens)
}

// BalanceOfUnderlying accrues interest and converts account's pool tokens to
// underlying.
func (m *Market) BalanceOfUnderlying(account common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := m.engine.execute("balance_of_underlying", func() error {
		if err := m.accrueInterest(); err != nil {
			return err
		}
		rate, err := m.ExchangeRateStored()
		if err != nil {
			return err
		}
		out, err = fixedpoint.MulScalarTruncate(rate, m.BalanceOf(account))
		if err != nil {
			return failMath(InfoExchangeRateCalculationFailed, err)
		}
		return nil
	})
	return out, err
}

// Allowance returns how many of owner's pool tokens spender may transfer.
func (m *Market) Allowance(owner, spender common.Address) *uint256.Int {
	return m.engine.state.Allowance(m.address, owner, spender)
}

// UnderlyingBalance returns the raw underlying held at the pool address,
// which can exceed the internal cash until Gulp runs.
func (m *Market) UnderlyingBalance() *uint256.Int {
	return m.adapter.BalanceOf(m.address)
}

// AccountSnapshot returns account's position as seen by the risk controller.
func (m *Market) AccountSnapshot(account common.Address) (AccountSnapshot, error) {
	ledger := m.ledger()
	acct := m.account(account)
	borrow, err := m.borrowBalanceStored(&ledger, &acct)
	if err != nil {
		return AccountSnapshot{}, failMath(InfoBorrowBalanceCalculationFailed, err)
	}
	rate, err := m.exchangeRateStored(&ledger)
	if err != nil {
		return AccountSnapshot{}, failMath(InfoExchangeRateCalculationFailed, err)
	}
	snap := AccountSnapshot{
		Tokens:           new(uint256.Int).Set(&acct.Tokens),
		Balance:          new(uint256.Int).Set(&acct.Tokens),
		CollateralTokens: new(uint256.Int).Set(&acct.CollateralTokens),
		BorrowBalance:    borrow,
		ExchangeRate:     rate,
		Entered:          m.engine.comptroller.CheckMembership(account, m.address),
	}
	if m.version.tracksCollateral() {
		snap.Tokens.Set(&acct.CollateralTokens)
	}
	return snap, nil
}

// BorrowRatePerBlock returns the current per-block borrow rate.
func (m *Market) BorrowRatePerBlock() (*uint256.Int, error) {
	ledger := m.ledger()
	return m.model.BorrowRate(&ledger.Cash, m.rateBorrows(&ledger), &ledger.TotalReserves)
}

// SupplyRatePerBlock returns the current per-block supply rate.
func (m *Market) SupplyRatePerBlock() (*uint256.Int, error) {
	ledger := m.ledger()
	if ledger.TotalSupply.IsZero() {
		return new(uint256.Int), nil
	}
	return m.model.SupplyRate(&ledger.Cash, m.rateBorrows(&ledger), &ledger.TotalReserves, m.reserveFactor.Raw())
}

// Snapshot returns the market's ledger together with its risk policy.
func (m *Market) Snapshot() (MarketSnapshot, error) {
	ledger := m.ledger()
	rate, err := m.exchangeRateStored(&ledger)
	if err != nil {
		return MarketSnapshot{}, failMath(InfoExchangeRateCalculationFailed, err)
	}
	borrowRate, err := m.BorrowRatePerBlock()
	if err != nil {
		return MarketSnapshot{}, failWrap(InterestRateModelError, InfoAccrueInterestBorrowRateCalculationFailed, err)
	}
	supplyRate, err := m.SupplyRatePerBlock()
	if err != nil {
		return MarketSnapshot{}, failWrap(InterestRateModelError, InfoAccrueInterestBorrowRateCalculationFailed, err)
	}
	snap := MarketSnapshot{
		Address:            m.address,
		Underlying:         m.underlying,
		Symbol:             m.symbol,
		Version:            m.version.String(),
		Cash:               new(uint256.Int).Set(&ledger.Cash),
		TotalBorrows:       new(uint256.Int).Set(&ledger.TotalBorrows),
		TotalReserves:      new(uint256.Int).Set(&ledger.TotalReserves),
		TotalSupply:        new(uint256.Int).Set(&ledger.TotalSupply),
		TotalCollateral:    new(uint256.Int).Set(&ledger.TotalCollateralTokens),
		BorrowIndex:        new(uint256.Int).Set(&ledger.BorrowIndex),
		AccrualBlock:       ledger.AccrualBlock,
		ExchangeRate:       rate.Raw(),
		BorrowRatePerBlock: borrowRate,
		SupplyRatePerBlock: supplyRate,
		ReserveFactor:      m.reserveFactor.Raw(),
		CollateralCap:      m.CollateralCap(),
		FlashloanFeeBps:    m.flashloanFeeBps,
	}
	m.engine.comptroller.fillSnapshot(m.address, &snap)
	return snap, nil
}
