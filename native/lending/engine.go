package lending

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	nativecommon "moneymarket/native/common"
	"moneymarket/native/lending/fixedpoint"
	"moneymarket/native/lending/state"
	"moneymarket/observability/metrics"
)

const moduleName = "lending"

// Engine owns every market, the risk controller and the journaled ledger. All
// mutating entry points run as a single all-or-nothing transaction behind a
// protocol-wide reentrancy guard. The engine is not safe for concurrent use;
// callers serialise access.
type Engine struct {
	state       *state.StateDB
	comptroller *Comptroller
	markets     map[common.Address]*Market
	order       []common.Address

	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.LendingMetrics
	pauses  nativecommon.PauseView

	blockNumber uint64
	receivers   map[common.Address]TokenReceiver

	entered          bool
	reentryAttempted bool
}

// NewEngine constructs an engine on top of st. admin becomes the risk
// controller administrator.
func NewEngine(st *state.StateDB, admin common.Address) *Engine {
	e := &Engine{
		state:     st,
		markets:   make(map[common.Address]*Market),
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		receivers: make(map[common.Address]TokenReceiver),
	}
	e.comptroller = newComptroller(e, admin)
	return e
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger
}

// SetMetrics wires the prometheus collectors. A nil value disables metrics.
func (e *Engine) SetMetrics(m *metrics.LendingMetrics) {
	if e == nil {
		return
	}
	e.metrics = m
}

// SetPauses wires the module-wide pause switch consulted by every mutating
// entry point.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetBlockNumber advances the block used for interest accrual. Block numbers
// never move backwards.
func (e *Engine) SetBlockNumber(number uint64) error {
	if e == nil {
		return errNilEngine
	}
	if number < e.blockNumber {
		return errBlockRegression
	}
	e.blockNumber = number
	e.metrics.SetBlockNumber(number)
	return nil
}

// BlockNumber returns the block the engine currently operates at.
func (e *Engine) BlockNumber() uint64 { return e.blockNumber }

// Comptroller returns the risk controller.
func (e *Engine) Comptroller() *Comptroller { return e.comptroller }

// State exposes the ledger for read-only inspection.
func (e *Engine) State() *state.StateDB { return e.state }

// Market returns the market registered at addr.
func (e *Engine) Market(addr common.Address) (*Market, bool) {
	m, ok := e.markets[addr]
	return m, ok
}

// LookupMarket is Market with an error for unknown addresses.
func (e *Engine) LookupMarket(addr common.Address) (*Market, error) {
	m, ok := e.markets[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, addr.Hex())
	}
	return m, nil
}

// Markets returns every registered market in listing order.
func (e *Engine) Markets() []*Market {
	out := make([]*Market, 0, len(e.order))
	for _, addr := range e.order {
		out = append(out, e.markets[addr])
	}
	return out
}

// RegisterReceiver installs a hook invoked whenever addr is credited with a
// token or native currency.
func (e *Engine) RegisterReceiver(addr common.Address, receiver TokenReceiver) {
	if receiver == nil {
		delete(e.receivers, addr)
		return
	}
	e.receivers[addr] = receiver
}

// ListMarket registers a market and lists it with the risk controller. An
// existing ledger for the address (loaded from the database) is kept.
func (e *Engine) ListMarket(caller common.Address, cfg MarketConfig) (*Market, error) {
	if e == nil {
		return nil, errNilEngine
	}
	if _, exists := e.markets[cfg.Address]; exists {
		return nil, errMarketExists
	}
	m, err := newMarket(e, cfg)
	if err != nil {
		return nil, err
	}
	err = e.execute("list_market", func() error {
		if err := e.comptroller.supportMarket(caller, m); err != nil {
			return err
		}
		stored, ok := e.state.Market(m.address)
		switch {
		case !ok:
			ledger := state.MarketLedger{AccrualBlock: e.blockNumber}
			ledger.BorrowIndex.Set(fixedpoint.ExpScale())
			e.state.SetMarket(m.address, ledger)
		case stored.Delisted:
			e.comptroller.restoreDelisting(m.address)
		}
		e.markets[m.address] = m
		e.order = append(e.order, m.address)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// TokenBalance returns holder's balance of an underlying asset.
func (e *Engine) TokenBalance(asset, holder common.Address) *uint256.Int {
	return e.state.Balance(asset, holder)
}

// Allowance returns how much of owner's asset spender may pull.
func (e *Engine) Allowance(asset, owner, spender common.Address) *uint256.Int {
	return e.state.Allowance(asset, owner, spender)
}

// FundAccount credits holder with newly issued units of asset. It stands in
// for the asset's own issuance and is used for genesis balances and tests.
func (e *Engine) FundAccount(asset, holder common.Address, amount *uint256.Int) error {
	return e.external(func() error {
		bal, err := fixedpoint.AddUint(e.state.Balance(asset, holder), amount)
		if err != nil {
			return err
		}
		e.state.SetBalance(asset, holder, bal)
		return nil
	})
}

// ApproveToken lets spender pull up to amount of owner's asset.
func (e *Engine) ApproveToken(asset, owner, spender common.Address, amount *uint256.Int) error {
	return e.external(func() error {
		e.state.SetAllowance(asset, owner, spender, amount)
		return nil
	})
}

// TransferToken moves asset between accounts, invoking the recipient's
// receiver hook. When called from inside a callback the move joins the
// enclosing transaction.
func (e *Engine) TransferToken(asset, from, to common.Address, amount *uint256.Int) error {
	return e.external(func() error {
		if e.state.Balance(asset, from).Lt(amount) {
			return ErrTokenInsufficientBalance
		}
		return e.moveToken(asset, from, to, amount)
	})
}

func (e *Engine) moveToken(asset, from, to common.Address, amount *uint256.Int) error {
	fromBal, err := fixedpoint.SubUint(e.state.Balance(asset, from), amount)
	if err != nil {
		return ErrTokenInsufficientBalance
	}
	e.state.SetBalance(asset, from, fromBal)
	toBal, err := fixedpoint.AddUint(e.state.Balance(asset, to), amount)
	if err != nil {
		return err
	}
	e.state.SetBalance(asset, to, toBal)
	if receiver, ok := e.receivers[to]; ok {
		return receiver.OnTokenReceived(asset, from, amount)
	}
	return nil
}

// external runs a token-ledger mutation. Outside a protocol transaction it is
// its own all-or-nothing unit; inside one it shares the caller's snapshot.
func (e *Engine) external(fn func() error) error {
	if e.entered {
		return fn()
	}
	snap := e.state.Snapshot()
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snap)
		e.state.Finalise()
		return err
	}
	e.state.Finalise()
	return e.state.Commit()
}

// execute runs fn as one protocol transaction: a nested entry fails fast with
// REENTERED and also poisons the outer call, every failure or panic rolls the
// ledger back to the snapshot taken on entry, and the guard is released on
// every path. Successful transactions flush their events and persist.
func (e *Engine) execute(op string, fn func() error) (err error) {
	if e == nil || e.state == nil {
		return errNilEngine
	}
	if e.entered {
		e.reentryAttempted = true
		e.metrics.ObserveReentrancy()
		e.logger.Warn("lending: nested entry rejected", "operation", op)
		return reentered()
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ActionKey(moduleName, op)); err != nil {
		return err
	}

	e.entered = true
	e.reentryAttempted = false
	snap := e.state.Snapshot()

	defer func() {
		if r := recover(); r != nil {
			e.state.RevertToSnapshot(snap)
			e.state.Finalise()
			e.entered = false
			e.logger.Error("lending: operation panicked", "operation", op, "panic", r)
			panic(r)
		}
		if e.reentryAttempted {
			err = reentered()
		}
		if err == nil {
			err = e.state.Error()
		}
		e.entered = false
		e.reentryAttempted = false

		if err != nil {
			e.state.RevertToSnapshot(snap)
			e.state.Finalise()
			e.metrics.ObserveOperation(op, CodeOf(err).String())
			e.logger.Debug("lending: operation rejected", "operation", op, "error", err)
			return
		}
		logs := e.state.Finalise()
		for _, evt := range logs {
			if accrual, ok := evt.(events.AccrueInterest); ok {
				e.observeAccrual(accrual.Market)
			}
			e.emitter.Emit(evt)
		}
		e.metrics.ObserveOperation(op, "")
		e.recordMarkets()
		if commitErr := e.state.Commit(); commitErr != nil {
			e.logger.Error("lending: persist state", "operation", op, "error", commitErr)
			err = commitErr
		}
	}()

	return fn()
}

func (e *Engine) recordMarkets() {
	if e.metrics == nil {
		return
	}
	for _, addr := range e.order {
		m := e.markets[addr]
		ledger, ok := e.state.Market(addr)
		if !ok {
			continue
		}
		rate, err := m.exchangeRateStored(&ledger)
		if err != nil {
			rate = fixedpoint.Zero()
		}
		e.metrics.RecordMarket(m.symbolOrAddress(), ledger.Cash.ToBig(), ledger.TotalBorrows.ToBig(),
			ledger.TotalReserves.ToBig(), ledger.TotalSupply.ToBig(), rate.Raw().ToBig())
	}
}

func (e *Engine) observeAccrual(market common.Address) {
	if m, ok := e.markets[market]; ok {
		e.metrics.ObserveAccrual(m.symbolOrAddress())
	}
}

func (e *Engine) emit(evt events.Event) {
	e.state.AddLog(evt)
}

func (e *Engine) price(market common.Address) (*uint256.Int, error) {
	oracle := e.comptroller.oracle
	if oracle == nil {
		return nil, errNilOracle
	}
	price, err := oracle.UnderlyingPrice(market)
	if err != nil {
		return nil, err
	}
	if price == nil {
		return new(uint256.Int), nil
	}
	return price, nil
}

// IsReentered reports whether err is a reentrancy rejection.
func IsReentered(err error) bool {
	return errors.Is(err, ErrReentered)
}
