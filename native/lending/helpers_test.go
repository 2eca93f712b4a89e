package lending

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"moneymarket/core/events"
	"moneymarket/native/lending/fixedpoint"
	"moneymarket/native/lending/irm"
	"moneymarket/native/lending/state"
	"moneymarket/storage"
)

var (
	admin      = makeAddress(0x01)
	guardian   = makeAddress(0x02)
	alice      = makeAddress(0x10)
	bob        = makeAddress(0x11)
	carol      = makeAddress(0x12)
	protocol   = makeAddress(0x13)
	usdToken   = makeAddress(0x20)
	ethToken   = makeAddress(0x21)
	cUSD       = makeAddress(0x30)
	cETH       = makeAddress(0x31)
	cNative    = makeAddress(0x32)
	cCapped    = makeAddress(0x33)
	cappedCoin = makeAddress(0x22)
)

func makeAddress(suffix byte) common.Address {
	var addr common.Address
	addr[len(addr)-1] = suffix
	return addr
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

// e18 returns v * 1e18.
func e18(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), fixedpoint.ExpScale())
}

// exp parses a decimal into an 18-decimal mantissa.
func exp(t *testing.T, value string) fixedpoint.Exp {
	t.Helper()
	e, err := fixedpoint.ParseExp(value)
	require.NoError(t, err)
	return e
}

// flatModel charges ratePerBlock regardless of utilisation.
func flatModel(ratePerBlock uint64) irm.Model {
	return &irm.JumpRateModel{
		BaseRatePerBlock:       u(ratePerBlock),
		MultiplierPerBlock:     new(uint256.Int),
		JumpMultiplierPerBlock: new(uint256.Int),
		Kink:                   fixedpoint.ExpScale(),
	}
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recordingEmitter) types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

type fixture struct {
	t       *testing.T
	db      *storage.MemDB
	engine  *Engine
	oracle  *SimplePriceOracle
	emitter *recordingEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	e := NewEngine(state.New(db), admin)
	emitter := &recordingEmitter{}
	e.SetEmitter(emitter)
	oracle := NewSimplePriceOracle()
	require.NoError(t, e.Comptroller().SetPriceOracle(admin, oracle))
	require.NoError(t, e.Comptroller().SetPauseGuardian(admin, guardian))
	return &fixture{t: t, db: db, engine: e, oracle: oracle, emitter: emitter}
}

func (f *fixture) list(addr, underlying common.Address, symbol string, version Version, model irm.Model) *Market {
	f.t.Helper()
	m, err := f.engine.ListMarket(admin, MarketConfig{
		Address:             addr,
		Underlying:          underlying,
		Symbol:              symbol,
		Version:             version,
		Admin:               admin,
		Model:               model,
		InitialExchangeRate: fixedpoint.One(),
	})
	require.NoError(f.t, err)
	f.oracle.SetUnderlyingPrice(addr, fixedpoint.ExpScale())
	return m
}

// fund credits holder with amount of the market's underlying and approves
// the pool to pull all of it.
func (f *fixture) fund(m *Market, holder common.Address, amount *uint256.Int) {
	f.t.Helper()
	require.NoError(f.t, f.engine.FundAccount(m.Underlying(), holder, amount))
	if m.Version() != WrappedNative {
		require.NoError(f.t, f.engine.ApproveToken(m.Underlying(), holder, m.Address(), maxUint256))
	}
}

func (f *fixture) supply(m *Market, holder common.Address, amount *uint256.Int) {
	f.t.Helper()
	f.fund(m, holder, amount)
	_, err := m.Mint(holder, amount)
	require.NoError(f.t, err)
}

func (f *fixture) setCollateralFactor(m *Market, value string) {
	f.t.Helper()
	require.NoError(f.t, f.engine.Comptroller().SetCollateralFactor(admin, m.Address(), exp(f.t, value)))
}

func (f *fixture) enter(account common.Address, markets ...*Market) {
	f.t.Helper()
	addrs := make([]common.Address, 0, len(markets))
	for _, m := range markets {
		addrs = append(addrs, m.Address())
	}
	require.NoError(f.t, f.engine.Comptroller().EnterMarkets(account, addrs))
}

func (f *fixture) advance(blocks uint64) {
	f.t.Helper()
	require.NoError(f.t, f.engine.SetBlockNumber(f.engine.BlockNumber()+blocks))
}

// standardPair lists a USD market and an ETH market at price 1 with a zero
// rate model. ETH counts 50% as collateral; bob supplies 1000 USD of cash.
func (f *fixture) standardPair() (*Market, *Market) {
	f.t.Helper()
	usd := f.list(cUSD, usdToken, "cUSD", Standard, flatModel(0))
	eth := f.list(cETH, ethToken, "cETH", Standard, flatModel(0))
	f.setCollateralFactor(eth, "0.5")
	f.supply(usd, bob, e18(1000))
	return usd, eth
}

type marketState struct {
	ledger   state.MarketLedger
	accounts map[common.Address]state.AccountLedger
	members  map[common.Address][]common.Address
	balances map[common.Address]*uint256.Int
}

// capture records everything a rejected call must leave untouched.
func (f *fixture) capture(m *Market, holders ...common.Address) marketState {
	ledger, _ := f.engine.State().Market(m.Address())
	out := marketState{
		ledger:   ledger,
		accounts: make(map[common.Address]state.AccountLedger),
		members:  make(map[common.Address][]common.Address),
		balances: make(map[common.Address]*uint256.Int),
	}
	for _, h := range append(holders, m.Address()) {
		out.accounts[h] = f.engine.State().Account(m.Address(), h)
		out.members[h] = f.engine.Comptroller().AssetsIn(h)
		out.balances[h] = f.engine.TokenBalance(m.Underlying(), h)
	}
	return out
}
