package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"moneymarket/core/types"
	"moneymarket/native/lending"
	"moneymarket/native/lending/fixedpoint"
	"moneymarket/native/lending/state"
	"moneymarket/storage"
)

var classified = []error{
	ErrNotFound, ErrInsufficientCollateral, ErrPaused, ErrInvalidAmount,
	ErrInvalidAddress, ErrUnauthorized, ErrRejected, ErrInternal,
}

// Local serves the Engine interface from an in-process lending engine. Every
// call holds a single lock so operations apply in arrival order against one
// block number.
type Local struct {
	mu     sync.Mutex
	engine *lending.Engine
	db     storage.Database
	feed   *Feed
	logger *slog.Logger
	tracer trace.Tracer
}

// NewLocal wraps engine. The block number is persisted to db whenever the
// clock advances. feed may be nil when no event history is kept.
func NewLocal(engine *lending.Engine, db storage.Database, feed *Feed, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		engine: engine,
		db:     db,
		feed:   feed,
		logger: logger,
		tracer: otel.Tracer("moneymarket/lendingd/engine"),
	}
}

func (l *Local) run(ctx context.Context, op string, attrs []attribute.KeyValue, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := l.tracer.Start(ctx, "lending."+op, trace.WithAttributes(attrs...))
	defer span.End()

	l.mu.Lock()
	err := fn()
	block := l.engine.BlockNumber()
	l.mu.Unlock()

	span.SetAttributes(attribute.Int64("lending.block", int64(block)))
	if err == nil {
		return nil
	}
	if !isClassified(err) {
		err = translate(err)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	l.logger.DebugContext(ctx, "lending operation rejected",
		slog.String("operation", op),
		slog.Uint64("block", block),
		slog.Any("error", err))
	return err
}

func isClassified(err error) bool {
	for _, sentinel := range classified {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func (l *Local) lookup(market string) (*lending.Market, error) {
	addr, err := parseAddress(market)
	if err != nil {
		return nil, err
	}
	m, err := l.engine.LookupMarket(addr)
	if err != nil {
		return nil, translate(err)
	}
	return m, nil
}

func (l *Local) accountMarket(account, market string) (common.Address, *lending.Market, error) {
	who, err := parseAddress(account)
	if err != nil {
		return common.Address{}, nil, err
	}
	m, err := l.lookup(market)
	if err != nil {
		return common.Address{}, nil, err
	}
	return who, m, nil
}

func (l *Local) receipt(op string, m *lending.Market, account common.Address) Receipt {
	r := Receipt{Operation: op, Account: account.Hex(), Block: l.engine.BlockNumber()}
	if m != nil {
		r.Market = m.Address().Hex()
	}
	return r
}

func attrs(op, account, market string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("lending.operation", op),
		attribute.String("lending.account", account),
		attribute.String("lending.market", market),
	}
}

// BlockNumber returns the block the engine currently accrues against.
func (l *Local) BlockNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine.BlockNumber()
}

// AdvanceBlock moves the engine one block forward and persists the new
// height.
func (l *Local) AdvanceBlock() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.engine.BlockNumber() + 1
	if err := l.engine.SetBlockNumber(next); err != nil {
		return 0, err
	}
	if l.db != nil {
		if err := state.StoreBlockNumber(l.db, next); err != nil {
			return 0, fmt.Errorf("persist block number: %w", err)
		}
	}
	return next, nil
}

func (l *Local) ListMarkets(ctx context.Context) ([]Market, error) {
	var out []Market
	err := l.run(ctx, "list_markets", nil, func() error {
		markets := l.engine.Markets()
		out = make([]Market, 0, len(markets))
		for _, m := range markets {
			view, err := marketView(m)
			if err != nil {
				return err
			}
			out = append(out, view)
		}
		return nil
	})
	return out, err
}

func (l *Local) GetMarket(ctx context.Context, market string) (Market, error) {
	var out Market
	err := l.run(ctx, "get_market", attrs("get_market", "", market), func() error {
		m, err := l.lookup(market)
		if err != nil {
			return err
		}
		out, err = marketView(m)
		return err
	})
	return out, err
}

func marketView(m *lending.Market) (Market, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return Market{}, err
	}
	return Market{
		Address:            snap.Address.Hex(),
		Underlying:         snap.Underlying.Hex(),
		Symbol:             snap.Symbol,
		Version:            snap.Version,
		Cash:               formatAmount(snap.Cash),
		TotalBorrows:       formatAmount(snap.TotalBorrows),
		TotalReserves:      formatAmount(snap.TotalReserves),
		TotalSupply:        formatAmount(snap.TotalSupply),
		TotalCollateral:    formatAmount(snap.TotalCollateral),
		BorrowIndex:        formatRatio(snap.BorrowIndex),
		AccrualBlock:       snap.AccrualBlock,
		ExchangeRate:       formatRatio(snap.ExchangeRate),
		BorrowRatePerBlock: formatRatio(snap.BorrowRatePerBlock),
		SupplyRatePerBlock: formatRatio(snap.SupplyRatePerBlock),
		ReserveFactor:      formatRatio(snap.ReserveFactor),
		CollateralFactor:   formatRatio(snap.CollateralFactor),
		CollateralCap:      formatAmount(snap.CollateralCap),
		SupplyCap:          formatAmount(snap.SupplyCap),
		BorrowCap:          formatAmount(snap.BorrowCap),
		FlashloanFeeBps:    snap.FlashloanFeeBps,
		Listed:             snap.Listed,
		Delisted:           snap.Delisted,
		MintPaused:         snap.MintPaused,
		BorrowPaused:       snap.BorrowPaused,
		FlashloanPaused:    snap.FlashloanPaused,
	}, nil
}

func formatRatio(mantissa *uint256.Int) string {
	if mantissa == nil {
		return "0"
	}
	return fixedpoint.FormatExp(fixedpoint.NewExp(mantissa))
}

func (l *Local) GetLiquidity(ctx context.Context, account string) (Liquidity, error) {
	var out Liquidity
	err := l.run(ctx, "get_liquidity", attrs("get_liquidity", account, ""), func() error {
		who, err := parseAddress(account)
		if err != nil {
			return err
		}
		c := l.engine.Comptroller()
		liq, err := c.GetAccountLiquidity(who)
		if err != nil {
			return err
		}
		assets := c.AssetsIn(who)
		out = Liquidity{
			Account:   who.Hex(),
			Liquidity: formatAmount(liq.Liquidity),
			Shortfall: formatAmount(liq.Shortfall),
			AssetsIn:  make([]string, 0, len(assets)),
		}
		for _, asset := range assets {
			out.AssetsIn = append(out.AssetsIn, asset.Hex())
		}
		return nil
	})
	return out, err
}

func (l *Local) GetPosition(ctx context.Context, account, market string) (Position, error) {
	var out Position
	err := l.run(ctx, "get_position", attrs("get_position", account, market), func() error {
		who, m, err := l.accountMarket(account, market)
		if err != nil {
			return err
		}
		snap, err := m.AccountSnapshot(who)
		if err != nil {
			return err
		}
		underlying, err := fixedpoint.MulScalarTruncate(snap.ExchangeRate, snap.Balance)
		if err != nil {
			return err
		}
		out = Position{
			Account:           who.Hex(),
			Market:            m.Address().Hex(),
			Tokens:            formatAmount(snap.Balance),
			CollateralTokens:  formatAmount(snap.CollateralTokens),
			BorrowBalance:     formatAmount(snap.BorrowBalance),
			ExchangeRate:      fixedpoint.FormatExp(snap.ExchangeRate),
			UnderlyingBalance: formatAmount(underlying),
			WalletBalance:     formatAmount(l.engine.TokenBalance(m.Underlying(), who)),
			Entered:           snap.Entered,
		}
		return nil
	})
	return out, err
}

// Value prices amount of the market's underlying with the comptroller's
// oracle, in the units the liquidity calculation uses. The result saturates
// at MaxUint64 and is zero for "max" or an unpriced market.
func (l *Local) Value(ctx context.Context, market, amount string) (uint64, error) {
	var out uint64
	err := l.run(ctx, "value", attrs("value", "", market), func() error {
		m, err := l.lookup(market)
		if err != nil {
			return err
		}
		requested, err := parseOptionalMax(amount)
		if err != nil {
			return err
		}
		if requested.IsMax() {
			return nil
		}
		value := requested.Value()
		oracle := l.engine.Comptroller().Oracle()
		if oracle == nil {
			return nil
		}
		price, err := oracle.UnderlyingPrice(m.Address())
		if err != nil {
			return err
		}
		worth, err := fixedpoint.MulScalarTruncate(fixedpoint.NewExp(price), value)
		if err != nil {
			out = math.MaxUint64
			return nil
		}
		if !worth.IsUint64() {
			out = math.MaxUint64
			return nil
		}
		out = worth.Uint64()
		return nil
	})
	return out, err
}

func (l *Local) Mint(ctx context.Context, account, market, amount string) (Receipt, error) {
	var out Receipt
	err := l.run(ctx, "mint", attrs("mint", account, market), func() error {
		who, m, err := l.accountMarket(account, market)
		if err != nil {
			return err
		}
		value, err := parseAmount(amount)
		if err != nil {
			return err
		}
		minted, err := m.Mint(who, value)
		if err != nil {
			return err
		}
		out = l.receipt("mint", m, who)
		out.Amount = value.Dec()
		out.Tokens = formatAmount(minted)
		return nil
	})
	return out, err
}

func (l *Local) Redeem(ctx context.Context, account, market, tokens string) (Receipt, error) {
	var out Receipt
	err := l.run(ctx, "redeem", attrs("redeem", account, market), func() error {
		who, m, err := l.accountMarket(account, market)
		if err != nil {
			return err
		}
		requested, err := parseOptionalMax(tokens)
		if err != nil {
			return err
		}
		balance := m.BalanceOf(who)
		paid, err := m.Redeem(who, requested)
		if err != nil {
			return err
		}
		out = l.receipt("redeem", m, who)
		out.Amount = formatAmount(paid)
		if requested.IsMax() {
			out.Tokens = balance.Dec()
		} else {
			out.Tokens = requested.String()
		}
		return nil
	})
	return out, err
}

func (l *Local) RedeemUnderlying(ctx context.Context, account, market, amount string) (Receipt, error) {
	var out Receipt
	err := l.run(ctx, "redeem_underlying", attrs("redeem_underlying", account, market), func() error {
		who, m, err := l.accountMarket(account, market)
		if err != nil {
			return err
		}
		value, err := parseAmount(amount)
		if err != nil {
			return err
		}
		burnt, err := m.RedeemUnderlying(who, value)
		if err != nil {
			return err
		}
		out = l.receipt("redeem_underlying", m, who)
		out.Amount = value.Dec()
		out.Tokens = formatAmount(burnt)
		return nil
	})
	return out, err
}

func (l *Local) Borrow(ctx context.Context, account, market, amount string) (Receipt, error) {
	var out Receipt
	err := l.run(ctx, "borrow", attrs("borrow", account, market), func() error {
		who, m, err := l.accountMarket(account, market)
		if err != nil {
			return err
		}
		value, err := parseAmount(amount)
		if err != nil {
			return err
		}
		if err := m.Borrow(who, value); err != nil {
			return err
		}
		out = l.receipt("borrow", m, who)
		out.Amount = value.Dec()
		return nil
	})
	return out, err
}

// Repay settles borrower's debt with payer's underlying. amount may be "max".
// The payer must have approved the market for the underlying beforehand; for
// the native variant the value is taken directly.
func (l *Local) Repay(ctx context.Context, payer, borrower, market, amount string) (Receipt, error) {
	var out Receipt
	err := l.run(ctx, "repay_borrow", attrs("repay_borrow", payer, market), func() error {
		from, m, err := l.accountMarket(payer, market)
		if err != nil {
			return err
		}
		debtor := from
		if borrower != "" {
			if debtor, err = parseAddress(borrower); err != nil {
				return err
			}
		}
		requested, err := parseOptionalMax(amount)
		if err != nil {
			return err
		}
		repaid, err := m.RepayBorrowBehalf(from, debtor, requested)
		if err != nil {
			return err
		}
		out = l.receipt("repay_borrow", m, debtor)
		out.Amount = formatAmount(repaid)
		return nil
	})
	return out, err
}

func (l *Local) Liquidate(ctx context.Context, liquidator, borrower, market, collateral, amount string) (Receipt, error) {
	var out Receipt
	err := l.run(ctx, "liquidate_borrow", attrs("liquidate_borrow", liquidator, market), func() error {
		who, m, err := l.accountMarket(liquidator, market)
		if err != nil {
			return err
		}
		debtor, err := parseAddress(borrower)
		if err != nil {
			return err
		}
		seizeFrom, err := l.lookup(collateral)
		if err != nil {
			return err
		}
		value, err := parseAmount(amount)
		if err != nil {
			return err
		}
		seized, err := m.LiquidateBorrow(who, debtor, value, seizeFrom)
		if err != nil {
			return err
		}
		out = l.receipt("liquidate_borrow", m, who)
		out.Amount = value.Dec()
		out.Seized = formatAmount(seized)
		return nil
	})
	return out, err
}

// Approve lets market pull up to amount of account's underlying. "max" grants
// an allowance that is never decremented.
func (l *Local) Approve(ctx context.Context, account, market, amount string) (Receipt, error) {
	var out Receipt
	err := l.run(ctx, "approve", attrs("approve", account, market), func() error {
		who, m, err := l.accountMarket(account, market)
		if err != nil {
			return err
		}
		requested, err := parseOptionalMax(amount)
		if err != nil {
			return err
		}
		value := requested.Value()
		if requested.IsMax() {
			value = new(uint256.Int).SetAllOne()
		}
		if err := l.engine.ApproveToken(m.Underlying(), who, m.Address(), value); err != nil {
			return err
		}
		out = l.receipt("approve", m, who)
		out.Amount = value.Dec()
		return nil
	})
	return out, err
}

func (l *Local) Transfer(ctx context.Context, from, to, market, tokens string) (Receipt, error) {
	var out Receipt
	err := l.run(ctx, "transfer", attrs("transfer", from, market), func() error {
		src, m, err := l.accountMarket(from, market)
		if err != nil {
			return err
		}
		dst, err := parseAddress(to)
		if err != nil {
			return err
		}
		value, err := parseAmount(tokens)
		if err != nil {
			return err
		}
		if err := m.Transfer(src, dst, value); err != nil {
			return err
		}
		out = l.receipt("transfer", m, src)
		out.Tokens = value.Dec()
		return nil
	})
	return out, err
}

func (l *Local) EnterMarkets(ctx context.Context, account string, markets []string) (Receipt, error) {
	var out Receipt
	err := l.run(ctx, "enter_markets", attrs("enter_markets", account, ""), func() error {
		who, err := parseAddress(account)
		if err != nil {
			return err
		}
		if len(markets) == 0 {
			return fmt.Errorf("markets required: %w", ErrInvalidAmount)
		}
		addrs := make([]common.Address, 0, len(markets))
		for _, market := range markets {
			addr, err := parseAddress(market)
			if err != nil {
				return err
			}
			addrs = append(addrs, addr)
		}
		if err := l.engine.Comptroller().EnterMarkets(who, addrs); err != nil {
			return err
		}
		out = l.receipt("enter_markets", nil, who)
		return nil
	})
	return out, err
}

func (l *Local) ExitMarket(ctx context.Context, account, market string) (Receipt, error) {
	var out Receipt
	err := l.run(ctx, "exit_market", attrs("exit_market", account, market), func() error {
		who, err := parseAddress(account)
		if err != nil {
			return err
		}
		addr, err := parseAddress(market)
		if err != nil {
			return err
		}
		if err := l.engine.Comptroller().ExitMarket(who, addr); err != nil {
			return err
		}
		out = l.receipt("exit_market", nil, who)
		out.Market = addr.Hex()
		return nil
	})
	return out, err
}

func (l *Local) RecentEvents(ctx context.Context, limit int) ([]*types.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.feed == nil {
		return nil, nil
	}
	return l.feed.Recent(limit), nil
}

var _ Engine = (*Local)(nil)
