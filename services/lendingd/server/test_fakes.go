package server

import (
	"context"

	"moneymarket/core/types"
	"moneymarket/services/lendingd/engine"
)

type fakeEngine struct {
	listMarketsFn      func(ctx context.Context) ([]engine.Market, error)
	getMarketFn        func(ctx context.Context, market string) (engine.Market, error)
	getLiquidityFn     func(ctx context.Context, account string) (engine.Liquidity, error)
	getPositionFn      func(ctx context.Context, account, market string) (engine.Position, error)
	valueFn            func(ctx context.Context, market, amount string) (uint64, error)
	mintFn             func(ctx context.Context, account, market, amount string) (engine.Receipt, error)
	redeemFn           func(ctx context.Context, account, market, tokens string) (engine.Receipt, error)
	redeemUnderlyingFn func(ctx context.Context, account, market, amount string) (engine.Receipt, error)
	borrowFn           func(ctx context.Context, account, market, amount string) (engine.Receipt, error)
	repayFn            func(ctx context.Context, payer, borrower, market, amount string) (engine.Receipt, error)
	liquidateFn        func(ctx context.Context, liquidator, borrower, market, collateral, amount string) (engine.Receipt, error)
	approveFn          func(ctx context.Context, account, market, amount string) (engine.Receipt, error)
	transferFn         func(ctx context.Context, from, to, market, tokens string) (engine.Receipt, error)
	enterMarketsFn     func(ctx context.Context, account string, markets []string) (engine.Receipt, error)
	exitMarketFn       func(ctx context.Context, account, market string) (engine.Receipt, error)
	recentEventsFn     func(ctx context.Context, limit int) ([]*types.Event, error)
}

func (f *fakeEngine) ListMarkets(ctx context.Context) ([]engine.Market, error) {
	if f != nil && f.listMarketsFn != nil {
		return f.listMarketsFn(ctx)
	}
	return nil, nil
}

func (f *fakeEngine) GetMarket(ctx context.Context, market string) (engine.Market, error) {
	if f != nil && f.getMarketFn != nil {
		return f.getMarketFn(ctx, market)
	}
	return engine.Market{}, nil
}

func (f *fakeEngine) GetLiquidity(ctx context.Context, account string) (engine.Liquidity, error) {
	if f != nil && f.getLiquidityFn != nil {
		return f.getLiquidityFn(ctx, account)
	}
	return engine.Liquidity{}, nil
}

func (f *fakeEngine) GetPosition(ctx context.Context, account, market string) (engine.Position, error) {
	if f != nil && f.getPositionFn != nil {
		return f.getPositionFn(ctx, account, market)
	}
	return engine.Position{}, nil
}

func (f *fakeEngine) Value(ctx context.Context, market, amount string) (uint64, error) {
	if f != nil && f.valueFn != nil {
		return f.valueFn(ctx, market, amount)
	}
	return 0, nil
}

func (f *fakeEngine) Mint(ctx context.Context, account, market, amount string) (engine.Receipt, error) {
	if f != nil && f.mintFn != nil {
		return f.mintFn(ctx, account, market, amount)
	}
	return engine.Receipt{}, nil
}

func (f *fakeEngine) Redeem(ctx context.Context, account, market, tokens string) (engine.Receipt, error) {
	if f != nil && f.redeemFn != nil {
		return f.redeemFn(ctx, account, market, tokens)
	}
	return engine.Receipt{}, nil
}

func (f *fakeEngine) RedeemUnderlying(ctx context.Context, account, market, amount string) (engine.Receipt, error) {
	if f != nil && f.redeemUnderlyingFn != nil {
		return f.redeemUnderlyingFn(ctx, account, market, amount)
	}
	return engine.Receipt{}, nil
}

func (f *fakeEngine) Borrow(ctx context.Context, account, market, amount string) (engine.Receipt, error) {
	if f != nil && f.borrowFn != nil {
		return f.borrowFn(ctx, account, market, amount)
	}
	return engine.Receipt{}, nil
}

func (f *fakeEngine) Repay(ctx context.Context, payer, borrower, market, amount string) (engine.Receipt, error) {
	if f != nil && f.repayFn != nil {
		return f.repayFn(ctx, payer, borrower, market, amount)
	}
	return engine.Receipt{}, nil
}

func (f *fakeEngine) Liquidate(ctx context.Context, liquidator, borrower, market, collateral, amount string) (engine.Receipt, error) {
	if f != nil && f.liquidateFn != nil {
		return f.liquidateFn(ctx, liquidator, borrower, market, collateral, amount)
	}
	return engine.Receipt{}, nil
}

func (f *fakeEngine) Approve(ctx context.Context, account, market, amount string) (engine.Receipt, error) {
	if f != nil && f.approveFn != nil {
		return f.approveFn(ctx, account, market, amount)
	}
	return engine.Receipt{}, nil
}

func (f *fakeEngine) Transfer(ctx context.Context, from, to, market, tokens string) (engine.Receipt, error) {
	if f != nil && f.transferFn != nil {
		return f.transferFn(ctx, from, to, market, tokens)
	}
	return engine.Receipt{}, nil
}

func (f *fakeEngine) EnterMarkets(ctx context.Context, account string, markets []string) (engine.Receipt, error) {
	if f != nil && f.enterMarketsFn != nil {
		return f.enterMarketsFn(ctx, account, markets)
	}
	return engine.Receipt{}, nil
}

func (f *fakeEngine) ExitMarket(ctx context.Context, account, market string) (engine.Receipt, error) {
	if f != nil && f.exitMarketFn != nil {
		return f.exitMarketFn(ctx, account, market)
	}
	return engine.Receipt{}, nil
}

func (f *fakeEngine) RecentEvents(ctx context.Context, limit int) ([]*types.Event, error) {
	if f != nil && f.recentEventsFn != nil {
		return f.recentEventsFn(ctx, limit)
	}
	return nil, nil
}

var _ engine.Engine = (*fakeEngine)(nil)
