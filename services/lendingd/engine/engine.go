package engine

import (
	"context"

	"moneymarket/core/types"
)

// Engine describes the operations exposed by the lending HTTP surface.
// Accounts and markets are 0x-prefixed hex addresses; amounts are base-10
// integers in the smallest unit, and "max" where an operation accepts it.
type Engine interface {
	ListMarkets(ctx context.Context) ([]Market, error)
	GetMarket(ctx context.Context, market string) (Market, error)
	GetLiquidity(ctx context.Context, account string) (Liquidity, error)
	GetPosition(ctx context.Context, account, market string) (Position, error)
	Value(ctx context.Context, market, amount string) (uint64, error)

	Mint(ctx context.Context, account, market, amount string) (Receipt, error)
	Redeem(ctx context.Context, account, market, tokens string) (Receipt, error)
	RedeemUnderlying(ctx context.Context, account, market, amount string) (Receipt, error)
	Borrow(ctx context.Context, account, market, amount string) (Receipt, error)
	Repay(ctx context.Context, payer, borrower, market, amount string) (Receipt, error)
	Liquidate(ctx context.Context, liquidator, borrower, market, collateral, amount string) (Receipt, error)
	Approve(ctx context.Context, account, market, amount string) (Receipt, error)
	Transfer(ctx context.Context, from, to, market, tokens string) (Receipt, error)
	EnterMarkets(ctx context.Context, account string, markets []string) (Receipt, error)
	ExitMarket(ctx context.Context, account, market string) (Receipt, error)

	RecentEvents(ctx context.Context, limit int) ([]*types.Event, error)
}

// Market is the JSON view of a market snapshot. Ratios are decimals, ledger
// values integers.
type Market struct {
	Address            string `json:"address"`
	Underlying         string `json:"underlying"`
	Symbol             string `json:"symbol"`
	Version            string `json:"version"`
	Cash               string `json:"cash"`
	TotalBorrows       string `json:"totalBorrows"`
	TotalReserves      string `json:"totalReserves"`
	TotalSupply        string `json:"totalSupply"`
	TotalCollateral    string `json:"totalCollateral"`
	BorrowIndex        string `json:"borrowIndex"`
	AccrualBlock       uint64 `json:"accrualBlock"`
	ExchangeRate       string `json:"exchangeRate"`
	BorrowRatePerBlock string `json:"borrowRatePerBlock"`
	SupplyRatePerBlock string `json:"supplyRatePerBlock"`
	ReserveFactor      string `json:"reserveFactor"`
	CollateralFactor   string `json:"collateralFactor"`
	CollateralCap      string `json:"collateralCap"`
	SupplyCap          string `json:"supplyCap"`
	BorrowCap          string `json:"borrowCap"`
	FlashloanFeeBps    uint64 `json:"flashloanFeeBps"`
	Listed             bool   `json:"listed"`
	Delisted           bool   `json:"delisted"`
	MintPaused         bool   `json:"mintPaused"`
	BorrowPaused       bool   `json:"borrowPaused"`
	FlashloanPaused    bool   `json:"flashloanPaused"`
}

// Position is an account's standing in one market.
type Position struct {
	Account           string `json:"account"`
	Market            string `json:"market"`
	Tokens            string `json:"tokens"`
	CollateralTokens  string `json:"collateralTokens"`
	BorrowBalance     string `json:"borrowBalance"`
	ExchangeRate      string `json:"exchangeRate"`
	UnderlyingBalance string `json:"underlyingBalance"`
	WalletBalance     string `json:"walletBalance"`
	Entered           bool   `json:"entered"`
}

// Liquidity is the account-wide risk view.
type Liquidity struct {
	Account   string   `json:"account"`
	Liquidity string   `json:"liquidity"`
	Shortfall string   `json:"shortfall"`
	AssetsIn  []string `json:"assetsIn"`
}

// Receipt reports an applied operation.
type Receipt struct {
	Operation string `json:"operation"`
	Market    string `json:"market,omitempty"`
	Account   string `json:"account"`
	Amount    string `json:"amount,omitempty"`
	Tokens    string `json:"tokens,omitempty"`
	Seized    string `json:"seized,omitempty"`
	Block     uint64 `json:"block"`
}
