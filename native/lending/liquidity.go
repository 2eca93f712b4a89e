package lending

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"moneymarket/native/lending/fixedpoint"
)

// Liquidity is an account's excess collateral value or its shortfall, both in
// oracle price units. At most one of the two is nonzero.
type Liquidity struct {
	Liquidity *uint256.Int
	Shortfall *uint256.Int
}

// GetAccountLiquidity sums collateral and borrow value across every market
// that counts for account.
func (c *Comptroller) GetAccountLiquidity(account common.Address) (Liquidity, error) {
	liq, err := c.hypotheticalLiquidity(account, nil, nil, nil)
	if err != nil {
		return Liquidity{}, err
	}
	return liq, nil
}

// GetHypotheticalAccountLiquidity computes account liquidity as if account
// redeemed redeemTokens and borrowed borrowAmount more in market.
func (c *Comptroller) GetHypotheticalAccountLiquidity(account, market common.Address, redeemTokens, borrowAmount *uint256.Int) (Liquidity, error) {
	p, ok := c.policies[market]
	if !ok {
		return Liquidity{}, &Error{Code: MarketNotListed, Reason: ReasonMarketNotListed, Info: InfoAccountLiquidity}
	}
	liq, err := c.hypotheticalLiquidity(account, p.market, redeemTokens, borrowAmount)
	if err != nil {
		return Liquidity{}, err
	}
	return liq, nil
}

// liquidityMarkets returns the entered markets followed by every other listed
// market where account owes something. Debt counts against liquidity whether
// or not the market was entered; collateral only counts once entered.
func (c *Comptroller) liquidityMarkets(account common.Address) ([]*Market, map[common.Address]bool) {
	entered := make(map[common.Address]bool)
	var out []*Market
	for _, addr := range c.engine.state.Memberships(account) {
		p, ok := c.policies[addr]
		if !ok || !p.listed || entered[addr] {
			continue
		}
		entered[addr] = true
		out = append(out, p.market)
	}
	for _, addr := range c.engine.order {
		if entered[addr] {
			continue
		}
		p, ok := c.policies[addr]
		if !ok || !p.listed {
			continue
		}
		acct := p.market.account(account)
		if !acct.BorrowPrincipal.IsZero() {
			out = append(out, p.market)
		}
	}
	return out, entered
}

// hypotheticalLiquidity walks the account's markets. For each market:
//
//	tokensToDenom = collateralFactor * exchangeRate * price
//	collateral   += tokensToDenom * tokens
//	borrows      += price * max(borrowBalance + borrowAmount - creditLimit, 0)
//	borrows      += tokensToDenom * redeemTokens
//
// A zero price fails only when the market carries a position or an effect.
func (c *Comptroller) hypotheticalLiquidity(account common.Address, modify *Market, redeemTokens, borrowAmount *uint256.Int) (Liquidity, *Error) {
	sumCollateral := new(uint256.Int)
	sumBorrowPlusEffects := new(uint256.Int)

	markets, entered := c.liquidityMarkets(account)
	if modify != nil && !containsMarket(markets, modify) && (!isZero(borrowAmount) || !isZero(redeemTokens)) {
		markets = append(markets, modify)
	}

	for _, m := range markets {
		snap, err := m.AccountSnapshot(account)
		if err != nil {
			return Liquidity{}, snapshotError(err)
		}
		tokens := new(uint256.Int)
		if entered[m.address] {
			tokens = snap.Tokens
		}
		borrow := snap.BorrowBalance
		redeem := new(uint256.Int)
		if m == modify {
			if borrowAmount != nil {
				sum, err := fixedpoint.AddUint(borrow, borrowAmount)
				if err != nil {
					return Liquidity{}, failMath(InfoAccountLiquidity, err)
				}
				borrow = sum
			}
			if redeemTokens != nil && entered[m.address] {
				redeem = redeemTokens
			}
		}
		if limit := c.creditLimit(account, m.address); limit != nil {
			borrow = fixedpoint.SaturatingSub(borrow, limit)
		}
		if tokens.IsZero() && borrow.IsZero() && redeem.IsZero() {
			continue
		}

		price, perr := c.engine.price(m.address)
		if perr != nil || price.IsZero() {
			return Liquidity{}, &Error{Code: PriceError, Reason: ReasonPriceError, Info: InfoAccountLiquidity, Err: perr}
		}
		oraclePrice := fixedpoint.NewExp(price)

		cf := c.CollateralFactor(m.address)
		tokensToDenom, err := fixedpoint.Mul(cf, snap.ExchangeRate)
		if err == nil {
			tokensToDenom, err = fixedpoint.Mul(tokensToDenom, oraclePrice)
		}
		if err != nil {
			return Liquidity{}, failMath(InfoAccountLiquidity, err)
		}

		if sumCollateral, err = fixedpoint.MulScalarTruncateAdd(tokensToDenom, tokens, sumCollateral); err != nil {
			return Liquidity{}, failMath(InfoAccountLiquidity, err)
		}
		if sumBorrowPlusEffects, err = fixedpoint.MulScalarTruncateAdd(oraclePrice, borrow, sumBorrowPlusEffects); err != nil {
			return Liquidity{}, failMath(InfoAccountLiquidity, err)
		}
		if sumBorrowPlusEffects, err = fixedpoint.MulScalarTruncateAdd(tokensToDenom, redeem, sumBorrowPlusEffects); err != nil {
			return Liquidity{}, failMath(InfoAccountLiquidity, err)
		}
	}

	if sumCollateral.Cmp(sumBorrowPlusEffects) >= 0 {
		return Liquidity{
			Liquidity: new(uint256.Int).Sub(sumCollateral, sumBorrowPlusEffects),
			Shortfall: new(uint256.Int),
		}, nil
	}
	return Liquidity{
		Liquidity: new(uint256.Int),
		Shortfall: new(uint256.Int).Sub(sumBorrowPlusEffects, sumCollateral),
	}, nil
}

// LiquidateCalculateSeizeTokens converts repayAmount of the borrowed asset
// into pool tokens of the collateral market:
//
//	seizeTokens = repayAmount * incentive * priceBorrowed / (priceCollateral * exchangeRate)
func (c *Comptroller) LiquidateCalculateSeizeTokens(borrowed, collateral common.Address, repayAmount *uint256.Int) (*uint256.Int, error) {
	cp, ok := c.policies[collateral]
	if !ok {
		return nil, &Error{Code: MarketNotListed, Reason: ReasonMarketNotListed, Info: InfoSeizeTokensCalculation}
	}
	priceBorrowed, err := c.engine.price(borrowed)
	if err != nil || priceBorrowed.IsZero() {
		return nil, &Error{Code: PriceError, Reason: ReasonPriceError, Info: InfoSeizeTokensCalculation, Err: err}
	}
	priceCollateral, err := c.engine.price(collateral)
	if err != nil || priceCollateral.IsZero() {
		return nil, &Error{Code: PriceError, Reason: ReasonPriceError, Info: InfoSeizeTokensCalculation, Err: err}
	}

	ledger := cp.market.ledger()
	exchangeRate, err := cp.market.exchangeRateStored(&ledger)
	if err != nil {
		return nil, failMath(InfoSeizeTokensCalculation, err)
	}
	numerator, err := fixedpoint.Mul(c.liquidationIncentive, fixedpoint.NewExp(priceBorrowed))
	if err != nil {
		return nil, failMath(InfoSeizeTokensCalculation, err)
	}
	denominator, err := fixedpoint.Mul(fixedpoint.NewExp(priceCollateral), exchangeRate)
	if err != nil {
		return nil, failMath(InfoSeizeTokensCalculation, err)
	}
	ratio, err := fixedpoint.Div(numerator, denominator)
	if err != nil {
		return nil, failMath(InfoSeizeTokensCalculation, err)
	}
	seizeTokens, err := fixedpoint.MulScalarTruncate(ratio, repayAmount)
	if err != nil {
		return nil, failMath(InfoSeizeTokensCalculation, err)
	}
	return seizeTokens, nil
}

func snapshotError(err error) *Error {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr
	}
	return failMath(InfoAccountLiquidity, err)
}

func containsMarket(markets []*Market, m *Market) bool {
	for _, candidate := range markets {
		if candidate == m {
			return true
		}
	}
	return false
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}
