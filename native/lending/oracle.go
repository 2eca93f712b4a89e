package lending

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PriceOracle supplies the price of a market's underlying asset, scaled by
// 1e18 and adjusted for the underlying decimals. Zero means unknown.
type PriceOracle interface {
	UnderlyingPrice(market common.Address) (*uint256.Int, error)
}

// SimplePriceOracle serves prices set by an operator.
type SimplePriceOracle struct {
	mu     sync.RWMutex
	prices map[common.Address]*uint256.Int
}

func NewSimplePriceOracle() *SimplePriceOracle {
	return &SimplePriceOracle{prices: make(map[common.Address]*uint256.Int)}
}

// SetUnderlyingPrice records the price of market's underlying asset.
func (o *SimplePriceOracle) SetUnderlyingPrice(market common.Address, price *uint256.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if price == nil {
		delete(o.prices, market)
		return
	}
	o.prices[market] = new(uint256.Int).Set(price)
}

func (o *SimplePriceOracle) UnderlyingPrice(market common.Address) (*uint256.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if price, ok := o.prices[market]; ok {
		return new(uint256.Int).Set(price), nil
	}
	return new(uint256.Int), nil
}
