package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics tracks engine operations and per-market ledger gauges.
type LendingMetrics struct {
	operations   *prometheus.CounterVec
	reentrancy   prometheus.Counter
	accruals     *prometheus.CounterVec
	liquidations *prometheus.CounterVec
	cash         *prometheus.GaugeVec
	borrows      *prometheus.GaugeVec
	reserves     *prometheus.GaugeVec
	supply       *prometheus.GaugeVec
	exchangeRate *prometheus.GaugeVec
	blockNumber  prometheus.Gauge
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the lazily registered lending metrics.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Name:      "operations_total",
				Help:      "Count of engine operations by name and outcome code.",
			}, []string{"operation", "result"}),
			reentrancy: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "lending",
				Name:      "reentrancy_rejections_total",
				Help:      "Count of nested engine entries rejected by the reentrancy guard.",
			}),
			accruals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Name:      "accruals_total",
				Help:      "Count of interest accruals that advanced a market.",
			}, []string{"market"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lending",
				Name:      "liquidations_total",
				Help:      "Count of successful liquidations by borrowed market.",
			}, []string{"market"}),
			cash: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lending",
				Name:      "market_cash",
				Help:      "Internal cash held by the market in underlying base units.",
			}, []string{"market"}),
			borrows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lending",
				Name:      "market_total_borrows",
				Help:      "Outstanding borrows of the market in underlying base units.",
			}, []string{"market"}),
			reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lending",
				Name:      "market_total_reserves",
				Help:      "Protocol reserves of the market in underlying base units.",
			}, []string{"market"}),
			supply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lending",
				Name:      "market_total_supply",
				Help:      "Pool tokens in circulation.",
			}, []string{"market"}),
			exchangeRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lending",
				Name:      "market_exchange_rate",
				Help:      "Stored exchange rate of pool tokens to underlying.",
			}, []string{"market"}),
			blockNumber: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lending",
				Name:      "block_number",
				Help:      "Block number currently seen by the engine.",
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.reentrancy,
			lendingRegistry.accruals,
			lendingRegistry.liquidations,
			lendingRegistry.cash,
			lendingRegistry.borrows,
			lendingRegistry.reserves,
			lendingRegistry.supply,
			lendingRegistry.exchangeRate,
			lendingRegistry.blockNumber,
		)
	})
	return lendingRegistry
}

func (m *LendingMetrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *LendingMetrics) ObserveReentrancy() {
	if m == nil {
		return
	}
	m.reentrancy.Inc()
}

func (m *LendingMetrics) ObserveAccrual(market string) {
	if m == nil {
		return
	}
	m.accruals.WithLabelValues(market).Inc()
}

// Accruals exposes the committed accrual counter of market.
func (m *LendingMetrics) Accruals(market string) prometheus.Counter {
	return m.accruals.WithLabelValues(market)
}

func (m *LendingMetrics) ObserveLiquidation(market string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(market).Inc()
}

// RecordMarket publishes the ledger gauges of a market. Values are exported as
// floats; exchangeRate is scaled by 1e-18.
func (m *LendingMetrics) RecordMarket(market string, cash, borrows, reserves, supply, exchangeRate *big.Int) {
	if m == nil {
		return
	}
	m.cash.WithLabelValues(market).Set(toFloat(cash, 0))
	m.borrows.WithLabelValues(market).Set(toFloat(borrows, 0))
	m.reserves.WithLabelValues(market).Set(toFloat(reserves, 0))
	m.supply.WithLabelValues(market).Set(toFloat(supply, 0))
	m.exchangeRate.WithLabelValues(market).Set(toFloat(exchangeRate, 18))
}

func (m *LendingMetrics) SetBlockNumber(number uint64) {
	if m == nil {
		return
	}
	m.blockNumber.Set(float64(number))
}

func toFloat(v *big.Int, decimals int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	if decimals > 0 {
		f.Quo(f, new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)))
	}
	out, _ := f.Float64()
	return out
}
