package metrics

import (
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type BondMetrics struct {
	deposits        *prometheus.CounterVec
	redemptions     *prometheus.CounterVec
	failures        *prometheus.CounterVec
	payoutIssued    *prometheus.CounterVec
	controlVariable *prometheus.GaugeVec
	currentDebt     *prometheus.GaugeVec
	bondPrice       *prometheus.GaugeVec
}

var (
	bondOnce     sync.Once
	bondRegistry *BondMetrics
)

func Bond() *BondMetrics {
	bondOnce.Do(func() {
		bondRegistry = &BondMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bond_deposits_total",
				Help: "Count of settled bond deposits by market.",
			}, []string{"market"}),
			redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bond_redemptions_total",
				Help: "Count of redemptions by market and whether the bond closed.",
			}, []string{"market", "closed"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bond_failures_total",
				Help: "Count of rejected bond operations by market, operation and reason.",
			}, []string{"market", "operation", "reason"}),
			payoutIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bond_payout_issued",
				Help: "Payout tokens committed to bonds in base units.",
			}, []string{"market"}),
			controlVariable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "bond_control_variable",
				Help: "Current control variable of each market.",
			}, []string{"market"}),
			currentDebt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "bond_current_debt",
				Help: "Outstanding debt net of decay in payout base units.",
			}, []string{"market"}),
			bondPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "bond_true_price",
				Help: "Fee-inclusive bond price observed after the last operation.",
			}, []string{"market"}),
		}
		prometheus.MustRegister(
			bondRegistry.deposits,
			bondRegistry.redemptions,
			bondRegistry.failures,
			bondRegistry.payoutIssued,
			bondRegistry.controlVariable,
			bondRegistry.currentDebt,
			bondRegistry.bondPrice,
		)
	})
	return bondRegistry
}

func (m *BondMetrics) ObserveDeposit(market string, payout *big.Int) {
	if m == nil {
		return
	}
	market = labelMarket(market)
	m.deposits.WithLabelValues(market).Inc()
	m.payoutIssued.WithLabelValues(market).Add(bigToFloat(payout))
}

func (m *BondMetrics) ObserveRedeem(market string, closed bool) {
	if m == nil {
		return
	}
	label := "false"
	if closed {
		label = "true"
	}
	m.redemptions.WithLabelValues(labelMarket(market), label).Inc()
}

func (m *BondMetrics) ObserveFailure(market, operation, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.failures.WithLabelValues(labelMarket(market), operation, reason).Inc()
}

// RecordMarket refreshes the gauges describing a market.
func (m *BondMetrics) RecordMarket(market string, controlVariable, currentDebt, truePrice *big.Int) {
	if m == nil {
		return
	}
	market = labelMarket(market)
	if controlVariable != nil {
		m.controlVariable.WithLabelValues(market).Set(bigToFloat(controlVariable))
	}
	if currentDebt != nil {
		m.currentDebt.WithLabelValues(market).Set(bigToFloat(currentDebt))
	}
	if truePrice != nil {
		m.bondPrice.WithLabelValues(market).Set(bigToFloat(truePrice))
	}
}

func labelMarket(market string) string {
	trimmed := strings.TrimSpace(market)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) {
		return math.MaxFloat64
	}
	return f
}
