package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CoopMetrics wraps collectors tracking the cooperative ledger's health.
type CoopMetrics struct {
	activeMembers  prometheus.Gauge
	activeLoans    prometheus.Gauge
	treasury       prometheus.Gauge
	utilization    prometheus.Gauge
	distributions  *prometheus.CounterVec
	rewardsClaimed *prometheus.CounterVec
}

var (
	coopOnce     sync.Once
	coopRegistry *CoopMetrics
)

// Coop returns the singleton cooperative metrics registry.
func Coop() *CoopMetrics {
	coopOnce.Do(func() {
		coopRegistry = &CoopMetrics{
			activeMembers: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "coop_active_members",
				Help: "Number of members currently active in the cooperative.",
			}),
			activeLoans: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "coop_active_loans",
				Help: "Number of loans currently outstanding.",
			}),
			treasury: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "coop_treasury_balance_wei",
				Help: "Treasury balance in wei, lossily converted to float.",
			}),
			utilization: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "coop_utilization_ratio",
				Help: "Share of treasury capital currently lent out (0-1).",
			}),
			distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "coop_distributions_total",
				Help: "Count of reward distributions by category.",
			}, []string{"category"}),
			rewardsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "coop_rewards_claimed_total",
				Help: "Count of successful reward claims by category.",
			}, []string{"category"}),
		}
		prometheus.MustRegister(
			coopRegistry.activeMembers,
			coopRegistry.activeLoans,
			coopRegistry.treasury,
			coopRegistry.utilization,
			coopRegistry.distributions,
			coopRegistry.rewardsClaimed,
		)
	})
	return coopRegistry
}

// SetMembership updates the active member gauge.
func (m *CoopMetrics) SetMembership(active uint64) {
	if m == nil {
		return
	}
	m.activeMembers.Set(float64(active))
}

// SetLoanBook updates the outstanding loan gauge and the utilization ratio
// derived from the lent and total treasury amounts.
func (m *CoopMetrics) SetLoanBook(activeLoans int, lent, treasury *big.Int) {
	if m == nil {
		return
	}
	m.activeLoans.Set(float64(activeLoans))
	lentVal := bigToFloat(lent)
	treasuryVal := bigToFloat(treasury)
	total := lentVal + treasuryVal
	ratio := 0.0
	if total > 0 {
		ratio = lentVal / total
		if ratio > 1 {
			ratio = 1
		}
	}
	m.utilization.Set(ratio)
}

// SetTreasury updates the treasury balance gauge.
func (m *CoopMetrics) SetTreasury(balance *big.Int) {
	if m == nil {
		return
	}
	m.treasury.Set(bigToFloat(balance))
}

// RecordDistribution counts a completed reward distribution.
func (m *CoopMetrics) RecordDistribution(category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "unknown"
	}
	m.distributions.WithLabelValues(category).Inc()
}

// RecordClaim counts a successful reward claim.
func (m *CoopMetrics) RecordClaim(category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "unknown"
	}
	m.rewardsClaimed.WithLabelValues(category).Inc()
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
