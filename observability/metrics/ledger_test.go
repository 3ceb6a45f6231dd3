package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCoopMetricsPublish(t *testing.T) {
	m := Coop()
	if m == nil {
		t.Fatalf("expected singleton registry")
	}
	if again := Coop(); again != m {
		t.Fatalf("expected Coop to return the same registry")
	}

	m.SetMembership(3)
	m.SetTreasury(big.NewInt(300))
	m.SetLoanBook(1, big.NewInt(100), big.NewInt(300))
	m.RecordDistribution("interest")
	m.RecordDistribution("interest")
	m.RecordClaim("yield")
	m.RecordDistribution("")

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := gaugeValue(t, families, "coop_active_members"); got != 3 {
		t.Fatalf("active members gauge = %v, want 3", got)
	}
	if got := gaugeValue(t, families, "coop_active_loans"); got != 1 {
		t.Fatalf("active loans gauge = %v, want 1", got)
	}
	if got := gaugeValue(t, families, "coop_treasury_balance_wei"); got != 300 {
		t.Fatalf("treasury gauge = %v, want 300", got)
	}
	// 100 lent against 300 still held: 100/400.
	if got := gaugeValue(t, families, "coop_utilization_ratio"); got != 0.25 {
		t.Fatalf("utilization gauge = %v, want 0.25", got)
	}
	if got := counterValue(t, families, "coop_distributions_total", "interest"); got != 2 {
		t.Fatalf("interest distributions = %v, want 2", got)
	}
	if got := counterValue(t, families, "coop_distributions_total", "unknown"); got != 1 {
		t.Fatalf("unlabeled distributions = %v, want 1", got)
	}
	if got := counterValue(t, families, "coop_rewards_claimed_total", "yield"); got != 1 {
		t.Fatalf("yield claims = %v, want 1", got)
	}
}

func TestCoopMetricsNilReceiver(t *testing.T) {
	var m *CoopMetrics
	m.SetMembership(1)
	m.SetLoanBook(1, big.NewInt(1), big.NewInt(1))
	m.SetTreasury(big.NewInt(1))
	m.RecordDistribution("interest")
	m.RecordClaim("yield")
}

func TestBigToFloat(t *testing.T) {
	if got := bigToFloat(nil); got != 0 {
		t.Fatalf("nil value = %v, want 0", got)
	}
	if got := bigToFloat(big.NewInt(1500)); got != 1500 {
		t.Fatalf("small value = %v, want 1500", got)
	}
	huge := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	if got := bigToFloat(huge); got <= 0 {
		t.Fatalf("large value = %v, want positive approximation", got)
	}
}

func gaugeValue(t *testing.T, families []*dto.MetricFamily, name string) float64 {
	t.Helper()
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		if len(family.Metric) == 0 || family.Metric[0].Gauge == nil {
			t.Fatalf("family %s has no gauge sample", name)
		}
		return family.Metric[0].Gauge.GetValue()
	}
	t.Fatalf("family %s not gathered", name)
	return 0
}

func counterValue(t *testing.T, families []*dto.MetricFamily, name, category string) float64 {
	t.Helper()
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.Metric {
			if metric.Counter == nil {
				continue
			}
			for _, label := range metric.Label {
				if label.GetName() == "category" && label.GetValue() == category {
					return metric.Counter.GetValue()
				}
			}
		}
		t.Fatalf("family %s has no %q sample", name, category)
	}
	t.Fatalf("family %s not gathered", name)
	return 0
}
