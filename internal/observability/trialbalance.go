package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TrialBalanceGauges menyimpan hasil pemeriksaan neraca saldo terakhir. Hanya
// proses worker yang menjalankan pemeriksaan yang boleh mendaftarkannya.
type TrialBalanceGauges struct {
	difference prometheus.Gauge
	balanced   prometheus.Gauge
	checkedAt  prometheus.Gauge
}

// NewTrialBalanceGauges mendaftarkan gauge neraca saldo pada registerer.
func NewTrialBalanceGauges(registerer prometheus.Registerer) *TrialBalanceGauges {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	g := &TrialBalanceGauges{
		difference: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledgerdesk_trial_balance_difference",
			Help: "Absolute difference between total debit and total credit at the last check.",
		}),
		balanced: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledgerdesk_trial_balance_balanced",
			Help: "1 when the last trial balance check tallied, 0 otherwise.",
		}),
		checkedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledgerdesk_trial_balance_last_check_timestamp_seconds",
			Help: "Unix time of the last completed trial balance check, 0 before the first one.",
		}),
	}
	registerer.MustRegister(g.difference, g.balanced, g.checkedAt)
	return g
}

// ObserveTrialBalance mencatat hasil pemeriksaan neraca saldo terakhir.
func (g *TrialBalanceGauges) ObserveTrialBalance(difference float64, balanced bool, at time.Time) {
	if g == nil {
		return
	}
	g.difference.Set(difference)
	if balanced {
		g.balanced.Set(1)
	} else {
		g.balanced.Set(0)
	}
	g.checkedAt.Set(float64(at.Unix()))
}
