package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Total reward grants by kind and final status
	GrantsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reward_grants_total",
		Help: "Total reward grant attempts by kind and status",
	}, []string{"kind", "status"})

	// Qualifying listing events accepted into the reward counter
	QualifyingEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reward_qualifying_events_total",
		Help: "Total qualifying listing events recorded",
	})

	// Spins by outcome kind
	SpinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spin_results_total",
		Help: "Total spin requests by result",
	}, []string{"result"})

	// Spins refunded after a failed prize issuance
	SpinRefundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spin_refunds_total",
		Help: "Total spins refunded after issuance failure",
	})

	// Airtime redemptions by status
	AirtimeRedeemTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "airtime_redeem_total",
		Help: "Total airtime redemption requests by status",
	}, []string{"status"})
)

func Init() {
	prometheus.MustRegister(
		GrantsTotal,
		QualifyingEventsTotal,
		SpinsTotal,
		SpinRefundsTotal,
		AirtimeRedeemTotal,
	)
}
