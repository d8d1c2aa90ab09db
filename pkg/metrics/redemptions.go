package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const RedemptionResultSuccess = "success"

//nolint:gochecknoglobals
var (
	redemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashdeal_redemptions_total",
		Help: "Redemption attempts by terminal result code.",
	}, []string{"result"})

	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashdeal_sweep_runs_total",
		Help: "Completed expiration sweeps.",
	})

	sweptDealsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashdeal_swept_deals_total",
		Help: "Deals retired by expiration sweeps.",
	})
)

func ObserveRedemption(result string) {
	redemptionsTotal.WithLabelValues(result).Inc()
}

func ObserveSweep(deactivated int) {
	sweepRunsTotal.Inc()
	sweptDealsTotal.Add(float64(deactivated))
}
