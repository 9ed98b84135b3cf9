package metrics

import (
	"net/http"

	"github.com/DoyleJ11/crash-backend/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts round and bet outcomes. It is an engine.Listener; one
// Recorder can be shared by every table.
type Recorder struct {
	engine.NopListener

	reg *prometheus.Registry

	Rounds       prometheus.Counter
	CrashPoints  prometheus.Histogram
	BetsPlaced   prometheus.Counter
	BetsResolved *prometheus.CounterVec
	Wagered      prometheus.Counter
	PlayerProfit prometheus.Gauge
	HTTPRequests *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_rounds_total",
			Help: "Rounds that reached the crashed phase",
		}),
		CrashPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crash_point_multiplier",
			Help:    "Crash point of each round",
			Buckets: []float64{1.01, 1.5, 2, 3, 5, 10, 20, 50, 100},
		}),
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_bets_placed_total",
			Help: "Accepted bets",
		}),
		BetsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crash_bets_resolved_total",
			Help: "Resolved bets by outcome",
		}, []string{"status"}),
		Wagered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_wagered_total",
			Help: "Sum of accepted bet amounts",
		}),
		PlayerProfit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crash_player_profit",
			Help: "Running sum of player profit; negative is house gain",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "route", "code"}),
	}
	r.reg.MustRegister(
		r.Rounds,
		r.CrashPoints,
		r.BetsPlaced,
		r.BetsResolved,
		r.Wagered,
		r.PlayerProfit,
		r.HTTPRequests,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Recorder) OnBetPlaced(b engine.Bet) {
	r.BetsPlaced.Inc()
	r.Wagered.Add(b.Amount.InexactFloat64())
}

func (r *Recorder) OnBetResolved(b engine.Bet) {
	r.BetsResolved.WithLabelValues(string(b.Status)).Inc()
	r.PlayerProfit.Add(b.Profit.InexactFloat64())
}

func (r *Recorder) OnRoundCrashed(res engine.RoundResult) {
	r.Rounds.Inc()
	r.CrashPoints.Observe(res.CrashPoint.Float64())
}
