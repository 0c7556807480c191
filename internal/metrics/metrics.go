package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"MacroTracker/internal/logger"
)

var (
	// Scheduler metrics
	SchedulerTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "macrotracker_scheduler_ticks_total",
			Help: "Total number of scheduler ticks",
		},
	)

	ActiveMacro = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "macrotracker_active_macro",
			Help: "1 while the labelled macro window is active",
		},
		[]string{"macro"},
	)

	MacroTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macrotracker_macro_transitions_total",
			Help: "Macro window start/end transitions seen by the ticker",
		},
		[]string{"macro", "kind"}, // kind: started|ended
	)

	// Journal metrics
	JournalWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macrotracker_journal_writes_total",
			Help: "Log store writes dispatched by the journal",
		},
		[]string{"op", "status"}, // status: success|error
	)

	JournalRollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macrotracker_journal_rollbacks_total",
			Help: "Optimistic writes reverted after a store failure",
		},
		[]string{"op"},
	)

	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "macrotracker_store_latency_seconds",
			Help:    "Log store call latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"op"},
	)

	// Notifier metrics
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macrotracker_notifications_total",
			Help: "Outbound notifications",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(SchedulerTicks)
	prometheus.MustRegister(ActiveMacro)
	prometheus.MustRegister(MacroTransitions)
	prometheus.MustRegister(JournalWrites)
	prometheus.MustRegister(JournalRollbacks)
	prometheus.MustRegister(StoreLatency)
	prometheus.MustRegister(NotificationsSent)
}

// ObserveStore records the latency of one store call.
func ObserveStore(op string, start time.Time) {
	StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Get().Infow("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
