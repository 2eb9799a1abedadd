package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector bundles the engine's prometheus instruments.
type Collector struct {
	DispatchesTotal *prometheus.CounterVec
	TicksTotal      prometheus.Counter
	PublishesTotal  prometheus.Counter
	PublishErrors   prometheus.Counter
	RevealsTotal    prometheus.Counter

	HeartRate prometheus.Gauge
	SpO2      prometheus.Gauge
	SimTime   prometheus.Gauge
}

// NewCollector registers the instruments on the provided registerer, or the
// default one when nil.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		DispatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vitalsim",
			Subsystem: "store",
			Name:      "dispatches_total",
			Help:      "Total actions reduced into the simulation store, by action tag.",
		}, []string{"action"}),
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vitalsim",
			Subsystem: "engine",
			Name:      "clock_ticks_total",
			Help:      "Total one-second clock ticks dispatched.",
		}),
		PublishesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vitalsim",
			Subsystem: "replication",
			Name:      "publishes_total",
			Help:      "Total projections published to the session channel.",
		}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vitalsim",
			Subsystem: "replication",
			Name:      "publish_errors_total",
			Help:      "Projections that failed to publish.",
		}),
		RevealsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vitalsim",
			Subsystem: "engine",
			Name:      "investigation_reveals_total",
			Help:      "Investigations revealed after their latency elapsed.",
		}),
		HeartRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vitalsim",
			Subsystem: "patient",
			Name:      "heart_rate",
			Help:      "Current simulated heart rate.",
		}),
		SpO2: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vitalsim",
			Subsystem: "patient",
			Name:      "spo2",
			Help:      "Current simulated oxygen saturation.",
		}),
		SimTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vitalsim",
			Subsystem: "engine",
			Name:      "sim_time_seconds",
			Help:      "Current scenario clock in seconds.",
		}),
	}
}

// ObserveDispatch implements the store's dispatch observer.
func (c *Collector) ObserveDispatch(action string) {
	c.DispatchesTotal.WithLabelValues(action).Inc()
}

// Published and PublishFailed implement the broadcaster's publish counter.
func (c *Collector) Published()     { c.PublishesTotal.Inc() }
func (c *Collector) PublishFailed() { c.PublishErrors.Inc() }

// Serve exposes /metrics until the context is cancelled. Listener errors
// other than a clean shutdown are logged, never fatal.
func Serve(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("Metrics listener stopped", zap.Error(err))
	}
}
