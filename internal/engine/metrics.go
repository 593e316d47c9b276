package engine

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railway_engine_operations_total",
			Help: "Engine operations by result",
		},
		[]string{"operation", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "railway_engine_operation_duration_seconds",
			Help:    "Time spent in engine operations including lock wait",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	promotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "railway_waitlist_promotions_total",
			Help: "Waiting list entries promoted into a released seat",
		},
	)

	mirrorReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railway_mirror_reloads_total",
			Help: "Full mirror rebuilds from durable storage",
		},
		[]string{"status"},
	)

	mirrorTrains = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "railway_mirror_trains",
			Help: "Trains currently published in the mirror",
		},
	)
)

// track records one finished operation.  result is "ok" or the error text
// of the taxonomy error.
func track(op string, start time.Time, err error) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	for _, e := range []error{
		ErrResourceNotFound, ErrReservationNotFound, ErrAlreadyCancelled,
		ErrInvalidCapacity, ErrStorageFailure, ErrConflict, ErrInvalidRequest,
	} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	if err != nil {
		return "error"
	}
	return "ok"
}
