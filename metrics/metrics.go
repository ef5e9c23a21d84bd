// Package metrics exposes Prometheus metrics for record construction. The
// Collector implements record.Hooks, so attaching it to a type with
// record.WithHooks is the whole wiring.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/structlite/record"
)

// Collector holds the construction metrics. One collector can serve any
// number of record types; the type name is a label.
type Collector struct {
	ConstructionsTotal   *prometheus.CounterVec
	ConstructionFailures *prometheus.CounterVec
	ConstructionDuration *prometheus.HistogramVec
	FieldWritesTotal     *prometheus.CounterVec
}

var _ record.Hooks = (*Collector)(nil)

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ConstructionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "structlite",
				Name:      "constructions_total",
				Help:      "Total number of successful record constructions",
			},
			[]string{"type", "frozen"},
		),
		ConstructionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "structlite",
				Name:      "construction_failures_total",
				Help:      "Total number of failed record constructions",
			},
			[]string{"type", "field", "kind"},
		),
		ConstructionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "structlite",
				Name:      "construction_duration_seconds",
				Help:      "Record construction duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"type"},
		),
		FieldWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "structlite",
				Name:      "field_writes_total",
				Help:      "Total number of successful mutable field writes",
			},
			[]string{"type", "field"},
		),
	}
}

// RecordConstructed implements record.Hooks.
func (c *Collector) RecordConstructed(typ string, frozen bool, elapsed time.Duration) {
	frozenLabel := "false"
	if frozen {
		frozenLabel = "true"
	}
	c.ConstructionsTotal.WithLabelValues(typ, frozenLabel).Inc()
	c.ConstructionDuration.WithLabelValues(typ).Observe(elapsed.Seconds())
}

// ConstructionFailed implements record.Hooks. The field label is "none"
// for failures not scoped to one field.
func (c *Collector) ConstructionFailed(typ, field string, err error) {
	if field == "" {
		field = "none"
	}
	c.ConstructionFailures.WithLabelValues(typ, field, errorKind(err)).Inc()
}

// FieldWritten implements record.Hooks.
func (c *Collector) FieldWritten(typ, field string) {
	c.FieldWritesTotal.WithLabelValues(typ, field).Inc()
}

// errorKind maps the record error types to a low-cardinality label.
func errorKind(err error) string {
	var (
		missing   *record.MissingFieldError
		mismatch  *record.TypeMismatchError
		invalid   *record.ValidationError
		immutable *record.ImmutableWriteError
		async     *record.AsyncRequiredError
		unknown   *record.UnknownFieldError
		tooMany   *record.TooManyValuesError
	)
	switch {
	case errors.As(err, &missing):
		return "missing_field"
	case errors.As(err, &mismatch):
		return "type_mismatch"
	case errors.As(err, &invalid):
		return "validation"
	case errors.As(err, &immutable):
		return "immutable_write"
	case errors.As(err, &async):
		return "async_required"
	case errors.As(err, &unknown):
		return "unknown_field"
	case errors.As(err, &tooMany):
		return "too_many_values"
	default:
		return "other"
	}
}
