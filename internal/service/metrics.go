package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/utafrali/cartstore/pkg/errors"
)

var (
	cartOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_operations_total",
			Help: "Cart commands and queries by operation and outcome",
		},
		[]string{"operation", "result"},
	)

	cartConflictRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_conflict_retries_total",
			Help: "Optimistic-lock conflicts that caused a command to be retried",
		},
		[]string{"operation"},
	)

	cartEventPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_event_publish_failures_total",
			Help: "Cart change notifications that could not be published",
		},
		[]string{"event"},
	)
)

// outcome maps an operation error to a low-cardinality metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, apperrors.ErrLimitExceeded):
		return "limit"
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	case errors.Is(err, apperrors.ErrNotImplemented):
		return "not_implemented"
	default:
		return "error"
	}
}
