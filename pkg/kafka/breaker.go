package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned by BreakerPublisher while the breaker rejects
// publishes.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig tunes the circuit breaker in front of a publisher.
type BreakerConfig struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// MaxRequests is the number of trial publishes allowed while half-open.
	MaxRequests uint32

	// Interval clears the failure counts while closed. Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32

	// PublishTimeout bounds a single publish attempt. Zero leaves the
	// caller's deadline in charge.
	PublishTimeout time.Duration
}

// DefaultBreakerConfig returns the breaker settings used for cart events.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:           name,
		MaxRequests:    1,
		Interval:       60 * time.Second,
		Timeout:        30 * time.Second,
		FailureRatio:   0.5,
		MinRequests:    5,
		PublishTimeout: 2 * time.Second,
	}
}

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "kafka_circuit_breaker_state",
		Help: "State of the Kafka publish circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// EventPublisher is implemented by Producer and BreakerPublisher.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
}

// BreakerPublisher fails publishes fast while the brokers keep failing, so a
// broker outage does not stall the callers.
type BreakerPublisher struct {
	next    EventPublisher
	breaker *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
}

// NewBreakerPublisher wraps next with a circuit breaker.
func NewBreakerPublisher(next EventPublisher, cfg BreakerConfig, logger *slog.Logger) *BreakerPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("kafka circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &BreakerPublisher{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		timeout: cfg.PublishTimeout,
	}
}

// Publish forwards event to the wrapped publisher unless the breaker is open.
func (b *BreakerPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		if b.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		return struct{}{}, b.next.Publish(ctx, topic, event)
	})
	return err
}

// State returns the current breaker state.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.breaker.State()
}
