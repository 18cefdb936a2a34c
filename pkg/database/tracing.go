package database

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/cartstore/pkg/database"

// TracingHook is a redis.Hook that wraps every command and pipeline in a
// client span. Commands slower than SlowThreshold are logged as warnings.
type TracingHook struct {
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

var _ redis.Hook = (*TracingHook)(nil)

// NewTracingHook returns a hook that logs commands slower than threshold. A
// zero threshold or nil logger disables slow command logging.
func NewTracingHook(threshold time.Duration, logger *slog.Logger) *TracingHook {
	return &TracingHook{SlowThreshold: threshold, Logger: logger}
}

func (h *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		ctx, end := h.trace(ctx, "dial", addr)
		conn, err := next(ctx, network, addr)
		end(err)
		return conn, err
	}
}

func (h *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, end := h.trace(ctx, cmd.Name(), cmd.FullName())
		err := next(ctx, cmd)
		end(err)
		return err
	}
}

func (h *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		names := make([]string, len(cmds))
		for i, cmd := range cmds {
			names[i] = cmd.Name()
		}
		ctx, end := h.trace(ctx, "pipeline", strings.Join(names, " "))
		err := next(ctx, cmds)
		end(err)
		return err
	}
}

// trace starts a span for one Redis operation. Only command names are
// recorded, never keys or values. redis.Nil is a cache miss, not an error.
func (h *TracingHook) trace(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "redis."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil && !errors.Is(err, redis.Nil) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if h.SlowThreshold <= 0 || h.Logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= h.SlowThreshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.String("statement", statement),
				slog.Duration("duration", elapsed),
			}
			if err != nil && !errors.Is(err, redis.Nil) {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			h.Logger.WarnContext(ctx, "slow redis command", attrs...)
		}
	}
}
