package database

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	return rec
}

func hookedClient(t *testing.T, hook *TracingHook) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client.AddHook(hook)
	t.Cleanup(func() { client.Close() })
	return client
}

func spanByName(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func TestTracingHook_CommandSpans(t *testing.T) {
	rec := recordSpans(t)
	client := hookedClient(t, NewTracingHook(0, nil))
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "cart:session:a", "{}", time.Minute).Err())
	err := client.Get(ctx, "cart:session:missing").Err()
	require.ErrorIs(t, err, redis.Nil)

	spans := rec.Ended()
	set := spanByName(spans, "redis.set")
	require.NotNil(t, set)
	assert.Contains(t, set.Attributes(), attribute.String("db.system", "redis"))

	get := spanByName(spans, "redis.get")
	require.NotNil(t, get)
	assert.Equal(t, codes.Unset, get.Status().Code, "a miss is not an error")
}

func TestTracingHook_PipelineSpan(t *testing.T) {
	rec := recordSpans(t)
	client := hookedClient(t, NewTracingHook(0, nil))
	ctx := context.Background()

	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, "k", "v", 0)
		pipe.Expire(ctx, "k", time.Minute)
		return nil
	})
	require.NoError(t, err)

	span := spanByName(rec.Ended(), "redis.pipeline")
	require.NotNil(t, span)
	for _, kv := range span.Attributes() {
		if kv.Key == "db.statement" {
			assert.Contains(t, kv.Value.AsString(), "set")
			assert.Contains(t, kv.Value.AsString(), "expire")
		}
	}
}

func TestTracingHook_SlowCommandLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	client := hookedClient(t, NewTracingHook(time.Nanosecond, logger))

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	out := buf.String()
	assert.Contains(t, out, "slow redis command")
	assert.Contains(t, out, "operation=set")
	assert.NotContains(t, out, "statement=\"set k v\"", "values are never logged")
}

func TestTracingHook_SlowLoggingDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	client := hookedClient(t, NewTracingHook(0, logger))

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.Empty(t, buf.String())
}
