package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)

	exists, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Add(ctx, "evt-1"))

	exists, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(10 * time.Millisecond)

	require.NoError(t, store.Add(ctx, "evt-1"))
	time.Sleep(20 * time.Millisecond)

	exists, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, store.Len())
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)

	calls := 0
	handler := IdempotentHandler(store, "commerce.payment.captured", "order-service", func(_ context.Context, _ *Event) error {
		calls++
		return nil
	}, discardLogger())

	event := &Event{EventID: "evt-1", EventType: "payment.captured", AggregateID: "pay-1"}

	require.NoError(t, handler(ctx, event))
	require.NoError(t, handler(ctx, event))
	require.NoError(t, handler(ctx, event))

	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_DoesNotRecordFailures(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)

	calls := 0
	handler := IdempotentHandler(store, "commerce.payment.captured", "order-service", func(_ context.Context, _ *Event) error {
		calls++
		if calls == 1 {
			return errors.New("transient failure")
		}
		return nil
	}, discardLogger())

	event := &Event{EventID: "evt-1", EventType: "payment.captured", AggregateID: "pay-1"}

	require.Error(t, handler(ctx, event))
	require.NoError(t, handler(ctx, event))

	assert.Equal(t, 2, calls)

	exists, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestIdempotentHandler_MissingEventID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)

	calls := 0
	handler := IdempotentHandler(store, "commerce.payment.captured", "order-service", func(_ context.Context, _ *Event) error {
		calls++
		return nil
	}, discardLogger())

	event := &Event{EventType: "payment.captured"}

	require.NoError(t, handler(ctx, event))
	require.NoError(t, handler(ctx, event))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, store.Len())
}
