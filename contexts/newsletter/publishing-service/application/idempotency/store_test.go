package idempotency_test

import (
	"context"
	"testing"
	"time"

	"letterbox/contexts/newsletter/publishing-service/adapters/memory"
	"letterbox/contexts/newsletter/publishing-service/application/idempotency"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	"letterbox/contexts/newsletter/publishing-service/domain/valueobjects"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStore(t *testing.T) (idempotency.Store, *memory.Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	mem := memory.NewStore(clock, nil)
	return idempotency.Store{
		Records:      mem,
		Transactions: mem,
		Clock:        mem,
		TTL:          24 * time.Hour,
	}, mem, clock
}

func mustKey(t *testing.T, raw string) valueobjects.IdempotencyKey {
	t.Helper()
	key, err := valueobjects.ParseIdempotencyKey(raw)
	require.NoError(t, err)
	return key
}

func sampleResponse() entities.SavedResponse {
	return entities.SavedResponse{
		StatusCode: 303,
		Headers: []entities.HeaderPair{
			{Name: "Location", Value: []byte("/admin/newsletters")},
			{Name: "Set-Cookie", Value: []byte("flash=a")},
			{Name: "Set-Cookie", Value: []byte("flash=b")},
			{Name: "X-Raw", Value: []byte{0xff, 0xfe, 'o', 'k'}},
		},
		Body: []byte{0x00, 'b', 'o', 'd', 'y', 0x80},
	}
}

func TestClaimFinalizeReplaysIdenticalResponse(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)
	key := mustKey(t, "publish-1")

	action, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	require.False(t, action.IsReplay())
	require.NotNil(t, action.Tx)

	original := sampleResponse()
	returned, err := store.Finalize(ctx, action.Tx, "owner-1", key, original)
	require.NoError(t, err)
	assert.Equal(t, original, returned)

	replay, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	require.True(t, replay.IsReplay())
	assert.Nil(t, replay.Tx)
	assert.Equal(t, original, *replay.Saved)
}

func TestClaimIsolatesOwners(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)
	key := mustKey(t, "shared-key")

	first, err := store.Claim(ctx, "owner-a", key)
	require.NoError(t, err)
	_, err = store.Finalize(ctx, first.Tx, "owner-a", key, sampleResponse())
	require.NoError(t, err)

	second, err := store.Claim(ctx, "owner-b", key)
	require.NoError(t, err)
	require.False(t, second.IsReplay())
	require.NoError(t, second.Tx.Rollback(ctx))
}

func TestFetchReportsExpiredAndDeletesRecord(t *testing.T) {
	ctx := context.Background()
	store, mem, clock := newTestStore(t)
	key := mustKey(t, "old-key")

	action, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	_, err = store.Finalize(ctx, action.Tx, "owner-1", key, sampleResponse())
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)

	result, err := store.Fetch(ctx, "owner-1", key)
	require.NoError(t, err)
	assert.Equal(t, idempotency.FetchExpired, result.Status)

	_, found, err := mem.GetRecord(ctx, "owner-1", key.String())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClaimReprocessesAfterTTL(t *testing.T) {
	ctx := context.Background()
	store, mem, clock := newTestStore(t)
	key := mustKey(t, "reuse-after-ttl")

	action, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	_, err = store.Finalize(ctx, action.Tx, "owner-1", key, sampleResponse())
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)

	fresh, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	require.False(t, fresh.IsReplay())

	next := entities.SavedResponse{StatusCode: 200, Body: []byte(`{"second":true}`)}
	_, err = store.Finalize(ctx, fresh.Tx, "owner-1", key, next)
	require.NoError(t, err)

	record, found, err := mem.GetRecord(ctx, "owner-1", key.String())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, clock.Now().UTC(), record.CreatedAt)
	assert.Equal(t, next, *record.Response)
}

func TestAbandonedClaimLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)
	key := mustKey(t, "abandoned")

	action, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	require.NoError(t, action.Tx.Rollback(ctx))

	result, err := store.Fetch(ctx, "owner-1", key)
	require.NoError(t, err)
	assert.Equal(t, idempotency.FetchNotFound, result.Status)

	again, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	require.False(t, again.IsReplay())
	require.NoError(t, again.Tx.Rollback(ctx))
}

func TestConcurrentClaimWaitsForFirstAndReplays(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)
	key := mustKey(t, "raced")

	first, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	require.False(t, first.IsReplay())

	type outcome struct {
		action idempotency.NextAction
		err    error
	}
	results := make(chan outcome, 1)
	go func() {
		action, err := store.Claim(ctx, "owner-1", key)
		results <- outcome{action: action, err: err}
	}()

	select {
	case <-results:
		t.Fatal("second claim returned while the first claim was still open")
	case <-time.After(50 * time.Millisecond):
	}

	_, err = store.Finalize(ctx, first.Tx, "owner-1", key, sampleResponse())
	require.NoError(t, err)

	select {
	case got := <-results:
		require.NoError(t, got.err)
		require.True(t, got.action.IsReplay())
		assert.Equal(t, sampleResponse(), *got.action.Saved)
	case <-time.After(time.Second):
		t.Fatal("second claim did not resume after the first committed")
	}
}

func TestClaimWithoutSavedResponseLogsAndProceeds(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)
	core, logs := observer.New(zapcore.WarnLevel)
	store.Logger = zap.New(core)
	key := mustKey(t, "in-flight")

	action, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	// Committing the claim without a response leaves an in-flight marker.
	require.NoError(t, action.Tx.Commit(ctx))

	result, err := store.Fetch(ctx, "owner-1", key)
	require.NoError(t, err)
	assert.Equal(t, idempotency.FetchNotFound, result.Status)

	second, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	require.False(t, second.IsReplay())
	assert.Equal(t, 1, logs.FilterMessage("saved response could not be retrieved").Len())

	_, err = store.Finalize(ctx, second.Tx, "owner-1", key, sampleResponse())
	require.NoError(t, err)

	replay, err := store.Claim(ctx, "owner-1", key)
	require.NoError(t, err)
	require.True(t, replay.IsReplay())
}
