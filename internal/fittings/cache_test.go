package fittings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	calls   atomic.Int32
	records map[string]Record
	gate    chan struct{}
	err     error
}

func (s *countingStore) Lookup(ctx context.Context, id string) (Record, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
	if s.err != nil {
		return Record{}, s.err
	}
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func newCache(t *testing.T, next Store, ttl time.Duration) (*CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedStore(next, client, ttl, nil), mr
}

func sampleRecord() Record {
	supplied := time.Date(2023, time.January, 10, 0, 0, 0, 0, time.UTC)
	return Record{
		FittingID:      "FIT-2024-001",
		FittingType:    "Elastic Rail Clip",
		VendorName:     "Bharat Forge",
		SupplyDate:     &supplied,
		WarrantyMonths: 36,
		Status:         StatusActive,
		Inspections:    []Inspection{{InspectionDate: supplied.AddDate(0, 6, 0), InspectorName: "R. Iyer", Severity: "minor"}},
	}
}

func TestCachedStoreReadThrough(t *testing.T) {
	store := &countingStore{records: map[string]Record{"FIT-2024-001": sampleRecord()}}
	cache, mr := newCache(t, store, time.Minute)
	ctx := context.Background()

	first, err := cache.Lookup(ctx, " FIT-2024-001 ")
	require.NoError(t, err)
	second, err := cache.Lookup(ctx, "FIT-2024-001")
	require.NoError(t, err)

	assert.Equal(t, int32(1), store.calls.Load())
	assert.Equal(t, first.FittingID, second.FittingID)
	assert.Equal(t, first.SupplyDate.Unix(), second.SupplyDate.Unix())
	assert.True(t, mr.Exists("fitting:FIT-2024-001"))

	mr.FastForward(2 * time.Minute)
	_, err = cache.Lookup(ctx, "FIT-2024-001")
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.calls.Load())
}

func TestCachedStoreDoesNotCacheMisses(t *testing.T) {
	store := &countingStore{records: map[string]Record{}}
	cache, _ := newCache(t, store, time.Minute)
	ctx := context.Background()

	_, err := cache.Lookup(ctx, "FIT-404")
	assert.ErrorIs(t, err, ErrNotFound)

	store.records["FIT-404"] = Record{FittingID: "FIT-404"}
	rec, err := cache.Lookup(ctx, "FIT-404")
	require.NoError(t, err)
	assert.Equal(t, "FIT-404", rec.FittingID)
}

func TestCachedStoreCollapsesConcurrentMisses(t *testing.T) {
	store := &countingStore{records: map[string]Record{"FIT-2024-001": sampleRecord()}, gate: make(chan struct{})}
	cache, _ := newCache(t, store, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Lookup(context.Background(), "FIT-2024-001")
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return store.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	assert.Equal(t, int32(1), store.calls.Load())
}

func TestCachedStoreDegradesWhenRedisDown(t *testing.T) {
	store := &countingStore{records: map[string]Record{"FIT-2024-001": sampleRecord()}}
	cache, mr := newCache(t, store, time.Minute)
	mr.Close()

	rec, err := cache.Lookup(context.Background(), "FIT-2024-001")
	require.NoError(t, err)
	assert.Equal(t, "FIT-2024-001", rec.FittingID)
}

func TestCachedStorePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	cache, _ := newCache(t, &countingStore{err: boom}, time.Minute)
	_, err := cache.Lookup(context.Background(), "FIT-2024-001")
	assert.ErrorIs(t, err, boom)
}

func TestInvalidate(t *testing.T) {
	store := &countingStore{records: map[string]Record{"FIT-2024-001": sampleRecord()}}
	cache, mr := newCache(t, store, time.Minute)
	ctx := context.Background()

	_, err := cache.Lookup(ctx, "FIT-2024-001")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "FIT-2024-001"))
	assert.False(t, mr.Exists("fitting:FIT-2024-001"))
}

func TestCachedStoreCallerCancellationDoesNotFailSharedLookup(t *testing.T) {
	store := &countingStore{records: map[string]Record{"FIT-2024-001": sampleRecord()}, gate: make(chan struct{})}
	cache, _ := newCache(t, store, time.Minute)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := cache.Lookup(leaderCtx, "FIT-2024-001")
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, time.Millisecond)

	follower := make(chan error, 1)
	go func() {
		rec, err := cache.Lookup(context.Background(), "FIT-2024-001")
		if err == nil && rec.FittingID != "FIT-2024-001" {
			err = errors.New("unexpected record " + rec.FittingID)
		}
		follower <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	close(store.gate)
	assert.NoError(t, <-follower)
	assert.Equal(t, int32(1), store.calls.Load())
}
