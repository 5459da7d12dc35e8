package perf

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/fittings"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/scan"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

type delayedStore struct{ delay time.Duration }

func (s delayedStore) Lookup(ctx context.Context, id string) (fittings.Record, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return fittings.Record{}, ctx.Err()
	}
	if id == "" {
		return fittings.Record{}, shared.ErrNotFound
	}
	return fittings.Record{FittingID: id}, nil
}

type noDecoder struct{}

func (noDecoder) Decode(context.Context, []byte) (scan.DecodeOutcome, error) {
	return scan.DecodeOutcome{}, shared.ErrCollaboratorUnavailable
}

func newResolver(delay time.Duration) *scan.Resolver {
	return scan.NewResolver(noDecoder{}, delayedStore{delay: delay}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestManualLookupLatencyTargets(t *testing.T) {
	scenarios := []struct {
		name      string
		delay     time.Duration
		threshold time.Duration
	}{
		{name: "cached", delay: time.Millisecond, threshold: 100 * time.Millisecond},
		{name: "cold", delay: 20 * time.Millisecond, threshold: 500 * time.Millisecond},
	}

	for _, scenario := range scenarios {
		resolver := newResolver(scenario.delay)
		samples := make([]time.Duration, 0, 20)
		for i := 0; i < 20; i++ {
			key := "session-" + strconv.Itoa(i%4)
			start := time.Now()
			if _, err := resolver.Submit(context.Background(), key, scan.ManualAttempt("FIT-2024-001", start)); err != nil {
				t.Fatalf("%s: submit: %v", scenario.name, err)
			}
			samples = append(samples, time.Since(start))
		}
		if p95 := percentile95(samples); p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkResolverManualID(b *testing.B) {
	resolver := newResolver(0)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := resolver.Submit(ctx, "bench", scan.ManualAttempt("FIT-2024-001", time.Time{})); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCapabilityMatrix(b *testing.B) {
	roles := rbac.Roles()
	catalog := rbac.Catalog()
	for i := 0; i < b.N; i++ {
		for _, role := range roles {
			for _, action := range catalog {
				_ = rbac.IsPermitted(role, action)
			}
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
