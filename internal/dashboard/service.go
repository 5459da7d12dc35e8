// Package dashboard aggregates fleet counters and the most recent alerts.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/alerts"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
)

// TopAlerts is the number of alerts shown on the dashboard.
const TopAlerts = 5

// Stats are the dashboard counters.
type Stats struct {
	TotalFittings     int `json:"total_fittings"`
	ActiveFittings    int `json:"active_fittings"`
	AttentionFittings int `json:"attention_fittings"`
	CriticalFittings  int `json:"critical_fittings"`
	WarrantyExpired   int `json:"warranty_expired"`
	OpenFaults        int `json:"open_faults"`
}

// Summary is the dashboard payload. Alerts is nil for roles without view_alerts.
type Summary struct {
	Stats       Stats          `json:"stats"`
	Alerts      []alerts.Alert `json:"alerts,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Repository computes counters as of a date.
type Repository interface {
	Stats(ctx context.Context, asOf time.Time) (Stats, error)
}

// AlertLister is the read side of the alert sink.
type AlertLister interface {
	ListAlerts(ctx context.Context, filter alerts.Filter) ([]alerts.Alert, error)
}

// Service assembles the dashboard.
type Service struct {
	repo   Repository
	alerts AlertLister
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the repository, alert lister and cache. cache may be nil.
func NewService(repo Repository, alerts AlertLister, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, alerts: alerts, cache: cache, logger: logger, now: time.Now}
}

// Summary returns the counters and, when the principal may view alerts, the
// newest alerts.
func (s *Service) Summary(ctx context.Context, p rbac.Principal) (Summary, error) {
	now := s.now().UTC()
	stats, err := s.stats(ctx, now)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Stats: stats, GeneratedAt: now}
	if rbac.IsPermitted(p.Role, rbac.ActionViewAlerts) {
		list, err := s.alerts.ListAlerts(ctx, alerts.Filter{Limit: TopAlerts})
		if err != nil {
			return Summary{}, fmt.Errorf("dashboard alerts: %w", err)
		}
		if len(list) > TopAlerts {
			list = list[:TopAlerts]
		}
		out.Alerts = list
	}
	return out, nil
}

func (s *Service) stats(ctx context.Context, now time.Time) (Stats, error) {
	day := now.Format("2006-01-02")
	loader := func(ctx context.Context) (any, error) {
		return s.repo.Stats(ctx, now)
	}
	key, err := s.cache.BuildKey(ctx, "dashboard", "stats", day)
	if err != nil {
		s.logger.Warn("dashboard cache key", slog.Any("error", err))
		return s.repo.Stats(ctx, now)
	}
	var stats Stats
	if err := s.cache.FetchJSON(ctx, key, &stats, loader); err != nil {
		return Stats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}

// Invalidate drops cached counters. It is called after writes that change them.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
