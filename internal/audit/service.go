// Package audit reads the audit trail written by the dispatch and login paths.
package audit

import (
	"context"
	"fmt"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// WindowParams selects a slice of the timeline. Zero times and empty strings
// disable the corresponding filter.
type WindowParams struct {
	Filters TimelineFilters
	Offset  int
	Limit   int
}

// Repository reads audit_logs.
type Repository interface {
	Window(ctx context.Context, params WindowParams) ([]TimelineRow, error)
	All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// Service pages through the audit timeline.
type Service struct {
	repo Repository
}

// NewService constructs the timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page. It fetches one extra row to learn whether a next
// page exists.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, WindowParams{
		Filters: filters,
		Offset:  (page - 1) * pageSize,
		Limit:   pageSize + 1,
	})
	if err != nil {
		return Result{}, fmt.Errorf("audit timeline: %w", err)
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every row matching filters.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	rows, err := s.repo.All(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("audit export: %w", err)
	}
	return rows, nil
}
