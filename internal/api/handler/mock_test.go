package handler

import (
	"context"

	"github.com/pollwise/acdash/internal/stats"
)

// fakeStatsService implements StatsService and CacheInvalidator with canned
// responses.
type fakeStatsService struct {
	result  *stats.Result
	results []stats.Result
	err     error

	tenantCalls []int
	allCalls    int
	removed     int
}

func (f *fakeStatsService) GetStats(_ context.Context, acID int) (*stats.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeStatsService) AllStats(_ context.Context) ([]stats.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeStatsService) InvalidateTenant(acID int) int {
	f.tenantCalls = append(f.tenantCalls, acID)
	return f.removed
}

func (f *fakeStatsService) InvalidateAll() int {
	f.allCalls++
	return f.removed
}
