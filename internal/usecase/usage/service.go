// Package usage builds embedding API usage reports.
package usage

import (
	"context"
	"time"

	domusage "github.com/avaolo/agknow/internal/domain/usage"
)

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Limit(p domusage.Period) int64
	Used(p domusage.Period) int64
	Remaining(p domusage.Period) int64
}

// Service handles usage reporting.
type Service struct {
	br             BudgetReader
	costPerMillion float64
	now            func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
// costPerMillion is the embedding price in USD per million tokens.
func New(br BudgetReader, costPerMillion float64) *Service {
	return &Service{br: br, costPerMillion: costPerMillion, now: time.Now}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now().UTC()

	var start, end time.Time
	switch period {
	case domusage.PeriodMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	default:
		period = domusage.PeriodDay
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
	}

	var limit, used, remaining int64
	remaining = -1
	if s.br != nil {
		limit = s.br.Limit(period)
		used = s.br.Used(period)
		remaining = s.br.Remaining(period)
	}

	exhausted := limit > 0 && remaining <= 0
	b := domusage.NewBudget(limit, remaining, exhausted, end.UnixMilli())

	cost := float64(used) / 1_000_000 * s.costPerMillion

	return domusage.NewReport(period, start.UnixMilli(), end.UnixMilli(), used, cost, b)
}
