// Package usage holds embedding API usage reporting value objects.
package usage

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// IsValid checks if the period is one of the supported values.
func (p Period) IsValid() bool {
	return p == PeriodDay || p == PeriodMonth
}

// Budget tracks embedding API token budget state.
type Budget struct {
	tokensLimit     int64
	tokensRemaining int64
	isExhausted     bool
	resetsAt        int64 // unix millis, converted to ISO 8601 at transport layer
}

// NewBudget creates a Budget snapshot.
func NewBudget(limit, remaining int64, isExhausted bool, resetsAt int64) Budget {
	return Budget{
		tokensLimit:     limit,
		tokensRemaining: remaining,
		isExhausted:     isExhausted,
		resetsAt:        resetsAt,
	}
}

// TokensLimit returns the token cap.
func (b Budget) TokensLimit() int64 { return b.tokensLimit }

// TokensRemaining returns tokens left.
func (b Budget) TokensRemaining() int64 { return b.tokensRemaining }

// IsExhausted reports whether the budget is spent.
func (b Budget) IsExhausted() bool { return b.isExhausted }

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }

// Report is an embedding API usage report for a time period.
type Report struct {
	period        Period
	periodStart   int64
	periodEnd     int64
	tokensUsed    int64
	estimatedCost float64
	budget        Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end, tokensUsed int64, cost float64, b Budget) Report {
	return Report{
		period:        period,
		periodStart:   start,
		periodEnd:     end,
		tokensUsed:    tokensUsed,
		estimatedCost: cost,
		budget:        b,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// TokensUsed returns tokens consumed in the period.
func (r *Report) TokensUsed() int64 { return r.tokensUsed }

// EstimatedCost returns the estimated period cost in USD.
func (r *Report) EstimatedCost() float64 { return r.estimatedCost }

// Budget returns the budget status.
func (r *Report) Budget() Budget { return r.budget }
