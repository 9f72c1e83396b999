package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avaolo/agknow/internal/domain"
	"github.com/avaolo/agknow/internal/domain/usage"
)

// BudgetAction selects what happens when a token budget runs out.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists budget counters. IncrBy must be safe to call
// repeatedly for the same key.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetTracker enforces daily and monthly token caps. Check reads
// in-memory counters only, so the embedding hot path never waits on
// the store; Record updates memory first and writes behind to the
// attached store.
type BudgetTracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	dailyLimit     int64
	monthlyLimit   int64
	action         BudgetAction
	provider       string
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          BudgetStore
	logger         *zap.Logger
}

// NewBudgetTracker creates a tracker. A zero limit disables the cap
// for that period.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	now := time.Now().UTC()
	return &BudgetTracker{
		dailyLimit:     dailyLimit,
		monthlyLimit:   monthlyLimit,
		action:         action,
		provider:       provider,
		lastDayReset:   truncateToDay(now),
		lastMonthReset: truncateToMonth(now),
		logger:         logger,
	}
}

// WithStore attaches counter persistence and seeds the in-memory
// counters from whatever the store already holds for today and this
// month.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.store = store
	b.loadFromStore(ctx)
	return b
}

func (b *BudgetTracker) loadFromStore(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()

	if val, err := b.store.Get(ctx, b.dailyKey(now)); err == nil {
		b.dailyUsed = val
	} else {
		b.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	}

	if val, err := b.store.Get(ctx, b.monthlyKey(now)); err == nil {
		b.monthlyUsed = val
	} else {
		b.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
	)
}

func (b *BudgetTracker) dailyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", domain.KeyPrefix, b.provider, t.Format("2006-01-02"))
}

func (b *BudgetTracker) monthlyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", domain.KeyPrefix, b.provider, t.Format("2006-01"))
}

// Check reports whether the budget allows another request. Touches
// only in-memory state.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	overDaily := b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit
	overMonthly := b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit
	if !overDaily && !overMonthly {
		return nil
	}

	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	// warn mode lets the request through
	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record adds consumed tokens to both windows and, when a store is
// attached, persists the increments without blocking the caller.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.resetIfNeeded()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	now := time.Now().UTC()
	dailyKey := b.dailyKey(now)
	monthlyKey := b.monthlyKey(now)
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Background context: a canceled request must not lose the counters.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, dailyKey, tokens); err != nil {
		b.logger.Warn("Failed to persist daily budget", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, tokens); err != nil {
		b.logger.Warn("Failed to persist monthly budget", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// Remaining returns tokens left in the period, or -1 when uncapped.
func (b *BudgetTracker) Remaining(p usage.Period) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()
	limit, used := b.limitAndUsed(p)
	if limit == 0 {
		return -1
	}
	return max(0, limit-used)
}

// Used returns tokens consumed in the current period.
func (b *BudgetTracker) Used(p usage.Period) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	_, used := b.limitAndUsed(p)
	return used
}

// Limit returns the token cap for the period (0 means unlimited).
func (b *BudgetTracker) Limit(p usage.Period) int64 {
	limit, _ := b.limitAndUsed(p)
	return limit
}

// Snapshot returns the budget state for the period as a domain value.
func (b *BudgetTracker) Snapshot(p usage.Period) usage.Budget {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()
	limit, used := b.limitAndUsed(p)

	remaining := int64(-1)
	exhausted := false
	if limit > 0 {
		remaining = limit - used
		if remaining < 0 {
			remaining = 0
		}
		exhausted = used >= limit
	}

	return usage.NewBudget(limit, remaining, exhausted, periodResetAt(p, time.Now().UTC()))
}

func (b *BudgetTracker) limitAndUsed(p usage.Period) (limit, used int64) {
	if p == usage.PeriodMonth {
		return b.monthlyLimit, b.monthlyUsed
	}
	return b.dailyLimit, b.dailyUsed
}

// resetIfNeeded zeroes a window counter once its period rolls over.
// Counters are UTC-aligned to match the store key format.
func (b *BudgetTracker) resetIfNeeded() {
	now := time.Now().UTC()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(b.lastDayReset) {
		b.dailyUsed = 0
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthlyUsed = 0
		b.lastMonthReset = thisMonth
	}
}

// periodResetAt is the unix-millis instant when the window restarts.
func periodResetAt(p usage.Period, now time.Time) int64 {
	if p == usage.PeriodMonth {
		return truncateToMonth(now).AddDate(0, 1, 0).UnixMilli()
	}
	return truncateToDay(now).AddDate(0, 0, 1).UnixMilli()
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
