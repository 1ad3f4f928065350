package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/orato-app/orato/pkg/billing"
)

// UsageEvent is one immutable word consumption record.
type UsageEvent struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Words     int64     `json:"words"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageReport summarizes a user's consumption in their current billing cycle.
type UsageReport struct {
	UserID    int64               `json:"user_id"`
	PlanCode  string              `json:"plan_code"`
	WordsUsed int64               `json:"words_used"`
	WordLimit int64               `json:"word_limit"`
	Cycle     billing.Cycle       `json:"cycle"`
	Source    billing.CycleSource `json:"cycle_source"`

	// Degraded mirrors the resolution result: the cycle window is an anchor
	// guess because the provider was unreachable.
	Degraded bool `json:"degraded"`
}

// Remaining returns the words left in the cycle, floored at zero.
func (r *UsageReport) Remaining() int64 {
	if r.WordsUsed >= r.WordLimit {
		return 0
	}
	return r.WordLimit - r.WordsUsed
}

// CycleResolutionError indicates the billing cycle could not be resolved at
// all, so usage is unknown. Handlers surface this as an upstream failure,
// never as zero usage.
type CycleResolutionError struct {
	UserID int64
	Err    error
}

func (e *CycleResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve billing cycle for user %d: %v", e.UserID, e.Err)
}

func (e *CycleResolutionError) Unwrap() error {
	return e.Err
}

// QuotaExceededError indicates an operation would push the user past their
// plan's word limit for the current cycle.
type QuotaExceededError struct {
	UserID    int64
	PlanCode  string
	WordsUsed int64
	Requested int64
	WordLimit int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("word quota exceeded for plan %s: %d used + %d requested > %d limit",
		e.PlanCode, e.WordsUsed, e.Requested, e.WordLimit)
}

// Service defines usage accounting operations.
type Service interface {
	RecordUsage(ctx context.Context, userID int64, words int64) (*UsageEvent, error)
	UsageInWindow(ctx context.Context, userID int64, start, end time.Time) (int64, error)
	CurrentUsage(ctx context.Context, userID int64) (*UsageReport, error)
	CheckWordQuota(ctx context.Context, userID int64, additionalWords int64) error
}
