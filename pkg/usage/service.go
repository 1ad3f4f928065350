package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/orato-app/orato/pkg/billing"
	"github.com/orato-app/orato/pkg/observability"
	"github.com/orato-app/orato/pkg/plans"
	"github.com/orato-app/orato/pkg/users"
)

// CycleResolver yields the current billing cycle for an account. Satisfied by
// billing.Resolver.
type CycleResolver interface {
	ResolveCycleAt(ctx context.Context, acct billing.Account, now time.Time) (*billing.ResolvedCycle, error)
}

// UserGetter loads users for quota and report lookups. Satisfied by
// users.Service.
type UserGetter interface {
	GetUser(ctx context.Context, id int64) (*users.User, error)
}

// PostgresService implements the usage Service interface using PostgreSQL.
// Event inserts go to the writer; window aggregations go to the reader when
// one is provided.
type PostgresService struct {
	writer   *sql.DB
	reader   *sql.DB
	resolver CycleResolver
	userSvc  UserGetter
	catalog  *plans.Catalog
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewPostgresService creates a PostgresService. reader and metrics may be nil.
func NewPostgresService(writer, reader *sql.DB, resolver CycleResolver, userSvc UserGetter, catalog *plans.Catalog, metrics *observability.Metrics) *PostgresService {
	if reader == nil {
		reader = writer
	}
	return &PostgresService{
		writer:   writer,
		reader:   reader,
		resolver: resolver,
		userSvc:  userSvc,
		catalog:  catalog,
		metrics:  metrics,
		now:      time.Now,
	}
}

// RecordUsage appends one immutable word consumption event. Events are never
// updated or deleted; corrections are new events.
func (s *PostgresService) RecordUsage(ctx context.Context, userID int64, words int64) (*UsageEvent, error) {
	if words < 0 {
		return nil, fmt.Errorf("word count must not be negative, got %d", words)
	}

	query := `
		INSERT INTO word_usage_events (user_id, words, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	event := &UsageEvent{
		UserID:    userID,
		Words:     words,
		CreatedAt: s.now().UTC(),
	}
	err := s.writer.QueryRowContext(ctx, query, event.UserID, event.Words, event.CreatedAt).
		Scan(&event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record usage event: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveUsageEvent(words)
	}
	return event, nil
}

// UsageInWindow sums the words consumed in the half-open window [start, end).
// A user with no events in the window has used zero words.
func (s *PostgresService) UsageInWindow(ctx context.Context, userID int64, start, end time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(words), 0)
		FROM word_usage_events
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
	`
	var total int64
	err := s.reader.QueryRowContext(ctx, query, userID, start.UTC(), end.UTC()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	return total, nil
}

// CurrentUsage resolves the user's current billing cycle and reports their
// consumption against the plan limit. A resolution failure is returned as an
// error, never coerced to zero usage.
func (s *PostgresService) CurrentUsage(ctx context.Context, userID int64) (*UsageReport, error) {
	user, err := s.userSvc.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolver.ResolveCycleAt(ctx, user.BillingAccount(), s.now())
	if err != nil {
		return nil, &CycleResolutionError{UserID: userID, Err: err}
	}

	used, err := s.UsageInWindow(ctx, userID, resolved.Cycle.Start, resolved.Cycle.End)
	if err != nil {
		return nil, err
	}

	plan := s.catalog.Resolve(user.PlanCode)
	return &UsageReport{
		UserID:    userID,
		PlanCode:  plan.Code,
		WordsUsed: used,
		WordLimit: plan.WordLimit,
		Cycle:     resolved.Cycle,
		Source:    resolved.Source,
		Degraded:  resolved.Degraded,
	}, nil
}

// CheckWordQuota reports whether additionalWords would fit in the user's
// remaining quota for the current cycle. Returns *QuotaExceededError when it
// would not.
func (s *PostgresService) CheckWordQuota(ctx context.Context, userID int64, additionalWords int64) error {
	if additionalWords < 0 {
		return fmt.Errorf("word count must not be negative, got %d", additionalWords)
	}

	report, err := s.CurrentUsage(ctx, userID)
	if err != nil {
		return err
	}

	if report.WordsUsed+additionalWords > report.WordLimit {
		if s.metrics != nil {
			s.metrics.ObserveQuotaRejection(report.PlanCode)
		}
		return &QuotaExceededError{
			UserID:    userID,
			PlanCode:  report.PlanCode,
			WordsUsed: report.WordsUsed,
			Requested: additionalWords,
			WordLimit: report.WordLimit,
		}
	}

	return nil
}
