package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orato-app/orato/pkg/billing"
	"github.com/orato-app/orato/pkg/observability"
	"github.com/orato-app/orato/pkg/plans"
	"github.com/orato-app/orato/pkg/users"
)

type fakeResolver struct {
	resolved *billing.ResolvedCycle
	err      error
}

func (f *fakeResolver) ResolveCycleAt(ctx context.Context, acct billing.Account, now time.Time) (*billing.ResolvedCycle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resolved, nil
}

type fakeUserGetter struct {
	user *users.User
	err  error
}

func (f *fakeUserGetter) GetUser(ctx context.Context, id int64) (*users.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func utc(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func testCycle() billing.Cycle {
	return billing.Cycle{Start: utc(2025, time.June, 17), End: utc(2025, time.July, 17)}
}

func newTestService(t *testing.T, resolver CycleResolver, userSvc UserGetter) (*PostgresService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	catalog := plans.NewCatalog(observability.NewLogger(observability.ErrorLevel, nil))
	svc := NewPostgresService(db, nil, resolver, userSvc, catalog, nil)
	svc.now = func() time.Time { return utc(2025, time.June, 20) }
	return svc, mock
}

func professionalUser() *users.User {
	return &users.User{
		ID:              7,
		Email:           "lena@example.com",
		PlanCode:        "professional",
		BillingCycleDay: 17,
	}
}

func TestRecordUsage(t *testing.T) {
	svc, mock := newTestService(t, nil, nil)

	mock.ExpectQuery("INSERT INTO word_usage_events").
		WithArgs(int64(7), int64(230), utc(2025, time.June, 20)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(99)))

	event, err := svc.RecordUsage(context.Background(), 7, 230)
	require.NoError(t, err)

	assert.Equal(t, int64(99), event.ID)
	assert.Equal(t, int64(230), event.Words)
	assert.Equal(t, utc(2025, time.June, 20), event.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUsageZeroWords(t *testing.T) {
	// A silent recording still produces a valid event.
	svc, mock := newTestService(t, nil, nil)

	mock.ExpectQuery("INSERT INTO word_usage_events").
		WithArgs(int64(7), int64(0), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))

	event, err := svc.RecordUsage(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), event.Words)
}

func TestRecordUsageNegativeWordsRejected(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	_, err := svc.RecordUsage(context.Background(), 7, -5)
	assert.Error(t, err)
}

func TestUsageInWindow(t *testing.T) {
	svc, mock := newTestService(t, nil, nil)
	cycle := testCycle()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(words\\), 0\\)").
		WithArgs(int64(7), cycle.Start, cycle.End).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(4200)))

	total, err := svc.UsageInWindow(context.Background(), 7, cycle.Start, cycle.End)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageInWindowNoEventsIsZero(t *testing.T) {
	svc, mock := newTestService(t, nil, nil)
	cycle := testCycle()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(words\\), 0\\)").
		WithArgs(int64(7), cycle.Start, cycle.End).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))

	total, err := svc.UsageInWindow(context.Background(), 7, cycle.Start, cycle.End)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total, "no events means zero usage, not an error")
}

func TestCurrentUsage(t *testing.T) {
	resolver := &fakeResolver{resolved: &billing.ResolvedCycle{
		Cycle:  testCycle(),
		Source: billing.SourceProvider,
	}}
	svc, mock := newTestService(t, resolver, &fakeUserGetter{user: professionalUser()})

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(words\\), 0\\)").
		WithArgs(int64(7), testCycle().Start, testCycle().End).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(15000)))

	report, err := svc.CurrentUsage(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(15000), report.WordsUsed)
	assert.Equal(t, int64(60000), report.WordLimit)
	assert.Equal(t, "professional", report.PlanCode)
	assert.Equal(t, billing.SourceProvider, report.Source)
	assert.False(t, report.Degraded)
	assert.Equal(t, int64(45000), report.Remaining())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCurrentUsageDegradedCycleSurfaces(t *testing.T) {
	resolver := &fakeResolver{resolved: &billing.ResolvedCycle{
		Cycle:    testCycle(),
		Source:   billing.SourceAnchor,
		Degraded: true,
		Cause:    billing.ErrProviderUnavailable,
	}}
	svc, mock := newTestService(t, resolver, &fakeUserGetter{user: professionalUser()})

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(words\\), 0\\)").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(100)))

	report, err := svc.CurrentUsage(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.Equal(t, billing.SourceAnchor, report.Source)
}

func TestCurrentUsageResolutionFailureIsNotZero(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("resolver blew up")}
	svc, _ := newTestService(t, resolver, &fakeUserGetter{user: professionalUser()})

	report, err := svc.CurrentUsage(context.Background(), 7)
	assert.Error(t, err)
	assert.Nil(t, report, "resolution failure must never be reported as zero usage")
}

func TestCurrentUsageUnknownPlanFallsBackToStarter(t *testing.T) {
	user := professionalUser()
	user.PlanCode = "legacy_gold"
	resolver := &fakeResolver{resolved: &billing.ResolvedCycle{
		Cycle:  testCycle(),
		Source: billing.SourceAnchor,
	}}
	svc, mock := newTestService(t, resolver, &fakeUserGetter{user: user})

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(words\\), 0\\)").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(100)))

	report, err := svc.CurrentUsage(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, plans.StarterCode, report.PlanCode)
	assert.Equal(t, int64(10000), report.WordLimit)
}

func TestCheckWordQuota(t *testing.T) {
	resolver := &fakeResolver{resolved: &billing.ResolvedCycle{
		Cycle:  testCycle(),
		Source: billing.SourceProvider,
	}}

	t.Run("within quota", func(t *testing.T) {
		svc, mock := newTestService(t, resolver, &fakeUserGetter{user: professionalUser()})
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(words\\), 0\\)").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(59000)))

		assert.NoError(t, svc.CheckWordQuota(context.Background(), 7, 1000))
	})

	t.Run("exactly at limit is allowed", func(t *testing.T) {
		svc, mock := newTestService(t, resolver, &fakeUserGetter{user: professionalUser()})
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(words\\), 0\\)").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(60000)))

		assert.NoError(t, svc.CheckWordQuota(context.Background(), 7, 0))
	})

	t.Run("over quota", func(t *testing.T) {
		svc, mock := newTestService(t, resolver, &fakeUserGetter{user: professionalUser()})
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(words\\), 0\\)").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(59500)))

		err := svc.CheckWordQuota(context.Background(), 7, 1000)
		var quotaErr *QuotaExceededError
		require.ErrorAs(t, err, &quotaErr)
		assert.Equal(t, int64(59500), quotaErr.WordsUsed)
		assert.Equal(t, int64(1000), quotaErr.Requested)
		assert.Equal(t, int64(60000), quotaErr.WordLimit)
		assert.Equal(t, "professional", quotaErr.PlanCode)
	})

	t.Run("negative request rejected", func(t *testing.T) {
		svc, _ := newTestService(t, resolver, &fakeUserGetter{user: professionalUser()})
		assert.Error(t, svc.CheckWordQuota(context.Background(), 7, -1))
	})
}
