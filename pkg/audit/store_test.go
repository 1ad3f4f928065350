package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestRecordSubscriptionAnomaly(t *testing.T) {
	store, mock := newMockStore(t)
	detected := time.Date(2025, time.June, 20, 3, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return detected }

	mock.ExpectExec("INSERT INTO subscription_anomalies").
		WithArgs(int64(42), "stripe", "cus_123", 2, "sub_new", detected).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordSubscriptionAnomaly(context.Background(), 42, "stripe", "cus_123", 2, "sub_new")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSubscriptionAnomalyError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO subscription_anomalies").
		WillReturnError(errors.New("connection reset"))

	err := store.RecordSubscriptionAnomaly(context.Background(), 42, "stripe", "cus_123", 2, "sub_new")
	assert.Error(t, err)
}

func TestListOpenAnomalies(t *testing.T) {
	store, mock := newMockStore(t)
	detected := time.Date(2025, time.June, 20, 3, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "provider", "provider_customer_id", "active_count",
		"chosen_subscription_id", "detected_at", "resolved_at",
	}).AddRow(int64(1), int64(42), "stripe", "cus_123", 2, "sub_new", detected, nil)

	mock.ExpectQuery("SELECT (.+) FROM subscription_anomalies").
		WithArgs(100).
		WillReturnRows(rows)

	list, err := store.ListOpenAnomalies(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.Equal(t, int64(42), list[0].UserID)
	assert.Equal(t, 2, list[0].ActiveCount)
	assert.Equal(t, "sub_new", list[0].ChosenSubscriptionID)
	assert.Nil(t, list[0].ResolvedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkResolved(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE subscription_anomalies SET resolved_at").
		WithArgs(sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.MarkResolved(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkResolvedAlreadyResolved(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE subscription_anomalies SET resolved_at").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Error(t, store.MarkResolved(context.Background(), 1))
}
