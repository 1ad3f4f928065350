package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orato-app/orato/pkg/billing"
)

func newMockService(t *testing.T) (*PostgresService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresService(db, nil), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "display_name", "provider", "provider_customer_id",
		"provider_subscription_id", "billing_cycle_day", "plan_code", "created_at",
	})
}

func TestCreateUser(t *testing.T) {
	svc, mock := newMockService(t)
	svc.now = func() time.Time { return time.Date(2025, time.June, 17, 9, 30, 0, 0, time.UTC) }

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("lena@example.com", "Lena", 17, "starter", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	user, err := svc.CreateUser(context.Background(), &CreateUserRequest{
		Email:       "  Lena@Example.com ",
		DisplayName: "Lena",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "lena@example.com", user.Email)
	assert.Equal(t, 17, user.BillingCycleDay, "anchor defaults to the UTC registration day")
	assert.Equal(t, "starter", user.PlanCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserExplicitAnchorDay(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("a@b.co", "", 31, "professional", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	user, err := svc.CreateUser(context.Background(), &CreateUserRequest{
		Email:           "a@b.co",
		PlanCode:        "professional",
		BillingCycleDay: 31,
	})
	require.NoError(t, err)
	assert.Equal(t, 31, user.BillingCycleDay)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserInvalidAnchorDay(t *testing.T) {
	svc, _ := newMockService(t)

	_, err := svc.CreateUser(context.Background(), &CreateUserRequest{
		Email:           "a@b.co",
		BillingCycleDay: 32,
	})
	assert.ErrorIs(t, err, billing.ErrInvalidAnchorDay)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := svc.CreateUser(context.Background(), &CreateUserRequest{Email: "a@b.co"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser(t *testing.T) {
	svc, mock := newMockService(t)
	created := time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(userRows().AddRow(
			int64(7), "lena@example.com", "Lena", "stripe", "cus_123",
			"sub_123", 3, "professional", created,
		))

	user, err := svc.GetUser(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, "stripe", user.Provider)
	assert.Equal(t, "cus_123", user.ProviderCustomerID)
	assert.Equal(t, 3, user.BillingCycleDay)

	acct := user.BillingAccount()
	assert.Equal(t, int64(7), acct.UserID)
	assert.Equal(t, "sub_123", acct.ProviderSubscriptionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs(int64(404)).
		WillReturnRows(userRows())

	_, err := svc.GetUser(context.Background(), 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNullProviderFields(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(userRows().AddRow(
			int64(7), "lena@example.com", "Lena", nil, nil,
			nil, 3, "starter", time.Now().UTC(),
		))

	user, err := svc.GetUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, user.Provider)
	assert.Empty(t, user.ProviderCustomerID)
}

func TestLinkProvider(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectExec("UPDATE users").
		WithArgs("stripe", "cus_123", "sub_123", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(userRows().AddRow(
			int64(7), "lena@example.com", "Lena", "stripe", "cus_123",
			"sub_123", 3, "starter", time.Now().UTC(),
		))

	user, err := svc.LinkProvider(context.Background(), 7, &LinkProviderRequest{
		Provider:               "stripe",
		ProviderCustomerID:     "cus_123",
		ProviderSubscriptionID: "sub_123",
	})
	require.NoError(t, err)
	assert.Equal(t, "stripe", user.Provider)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkProviderValidation(t *testing.T) {
	svc, _ := newMockService(t)

	_, err := svc.LinkProvider(context.Background(), 7, &LinkProviderRequest{
		Provider:               "paddle",
		ProviderCustomerID:     "c",
		ProviderSubscriptionID: "s",
	})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = svc.LinkProvider(context.Background(), 7, &LinkProviderRequest{Provider: "stripe"})
	assert.Error(t, err)
}

func TestLinkProviderUserNotFound(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := svc.LinkProvider(context.Background(), 404, &LinkProviderRequest{
		Provider:               "revenuecat",
		ProviderCustomerID:     "c",
		ProviderSubscriptionID: "s",
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSetPlan(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectExec("UPDATE users SET plan_code").
		WithArgs("executive", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(userRows().AddRow(
			int64(7), "lena@example.com", "Lena", nil, nil,
			nil, 3, "executive", time.Now().UTC(),
		))

	user, err := svc.SetPlan(context.Background(), 7, "executive")
	require.NoError(t, err)
	assert.Equal(t, "executive", user.PlanCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProviderLinkedUsers(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("stripe", 100, 0).
		WillReturnRows(userRows().
			AddRow(int64(1), "a@b.co", "", "stripe", "cus_1", "sub_1", 1, "starter", time.Now().UTC()).
			AddRow(int64(2), "c@d.co", "", "stripe", "cus_2", "sub_2", 15, "professional", time.Now().UTC()))

	list, err := svc.ListProviderLinkedUsers(context.Background(), "stripe", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "cus_2", list[1].ProviderCustomerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProviderLinkedUsersQueryError(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WillReturnError(errors.New("connection reset"))

	list, err := svc.ListProviderLinkedUsers(context.Background(), "stripe", 10, 0)
	assert.Error(t, err)
	assert.Nil(t, list)
}
