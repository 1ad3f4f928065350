package users

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/orato-app/orato/pkg/billing"
)

const userColumns = `id, email, display_name, provider, provider_customer_id,
	       provider_subscription_id, billing_cycle_day, plan_code, created_at`

// PostgresService implements the users Service interface using PostgreSQL.
// Reads go to the reader handle when one is provided, writes always to the
// writer.
type PostgresService struct {
	writer *sql.DB
	reader *sql.DB
	now    func() time.Time
}

// NewPostgresService creates a PostgresService. reader may be nil, in which
// case reads use the writer.
func NewPostgresService(writer, reader *sql.DB) *PostgresService {
	if reader == nil {
		reader = writer
	}
	return &PostgresService{
		writer: writer,
		reader: reader,
		now:    time.Now,
	}
}

// CreateUser registers a user. The billing cycle day defaults to the UTC day
// of month of registration and is validated once here; it never changes after
// this point.
func (s *PostgresService) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	now := s.now().UTC()
	cycleDay := req.BillingCycleDay
	if cycleDay == 0 {
		cycleDay = now.Day()
	}
	if err := billing.ValidateAnchorDay(cycleDay); err != nil {
		return nil, err
	}

	planCode := req.PlanCode
	if planCode == "" {
		planCode = "starter"
	}

	query := `
		INSERT INTO users (email, display_name, billing_cycle_day, plan_code, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	user := &User{
		Email:           email,
		DisplayName:     req.DisplayName,
		BillingCycleDay: cycleDay,
		PlanCode:        planCode,
		CreatedAt:       now,
	}
	err := s.writer.QueryRowContext(ctx, query,
		user.Email, user.DisplayName, user.BillingCycleDay, user.PlanCode, user.CreatedAt).
		Scan(&user.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *PostgresService) GetUser(ctx context.Context, id int64) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return s.scanUser(s.reader.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresService) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return s.scanUser(s.reader.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// LinkProvider attaches provider billing identifiers after checkout. It never
// touches billing_cycle_day; the anchor stays as registered.
func (s *PostgresService) LinkProvider(ctx context.Context, id int64, req *LinkProviderRequest) (*User, error) {
	if req.Provider != ProviderStripe && req.Provider != ProviderRevenueCat {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}
	if req.ProviderCustomerID == "" || req.ProviderSubscriptionID == "" {
		return nil, fmt.Errorf("provider customer and subscription IDs are required")
	}

	query := `
		UPDATE users
		SET provider = $1, provider_customer_id = $2, provider_subscription_id = $3
		WHERE id = $4
	`
	result, err := s.writer.ExecContext(ctx, query,
		req.Provider, req.ProviderCustomerID, req.ProviderSubscriptionID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to link provider: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetUser(ctx, id)
}

// SetPlan updates the user's plan code.
func (s *PostgresService) SetPlan(ctx context.Context, id int64, planCode string) (*User, error) {
	if planCode == "" {
		return nil, fmt.Errorf("plan code is required")
	}

	query := `UPDATE users SET plan_code = $1 WHERE id = $2`
	result, err := s.writer.ExecContext(ctx, query, planCode, id)
	if err != nil {
		return nil, fmt.Errorf("failed to set plan: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetUser(ctx, id)
}

// ListProviderLinkedUsers pages through users linked to the given provider,
// ordered by ID. Used by the reconciler to audit provider subscription state.
func (s *PostgresService) ListProviderLinkedUsers(ctx context.Context, provider string, limit, offset int) ([]*User, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s FROM users
		WHERE provider = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, userColumns)
	rows, err := s.reader.QueryContext(ctx, query, provider, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var list []*User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return list, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresService) scanUser(row rowScanner) (*User, error) {
	user, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUserRow(row rowScanner) (*User, error) {
	user := &User{}
	var provider, customerID, subscriptionID sql.NullString
	err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &provider, &customerID,
		&subscriptionID, &user.BillingCycleDay, &user.PlanCode, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Provider = provider.String
	user.ProviderCustomerID = customerID.String
	user.ProviderSubscriptionID = subscriptionID.String
	return user, nil
}
