package users

import (
	"context"
	"errors"
	"time"

	"github.com/orato-app/orato/pkg/billing"
)

// Supported subscription providers.
const (
	ProviderStripe     = "stripe"
	ProviderRevenueCat = "revenuecat"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken indicates another user already registered the email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUnknownProvider indicates a provider name outside the supported set.
	ErrUnknownProvider = errors.New("unknown subscription provider")
)

// User is a registered account.
type User struct {
	ID                     int64     `json:"id"`
	Email                  string    `json:"email"`
	DisplayName            string    `json:"display_name"`
	Provider               string    `json:"provider,omitempty"`
	ProviderCustomerID     string    `json:"provider_customer_id,omitempty"`
	ProviderSubscriptionID string    `json:"provider_subscription_id,omitempty"`
	BillingCycleDay        int       `json:"billing_cycle_day"`
	PlanCode               string    `json:"plan_code"`
	CreatedAt              time.Time `json:"created_at"`
}

// BillingAccount projects the user onto the fields cycle resolution needs.
func (u *User) BillingAccount() billing.Account {
	return billing.Account{
		UserID:                 u.ID,
		Provider:               u.Provider,
		ProviderCustomerID:     u.ProviderCustomerID,
		ProviderSubscriptionID: u.ProviderSubscriptionID,
		BillingCycleDay:        u.BillingCycleDay,
	}
}

// CreateUserRequest is the payload for registering a user.
type CreateUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PlanCode    string `json:"plan_code"`
	// BillingCycleDay anchors the fallback billing cycle. Zero means "use the
	// UTC day of month the account is created on".
	BillingCycleDay int `json:"billing_cycle_day"`
}

// LinkProviderRequest attaches provider billing identifiers to a user after
// checkout completes.
type LinkProviderRequest struct {
	Provider               string `json:"provider"`
	ProviderCustomerID     string `json:"provider_customer_id"`
	ProviderSubscriptionID string `json:"provider_subscription_id"`
}

// Service defines user persistence operations.
type Service interface {
	CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	LinkProvider(ctx context.Context, id int64, req *LinkProviderRequest) (*User, error)
	SetPlan(ctx context.Context, id int64, planCode string) (*User, error)
	ListProviderLinkedUsers(ctx context.Context, provider string, limit, offset int) ([]*User, error)
}
