package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SubscriptionAnomaly is one detected inconsistency in provider subscription
// state for a user.
type SubscriptionAnomaly struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"user_id"`
	Provider             string     `json:"provider"`
	ProviderCustomerID   string     `json:"provider_customer_id"`
	ActiveCount          int        `json:"active_count"`
	ChosenSubscriptionID string     `json:"chosen_subscription_id"`
	DetectedAt           time.Time  `json:"detected_at"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`
}

// Store persists subscription anomalies in PostgreSQL. It satisfies
// billing.AnomalyRecorder.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates an anomaly store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// RecordSubscriptionAnomaly files an anomaly. Repeated detections for the
// same open user/provider pair update the existing row instead of piling up
// one row per resolution.
func (s *Store) RecordSubscriptionAnomaly(ctx context.Context, userID int64, provider, customerID string, activeCount int, chosenSubscriptionID string) error {
	query := `
		INSERT INTO subscription_anomalies
			(user_id, provider, provider_customer_id, active_count, chosen_subscription_id, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, provider) WHERE resolved_at IS NULL DO UPDATE
		SET active_count = EXCLUDED.active_count,
		    chosen_subscription_id = EXCLUDED.chosen_subscription_id,
		    detected_at = EXCLUDED.detected_at
	`
	_, err := s.db.ExecContext(ctx, query,
		userID, provider, customerID, activeCount, chosenSubscriptionID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record subscription anomaly: %w", err)
	}
	return nil
}

// ListOpenAnomalies returns unresolved anomalies, most recently detected
// first.
func (s *Store) ListOpenAnomalies(ctx context.Context, limit int) ([]*SubscriptionAnomaly, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, user_id, provider, provider_customer_id, active_count,
		       chosen_subscription_id, detected_at, resolved_at
		FROM subscription_anomalies
		WHERE resolved_at IS NULL
		ORDER BY detected_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	defer rows.Close()

	var list []*SubscriptionAnomaly
	for rows.Next() {
		anomaly := &SubscriptionAnomaly{}
		err := rows.Scan(
			&anomaly.ID, &anomaly.UserID, &anomaly.Provider, &anomaly.ProviderCustomerID,
			&anomaly.ActiveCount, &anomaly.ChosenSubscriptionID, &anomaly.DetectedAt,
			&anomaly.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		list = append(list, anomaly)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate anomalies: %w", err)
	}

	return list, nil
}

// MarkResolved closes an anomaly after an operator reconciled the provider
// state.
func (s *Store) MarkResolved(ctx context.Context, id int64) error {
	query := `UPDATE subscription_anomalies SET resolved_at = $1 WHERE id = $2 AND resolved_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve anomaly: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("anomaly %d not found or already resolved", id)
	}
	return nil
}
