// Package reconcile implements the nightly and monthly background jobs run by
// the orato-reconciler binary.
//
// # Overview
//
// Two jobs live here. The subscription audit walks every provider-linked user,
// asks the provider for active subscription periods, and files an anomaly for
// any customer carrying more than one. The rollup job materializes the word
// total of each user's most recently closed anchor cycle into usage_rollups.
// Rollup rows exist for reporting only; live quota checks always aggregate
// word_usage_events directly.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orato-app/orato/pkg/billing"
	"github.com/orato-app/orato/pkg/provider"
	"github.com/orato-app/orato/pkg/users"
)

const auditPageSize = 200

// Reconciler runs the background reconciliation jobs.
type Reconciler struct {
	db        *sql.DB
	users     users.Service
	providers *provider.Registry
	anomalies billing.AnomalyRecorder
	log       *logrus.Logger
}

// NewReconciler creates a reconciler over the given stores and providers.
func NewReconciler(db *sql.DB, userSvc users.Service, providers *provider.Registry, anomalies billing.AnomalyRecorder, log *logrus.Logger) *Reconciler {
	if log == nil {
		log = logrus.New()
	}
	return &Reconciler{
		db:        db,
		users:     userSvc,
		providers: providers,
		anomalies: anomalies,
		log:       log,
	}
}

// AuditSubscriptions checks every provider-linked user for multiple active
// subscriptions and records an anomaly for each one found. It returns the
// number of users flagged. Individual provider lookup failures are logged and
// skipped so one flaky customer does not abort the whole sweep.
func (r *Reconciler) AuditSubscriptions(ctx context.Context) (int, error) {
	flagged := 0

	for _, name := range r.providers.Names() {
		client, ok := r.providers.Client(name)
		if !ok {
			continue
		}

		offset := 0
		for {
			page, err := r.users.ListProviderLinkedUsers(ctx, name, auditPageSize, offset)
			if err != nil {
				return flagged, fmt.Errorf("failed to list %s-linked users: %w", name, err)
			}

			for _, user := range page {
				periods, err := client.SubscriptionPeriods(ctx, user.ProviderCustomerID)
				if errors.Is(err, provider.ErrNotFound) {
					continue
				}
				if err != nil {
					r.log.WithError(err).WithFields(logrus.Fields{
						"user_id":  user.ID,
						"provider": name,
					}).Warn("Provider lookup failed during audit")
					continue
				}
				if len(periods) < 2 {
					continue
				}

				chosen := mostRecentPeriod(periods)
				err = r.anomalies.RecordSubscriptionAnomaly(ctx, user.ID, name,
					user.ProviderCustomerID, len(periods), chosen.SubscriptionID)
				if err != nil {
					return flagged, fmt.Errorf("failed to record anomaly for user %d: %w", user.ID, err)
				}

				r.log.WithFields(logrus.Fields{
					"user_id":      user.ID,
					"provider":     name,
					"active_count": len(periods),
				}).Info("Flagged user with multiple active subscriptions")
				flagged++
			}

			if len(page) < auditPageSize {
				break
			}
			offset += auditPageSize
		}
	}

	return flagged, nil
}

// mostRecentPeriod picks the newest period by creation time, breaking ties on
// subscription ID. The ordering matches what cycle resolution reports as the
// chosen subscription.
func mostRecentPeriod(periods []provider.Period) provider.Period {
	sorted := make([]provider.Period, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Created.Equal(sorted[j].Created) {
			return sorted[i].Created.After(sorted[j].Created)
		}
		return sorted[i].SubscriptionID > sorted[j].SubscriptionID
	})
	return sorted[0]
}

// RollupClosedCycles writes one usage_rollups row per user covering the anchor
// cycle that closed most recently before asOf. Re-running the job for the same
// period overwrites the existing row. It returns the number of rows written.
//
// Rollups always follow the anchor calendar, even for provider-linked users;
// provider period history is not persisted anywhere, so there is nothing else
// to roll up against.
func (r *Reconciler) RollupClosedCycles(ctx context.Context, asOf time.Time) (int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, billing_cycle_day FROM users ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("failed to list users for rollup: %w", err)
	}
	defer rows.Close()

	type anchorRow struct {
		userID    int64
		anchorDay int
	}
	var anchors []anchorRow
	for rows.Next() {
		var row anchorRow
		if err := rows.Scan(&row.userID, &row.anchorDay); err != nil {
			return 0, fmt.Errorf("failed to scan user for rollup: %w", err)
		}
		anchors = append(anchors, row)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate users for rollup: %w", err)
	}

	const upsert = `
		INSERT INTO usage_rollups (user_id, period_start, period_end, words_used, computed_at)
		SELECT $1, $2, $3, COALESCE(SUM(words), 0), $4
		FROM word_usage_events
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ON CONFLICT (user_id, period_start) DO UPDATE
		SET period_end = EXCLUDED.period_end,
		    words_used = EXCLUDED.words_used,
		    computed_at = EXCLUDED.computed_at
	`

	written := 0
	computedAt := time.Now().UTC()
	for _, row := range anchors {
		cycle := lastClosedCycle(row.anchorDay, asOf)
		if _, err := r.db.ExecContext(ctx, upsert, row.userID, cycle.Start, cycle.End, computedAt); err != nil {
			return written, fmt.Errorf("failed to write rollup for user %d: %w", row.userID, err)
		}
		written++
	}

	return written, nil
}

// lastClosedCycle returns the anchor cycle immediately preceding the one that
// contains asOf.
func lastClosedCycle(anchorDay int, asOf time.Time) billing.Cycle {
	current := billing.CycleForAnchor(anchorDay, asOf)
	return billing.CycleForAnchor(anchorDay, current.Start.AddDate(0, 0, -1))
}
