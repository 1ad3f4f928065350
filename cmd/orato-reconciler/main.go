// The orato-reconciler runs the scheduled background jobs: a nightly audit
// that flags customers with multiple active provider subscriptions, and a
// monthly rollup of closed billing cycles for reporting.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/orato-app/orato/pkg/audit"
	"github.com/orato-app/orato/pkg/provider"
	"github.com/orato-app/orato/pkg/reconcile"
	"github.com/orato-app/orato/pkg/users"
)

var (
	dbURL          = flag.String("db-url", getEnv("ORATO_POSTGRES_URL", "postgres://localhost/orato?sslmode=disable"), "PostgreSQL connection URL")
	stripeKey      = flag.String("stripe-key", getEnv("ORATO_STRIPE_API_KEY", ""), "Stripe API key")
	revenueCatKey  = flag.String("revenuecat-key", getEnv("ORATO_REVENUECAT_API_KEY", ""), "RevenueCat API key")
	revenueCatURL  = flag.String("revenuecat-url", getEnv("ORATO_REVENUECAT_URL", ""), "RevenueCat API base URL override")
	auditSchedule  = flag.String("audit-schedule", "30 2 * * *", "Cron schedule for the subscription audit")
	rollupSchedule = flag.String("rollup-schedule", "15 3 1 * *", "Cron schedule for the closed-cycle usage rollup")
	jobTimeout     = flag.Duration("job-timeout", time.Hour, "Per-job execution timeout")
	runOnce        = flag.Bool("run-once", false, "Run the selected jobs immediately and exit")
	job            = flag.String("job", "all", "Job to run with -run-once: audit, rollup or all")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.WithError(err).Fatal("Failed to ping database")
	}

	var clients []provider.Client
	if *stripeKey != "" {
		clients = append(clients, provider.NewStripeClient(*stripeKey))
	}
	if *revenueCatKey != "" {
		clients = append(clients, provider.NewRevenueCatClient(*revenueCatKey).WithBaseURL(*revenueCatURL))
	}
	if len(clients) == 0 {
		log.Warn("No subscription providers configured, the audit job will have nothing to check")
	}

	reconciler := reconcile.NewReconciler(db,
		users.NewPostgresService(db, db),
		provider.NewRegistry(clients...),
		audit.NewStore(db),
		log)

	// Run once mode (for operators and backfills).
	if *runOnce {
		if err := runJobs(reconciler, *job, *jobTimeout, log); err != nil {
			log.WithError(err).Fatal("Reconciliation failed")
		}
		log.Info("Reconciliation completed successfully")
		return
	}

	// Scheduled mode.
	c := cron.New()

	_, err = c.AddFunc(*auditSchedule, func() {
		if err := runJobs(reconciler, "audit", *jobTimeout, log); err != nil {
			log.WithError(err).Error("Subscription audit failed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to schedule subscription audit")
	}

	_, err = c.AddFunc(*rollupSchedule, func() {
		if err := runJobs(reconciler, "rollup", *jobTimeout, log); err != nil {
			log.WithError(err).Error("Usage rollup failed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to schedule usage rollup")
	}

	c.Start()
	log.WithFields(logrus.Fields{
		"audit_schedule":  *auditSchedule,
		"rollup_schedule": *rollupSchedule,
	}).Info("Orato reconciler started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutting down gracefully")

	ctx := c.Stop()
	<-ctx.Done()
	log.Info("Reconciler stopped")
}

func runJobs(reconciler *reconcile.Reconciler, job string, timeout time.Duration, log *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	switch job {
	case "audit":
		flagged, err := reconciler.AuditSubscriptions(ctx)
		if err != nil {
			return err
		}
		log.WithField("flagged", flagged).Info("Subscription audit completed")
	case "rollup":
		written, err := reconciler.RollupClosedCycles(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		log.WithField("rollups", written).Info("Usage rollup completed")
	case "all":
		if err := runJobs(reconciler, "audit", timeout, log); err != nil {
			return err
		}
		return runJobs(reconciler, "rollup", timeout, log)
	default:
		return fmt.Errorf("unknown job %q", job)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
