package cmd

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rans7ord/Construction-sub000/app/repository"
	"github.com/Rans7ord/Construction-sub000/app/service"
	"github.com/Rans7ord/Construction-sub000/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	_ "github.com/go-sql-driver/mysql"
)

var expireWorker bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run maintenance jobs",
}

// The sweep only freshens stored statuses for lists and dashboards;
// entitlement is derived on read and never waits for it.
var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Flip lapsed trialing/active subscriptions to expired",
	Run: func(_ *cobra.Command, _ []string) {
		cfg, subscriptionService, cleanup := mustCreateSubscriptionService()
		defer cleanup()

		if expireWorker {
			runWorker("expire", cfg.Jobs.ExpirySweepInterval, subscriptionService)
			return
		}

		runJob("expire", func() error {
			return subscriptionService.RunExpirySweep(context.Background())
		})
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(expireCmd)
	expireCmd.Flags().BoolVar(&expireWorker, "worker", false, "Run continuously using configured interval")
}

func runWorker(name string, interval time.Duration, subscriptionService *service.SubscriptionService) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return subscriptionService.RunExpirySweep(ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return subscriptionService.RunExpirySweep(ctx) })
		}
	}
}

func mustCreateSubscriptionService() (*config.Config, *service.SubscriptionService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	planRepo := repository.NewPlanRepository(db)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, planRepo)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, subscriptionService, cleanup
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
