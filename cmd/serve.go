package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rans7ord/Construction-sub000/app/controller"
	"github.com/Rans7ord/Construction-sub000/app/gateway"
	"github.com/Rans7ord/Construction-sub000/app/guard"
	"github.com/Rans7ord/Construction-sub000/app/repository"
	"github.com/Rans7ord/Construction-sub000/app/service"
	"github.com/Rans7ord/Construction-sub000/config"
	"github.com/google/uuid"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP server exposing plans, subscription status, payment and webhook endpoints.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
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
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	planRepo := repository.NewPlanRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	transactionRepo := repository.NewPaymentTransactionRepository(db)
	countRepo := repository.NewResourceCountRepository(db)

	gatewayClient := gateway.NewPaystackClient(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, cfg.Gateway.Timeout)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, planRepo)
	checkoutService := service.NewCheckoutService(planRepo, transactionRepo, gatewayClient, cfg.Gateway)
	reconcileService := service.NewReconcileService(transactionRepo, subscriptionRepo, gatewayClient, cfg.Gateway)
	resourceGuard := guard.NewGuard(subscriptionRepo, planRepo, countRepo)
	billingController := controller.NewBillingController(subscriptionService, checkoutService, reconcileService, resourceGuard)

	e := setupHTTPServer(billingController, cfg)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(billingController *controller.BillingController, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string {
			return fmt.Sprintf("rest-%s", uuid.New().String())
		},
	}))

	e.GET("/health", billingController.Health)
	e.GET("/plans", billingController.ListPlans)

	// Gateway webhook: authenticated by HMAC over the raw body, never by a
	// user session.
	e.POST("/webhooks/paystack", billingController.Webhook)

	tenant := e.Group("", controller.TenantAuth(cfg.Auth.JWTSecret))
	tenant.POST("/subscription/trial", billingController.CreateTrialSubscription)
	tenant.GET("/subscription", billingController.GetSubscription)
	tenant.GET("/subscription/entitlements", billingController.GetEntitlements)
	tenant.POST("/payments/initialize", billingController.InitializePayment)
	tenant.POST("/payments/verify", billingController.VerifyPayment)

	guards := tenant.Group("/guards")
	guards.GET("/project", billingController.CanCreateProject)
	guards.GET("/user", billingController.CanAddUser)
	guards.GET("/feature", billingController.CanUseFeature)

	return e
}
