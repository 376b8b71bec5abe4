package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-pix/app/cache"
	"github.com/vibast-solutions/ms-go-pix/app/controller"
	"github.com/vibast-solutions/ms-go-pix/app/conversion"
	"github.com/vibast-solutions/ms-go-pix/app/gateway"
	"github.com/vibast-solutions/ms-go-pix/app/repository"
	"github.com/vibast-solutions/ms-go-pix/app/service"
	"github.com/vibast-solutions/ms-go-pix/app/stream"
	"github.com/vibast-solutions/ms-go-pix/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the PIX payments service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, paymentService, cleanup := mustCreatePaymentService()
	defer cleanup()

	paymentController := controller.NewPaymentController(paymentService)
	e := setupHTTPServer(paymentController)

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

func setupHTTPServer(paymentController *controller.PaymentController) *echo.Echo {
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
	e.Use(echomiddleware.RequestID())

	e.GET("/health", paymentController.Health)

	pix := e.Group("/api/pix")
	pix.POST("/create", paymentController.CreatePayment)
	pix.GET("/:paymentId", paymentController.GetPayment)
	pix.GET("/status/:paymentId", paymentController.GetStatus)
	pix.POST("/webhook", paymentController.HandleWebhook)
	pix.POST("/simulate-pay/:paymentId", paymentController.SimulatePayment)

	return e
}

func mustCreatePaymentService() (*config.Config, *service.PaymentService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	if cfg.Webhook.Secret == "" {
		if cfg.App.MockMode {
			logrus.Warn("PIX_WEBHOOK_SECRET is not set, webhooks will be rejected")
		} else {
			logrus.Fatal("PIX_WEBHOOK_SECRET is required outside mock mode")
		}
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

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()

	store := repository.NewStore(db)
	if err := store.Init(initCtx); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize payment store")
	}

	webhookRepo := repository.NewWebhookEventRepository(db)
	if err := webhookRepo.Init(initCtx); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize webhook event repository")
	}

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		APIKey:      cfg.Gateway.APIKey,
		APISecret:   cfg.Gateway.APISecret,
		HTTPTimeout: cfg.Gateway.HTTPTimeout,
	})
	verifier := gateway.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.SignatureHeaders)

	paymentService := service.NewPaymentService(
		store,
		gatewayClient,
		verifier,
		webhookRepo,
		cfg.Jobs,
		cfg.Gateway.PixExpiry,
		cfg.App.MockMode,
	)

	var statusCache *cache.StatusCache
	if cfg.Redis.Addr != "" {
		statusCache = cache.NewStatusCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.StatusTTL)
		if err := statusCache.Ping(initCtx); err != nil {
			logrus.WithError(err).Fatal("Failed to ping redis")
		}
		paymentService.WithStatusCache(statusCache)
	}

	var producer *stream.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = stream.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to kafka")
		}
		paymentService.WithPublisher(producer)
	}

	reporter := conversion.NewReporter(conversion.Config{
		URL:         cfg.Conversion.URL,
		APIToken:    cfg.Conversion.APIToken,
		MaxAttempts: cfg.Conversion.MaxAttempts,
		HTTPTimeout: cfg.Conversion.HTTPTimeout,
	})
	if reporter.Enabled() {
		paymentService.WithConversionReporter(reporter)
	}

	cleanup := func() {
		if producer != nil {
			if err := producer.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close kafka producer")
			}
		}
		if statusCache != nil {
			if err := statusCache.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, paymentService, cleanup
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	return nil
}
