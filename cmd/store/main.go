package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/jobs"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/storage"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/users"
)

const serviceName = "store"

func main() {
	ctx := context.Background()

	var cfg config.Store
	if err := config.Load(&cfg); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level(cfg.LogLevel)}))

	if cfg.Telemetry.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, cfg.Telemetry.ServiceVersion)
		if err != nil {
			logger.Error("failed to initialize tracer", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdownTracer(ctx) }()
	} else {
		telemetry.InitPropagator()
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.Telemetry.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	checkoutMetrics, err := telemetry.NewCheckoutMetrics()
	if err != nil {
		logger.Error("failed to create checkout metrics", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	images, err := storage.NewDisk(cfg.UploadDir, cfg.PublicURL)
	if err != nil {
		logger.Error("failed to prepare image storage", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	mail := notify.NewMailClient(cfg.MailerURL, httpClient)

	var publisher checkout.Publisher
	var async *notify.AsyncPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderTopic)
		defer func() { _ = producer.Close() }()
		publisher = producer
		logger.Info("order events go to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.OrderTopic)
	} else {
		async = notify.NewAsyncPublisher(notify.NewDispatcher(mail, cfg.AdminEmail, logger), 30*time.Second, logger)
		publisher = async
		logger.Info("order notifications sent in-process")
	}

	productRepo := catalog.NewRepository(db)
	userRepo := users.NewRepository(db)
	orderRepo := orders.NewRepository(db)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.SessionTTL, cfg.CookieSecure)
	checkoutSvc := checkout.NewService(checkout.NewPostgresStore(db, productRepo, userRepo), publisher, checkoutMetrics, logger)

	h := handlers{
		catalog:  catalog.NewHandler(productRepo, images, logger),
		checkout: checkout.NewHandler(checkoutSvc, logger),
		orders:   orders.NewHandler(orderRepo, logger),
		users:    users.NewHandler(userRepo, issuer, mail, cfg.ResetURL, logger),
		mw:       auth.NewMiddleware(issuer, logger),
	}

	mux := http.NewServeMux()
	h.register(mux)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(images.Dir()))))
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			logger.Error("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	scheduler := jobs.NewScheduler(logger)
	if err := scheduler.Add(jobs.PurgeResetsSchedule, "purge-password-resets", jobs.PurgeResets(userRepo, logger)); err != nil {
		logger.Error("failed to schedule job", "error", err)
		os.Exit(1)
	}
	if cfg.KeepAliveURL != "" {
		if err := scheduler.Add(jobs.KeepAliveSchedule, "keep-alive", jobs.KeepAlive(httpClient, cfg.KeepAliveURL)); err != nil {
			logger.Error("failed to schedule job", "error", err)
			os.Exit(1)
		}
	}
	scheduler.Start()

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting store service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if async != nil {
		if err := async.Wait(shutdownCtx); err != nil {
			logger.Warn("notifications still in flight at shutdown", "error", err)
		}
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("jobs still running at shutdown", "error", err)
	}
}
