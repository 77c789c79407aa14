package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/immxrtalbeast/counsel_portal/internal/api/http"
	"github.com/immxrtalbeast/counsel_portal/internal/config"
	"github.com/immxrtalbeast/counsel_portal/internal/notify"
	"github.com/immxrtalbeast/counsel_portal/internal/realtime"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/internal/retry"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
	"github.com/immxrtalbeast/counsel_portal/lib/logger/sl"
	"github.com/immxrtalbeast/counsel_portal/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	if cfg.Auth.JWTSecret == "" {
		log.Error("auth.jwt_secret is required")
		os.Exit(1)
	}

	policy := retry.Policy{
		Attempts: cfg.Retry.Attempts,
		Initial:  cfg.Retry.Initial,
		Max:      cfg.Retry.Max,
	}

	db, err := connectDatabase(cfg.Database, cfg.Env)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}

	if err := repository.Migrate(db, cfg.Database.EnforceRLS); err != nil {
		log.Error("failed to migrate database", sl.Err(err))
		os.Exit(1)
	}

	var storeOpts []repository.GormOption
	if cfg.Database.EnforceRLS {
		storeOpts = append(storeOpts, repository.WithSessionPolicies())
	}
	store := repository.NewGormStore(db, storeOpts...)

	bridge := realtime.NewBridge(log, cfg.Realtime.Buffer)
	notifier := setupNotifier(cfg.Notify, policy, log)
	svcOpts := []service.Option{service.WithRetry(policy)}

	profileService := service.NewProfileService(store, log, svcOpts...)
	conversationService := service.NewConversationService(store, bridge, log, svcOpts...)
	appointmentService := service.NewAppointmentService(store, notifier, log, svcOpts...)
	videoService := service.NewVideoService(store, cfg.Video.ProviderHost, cfg.Video.Namespace, log, svcOpts...)

	auth := httpapi.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, profileService, log)
	router := httpapi.SetupRouter(auth, cfg.HTTP.AllowedOrigins, httpapi.Controllers{
		Profiles:      httpapi.NewProfileController(profileService, log),
		Conversations: httpapi.NewConversationController(conversationService, log),
		Appointments:  httpapi.NewAppointmentController(appointmentService, videoService, log),
		Rooms:         httpapi.NewRoomController(videoService, log),
		Realtime: httpapi.NewRealtimeController(conversationService, httpapi.RealtimeOptions{
			WriteTimeout:   cfg.Realtime.WriteTimeout,
			PingInterval:   cfg.Realtime.PingInterval,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}, log),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting application", slog.String("addr", cfg.HTTP.Address), slog.String("env", cfg.Env))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", sl.Err(err))
			os.Exit(1)
		}
	case sig := <-shutdown:
		log.Info("shutting down", slog.String("signal", sig.String()))

		// ends every websocket stream before the listener stops
		bridge.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("could not stop server gracefully", sl.Err(err))
			_ = srv.Close()
		}
		appointmentService.WaitNotices()
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupNotifier(cfg config.NotifyConfig, policy retry.Policy, log *slog.Logger) notify.Notifier {
	if cfg.SendGridKey == "" {
		log.Info("sendgrid key not set, appointment notices go to the log")
		return notify.NewLogNotifier(log)
	}
	return notify.NewSendGridNotifier(cfg.SendGridKey, cfg.SendGridHost, cfg.AppName, cfg.FromEmail, policy, log)
}

func connectDatabase(cfg config.DatabaseConfig, env string) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logLevel := logger.Warn
	if env == envProd {
		logLevel = logger.Error
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// the database container may still be starting
	ping := retry.Policy{Attempts: 30, Initial: 100 * time.Millisecond, Max: 3 * time.Second}
	err = retry.Do(context.Background(), ping, func(ctx context.Context) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			return retry.Transient(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("database ping: %w", err)
	}

	return db, nil
}
