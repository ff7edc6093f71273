package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tidybeast/internal/api"
	"tidybeast/internal/config"
	"tidybeast/internal/database"
	"tidybeast/internal/domain"
	"tidybeast/internal/events"
	"tidybeast/internal/google"
	"tidybeast/internal/logging"
	"tidybeast/internal/metrics"
	"tidybeast/internal/models"
	"tidybeast/internal/notify"
	"tidybeast/internal/pricing"
	"tidybeast/internal/repository"
	"tidybeast/internal/service"
	"tidybeast/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	catalog, err := loadCatalog(&logger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create exports directory")
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	drafts := initDraftStore(cfg, redisClient, &logger)
	eventBus := events.NewEventBus()

	sink := initNotifySink(cfg, &logger)
	notifyWorker := worker.NewNotifyWorker(db, sink, redisClient, eventBus, worker.DefaultRetryPolicy(), &logger)
	go notifyWorker.Start(ctx)

	engine := pricing.NewEngine(catalog, &logger)
	flow := service.NewFlow(drafts, db, engine, catalog, notifyWorker, eventBus, cfg.Booking.MaxBookingDays, &logger)
	admin := service.NewAdmin(db, eventBus, &logger)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Booking, cfg.Notify, flow, admin, catalog, engine, api.NewExporter(), &logger)
	httpServer.SetReadyCheck(func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis not ready: %w", err)
			}
		}
		return nil
	})

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

func loadCatalog(logger *zerolog.Logger) (*pricing.Catalog, error) {
	servicesPath := os.Getenv("SERVICES_PATH")
	if servicesPath == "" {
		servicesPath = "configs/services.yaml"
	}
	data, err := os.ReadFile(servicesPath)
	if err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("read services")
		return nil, err
	}

	var servicesConfig struct {
		Services []pricing.ServiceConfig `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &servicesConfig); err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("parse services")
		return nil, err
	}

	catalog, err := pricing.NewCatalog(servicesConfig.Services)
	if err != nil {
		logger.Error().Err(err).Msg("services validation failed")
		return nil, err
	}
	return catalog, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initDraftStore(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.DraftStore {
	ttl := time.Duration(cfg.Booking.DraftTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultDraftTTL) * time.Second
	}

	fallback := repository.NewMemoryDraftStore(ttl)
	if redisClient == nil {
		return fallback
	}
	primary := repository.NewRedisDraftStore(redisClient, ttl)
	return repository.NewFailoverDraftStore(primary, fallback, logger)
}

func initNotifySink(cfg *config.Config, logger *zerolog.Logger) *notify.Sink {
	var channels []notify.Channel

	if cfg.Notify.Sheets.Enabled {
		sheetsService, err := google.NewSheetsService(
			cfg.Notify.Sheets.CredentialsFile,
			cfg.Notify.Sheets.SpreadsheetID,
			cfg.Notify.Sheets.SheetName,
		)
		if err != nil {
			logger.Warn().Err(err).Msg("google sheets init failed, channel disabled")
		} else {
			channels = append(channels, notify.NewSheetsChannel(sheetsService))
			logger.Info().Msg("google sheets channel enabled")
		}
	}

	if cfg.Notify.Email.Enabled {
		channels = append(channels, notify.NewEmailWebhookChannel(cfg.Notify.Email))
		logger.Info().Msg("email webhook channel enabled")
	}

	if cfg.Notify.Telegram.Enabled {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Notify.Telegram.BotToken)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, channel disabled")
		} else {
			channels = append(channels, notify.NewTelegramChannel(botAPI, cfg.Notify.Telegram.ChatID))
			logger.Info().Msg("telegram channel enabled")
		}
	}

	if len(channels) == 0 {
		logger.Warn().Msg("no notification channels configured, bookings will not be relayed")
	}

	return notify.NewSink(logger, channels...)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			logger.Warn().Msg("HTTP API is disabled in config")
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("server stopped")
	return nil
}
