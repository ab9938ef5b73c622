package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/playvault/storefront/internal/checkout"
	"github.com/playvault/storefront/internal/config"
	"github.com/playvault/storefront/internal/db"
	"github.com/playvault/storefront/internal/idempotency"
	"github.com/playvault/storefront/internal/logging"
	"github.com/playvault/storefront/internal/metrics"
	"github.com/playvault/storefront/internal/models"
	"github.com/playvault/storefront/internal/notify"
	"github.com/playvault/storefront/internal/security"
	"github.com/playvault/storefront/internal/settings"
	"github.com/playvault/storefront/internal/tracing"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const settingsRefreshInterval = time.Minute

// loadConfig resolves, loads and validates the configuration.
func loadConfig(cfg config.AppConfig) (*config.Config, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if errValidate := conf.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return conf, nil
}

func openDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return db.Open(cfg.DSN,
		db.WithMaxOpenConns(cfg.MaxOpenConns),
		db.WithConnMaxLifetime(cfg.ConnMaxLifetime),
		db.WithSlowThreshold(cfg.SlowQuery),
	)
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conf, err := loadConfig(cfg)
	if err != nil {
		return err
	}
	conn, err := openDB(conf.Database)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

// IssueToken signs a bearer token for username, creating the account when it
// does not exist yet. Identities normally come from the external auth service;
// this exists for local development and smoke tests.
func IssueToken(ctx context.Context, cfg config.AppConfig, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", errors.New("username is required")
	}
	conf, err := loadConfig(cfg)
	if err != nil {
		return "", err
	}
	conn, err := openDB(conf.Database)
	if err != nil {
		return "", err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return "", errMigrate
	}

	user := models.User{Username: username}
	if errFind := conn.WithContext(ctx).Where(models.User{Username: username}).FirstOrCreate(&user).Error; errFind != nil {
		return "", fmt.Errorf("load user: %w", errFind)
	}
	if user.Disabled {
		return "", fmt.Errorf("user %s is disabled", username)
	}
	return security.GenerateToken(conf.JWT.Secret, user.ID, user.Username, conf.JWT.Expiry)
}

// PutSetting stores a runtime setting. raw is decoded as JSON when possible
// and kept as a string otherwise. Running servers pick it up on their next
// settings refresh.
func PutSetting(ctx context.Context, cfg config.AppConfig, key, raw string) error {
	conf, err := loadConfig(cfg)
	if err != nil {
		return err
	}
	conn, err := openDB(conf.Database)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	var value any
	if errDecode := json.Unmarshal([]byte(raw), &value); errDecode != nil {
		value = raw
	}
	if errPut := settings.Put(ctx, conn, key, value); errPut != nil {
		return errPut
	}
	log.Infof("setting %s updated", strings.TrimSpace(key))
	return nil
}

// RunServer boots the storefront API and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	conf, err := loadConfig(cfg)
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(conf.Logging)
	if err != nil {
		return err
	}
	defer closeQuietly("log file", logCloser)

	shutdownTracing, err := tracing.Init(conf.Tracing.ServiceName, conf.Tracing.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := shutdownTracing(shutdownCtx); errShutdown != nil {
			log.WithError(errShutdown).Warn("tracing shutdown failed")
		}
	}()

	conn, err := openDB(conf.Database)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.Refresh(ctx, conn); errRefresh != nil {
		return errRefresh
	}
	go refreshSettings(ctx, conn, settingsRefreshInterval)

	maxTopUp, err := conf.Wallet.MaxTopUpAmount()
	if err != nil {
		return err
	}

	inbox := notify.NewGormSink(conn)
	var sink notify.Sink = inbox
	if len(conf.Kafka.Brokers) > 0 {
		kafkaSink := notify.NewKafkaSink(conf.Kafka.Brokers)
		defer closeQuietly("kafka writer", kafkaSink)
		sink = notify.FanOut{inbox, kafkaSink}
		log.Infof("publishing storefront events to kafka brokers %s", strings.Join(conf.Kafka.Brokers, ","))
	}
	dispatcher := notify.NewDispatcher(conf.Notify.Timeout)
	defer dispatcher.Wait()

	store, closeStore := newIdempotencyStore(ctx, conf.Redis)
	defer closeStore()

	m := metrics.New()
	engine := checkout.NewEngine(conn,
		checkout.WithNotifications(sink, dispatcher),
		checkout.WithRecorder(m),
	)

	router := newRouter(routerDeps{
		conn:        conn,
		conf:        conf,
		engine:      engine,
		inbox:       inbox,
		notifier:    sink,
		dispatcher:  dispatcher,
		idempotency: store,
		maxTopUp:    maxTopUp,
		metrics:     m,
	})

	if cleaner := notify.NewRetentionCleaner(conn); cleaner != nil {
		cleaner.Start(ctx)
	}

	server := &http.Server{
		Addr:              conf.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("storefront listening on %s", conf.Server.Addr)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down storefront")
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	return nil
}

// newIdempotencyStore prefers Redis so replays survive restarts and span
// instances; without it keys live in process memory.
func newIdempotencyStore(ctx context.Context, cfg config.RedisConfig) (idempotency.Store, func()) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return idempotency.NewMemoryStore(), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		log.WithError(errPing).Warnf("redis %s unreachable, idempotency keys will be kept in memory", cfg.Addr)
		closeQuietly("redis client", client)
		return idempotency.NewMemoryStore(), func() {}
	}
	log.Infof("idempotency keys stored in redis %s", cfg.Addr)
	return idempotency.NewRedisStore(client), func() { closeQuietly("redis client", client) }
}

// refreshSettings reloads runtime settings until ctx is cancelled.
func refreshSettings(ctx context.Context, conn *gorm.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := settings.Refresh(ctx, conn); err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("settings refresh failed")
			}
		}
	}
}

func closeQuietly(name string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.WithError(err).Warnf("close %s failed", name)
	}
}
