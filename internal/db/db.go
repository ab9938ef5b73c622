package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool sizing used when no option overrides it.
const (
	defaultMaxOpenConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultSlowThreshold   = 200 * time.Millisecond
)

type options struct {
	maxOpenConns    int
	connMaxLifetime time.Duration
	slowThreshold   time.Duration
}

// Option tunes the connection pool and query logging.
type Option func(*options)

// WithMaxOpenConns caps open connections. It is ignored for in-memory SQLite,
// which needs exactly one.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithConnMaxLifetime recycles connections after d.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connMaxLifetime = d
		}
	}
}

// WithSlowThreshold logs queries slower than d as warnings.
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.slowThreshold = d
		}
	}
}

// Open connects to Postgres (URL or key/value DSN) or SQLite (path, file: or
// sqlite:// DSN, or :memory:).
func Open(dsn string, opts ...Option) (*gorm.DB, error) {
	o := options{
		maxOpenConns:    defaultMaxOpenConns,
		connMaxLifetime: defaultConnMaxLifetime,
		slowThreshold:   defaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}

	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}
	gormCfg := &gorm.Config{
		Logger: logger.New(log.StandardLogger(), logger.Config{
			SlowThreshold:             o.slowThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	}

	if isPostgresDSN(dsn) {
		return openPostgres(dsn, gormCfg, o)
	}
	dsn = trimSQLiteScheme(dsn)
	if strings.Contains(dsn, "://") {
		return nil, fmt.Errorf("db: unsupported dsn scheme in %q", dsn)
	}
	return openSQLite(dsn, gormCfg, o)
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return true
	}
	for _, key := range []string{"host=", "dbname=", "sslmode="} {
		if strings.Contains(lower, key) {
			return true
		}
	}
	return false
}

// trimSQLiteScheme turns sqlite://path into the plain path the driver expects.
func trimSQLiteScheme(dsn string) string {
	const scheme = "sqlite://"
	if len(dsn) >= len(scheme) && strings.EqualFold(dsn[:len(scheme)], scheme) {
		return dsn[len(scheme):]
	}
	return dsn
}

// openPostgres goes through the pgx stdlib connector so sessions run in UTC.
func openPostgres(dsn string, gormCfg *gorm.Config, o options) (*gorm.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", err)
	}
	if _, ok := cfg.RuntimeParams["timezone"]; !ok {
		cfg.RuntimeParams["timezone"] = "UTC"
	}
	sqlDB := stdlib.OpenDB(*cfg)
	sqlDB.SetMaxOpenConns(o.maxOpenConns)
	sqlDB.SetMaxIdleConns(o.maxOpenConns)
	sqlDB.SetConnMaxLifetime(o.connMaxLifetime)

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: open postgres: %w", err)
	}
	if errPing := ping(conn); errPing != nil {
		_ = sqlDB.Close()
		return nil, errPing
	}
	return conn, nil
}

// openSQLite serves local development and tests. File databases get WAL and a
// busy timeout so concurrent checkouts queue instead of failing.
func openSQLite(dsn string, gormCfg *gorm.Config, o options) (*gorm.DB, error) {
	memory := isSQLiteMemory(dsn)
	if !memory {
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
		if !strings.Contains(dsn, "_pragma=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
		}
	}

	conn, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("db: sqlite handle: %w", err)
	}
	if memory {
		// Each connection to :memory: is its own database.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(o.maxOpenConns)
		sqlDB.SetMaxIdleConns(o.maxOpenConns)
		sqlDB.SetConnMaxLifetime(o.connMaxLifetime)
	}
	if errPing := ping(conn); errPing != nil {
		_ = sqlDB.Close()
		return nil, errPing
	}
	return conn, nil
}

func ping(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("db: handle: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if errPing := sqlDB.PingContext(ctx); errPing != nil {
		return fmt.Errorf("db: ping: %w", errPing)
	}
	return nil
}

func isSQLiteMemory(dsn string) bool {
	lower := strings.ToLower(dsn)
	return lower == ":memory:" || strings.HasPrefix(lower, "file::memory:") || strings.Contains(lower, "mode=memory")
}

// ensureSQLiteDir creates the parent directory of a SQLite database file.
func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	dir := filepath.Dir(path)
	if path == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("db: create sqlite dir: %w", err)
	}
	return nil
}
