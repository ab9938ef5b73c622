package db

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// ForUpdate adds a row lock to the next query. SQLite serializes writers and
// has no row locks, so the clause is skipped there.
func ForUpdate(conn *gorm.DB) *gorm.DB {
	if conn == nil || IsSQLite(conn) {
		return conn
	}
	return conn.Clauses(clause.Locking{Strength: "UPDATE"})
}

// TxOptions returns the isolation used for money-moving transactions.
// SQLite only accepts the default level.
func TxOptions(conn *gorm.DB) *sql.TxOptions {
	if IsSQLite(conn) {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

// IsUniqueViolation reports whether err came from a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate key value")
}
