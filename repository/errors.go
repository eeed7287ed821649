package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/goliatone/go-accounts"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// classify maps a driver error into an accounts.StoreError. Callers only
// branch on the kind.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var storeErr *accounts.StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return accounts.Conflict(fieldFromConstraint(pgErr.ConstraintName), err)
		case pgerrcode.NotNullViolation:
			return accounts.Invalid([]string{pgErr.ColumnName}, err)
		case pgerrcode.CheckViolation:
			return accounts.Invalid(fieldsFromConstraint(pgErr.ConstraintName, pgErr.ColumnName), err)
		}
		return accounts.Unavailable(err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return accounts.Unavailable(err)
	}

	// sqlite reports constraint failures as text, e.g.
	// "constraint failed: UNIQUE constraint failed: accounts.username (2067)"
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if column, ok := sqliteConstraint(msg, "UNIQUE constraint failed: "); ok {
			return accounts.Conflict(column, err)
		}
		if column, ok := sqliteConstraint(msg, "NOT NULL constraint failed: "); ok {
			return accounts.Invalid([]string{column}, err)
		}
		if column, ok := sqliteConstraint(msg, "CHECK constraint failed: "); ok {
			return accounts.Invalid([]string{column}, err)
		}
	}

	return accounts.Unavailable(err)
}

func sqliteConstraint(msg, marker string) (string, bool) {
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	rest := msg[idx+len(marker):]
	if end := strings.IndexAny(rest, " ,)"); end >= 0 {
		rest = rest[:end]
	}
	if dot := strings.LastIndex(rest, "."); dot >= 0 {
		rest = rest[dot+1:]
	}
	return rest, true
}

// fieldFromConstraint resolves the field behind constraints named
// <table>_<field>_key. Primary key constraints resolve to "id".
func fieldFromConstraint(name string) string {
	if strings.HasSuffix(name, "_pkey") {
		return "id"
	}
	for _, field := range []string{"username", "email"} {
		if strings.Contains(name, field) {
			return field
		}
	}
	name = strings.TrimSuffix(name, "_key")
	if idx := strings.LastIndex(name, "_"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func fieldsFromConstraint(constraint, column string) []string {
	if column != "" {
		return []string{column}
	}
	if constraint == "" {
		return nil
	}
	return []string{fieldFromConstraint(constraint)}
}
