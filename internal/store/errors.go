package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vbonduro/cashreg/internal/domain"
)

// classify maps a driver error onto the domain taxonomy so callers can branch
// with errors.Is without knowing about SQLite.
func classify(op string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code&0xff == sqlite3.SQLITE_CONSTRAINT {
			if code == sqlite3.SQLITE_CONSTRAINT_NOTNULL || strings.Contains(se.Error(), "NOT NULL") {
				return fmt.Errorf("failed to %s: %w: %v", op, domain.ErrValidation, err)
			}
			return fmt.Errorf("failed to %s: %w: %v", op, domain.ErrConstraint, err)
		}
	}
	return fmt.Errorf("failed to %s: %w: %v", op, domain.ErrStorage, err)
}

// requireOneRow turns a zero-row UPDATE/DELETE into ErrNotFound.
func requireOneRow(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w: %v", domain.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %w", what, domain.ErrNotFound)
	}
	return nil
}

// required passes an empty string as NULL so NOT NULL columns reject it.
func required(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseTime(layout, value string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w: %v", value, domain.ErrStorage, err)
	}
	return t, nil
}
