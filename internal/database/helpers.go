package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	sqldb "github.com/dreamlog/dreamlog/internal/database/sqlc"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsReservedID reports whether id belongs to a design document.
func IsReservedID(id string) bool {
	return strings.HasPrefix(id, DesignPrefix)
}

func validateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: invalid field name %q", ErrInvalidQuery, field)
	}
	return nil
}

// fieldExpr renders a body field as a JSON path expression. Only call it with
// fields accepted by validateField.
func fieldExpr(field string) string {
	return fmt.Sprintf("json_extract(body, '$.%s')", field)
}

func optionalTime(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}

func queriesFromContext(ctx *Context) *sqldb.Queries {
	if ctx == nil {
		return nil
	}
	if ctx.Queries != nil {
		return ctx.Queries
	}
	if ctx.DB == nil {
		return nil
	}
	return sqldb.New(ctx.DB)
}

func withTx(ctx context.Context, dbCtx *Context, fn func(*sqldb.Queries) error) error {
	if dbCtx == nil || dbCtx.DB == nil {
		return fmt.Errorf("database: missing database context")
	}

	tx, err := dbCtx.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(sqldb.New(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback error: %w)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
