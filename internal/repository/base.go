// Package repository implements the data access layer for the application. Every write that
// touches a relationship collection recomputes the derived count inside the same transaction.
package repository

import (
	"context"
	"errors"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
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
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}

// translate maps driver errors onto AppErrors. AppErrors pass through untouched.
func translate(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	if isUniqueConstraintError(err) {
		return models.NewConflictError(resource + " already exists")
	}
	return models.NewInternalError(err)
}

// forUpdate locks the selected rows until the transaction ends. SQLite serializes writers on
// its own and does not understand FOR UPDATE.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// isPostgres reports whether db talks to PostgreSQL.
func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// inTx runs fn in a transaction, traced and counted as operation. fn must only use tx.
func inTx(ctx context.Context, db *gorm.DB, operation string, fn func(tx *gorm.DB) error) error {
	ctx, span := observability.StartSpan(ctx, "repository", operation,
		attribute.String("db.system", db.Dialector.Name()))

	err := db.WithContext(ctx).Transaction(fn)
	if err != nil {
		observability.TransactionRollbacks.WithLabelValues(operation).Inc()
		if models.ErrorCode(err) == models.CodeInternal {
			middleware.Logger.ErrorContext(ctx, "Transaction rolled back", "operation", operation, "error", err)
		}
	}
	span.End(err)
	return err
}

// deleteImages removes stored images by id inside tx.
func deleteImages(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("id IN ?", ids).Delete(&models.Image{}).Error
}
