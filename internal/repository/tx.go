package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"roombooking/internal/domain"
)

// ApprovedOverlapConstraint is the PostgreSQL exclusion constraint that
// forbids two approved loans of one room from overlapping.
const ApprovedOverlapConstraint = "room_loans_no_approved_overlap"

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// Models returns every gorm model the schema is built from.
func Models() []any {
	return []any{&userModel{}, &roomLoanModel{}}
}

type txKey struct{}

// runInTx runs fn inside a transaction carried by the context. Nested calls
// reuse the outer transaction.
func runInTx(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or db when there is none.
func conn(ctx context.Context, db *gorm.DB) (*gorm.DB, bool) {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx), true
	}
	return db.WithContext(ctx), false
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return errors.Join(domain.ErrOverlapConstraint, err)
		case pgUniqueViolation:
			return errors.Join(domain.ErrDuplicate, err)
		}
	}
	return err
}
