package database

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"roombooking/internal/repository"
)

type Options struct {
	// Silent disables gorm's SQL logger, used by tests and one-shot commands.
	Silent bool
}

func Connect(dsn string) (*gorm.DB, error) {
	return ConnectWithOptions(dsn, Options{})
}

func ConnectWithOptions(dsn string, opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{}
	if opts.Silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	if IsPostgresDSN(dsn) {
		log.Println("Connecting to PostgreSQL...")
		return gorm.Open(postgres.Open(dsn), cfg)
	}

	log.Println("Using SQLite for local development:", dsn)

	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		cfg,
	)
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer; one pooled connection turns concurrent
	// transactions into a queue instead of SQLITE_BUSY errors.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// Migrate creates or updates the schema. On PostgreSQL it also installs the
// exclusion constraint that keeps approved loans of one room from overlapping.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(repository.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	n, err := repository.BackfillLoanKeys(context.Background(), db)
	if err != nil {
		return fmt.Errorf("backfill room loan keys: %w", err)
	}
	if n > 0 {
		log.Printf("migrate_backfill table=room_loans rows=%d", n)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		fmt.Sprintf(`
DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
		ALTER TABLE room_loans ADD CONSTRAINT %s
		EXCLUDE USING gist (
			room_key WITH =,
			tstzrange(start_time, end_time, '[)') WITH &&
		)
		WHERE (status = 'Approved' AND start_time IS NOT NULL AND end_time IS NOT NULL);
	END IF;
END
$$;`, repository.ApprovedOverlapConstraint, repository.ApprovedOverlapConstraint),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_lower ON users (lower(username))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("postgres migration: %w", err)
		}
	}
	return nil
}
