// Package storage persists limit periods and transactions in SQLite.
//
// Monetary values are stored as integer cents (every amount in this system
// is rounded to two decimals before it reaches storage), which lets the
// spent-amount increment run as a single UPDATE statement: SQLite applies it
// atomically across all targeted rows, so concurrent spends compose
// additively and no reader ever sees the month row updated without the day
// row.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetanalyzer/internal/core"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteRepository struct {
	db *sql.DB
	tz *time.Location
}

func NewSQLiteRepository(dbPath string, tz *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows a single writer; funnel everything through one
	// connection instead of surfacing SQLITE_BUSY to concurrent spends.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, tz: tz}, nil
}

// runMigrations brings the schema up to date from the embedded migration
// files, reusing the repository's connection.
func runMigrations(db *sql.DB) error {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// FindActiveLimits implements services.LimitRepository
func (r *SQLiteRepository) FindActiveLimits(ctx context.Context, tag, currency string) ([]core.LimitEntity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tag, currency, timespan, period_start, valid_until, spent_cents, limit_cents, created_at
		FROM current_limits
		WHERE tag = ? AND currency = ? AND valid_until > ?`,
		tag, currency, time.Now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query active limits: %w", err)
	}
	defer rows.Close()

	var limits []core.LimitEntity
	for rows.Next() {
		limit, err := r.scanLimit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan limit row: %w", err)
		}
		limits = append(limits, limit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate limit rows: %w", err)
	}

	return limits, nil
}

// Insert implements services.LimitRepository. The unique index on
// (tag, currency, timespan, period_start) turns the duplicate-period race
// into core.ErrLimitExists for the losing caller.
func (r *SQLiteRepository) Insert(ctx context.Context, limit core.LimitEntity) error {
	spentCents, err := centsFromDecimal(limit.SpentAmount.Value)
	if err != nil {
		return fmt.Errorf("spent amount: %w", err)
	}
	limitCents, err := centsFromDecimal(limit.LimitAmount.Value)
	if err != nil {
		return fmt.Errorf("limit amount: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO current_limits (id, tag, currency, timespan, period_start, valid_until, spent_cents, limit_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		limit.ID.String(),
		limit.Tag,
		limit.LimitAmount.Currency,
		string(limit.Timespan),
		limit.PeriodStart.Format("2006-01-02"),
		limit.ValidUntil.UnixNano(),
		spentCents,
		limitCents,
		limit.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %s starting %s: %w",
				limit.Tag, limit.Timespan, limit.PeriodStart.Format("2006-01-02"), core.ErrLimitExists)
		}
		return fmt.Errorf("insert limit: %w", err)
	}

	slog.InfoContext(ctx, "Limit period saved to SQLite",
		"id", limit.ID,
		"timespan", string(limit.Timespan),
		"period_start", limit.PeriodStart.Format("2006-01-02"),
		"limit_cents", limitCents)

	return nil
}

// IncreaseSpentAmount implements services.LimitRepository. One UPDATE covers
// every listed row, wrapped in a transaction that rolls back unless every id
// matched, so a half-applied increment is never observable.
func (r *SQLiteRepository) IncreaseSpentAmount(ctx context.Context, ids []uuid.UUID, delta decimal.Decimal) error {
	if len(ids) == 0 {
		return nil
	}
	deltaCents, err := centsFromDecimal(delta)
	if err != nil {
		return fmt.Errorf("delta: %w", err)
	}
	if deltaCents <= 0 {
		// Spent amounts only ever grow; spend is never reversed here.
		return fmt.Errorf("delta %s: %w", delta, core.ErrInvalidAmount)
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, deltaCents)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id.String())
	}

	// The increment runs inside a transaction so that a missing id rolls the
	// whole statement back: either every listed row grows by delta or none
	// does.
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin increase spent amount: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx,
		`UPDATE current_limits SET spent_cents = spent_cents + ? WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("increase spent amount: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increase spent amount rows affected: %w", err)
	}
	if affected != int64(len(ids)) {
		return fmt.Errorf("increase spent amount touched %d of %d rows: %w",
			affected, len(ids), core.ErrLimitNotFound)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit increase spent amount: %w", err)
	}
	return nil
}

// RecordTransaction implements services.TransactionStore
func (r *SQLiteRepository) RecordTransaction(ctx context.Context, tx core.Transaction) error {
	amountCents, err := centsFromDecimal(tx.Amount.Value)
	if err != nil {
		return fmt.Errorf("transaction amount: %w", err)
	}
	balanceCents, err := centsFromDecimal(tx.RemainingBalance.Value)
	if err != nil {
		return fmt.Errorf("remaining balance: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, merchant, amount_cents, currency, balance_cents, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID.String(),
		tx.Merchant,
		amountCents,
		tx.Amount.Currency,
		balanceCents,
		tx.OccurredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"merchant", tx.Merchant,
		"amount_cents", amountCents)

	return nil
}

func (r *SQLiteRepository) scanLimit(rows *sql.Rows) (core.LimitEntity, error) {
	var (
		id          string
		tag         string
		currency    string
		timespan    string
		periodStart string
		validUntil  int64
		spentCents  int64
		limitCents  int64
		createdAt   int64
	)
	if err := rows.Scan(&id, &tag, &currency, &timespan, &periodStart, &validUntil, &spentCents, &limitCents, &createdAt); err != nil {
		return core.LimitEntity{}, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return core.LimitEntity{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	start, err := time.ParseInLocation("2006-01-02", periodStart, r.tz)
	if err != nil {
		return core.LimitEntity{}, fmt.Errorf("parse period start %q: %w", periodStart, err)
	}
	ts := core.Timespan(timespan)
	if !ts.Valid() {
		return core.LimitEntity{}, fmt.Errorf("%w: %q", core.ErrInvalidTimespan, timespan)
	}

	return core.LimitEntity{
		ID:          parsedID,
		Tag:         tag,
		Timespan:    ts,
		PeriodStart: start,
		ValidUntil:  time.Unix(0, validUntil).In(r.tz),
		SpentAmount: core.NewAmount(decimalFromCents(spentCents), currency),
		LimitAmount: core.NewAmount(decimalFromCents(limitCents), currency),
		CreatedAt:   time.Unix(0, createdAt).In(r.tz),
	}, nil
}

// centsFromDecimal converts a two-decimal amount to integer cents. Sub-cent
// precision never reaches storage by construction (proration rounds to cent
// scale); any leak is a bug, not something to round away silently.
func centsFromDecimal(value decimal.Decimal) (int64, error) {
	shifted := value.Shift(core.AmountScale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s has sub-cent precision", core.ErrInvalidAmount, value)
	}
	return shifted.IntPart(), nil
}

func decimalFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -core.AmountScale)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
