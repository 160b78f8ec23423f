package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRepository is the record store behind the ledger engine: transaction
// records in, ledger rows out. All reads and writes are scoped to one user.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func recurrenceColumns(recurring bool, rec core.Recurrence) (interval, end sql.NullString) {
	if !recurring {
		return
	}
	interval = sql.NullString{String: string(rec.Every), Valid: true}
	if !rec.Until.IsZero() {
		end = sql.NullString{String: rec.Until.String(), Valid: true}
	}
	return
}

func scanRecurrence(recurring int64, interval, end sql.NullString) (bool, core.Recurrence, error) {
	if recurring == 0 {
		return false, core.Recurrence{}, nil
	}
	every, err := core.ParseInterval(interval.String)
	if err != nil {
		return false, core.Recurrence{}, fmt.Errorf("stored recurrence interval: %w", err)
	}
	rec := core.Recurrence{Every: every}
	if end.Valid {
		until, err := core.ParseDate(end.String)
		if err != nil {
			return false, core.Recurrence{}, fmt.Errorf("stored recurrence end: %w", err)
		}
		rec.Until = until
	}
	return true, rec, nil
}

func scanAmount(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("stored amount %q: %w", s, err)
	}
	return v, nil
}

// CreateIncome inserts an income record and returns its id.
func (r *SQLiteRepository) CreateIncome(ctx context.Context, in core.Income) (int64, error) {
	interval, end := recurrenceColumns(in.Recurring, in.Recurrence)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (user_id, source, amount, date, is_recurring, recurrence_interval, recurrence_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.UserID, in.Source, in.Amount.String(), in.Date.String(), in.Recurring, interval, end)
	if err != nil {
		return 0, fmt.Errorf("create income: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("income insert id: %w", err)
	}

	slog.InfoContext(ctx, "Income saved",
		"id", id,
		"user_id", in.UserID,
		"source", in.Source,
		"amount", in.Amount.String(),
		"recurring", in.Recurring)
	return id, nil
}

// CreateExpense inserts an expense record and returns its id.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	interval, end := recurrenceColumns(e.Recurring, e.Recurrence)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, category, amount, date, is_recurring, recurrence_interval, recurrence_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Category, e.Amount.String(), e.Date.String(), e.Recurring, interval, end)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"user_id", e.UserID,
		"category", e.Category,
		"amount", e.Amount.String(),
		"recurring", e.Recurring)
	return id, nil
}

// CreateReceiptItem inserts a receipt line item and returns its id.
func (r *SQLiteRepository) CreateReceiptItem(ctx context.Context, item core.ReceiptItem) (int64, error) {
	interval, end := recurrenceColumns(item.Recurring, item.Recurrence)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO receipt_items (user_id, category, total_price, date, is_recurring, recurrence_interval, recurrence_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.UserID, item.Category, item.TotalPrice.String(), item.Date.String(), item.Recurring, interval, end)
	if err != nil {
		return 0, fmt.Errorf("create receipt item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("receipt item insert id: %w", err)
	}

	slog.InfoContext(ctx, "Receipt item saved",
		"id", id,
		"user_id", item.UserID,
		"category", item.Category,
		"total_price", item.TotalPrice.String())
	return id, nil
}

// ListIncomes returns a user's incomes anchored no later than upTo. Recurring
// records anchored before the bound are included regardless of their end date;
// the aggregator decides how many occurrences fall inside a window.
func (r *SQLiteRepository) ListIncomes(ctx context.Context, userID string, upTo core.Date) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, source, amount, date, is_recurring, recurrence_interval, recurrence_end
		 FROM incomes WHERE user_id = ? AND date <= ? ORDER BY date, id`,
		userID, upTo.String())
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		var (
			in            core.Income
			amount, date  string
			recurring     int64
			interval, end sql.NullString
		)
		if err := rows.Scan(&in.ID, &in.UserID, &in.Source, &amount, &date, &recurring, &interval, &end); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		if in.Amount, err = scanAmount(amount); err != nil {
			return nil, err
		}
		if in.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("stored income date: %w", err)
		}
		if in.Recurring, in.Recurrence, err = scanRecurrence(recurring, interval, end); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// ListExpenses returns a user's expenses anchored no later than upTo.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, upTo core.Date) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category, amount, date, is_recurring, recurrence_interval, recurrence_end
		 FROM expenses WHERE user_id = ? AND date <= ? ORDER BY date, id`,
		userID, upTo.String())
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e             core.Expense
			amount, date  string
			recurring     int64
			interval, end sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Category, &amount, &date, &recurring, &interval, &end); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Amount, err = scanAmount(amount); err != nil {
			return nil, err
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("stored expense date: %w", err)
		}
		if e.Recurring, e.Recurrence, err = scanRecurrence(recurring, interval, end); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListReceiptItems returns a user's receipt items anchored no later than upTo.
func (r *SQLiteRepository) ListReceiptItems(ctx context.Context, userID string, upTo core.Date) ([]core.ReceiptItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category, total_price, date, is_recurring, recurrence_interval, recurrence_end
		 FROM receipt_items WHERE user_id = ? AND date <= ? ORDER BY date, id`,
		userID, upTo.String())
	if err != nil {
		return nil, fmt.Errorf("list receipt items: %w", err)
	}
	defer rows.Close()

	var out []core.ReceiptItem
	for rows.Next() {
		var (
			item          core.ReceiptItem
			price, date   string
			recurring     int64
			interval, end sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.Category, &price, &date, &recurring, &interval, &end); err != nil {
			return nil, fmt.Errorf("scan receipt item: %w", err)
		}
		if item.TotalPrice, err = scanAmount(price); err != nil {
			return nil, err
		}
		if item.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("stored receipt item date: %w", err)
		}
		if item.Recurring, item.Recurrence, err = scanRecurrence(recurring, interval, end); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) deleteScoped(ctx context.Context, table, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s id %d", core.ErrNotFound, table, id)
	}
	return nil
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, userID string, id int64) error {
	return r.deleteScoped(ctx, "incomes", userID, id)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID string, id int64) error {
	return r.deleteScoped(ctx, "expenses", userID, id)
}

func (r *SQLiteRepository) DeleteReceiptItem(ctx context.Context, userID string, id int64) error {
	return r.deleteScoped(ctx, "receipt_items", userID, id)
}

// EarliestTransactionDate returns the earliest anchor date across a user's
// incomes, expenses, and receipt items. The second return is false when the
// user has no transactions at all.
func (r *SQLiteRepository) EarliestTransactionDate(ctx context.Context, userID string) (core.Date, bool, error) {
	var earliest sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MIN(d) FROM (
			SELECT MIN(date) AS d FROM incomes WHERE user_id = ?
			UNION ALL
			SELECT MIN(date) AS d FROM expenses WHERE user_id = ?
			UNION ALL
			SELECT MIN(date) AS d FROM receipt_items WHERE user_id = ?
		)`, userID, userID, userID).Scan(&earliest)
	if err != nil {
		return core.Date{}, false, fmt.Errorf("earliest transaction date: %w", err)
	}
	if !earliest.Valid {
		return core.Date{}, false, nil
	}
	d, err := core.ParseDate(earliest.String)
	if err != nil {
		return core.Date{}, false, fmt.Errorf("stored earliest date: %w", err)
	}
	return d, true, nil
}

// GetLedgerEntry fetches one ledger row; core.ErrNotFound when absent.
func (r *SQLiteRepository) GetLedgerEntry(ctx context.Context, userID string, year, month int) (core.BalanceLedgerEntry, error) {
	var (
		entry               core.BalanceLedgerEntry
		starting, remaining string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, year, month, starting_balance, remaining_balance
		 FROM balance_ledger WHERE user_id = ? AND year = ? AND month = ?`,
		userID, year, month).Scan(&entry.UserID, &entry.Year, &entry.Month, &starting, &remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BalanceLedgerEntry{}, fmt.Errorf("%w: ledger entry %s %d-%02d", core.ErrNotFound, userID, year, month)
	}
	if err != nil {
		return core.BalanceLedgerEntry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	if entry.StartingBalance, err = scanAmount(starting); err != nil {
		return core.BalanceLedgerEntry{}, err
	}
	if entry.RemainingBalance, err = scanAmount(remaining); err != nil {
		return core.BalanceLedgerEntry{}, err
	}
	return entry, nil
}

// UpsertLedgerEntry writes a ledger row, overwriting both balances. The
// (user, year, month) primary key makes re-runs reconcile instead of
// duplicating rows.
func (r *SQLiteRepository) UpsertLedgerEntry(ctx context.Context, e core.BalanceLedgerEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("upsert ledger entry: %w", err)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO balance_ledger (user_id, year, month, starting_balance, remaining_balance, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id, year, month) DO UPDATE SET
			starting_balance = excluded.starting_balance,
			remaining_balance = excluded.remaining_balance,
			updated_at = CURRENT_TIMESTAMP`,
		e.UserID, e.Year, e.Month, e.StartingBalance.String(), e.RemainingBalance.String())
	if err != nil {
		return fmt.Errorf("upsert ledger entry: %w", err)
	}
	return nil
}

// ListLedgerEntries returns all of a user's ledger rows ordered by month.
func (r *SQLiteRepository) ListLedgerEntries(ctx context.Context, userID string) ([]core.BalanceLedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, year, month, starting_balance, remaining_balance
		 FROM balance_ledger WHERE user_id = ? ORDER BY year, month`, userID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []core.BalanceLedgerEntry
	for rows.Next() {
		var (
			entry               core.BalanceLedgerEntry
			starting, remaining string
		)
		if err := rows.Scan(&entry.UserID, &entry.Year, &entry.Month, &starting, &remaining); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if entry.StartingBalance, err = scanAmount(starting); err != nil {
			return nil, err
		}
		if entry.RemainingBalance, err = scanAmount(remaining); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
