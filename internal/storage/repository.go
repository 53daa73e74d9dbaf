package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

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

// CreateTransaction inserts a transaction and returns its ID.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (account_id, date, description, amount_cents, category, recurring_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.AccountID, t.Date.Format(dateLayout), t.Description, t.Amount.Cents, t.Category, t.RecurringID)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"description", t.Description,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.Format(dateLayout))

	return id, nil
}

// GetTransaction loads a single live transaction by ID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, date, description, amount_cents, category, recurring_id
		FROM transactions WHERE id = ? AND deleted = 0`, id)

	t, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns the live transactions of a month, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, year, month int) ([]core.Transaction, error) {
	from, to := monthBounds(year, month)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, date, description, amount_cents, category, recurring_id
		FROM transactions
		WHERE deleted = 0 AND date >= ? AND date < ?
		ORDER BY date DESC, id DESC`,
		from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// SoftDeleteTransaction marks a transaction deleted without losing the row;
// the ledger worker still needs it to remove the exported copy.
func (r *SQLiteRepository) SoftDeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MonthRealizedNet sums the signed net of the month up to and including upTo.
func (r *SQLiteRepository) MonthRealizedNet(ctx context.Context, year, month int, upTo time.Time) (core.Money, error) {
	from, _ := monthBounds(year, month)
	return r.sumAmounts(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE deleted = 0 AND date >= ? AND date <= ?`,
		from.Format(dateLayout), upTo.Format(dateLayout))
}

// MonthIncome sums positive flow only, up to and including upTo.
func (r *SQLiteRepository) MonthIncome(ctx context.Context, year, month int, upTo time.Time) (core.Money, error) {
	from, _ := monthBounds(year, month)
	return r.sumAmounts(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE deleted = 0 AND amount_cents > 0 AND date >= ? AND date <= ?`,
		from.Format(dateLayout), upTo.Format(dateLayout))
}

// TrailingDiscretionaryNet sums non-recurring flow in [from, to]. Instances
// generated from recurring templates are excluded; they are committed, not
// part of the variable spending trend.
func (r *SQLiteRepository) TrailingDiscretionaryNet(ctx context.Context, from, to time.Time) (core.Money, error) {
	return r.sumAmounts(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE deleted = 0 AND recurring_id IS NULL AND date >= ? AND date <= ?`,
		from.Format(dateLayout), to.Format(dateLayout))
}

// CommittedFutureNet sums transactions dated strictly after `after` and up
// to `until` (already-scheduled bills inside the remaining period).
func (r *SQLiteRepository) CommittedFutureNet(ctx context.Context, after, until time.Time) (core.Money, error) {
	return r.sumAmounts(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE deleted = 0 AND date > ? AND date <= ?`,
		after.Format(dateLayout), until.Format(dateLayout))
}

// MonthlyNetHistory returns the net of each of the `months` calendar months
// preceding the month of `before`, oldest first. Months without any rows
// contribute a zero net.
func (r *SQLiteRepository) MonthlyNetHistory(ctx context.Context, before time.Time, months int) ([]core.Money, error) {
	out := make([]core.Money, 0, months)
	for i := months; i >= 1; i-- {
		first := time.Date(before.Year(), before.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		next := first.AddDate(0, 1, 0)
		net, err := r.sumAmounts(ctx, `
			SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
			WHERE deleted = 0 AND date >= ? AND date < ?`,
			first.Format(dateLayout), next.Format(dateLayout))
		if err != nil {
			return nil, err
		}
		out = append(out, net)
	}
	return out, nil
}

// BudgetStatus counts how many of the month's budgets are on track versus
// exceeded, comparing category spend (expenses only) against the limit.
func (r *SQLiteRepository) BudgetStatus(ctx context.Context, year, month int) (total, onTrack, overBudget int, err error) {
	from, to := monthBounds(year, month)
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.limit_cents, COALESCE((
			SELECT -SUM(t.amount_cents) FROM transactions t
			WHERE t.deleted = 0 AND t.amount_cents < 0 AND t.category = b.category
			  AND t.date >= ? AND t.date < ?
		), 0) AS spent
		FROM budgets b WHERE b.year = ? AND b.month = ?`,
		from.Format(dateLayout), to.Format(dateLayout), year, month)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("budget status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var limit, spent int64
		if err := rows.Scan(&limit, &spent); err != nil {
			return 0, 0, 0, fmt.Errorf("scan budget status: %w", err)
		}
		total++
		if spent > limit {
			overBudget++
		} else {
			onTrack++
		}
	}
	return total, onTrack, overBudget, rows.Err()
}

// CreateBudget inserts a per-category monthly budget.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (category, year, month, limit_cents) VALUES (?, ?, ?, ?)`,
		b.Category, b.Year, b.Month, b.Limit.Cents)
	if err != nil {
		return 0, fmt.Errorf("create budget: %w", err)
	}
	return res.LastInsertId()
}

// ListBudgets returns the budgets configured for a month.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, year, month int) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, year, month, limit_cents FROM budgets
		WHERE year = ? AND month = ? ORDER BY category`, year, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.Category, &b.Year, &b.Month, &b.Limit.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateAccount inserts an account and returns its ID.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (name, kind, currency) VALUES (?, ?, ?)`,
		a.Name, a.Kind, a.Currency)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	return res.LastInsertId()
}

// ListAccounts returns all accounts.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, kind, currency FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Kind, &a.Currency); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateRecurring inserts a recurring template and returns its ID.
func (r *SQLiteRepository) CreateRecurring(ctx context.Context, rt core.RecurringTransaction) (int64, error) {
	var endDate any
	if !rt.EndDate.IsEmpty() {
		endDate = rt.EndDate.Format(dateLayout)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_transactions
			(account_id, description, amount_cents, category, every, fixed_day, start_date, end_date, next_date, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.AccountID, rt.Description, rt.Amount.Cents, rt.Category, string(rt.Every.OrDefault()),
		rt.FixedDay, rt.StartDate.Format(dateLayout), endDate, rt.NextDate.Format(dateLayout), rt.Active)
	if err != nil {
		return 0, fmt.Errorf("create recurring transaction: %w", err)
	}
	return res.LastInsertId()
}

// ListRecurring returns all active recurring templates.
func (r *SQLiteRepository) ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	return r.queryRecurring(ctx, `
		SELECT id, account_id, description, amount_cents, category, every, fixed_day, start_date, end_date, next_date, active
		FROM recurring_transactions WHERE active = 1 ORDER BY id`)
}

// DueRecurring returns active templates whose next date is not after now.
func (r *SQLiteRepository) DueRecurring(ctx context.Context, now time.Time) ([]core.RecurringTransaction, error) {
	return r.queryRecurring(ctx, `
		SELECT id, account_id, description, amount_cents, category, every, fixed_day, start_date, end_date, next_date, active
		FROM recurring_transactions WHERE active = 1 AND next_date <= ? ORDER BY next_date`,
		now.Format(dateLayout))
}

// AdvanceRecurring stores the next occurrence date of a template.
func (r *SQLiteRepository) AdvanceRecurring(ctx context.Context, id int64, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE recurring_transactions SET next_date = ? WHERE id = ?`,
		next.Format(dateLayout), id)
	if err != nil {
		return fmt.Errorf("advance recurring transaction: %w", err)
	}
	return nil
}

// DeactivateRecurring stops a template without deleting its history.
func (r *SQLiteRepository) DeactivateRecurring(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE recurring_transactions SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate recurring transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UnsyncedTransactions returns live rows not yet exported to the ledger.
func (r *SQLiteRepository) UnsyncedTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, date, description, amount_cents, category, recurring_id
		FROM transactions WHERE deleted = 0 AND synced = 0
		ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("unsynced transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// MarkSynced records a successful ledger export.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET synced = 1, sync_error = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError flags a row whose ledger export failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_error = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var (
		t           core.Transaction
		dateStr     string
		recurringID sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.AccountID, &dateStr, &t.Description, &t.Amount.Cents, &t.Category, &recurringID); err != nil {
		return nil, err
	}

	parsed, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse transaction date %q: %w", dateStr, err)
	}
	t.Date = core.Date{Time: parsed}

	if recurringID.Valid {
		id := recurringID.Int64
		t.RecurringID = &id
	}
	return &t, nil
}

func (r *SQLiteRepository) queryRecurring(ctx context.Context, query string, args ...any) ([]core.RecurringTransaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTransaction
	for rows.Next() {
		var (
			rt       core.RecurringTransaction
			every    string
			startStr string
			endStr   sql.NullString
			nextStr  string
		)
		if err := rows.Scan(&rt.ID, &rt.AccountID, &rt.Description, &rt.Amount.Cents, &rt.Category,
			&every, &rt.FixedDay, &startStr, &endStr, &nextStr, &rt.Active); err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}

		rt.Every = core.Pattern(every)
		start, err := time.Parse(dateLayout, startStr)
		if err != nil {
			return nil, fmt.Errorf("parse start date %q: %w", startStr, err)
		}
		rt.StartDate = core.Date{Time: start}

		if endStr.Valid && endStr.String != "" {
			end, err := time.Parse(dateLayout, endStr.String)
			if err != nil {
				return nil, fmt.Errorf("parse end date %q: %w", endStr.String, err)
			}
			rt.EndDate = core.Date{Time: end}
		}

		next, err := time.Parse(dateLayout, nextStr)
		if err != nil {
			return nil, fmt.Errorf("parse next date %q: %w", nextStr, err)
		}
		rt.NextDate = core.Date{Time: next}

		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) sumAmounts(ctx context.Context, query string, args ...any) (core.Money, error) {
	var cents int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("sum amounts: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// monthBounds returns the first day of the month and the first day of the
// next month.
func monthBounds(year, month int) (time.Time, time.Time) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, 0)
}
