/*
Package sqlite provides the SQLite-backed implementation of financing.Store.

PURPOSE:
  Persists finance applications and payment schedules. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  applications: finance applications with their planned installments
  schedules:    schedule headers (down payment state, status)
  installments: per-schedule obligations with derived paid/pending state
  payments:     append-only accepted payments in insertion order

APPEND-ONLY PAYMENTS:
  The payments table is the source of truth the allocation engine replays.
  Rows are only ever added; a correction is a new payment, never an edit.
  Saving a schedule rewrites the derived installment state but the payment
  rows it writes are a superset of what was there.

MONEY:
  All amounts are stored as decimal strings, never floats. They round-trip
  through shopspring/decimal exactly.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/financing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - financing/store.go: Interface definition
  - financing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/financing-engine/engine"
	"github.com/warp/financing-engine/financing"
)

// Store implements financing.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ financing.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Finance applications
	CREATE TABLE IF NOT EXISTS applications (
		id TEXT PRIMARY KEY,
		customer TEXT NOT NULL,
		quotation TEXT,
		status TEXT NOT NULL,
		total_to_finance TEXT NOT NULL,
		interest TEXT NOT NULL,
		down_payment TEXT NOT NULL,
		terms_json TEXT NOT NULL,
		installments_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		approved_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_applications_customer
		ON applications(customer);
	CREATE INDEX IF NOT EXISTS idx_applications_status
		ON applications(status);

	-- Payment schedules (header)
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		application_id TEXT NOT NULL,
		customer TEXT NOT NULL,
		status TEXT NOT NULL,
		down_payment_amount TEXT NOT NULL,
		paid_down_payment TEXT NOT NULL,
		pending_down_payment TEXT NOT NULL,
		down_payment_ref_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_application
		ON schedules(application_id);
	CREATE INDEX IF NOT EXISTS idx_schedules_status
		ON schedules(status);

	-- Per-schedule obligations with derived allocation state
	CREATE TABLE IF NOT EXISTS installments (
		schedule_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		penalty_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		pending_amount TEXT NOT NULL,
		ref_json TEXT NOT NULL,
		PRIMARY KEY (schedule_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_due
		ON installments(due_date);

	-- Accepted payments in insertion order (append-only)
	CREATE TABLE IF NOT EXISTS payments (
		schedule_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		payment_entry TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		PRIMARY KEY (schedule_id, position),
		UNIQUE (schedule_id, payment_entry)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// APPLICATIONS
// =============================================================================

func (s *Store) SaveApplication(ctx context.Context, app *financing.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	termsJSON, err := json.Marshal(app.Terms)
	if err != nil {
		return fmt.Errorf("failed to encode terms: %w", err)
	}
	installmentsJSON, err := json.Marshal(app.Installments)
	if err != nil {
		return fmt.Errorf("failed to encode planned installments: %w", err)
	}

	query := `
		INSERT INTO applications
		(id, customer, quotation, status, total_to_finance, interest, down_payment,
		 terms_json, installments_json, created_at, approved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			installments_json = excluded.installments_json,
			approved_at = excluded.approved_at
	`

	_, err = s.db.ExecContext(ctx, query,
		string(app.ID),
		app.Customer,
		app.Quotation,
		string(app.Status),
		app.TotalToFinance.String(),
		app.Interest.String(),
		app.DownPayment.String(),
		string(termsJSON),
		string(installmentsJSON),
		app.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(app.ApprovedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save application: %w", err)
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id financing.ApplicationID) (*financing.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer, quotation, status, total_to_finance, interest, down_payment,
		       terms_json, installments_json, created_at, approved_at
		FROM applications WHERE id = ?
	`
	app, err := scanApplication(s.db.QueryRowContext(ctx, query, string(id)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", financing.ErrApplicationNotFound, id)
	}
	return app, err
}

func (s *Store) ListApplications(ctx context.Context) ([]*financing.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer, quotation, status, total_to_finance, interest, down_payment,
		       terms_json, installments_json, created_at, approved_at
		FROM applications ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*financing.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*financing.Application, error) {
	var (
		app                            financing.Application
		id, status                     string
		total, interest, down          string
		termsJSON, installmentsJSON    string
		createdAt                      string
		approvedAt                     sql.NullString
	)
	err := row.Scan(&id, &app.Customer, &app.Quotation, &status, &total, &interest, &down,
		&termsJSON, &installmentsJSON, &createdAt, &approvedAt)
	if err != nil {
		return nil, err
	}

	app.ID = financing.ApplicationID(id)
	app.Status = financing.ApplicationStatus(status)
	if app.TotalToFinance, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("bad total_to_finance %q: %w", total, err)
	}
	if app.Interest, err = decimal.NewFromString(interest); err != nil {
		return nil, fmt.Errorf("bad interest %q: %w", interest, err)
	}
	if app.DownPayment, err = decimal.NewFromString(down); err != nil {
		return nil, fmt.Errorf("bad down_payment %q: %w", down, err)
	}
	if err := json.Unmarshal([]byte(termsJSON), &app.Terms); err != nil {
		return nil, fmt.Errorf("bad terms_json: %w", err)
	}
	if err := json.Unmarshal([]byte(installmentsJSON), &app.Installments); err != nil {
		return nil, fmt.Errorf("bad installments_json: %w", err)
	}
	if app.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	if approvedAt.Valid {
		if app.ApprovedAt, err = time.Parse(time.RFC3339, approvedAt.String); err != nil {
			return nil, fmt.Errorf("bad approved_at %q: %w", approvedAt.String, err)
		}
	}
	return &app, nil
}

// =============================================================================
// SCHEDULES
// =============================================================================

// SaveSchedule writes the schedule header, installment state and payment rows
// in one transaction.
func (s *Store) SaveSchedule(ctx context.Context, schedule *financing.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	downRefJSON, err := encodeRef(schedule.DownPaymentRef)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedules
		(id, application_id, customer, status, down_payment_amount,
		 paid_down_payment, pending_down_payment, down_payment_ref_json,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			paid_down_payment = excluded.paid_down_payment,
			pending_down_payment = excluded.pending_down_payment,
			down_payment_ref_json = excluded.down_payment_ref_json,
			updated_at = excluded.updated_at
	`,
		string(schedule.ID),
		string(schedule.ApplicationID),
		schedule.Customer,
		string(schedule.Status),
		schedule.DownPaymentAmount.String(),
		schedule.PaidDownPayment.String(),
		schedule.PendingDownPayment.String(),
		downRefJSON,
		schedule.CreatedAt.UTC().Format(time.RFC3339),
		schedule.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	// Installment state is derived; rewrite it wholesale.
	if _, err := tx.ExecContext(ctx, `DELETE FROM installments WHERE schedule_id = ?`, string(schedule.ID)); err != nil {
		return fmt.Errorf("failed to clear installments: %w", err)
	}
	for i, inst := range schedule.Installments {
		refJSON, err := encodeRef(inst.Ref)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO installments
			(schedule_id, idx, due_date, amount, penalty_amount, paid_amount, pending_amount, ref_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			string(schedule.ID), i,
			inst.DueDate.UTC().Format(time.RFC3339),
			inst.Amount.String(),
			inst.PenaltyAmount.String(),
			inst.PaidAmount.String(),
			inst.PendingAmount.String(),
			refJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to save installment %d: %w", i, err)
		}
	}

	// Payments are append-only; INSERT OR IGNORE keeps existing rows intact.
	for i, rec := range schedule.Payments {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO payments (schedule_id, position, payment_entry, amount, date)
			VALUES (?, ?, ?, ?, ?)
		`,
			string(schedule.ID), i,
			rec.PaymentEntry,
			rec.Amount.String(),
			rec.Date.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to save payment %s: %w", rec.PaymentEntry, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetSchedule(ctx context.Context, id financing.ScheduleID) (*financing.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadSchedule(ctx, id)
}

func (s *Store) ListSchedules(ctx context.Context) ([]*financing.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var ids []financing.ScheduleID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, financing.ScheduleID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schedules := make([]*financing.Schedule, 0, len(ids))
	for _, id := range ids {
		schedule, err := s.loadSchedule(ctx, id)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, nil
}

func (s *Store) loadSchedule(ctx context.Context, id financing.ScheduleID) (*financing.Schedule, error) {
	var (
		schedule             financing.Schedule
		rawID, appID, status string
		downAmount           string
		paidDown             string
		pendingDown          string
		downRefJSON          string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, application_id, customer, status, down_payment_amount,
		       paid_down_payment, pending_down_payment, down_payment_ref_json,
		       created_at, updated_at
		FROM schedules WHERE id = ?
	`, string(id)).Scan(&rawID, &appID, &schedule.Customer, &status, &downAmount,
		&paidDown, &pendingDown, &downRefJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", financing.ErrScheduleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	schedule.ID = financing.ScheduleID(rawID)
	schedule.ApplicationID = financing.ApplicationID(appID)
	schedule.Status = financing.ScheduleStatus(status)
	if schedule.DownPaymentAmount, err = decimal.NewFromString(downAmount); err != nil {
		return nil, fmt.Errorf("bad down_payment_amount %q: %w", downAmount, err)
	}
	if schedule.PaidDownPayment, err = decimal.NewFromString(paidDown); err != nil {
		return nil, fmt.Errorf("bad paid_down_payment %q: %w", paidDown, err)
	}
	if schedule.PendingDownPayment, err = decimal.NewFromString(pendingDown); err != nil {
		return nil, fmt.Errorf("bad pending_down_payment %q: %w", pendingDown, err)
	}
	if schedule.DownPaymentRef, err = decodeRef(downRefJSON); err != nil {
		return nil, err
	}
	if schedule.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	if schedule.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("bad updated_at %q: %w", updatedAt, err)
	}

	if schedule.Installments, err = s.loadInstallments(ctx, id); err != nil {
		return nil, err
	}
	if schedule.Payments, err = s.loadPayments(ctx, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (s *Store) loadInstallments(ctx context.Context, id financing.ScheduleID) ([]financing.Installment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT due_date, amount, penalty_amount, paid_amount, pending_amount, ref_json
		FROM installments WHERE schedule_id = ? ORDER BY idx
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load installments: %w", err)
	}
	defer rows.Close()

	var installments []financing.Installment
	for rows.Next() {
		var (
			inst                                         financing.Installment
			dueDate, amount, penalty, paid, pending, ref string
		)
		if err := rows.Scan(&dueDate, &amount, &penalty, &paid, &pending, &ref); err != nil {
			return nil, err
		}
		if inst.DueDate, err = time.Parse(time.RFC3339, dueDate); err != nil {
			return nil, fmt.Errorf("bad due_date %q: %w", dueDate, err)
		}
		if inst.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount %q: %w", amount, err)
		}
		if inst.PenaltyAmount, err = decimal.NewFromString(penalty); err != nil {
			return nil, fmt.Errorf("bad penalty_amount %q: %w", penalty, err)
		}
		if inst.PaidAmount, err = decimal.NewFromString(paid); err != nil {
			return nil, fmt.Errorf("bad paid_amount %q: %w", paid, err)
		}
		if inst.PendingAmount, err = decimal.NewFromString(pending); err != nil {
			return nil, fmt.Errorf("bad pending_amount %q: %w", pending, err)
		}
		if inst.Ref, err = decodeRef(ref); err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

func (s *Store) loadPayments(ctx context.Context, id financing.ScheduleID) ([]financing.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_entry, amount, date
		FROM payments WHERE schedule_id = ? ORDER BY position
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	defer rows.Close()

	var payments []financing.PaymentRecord
	for rows.Next() {
		var (
			rec          financing.PaymentRecord
			amount, date string
		)
		if err := rows.Scan(&rec.PaymentEntry, &amount, &date); err != nil {
			return nil, err
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad payment amount %q: %w", amount, err)
		}
		if rec.Date, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("bad payment date %q: %w", date, err)
		}
		payments = append(payments, rec)
	}
	return payments, rows.Err()
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

// refRecord is the persisted form of engine.PaymentRef.
type refRecord struct {
	Kind      int                      `json:"kind"`
	PaymentID string                   `json:"payment_id,omitempty"`
	Amount    int64                    `json:"amount,omitempty"`
	Entries   []refEntry               `json:"entries,omitempty"`
}

type refEntry struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

func encodeRef(ref engine.PaymentRef) (string, error) {
	rec := refRecord{
		Kind:      int(ref.Kind),
		PaymentID: ref.PaymentID,
		Amount:    int64(ref.Amount),
	}
	for _, e := range ref.Entries {
		rec.Entries = append(rec.Entries, refEntry{PaymentID: e.PaymentID, Amount: int64(e.Amount)})
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment ref: %w", err)
	}
	return string(data), nil
}

func decodeRef(data string) (engine.PaymentRef, error) {
	var rec refRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return engine.PaymentRef{}, fmt.Errorf("bad ref_json: %w", err)
	}
	ref := engine.PaymentRef{
		Kind:      engine.RefKind(rec.Kind),
		PaymentID: rec.PaymentID,
		Amount:    engine.Cents(rec.Amount),
	}
	for _, e := range rec.Entries {
		ref.Entries = append(ref.Entries, engine.AllocationEntry{
			PaymentID: e.PaymentID,
			Amount:    engine.Cents(e.Amount),
		})
	}
	return ref, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
