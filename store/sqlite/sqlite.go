/*
Package sqlite provides a SQLite-backed implementation of the payroll stores.

PURPOSE:
  Implements payroll.Backend (every collaborator contract the engine reads)
  plus the write operations the admin API and demo scenarios use. In
  production the same schema runs on any SQL database with minor dialect
  changes.

INTERFACES IMPLEMENTED:
  payroll.Directory:     tenants, teachers, base salaries
  payroll.ScheduleStore: recurring assignments (closed windows included)
  payroll.DeliveryStore: meeting dispatch/join events
  payroll.ConfigStore:   per-tenant deduction tables with effective windows
  payroll.WaiverStore:   immutable deduction waivers
  payroll.BonusStore:    weekly quality bonuses
  payroll.PaymentStore:  paid periods

KEY TABLES:
  tenants, teachers, schedule_assignments, delivery_events,
  deduction_configs, deduction_waivers, quality_bonuses, payments

ENCODING:
  - Calendar dates as YYYY-MM-DD text
  - Instants as RFC3339 UTC text (lexical order == time order)
  - Money as decimal text, never REAL

MIGRATION:
  Versioned goose migrations embedded from migrations/*.sql, applied on New().

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode so
  readers don't block each other.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  calc := payroll.NewCalculator(payroll.StoresFrom(store), loc, logger)

SEE ALSO:
  - payroll/stores.go: interface definitions
  - payroll/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements payroll.Backend using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ payroll.Backend = (*Store)(nil)

// New creates a new SQLite store with the given database path and applies
// pending migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Version returns the applied schema version.
func (s *Store) Version(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, s.db)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// DIRECTORY (payroll.Directory)
// =============================================================================

// SaveTenant inserts or renames a tenant.
func (s *Store) SaveTenant(ctx context.Context, t payroll.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO tenants (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, t.ID, t.Name, now())
	return err
}

func (s *Store) GetTenant(ctx context.Context, tenantID generic.TenantID) (*payroll.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t payroll.Tenant
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM tenants WHERE id = ?", tenantID).Scan(&t.ID, &t.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]payroll.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM tenants ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []payroll.Tenant
	for rows.Next() {
		var t payroll.Tenant
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// SaveTeacher inserts or updates a teacher. The tenant must exist.
func (s *Store) SaveTeacher(ctx context.Context, t payroll.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO teachers (tenant_id, id, name, base_salary, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			base_salary = excluded.base_salary
	`
	_, err := s.db.ExecContext(ctx, query, t.TenantID, t.ID, t.Name, t.BaseSalary.String(), now())
	if isForeignKeyError(err) {
		return fmt.Errorf("save teacher %s: %w", t.ID, generic.ErrUnknownTenant)
	}
	return err
}

func (s *Store) GetTeacher(ctx context.Context, tenantID generic.TenantID, teacherID generic.TeacherID) (*payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		t    payroll.Teacher
		base string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT tenant_id, id, name, base_salary FROM teachers WHERE tenant_id = ? AND id = ?",
		tenantID, teacherID,
	).Scan(&t.TenantID, &t.ID, &t.Name, &base)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t.BaseSalary, err = parseAmount("base_salary", base); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTeachers(ctx context.Context, tenantID generic.TenantID) ([]payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT tenant_id, id, name, base_salary FROM teachers WHERE tenant_id = ? ORDER BY id",
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teachers []payroll.Teacher
	for rows.Next() {
		var (
			t    payroll.Teacher
			base string
		)
		if err := rows.Scan(&t.TenantID, &t.ID, &t.Name, &base); err != nil {
			return nil, err
		}
		if t.BaseSalary, err = parseAmount("base_salary", base); err != nil {
			return nil, err
		}
		teachers = append(teachers, t)
	}
	return teachers, rows.Err()
}

// =============================================================================
// SCHEDULE (payroll.ScheduleStore)
// =============================================================================

// SaveAssignment inserts an assignment, generating an ID when empty.
func (s *Store) SaveAssignment(ctx context.Context, a payroll.ScheduleAssignment) (payroll.ScheduleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	query := `
		INSERT INTO schedule_assignments
		(id, tenant_id, teacher_id, student_id, day_package, slot, occupied_from, occupied_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.TenantID, a.TeacherID, a.StudentID, a.DayPackage,
		a.Slot.String(), a.OccupiedFrom.String(), nullDate(a.OccupiedUntil), now(),
	)
	if isForeignKeyError(err) {
		return payroll.ScheduleAssignment{}, fmt.Errorf("save assignment %s: %w", a.ID, generic.ErrUnknownTeacher)
	}
	if err != nil {
		return payroll.ScheduleAssignment{}, fmt.Errorf("failed to save assignment: %w", err)
	}
	return a, nil
}

// CloseAssignment ends an assignment's window on until (inclusive).
func (s *Store) CloseAssignment(ctx context.Context, id string, until generic.TimePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE schedule_assignments SET occupied_until = ? WHERE id = ?",
		until.String(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assignment %s not found", id)
	}
	return nil
}

func (s *Store) ListActiveAssignments(ctx context.Context, teacherID generic.TeacherID, tenantID generic.TenantID) ([]payroll.ScheduleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, teacher_id, student_id, day_package, slot, occupied_from, occupied_until
		FROM schedule_assignments
		WHERE tenant_id = ? AND teacher_id = ?
		ORDER BY occupied_from, id
	`, tenantID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []payroll.ScheduleAssignment
	for rows.Next() {
		var (
			a          payroll.ScheduleAssignment
			slot, from string
			until      sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.TenantID, &a.TeacherID, &a.StudentID, &a.DayPackage, &slot, &from, &until); err != nil {
			return nil, err
		}
		if a.Slot, err = generic.ParseClockTime(slot); err != nil {
			return nil, fmt.Errorf("assignment %s: %w", a.ID, err)
		}
		if a.OccupiedFrom, err = generic.ParseDate(from); err != nil {
			return nil, fmt.Errorf("assignment %s: %w", a.ID, err)
		}
		if a.OccupiedUntil, err = parseNullDate(until); err != nil {
			return nil, fmt.Errorf("assignment %s: %w", a.ID, err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// =============================================================================
// DELIVERY EVENTS (payroll.DeliveryStore)
// =============================================================================

// SaveDeliveryEvent records a dispatch. The ID is assigned by the database
// unless set.
func (s *Store) SaveDeliveryEvent(ctx context.Context, e payroll.DeliveryEvent) (payroll.DeliveryEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var joined sql.NullString
	if e.JoinedAt != nil {
		joined = nullString(formatInstant(*e.JoinedAt))
	}
	var id any
	if e.ID != 0 {
		id = e.ID
	}
	if e.Status == "" {
		e.Status = payroll.DeliveryUnknown
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_events
		(id, tenant_id, teacher_id, student_id, dispatched_at, joined_at, duration_seconds, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, e.TenantID, e.TeacherID, e.StudentID, formatInstant(e.DispatchedAt), joined,
		int64(e.Duration/time.Second), e.Status)
	if err != nil {
		return payroll.DeliveryEvent{}, fmt.Errorf("failed to save delivery event: %w", err)
	}
	if e.ID == 0 {
		if e.ID, err = res.LastInsertId(); err != nil {
			return payroll.DeliveryEvent{}, err
		}
	}
	return e, nil
}

func (s *Store) ListDeliveryEvents(ctx context.Context, teacherID generic.TeacherID, tenantID generic.TenantID, from, to time.Time) ([]payroll.DeliveryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, teacher_id, student_id, dispatched_at, joined_at, duration_seconds, status
		FROM delivery_events
		WHERE tenant_id = ? AND teacher_id = ?
		  AND dispatched_at >= ? AND dispatched_at < ?
		ORDER BY dispatched_at, id
	`, tenantID, teacherID, formatInstant(from), formatInstant(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery events: %w", err)
	}
	defer rows.Close()

	var events []payroll.DeliveryEvent
	for rows.Next() {
		var (
			e          payroll.DeliveryEvent
			dispatched string
			joined     sql.NullString
			seconds    int64
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.TeacherID, &e.StudentID, &dispatched, &joined, &seconds, &e.Status); err != nil {
			return nil, err
		}
		if e.DispatchedAt, err = time.Parse(time.RFC3339, dispatched); err != nil {
			return nil, fmt.Errorf("delivery event %d: %w", e.ID, err)
		}
		if joined.Valid {
			t, err := time.Parse(time.RFC3339, joined.String)
			if err != nil {
				return nil, fmt.Errorf("delivery event %d: %w", e.ID, err)
			}
			e.JoinedAt = &t
		}
		e.Duration = time.Duration(seconds) * time.Second
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// DEDUCTION CONFIG (payroll.ConfigStore)
// =============================================================================

// SaveDeductionConfig appends a config version. The newest one effective on
// a date wins, so history is never rewritten.
func (s *Store) SaveDeductionConfig(ctx context.Context, cfg payroll.DeductionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tiers, err := json.Marshal(cfg.LatenessTiers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deduction_configs
		(tenant_id, effective_from, effective_to, lateness_tiers_json, absence_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cfg.TenantID, cfg.EffectiveFrom.String(), nullDate(cfg.EffectiveTo), string(tiers), cfg.AbsenceAmount.String(), now())
	if isForeignKeyError(err) {
		return fmt.Errorf("save deduction config: %w", generic.ErrUnknownTenant)
	}
	return err
}

func (s *Store) GetDeductionConfig(ctx context.Context, tenantID generic.TenantID, asOf generic.TimePoint) (*payroll.DeductionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	date := asOf.String()
	row := s.db.QueryRowContext(ctx, `
		SELECT effective_from, effective_to, lateness_tiers_json, absence_amount
		FROM deduction_configs
		WHERE tenant_id = ? AND effective_from <= ?
		  AND (effective_to IS NULL OR effective_to >= ?)
		ORDER BY effective_from DESC, id DESC
		LIMIT 1
	`, tenantID, date, date)
	cfg, err := scanDeductionConfig(row, tenantID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListDeductionConfigs returns every version effective on some day of the
// period. An empty period lists the versions effective on its start.
func (s *Store) ListDeductionConfigs(ctx context.Context, tenantID generic.TenantID, period generic.Period) ([]payroll.DeductionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lastDay := period.Start
	if period.End.After(period.Start) {
		lastDay = period.End.AddDays(-1)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT effective_from, effective_to, lateness_tiers_json, absence_amount
		FROM deduction_configs
		WHERE tenant_id = ? AND effective_from <= ?
		  AND (effective_to IS NULL OR effective_to >= ?)
		ORDER BY effective_from, id
	`, tenantID, lastDay.String(), period.Start.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query deduction configs: %w", err)
	}
	defer rows.Close()

	var configs []payroll.DeductionConfig
	for rows.Next() {
		cfg, err := scanDeductionConfig(rows, tenantID)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeductionConfig(row rowScanner, tenantID generic.TenantID) (payroll.DeductionConfig, error) {
	var (
		from, tiers, absence string
		to                   sql.NullString
	)
	if err := row.Scan(&from, &to, &tiers, &absence); err != nil {
		return payroll.DeductionConfig{}, err
	}

	cfg := payroll.DeductionConfig{TenantID: tenantID}
	var err error
	if cfg.AbsenceAmount, err = parseAmount("absence_amount", absence); err != nil {
		return payroll.DeductionConfig{}, err
	}
	if cfg.EffectiveFrom, err = generic.ParseDate(from); err != nil {
		return payroll.DeductionConfig{}, err
	}
	if cfg.EffectiveTo, err = parseNullDate(to); err != nil {
		return payroll.DeductionConfig{}, err
	}
	if err := json.Unmarshal([]byte(tiers), &cfg.LatenessTiers); err != nil {
		return payroll.DeductionConfig{}, fmt.Errorf("decode lateness tiers: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// WAIVERS (payroll.WaiverStore)
// =============================================================================

// CreateWaiver stores an immutable waiver. A second waiver for the same
// (teacher, date, type) returns generic.ErrDuplicateWaiver.
func (s *Store) CreateWaiver(ctx context.Context, w payroll.DeductionWaiver) (payroll.DeductionWaiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deduction_waivers
		(id, tenant_id, teacher_id, date, type, reason, original_amount, issued_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.TenantID, w.TeacherID, w.Date.String(), w.Type, w.Reason,
		w.OriginalAmount.String(), w.IssuedBy, formatInstant(w.CreatedAt))
	if isUniqueConstraintError(err) {
		return payroll.DeductionWaiver{}, fmt.Errorf("waiver for %s %s on %s: %w", w.TeacherID, w.Type, w.Date, generic.ErrDuplicateWaiver)
	}
	if err != nil {
		return payroll.DeductionWaiver{}, fmt.Errorf("failed to create waiver: %w", err)
	}
	return w, nil
}

func (s *Store) FindWaiver(ctx context.Context, teacherID generic.TeacherID, tenantID generic.TenantID, date generic.TimePoint, typ payroll.DeductionType) (*payroll.DeductionWaiver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		w                    payroll.DeductionWaiver
		day, amount, created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, teacher_id, date, type, reason, original_amount, issued_by, created_at
		FROM deduction_waivers
		WHERE tenant_id = ? AND teacher_id = ? AND date = ? AND type = ?
	`, tenantID, teacherID, date.String(), typ).Scan(
		&w.ID, &w.TenantID, &w.TeacherID, &day, &w.Type, &w.Reason, &amount, &w.IssuedBy, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if w.Date, err = generic.ParseDate(day); err != nil {
		return nil, err
	}
	if w.OriginalAmount, err = parseAmount("original_amount", amount); err != nil {
		return nil, err
	}
	w.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &w, nil
}

// =============================================================================
// BONUSES (payroll.BonusStore)
// =============================================================================

func (s *Store) SaveBonus(ctx context.Context, b payroll.QualityBonus) (payroll.QualityBonus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quality_bonuses (id, tenant_id, teacher_id, week_start, amount, rating, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.TenantID, b.TeacherID, b.WeekStart.String(), b.Amount.String(), b.Rating, formatInstant(b.CreatedAt))
	if err != nil {
		return payroll.QualityBonus{}, fmt.Errorf("failed to save bonus: %w", err)
	}
	return b, nil
}

func (s *Store) ListBonuses(ctx context.Context, teacherID generic.TeacherID, tenantID generic.TenantID, period generic.Period) ([]payroll.QualityBonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, teacher_id, week_start, amount, rating, created_at
		FROM quality_bonuses
		WHERE tenant_id = ? AND teacher_id = ? AND week_start >= ? AND week_start < ?
		ORDER BY week_start, id
	`, tenantID, teacherID, period.Start.String(), period.End.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query bonuses: %w", err)
	}
	defer rows.Close()

	var bonuses []payroll.QualityBonus
	for rows.Next() {
		var (
			b                     payroll.QualityBonus
			week, amount, created string
		)
		if err := rows.Scan(&b.ID, &b.TenantID, &b.TeacherID, &week, &amount, &b.Rating, &created); err != nil {
			return nil, err
		}
		if b.WeekStart, err = generic.ParseDate(week); err != nil {
			return nil, err
		}
		if b.Amount, err = parseAmount("amount", amount); err != nil {
			return nil, err
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339, created)
		bonuses = append(bonuses, b)
	}
	return bonuses, rows.Err()
}

// =============================================================================
// PAYMENTS (payroll.PaymentStore)
// =============================================================================

// SavePayment marks a period paid. Paying the same period twice returns
// generic.ErrDuplicatePayment.
func (s *Store) SavePayment(ctx context.Context, p payroll.Payment) (payroll.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, tenant_id, teacher_id, period_from, period_to, amount, paid_by, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.TenantID, p.TeacherID, p.Period.Start.String(), p.Period.End.String(),
		p.Amount.String(), p.PaidBy, formatInstant(p.PaidAt))
	if isUniqueConstraintError(err) {
		return payroll.Payment{}, fmt.Errorf("payment for %s %s: %w", p.TeacherID, p.Period, generic.ErrDuplicatePayment)
	}
	if err != nil {
		return payroll.Payment{}, fmt.Errorf("failed to save payment: %w", err)
	}
	return p, nil
}

func (s *Store) GetPayment(ctx context.Context, tenantID generic.TenantID, teacherID generic.TeacherID, period generic.Period) (*payroll.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                payroll.Payment
		from, to, amount string
		paidAt           string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, teacher_id, period_from, period_to, amount, paid_by, paid_at
		FROM payments
		WHERE tenant_id = ? AND teacher_id = ? AND period_from = ? AND period_to = ?
	`, tenantID, teacherID, period.Start.String(), period.End.String()).Scan(
		&p.ID, &p.TenantID, &p.TeacherID, &from, &to, &amount, &p.PaidBy, &paidAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Period, err = generic.ParsePeriod(from, to); err != nil {
		return nil, err
	}
	if p.Amount, err = parseAmount("amount", amount); err != nil {
		return nil, err
	}
	p.PaidAt, _ = time.Parse(time.RFC3339, paidAt)
	return &p, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo). The schema version is kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"payments", "quality_bonuses", "deduction_waivers", "deduction_configs",
		"delivery_events", "schedule_assignments", "teachers", "tenants",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// parseAmount decodes a money column. A corrupt value is an error, never a panic.
func parseAmount(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt %s %q: %w", column, raw, err)
	}
	return d, nil
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil || tp.IsZero() {
		return sql.NullString{}
	}
	return nullString(tp.String())
}

func parseNullDate(ns sql.NullString) (*generic.TimePoint, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	tp, err := generic.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
