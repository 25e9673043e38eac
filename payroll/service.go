/*
service.go - Cached salary service and tenant-wide batch

PURPOSE:
  Wraps the Calculator with a read-through result cache, collapses
  concurrent first reads of the same key, and fans a tenant batch out over
  a bounded number of workers.

CACHE SEMANTICS:
  Key = (tenant, teacher, from, to). A hit is returned as-is even if the
  underlying data changed since: invalidation is explicit only (ClearCache).
  Waivers, bonuses and config edits do not clear anything by themselves.

  Cache failures are logged and treated as a miss; they never fail a
  calculation.

BATCH:
  One result per teacher. A teacher whose calculation fails carries the
  error in its row; the other teachers are unaffected.
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/warp/payroll-engine/generic"
)

// DefaultBatchConcurrency bounds batch fan-out when none is configured.
const DefaultBatchConcurrency = 4

// =============================================================================
// CACHE CONTRACT
// =============================================================================

// CacheKey identifies one cached SalaryResult.
type CacheKey struct {
	Tenant  generic.TenantID
	Teacher generic.TeacherID
	Period  generic.Period
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.Tenant, k.Teacher, k.Period.Start, k.Period.End)
}

// ClearScope selects which cache entries to drop. The zero value clears
// everything; Tenant narrows to one tenant; Tenant+Teacher to one teacher.
type ClearScope struct {
	Tenant  generic.TenantID
	Teacher generic.TeacherID
}

// ClearAll drops every entry.
func ClearAll() ClearScope { return ClearScope{} }

// ClearTenant drops every entry of one tenant.
func ClearTenant(tenant generic.TenantID) ClearScope { return ClearScope{Tenant: tenant} }

// ClearTeacher drops every period cached for one teacher.
func ClearTeacher(tenant generic.TenantID, teacher generic.TeacherID) ClearScope {
	return ClearScope{Tenant: tenant, Teacher: teacher}
}

// IsAll reports whether the scope covers the whole cache.
func (s ClearScope) IsAll() bool { return s.Tenant == "" }

// Matches reports whether key falls inside the scope.
func (s ClearScope) Matches(key CacheKey) bool {
	if s.Tenant != "" && s.Tenant != key.Tenant {
		return false
	}
	return s.Teacher == "" || s.Teacher == key.Teacher
}

func (s ClearScope) Validate() error {
	if s.Tenant == "" && s.Teacher != "" {
		return fmt.Errorf("teacher scope %q requires a tenant", s.Teacher)
	}
	return nil
}

// ResultCache stores computed salaries. Implementations must not hand out
// results that share memory with what they store.
type ResultCache interface {
	Get(ctx context.Context, key CacheKey) (*SalaryResult, bool, error)
	Set(ctx context.Context, key CacheKey, result *SalaryResult) error
	Clear(ctx context.Context, scope ClearScope) (int, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the engine's public entry point.
type Service struct {
	calc        *Calculator
	cache       ResultCache
	logger      *zap.Logger
	concurrency int
	flight      singleflight.Group
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithConcurrency bounds how many teachers a batch computes at once.
func WithConcurrency(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a service. A nil cache disables caching.
func NewService(calc *Calculator, cache ResultCache, opts ...ServiceOption) *Service {
	s := &Service{
		calc:        calc,
		cache:       cache,
		logger:      zap.NewNop(),
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Directory exposes the tenant/teacher directory the service computes over.
func (s *Service) Directory() Directory {
	return s.calc.Stores.Directory
}

// CalculateSalary returns the salary of one teacher for one period, from
// cache when present.
func (s *Service) CalculateSalary(ctx context.Context, teacherID generic.TeacherID, tenantID generic.TenantID, period generic.Period) (*SalaryResult, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	key := CacheKey{Tenant: tenantID, Teacher: teacherID, Period: period}

	if cached, ok := s.lookup(ctx, key); ok {
		return cached, nil
	}

	// The flight outlives any one caller: it runs detached from ctx and each
	// caller stops waiting on its own cancellation.
	flight := s.flight.DoChan(key.String(), func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		// A concurrent caller may have filled the entry while we queued.
		if cached, ok := s.lookup(ctx, key); ok {
			return cached, nil
		}
		result, err := s.calc.Calculate(ctx, tenantID, teacherID, period)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, result); err != nil {
				s.logger.Warn("salary cache write failed", zap.String("key", key.String()), zap.Error(err))
			}
		}
		return result, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-flight:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	result := res.Val.(*SalaryResult)
	if res.Shared {
		result = result.Clone()
	}
	return result, nil
}

func (s *Service) lookup(ctx context.Context, key CacheKey) (*SalaryResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("salary cache read failed", zap.String("key", key.String()), zap.Error(err))
		return nil, false
	}
	return cached, ok
}

// ClearCache drops cached results in scope and returns how many went.
func (s *Service) ClearCache(ctx context.Context, scope ClearScope) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	if s.cache == nil {
		return 0, nil
	}
	n, err := s.cache.Clear(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("clear salary cache: %w", err)
	}
	s.logger.Info("salary cache cleared",
		zap.String("tenant_id", string(scope.Tenant)),
		zap.String("teacher_id", string(scope.Teacher)),
		zap.Int("entries", n))
	return n, nil
}

// =============================================================================
// BATCH
// =============================================================================

// TeacherSalary is one row of a batch. Exactly one of Result and Error is set.
type TeacherSalary struct {
	TeacherID   generic.TeacherID `json:"teacher_id"`
	TeacherName string            `json:"teacher_name"`
	Result      *SalaryResult     `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`

	err error
}

// Err returns the calculation error of a failed row.
func (t TeacherSalary) Err() error { return t.err }

// BatchStatistics summarizes a batch over its successful rows.
type BatchStatistics struct {
	Teachers        int             `json:"teachers"`
	Paid            int             `json:"paid"`
	Unpaid          int             `json:"unpaid"`
	Failed          int             `json:"failed"`
	TotalNet        decimal.Decimal `json:"total_net"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	TotalWaived     decimal.Decimal `json:"total_waived"`
	TotalBonuses    decimal.Decimal `json:"total_bonuses"`
	AverageNet      decimal.Decimal `json:"average_net"`
	PaymentRate     decimal.Decimal `json:"payment_rate"` // percent of successful rows that are paid
}

// BatchResult is the payroll of every teacher of a tenant for one period.
type BatchResult struct {
	TenantID   generic.TenantID `json:"tenant_id"`
	Period     generic.Period   `json:"period"`
	Salaries   []TeacherSalary  `json:"salaries"`
	Statistics BatchStatistics  `json:"statistics"`
	ComputedAt time.Time        `json:"computed_at"`
}

// CalculateAllSalaries computes every teacher of the tenant. Per-teacher
// failures are recorded in their row; only range, scope and directory
// failures fail the whole batch.
func (s *Service) CalculateAllSalaries(ctx context.Context, tenantID generic.TenantID, period generic.Period) (*BatchResult, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	dir := s.calc.Stores.Directory
	tenant, err := dir.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, &generic.DataUnavailableError{Store: "directory", TenantID: tenantID, Err: err}
	}
	if tenant == nil {
		return nil, generic.ErrUnknownTenant
	}
	teachers, err := dir.ListTeachers(ctx, tenantID)
	if err != nil {
		return nil, &generic.DataUnavailableError{Store: "directory", TenantID: tenantID, Err: err}
	}

	rows := make([]TeacherSalary, len(teachers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	var mu sync.Mutex
	for i, t := range teachers {
		i, t := i, t
		g.Go(func() error {
			row := TeacherSalary{TeacherID: t.ID, TeacherName: t.Name}
			result, err := s.CalculateSalary(gctx, t.ID, tenantID, period)
			if err != nil {
				row.err = err
				row.Error = err.Error()
				s.logger.Warn("teacher salary failed",
					zap.String("tenant_id", string(tenantID)),
					zap.String("teacher_id", string(t.ID)),
					zap.Error(err))
			} else {
				row.Result = result
			}
			mu.Lock()
			rows[i] = row
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only joins.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &BatchResult{
		TenantID:   tenantID,
		Period:     period,
		Salaries:   rows,
		Statistics: Summarize(rows),
		ComputedAt: s.calc.Now().UTC(),
	}
	s.logger.Info("payroll batch computed",
		zap.String("tenant_id", string(tenantID)),
		zap.String("period", period.String()),
		zap.Int("teachers", batch.Statistics.Teachers),
		zap.Int("failed", batch.Statistics.Failed),
		zap.String("total_net", batch.Statistics.TotalNet.String()))
	return batch, nil
}

// Summarize computes batch statistics. Failed rows count only in Failed
// and Teachers.
func Summarize(rows []TeacherSalary) BatchStatistics {
	stats := BatchStatistics{
		Teachers:        len(rows),
		TotalNet:        decimal.Zero,
		TotalDeductions: decimal.Zero,
		TotalWaived:     decimal.Zero,
		TotalBonuses:    decimal.Zero,
		AverageNet:      decimal.Zero,
		PaymentRate:     decimal.Zero,
	}
	succeeded := 0
	for _, row := range rows {
		r := row.Result
		if r == nil {
			stats.Failed++
			continue
		}
		succeeded++
		if r.PaymentStatus == PaymentPaid {
			stats.Paid++
		} else {
			stats.Unpaid++
		}
		stats.TotalNet = stats.TotalNet.Add(r.NetSalary)
		stats.TotalDeductions = stats.TotalDeductions.Add(r.TotalCharged())
		stats.TotalWaived = stats.TotalWaived.Add(r.TotalWaived)
		stats.TotalBonuses = stats.TotalBonuses.Add(r.TotalBonus)
	}
	if succeeded > 0 {
		n := decimal.NewFromInt(int64(succeeded))
		stats.AverageNet = stats.TotalNet.DivRound(n, 2)
		stats.PaymentRate = decimal.NewFromInt(int64(stats.Paid)).
			Mul(decimal.NewFromInt(100)).
			DivRound(n, 2)
	}
	return stats
}

// FailedRows returns the rows whose calculation failed with err matching
// target, e.g. generic.ErrPartialDataUnavailable.
func (b *BatchResult) FailedRows(target error) []TeacherSalary {
	var out []TeacherSalary
	for _, row := range b.Salaries {
		if row.err != nil && errors.Is(row.err, target) {
			out = append(out, row)
		}
	}
	return out
}
