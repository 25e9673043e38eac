// Package store provides in-memory payroll collaborator stores.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements payroll.Backend over maps. Individual collaborators can
// be made to fail with FailOn to exercise partial-data handling.
type Memory struct {
	mu          sync.RWMutex
	tenants     map[generic.TenantID]payroll.Tenant
	teachers    map[teacherKey]payroll.Teacher
	assignments map[teacherKey][]payroll.ScheduleAssignment
	events      map[teacherKey][]payroll.DeliveryEvent
	configs     map[generic.TenantID][]payroll.DeductionConfig
	waivers     map[waiverKey]payroll.DeductionWaiver
	bonuses     map[teacherKey][]payroll.QualityBonus
	payments    map[paymentKey]payroll.Payment
	failures    map[string]error
	nextEventID int64
}

type teacherKey struct {
	tenant  generic.TenantID
	teacher generic.TeacherID
}

type waiverKey struct {
	teacherKey
	date generic.TimePoint
	typ  payroll.DeductionType
}

type paymentKey struct {
	teacherKey
	from, to generic.TimePoint
}

var _ payroll.Backend = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tenants:     make(map[generic.TenantID]payroll.Tenant),
		teachers:    make(map[teacherKey]payroll.Teacher),
		assignments: make(map[teacherKey][]payroll.ScheduleAssignment),
		events:      make(map[teacherKey][]payroll.DeliveryEvent),
		configs:     make(map[generic.TenantID][]payroll.DeductionConfig),
		waivers:     make(map[waiverKey]payroll.DeductionWaiver),
		bonuses:     make(map[teacherKey][]payroll.QualityBonus),
		payments:    make(map[paymentKey]payroll.Payment),
		failures:    make(map[string]error),
	}
}

// FailOn makes every read of the named collaborator return err. Names match
// DataUnavailableError.Store: directory, schedule, delivery_events,
// deduction_config, waivers, bonuses, payments. A nil err clears it.
func (m *Memory) FailOn(store string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, store)
		return
	}
	m.failures[store] = err
}

func (m *Memory) failure(store string) error {
	return m.failures[store]
}

// =============================================================================
// WRITES
// =============================================================================

func (m *Memory) SaveTenant(_ context.Context, t payroll.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	return nil
}

func (m *Memory) SaveTeacher(_ context.Context, t payroll.Teacher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.TenantID]; !ok {
		return fmt.Errorf("save teacher %s: %w", t.ID, generic.ErrUnknownTenant)
	}
	m.teachers[teacherKey{t.TenantID, t.ID}] = t
	return nil
}

func (m *Memory) SaveAssignment(_ context.Context, a payroll.ScheduleAssignment) (payroll.ScheduleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	k := teacherKey{a.TenantID, a.TeacherID}
	m.assignments[k] = append(m.assignments[k], a)
	return a, nil
}

// SaveDeliveryEvent stores an event, assigning an ID when it has none.
func (m *Memory) SaveDeliveryEvent(_ context.Context, e payroll.DeliveryEvent) (payroll.DeliveryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		m.nextEventID++
		e.ID = m.nextEventID
	} else if e.ID > m.nextEventID {
		m.nextEventID = e.ID
	}
	k := teacherKey{e.TenantID, e.TeacherID}
	m.events[k] = append(m.events[k], e)
	return e, nil
}

func (m *Memory) SaveDeductionConfig(_ context.Context, cfg payroll.DeductionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.TenantID] = append(m.configs[cfg.TenantID], cfg)
	return nil
}

// CreateWaiver stores a waiver. A second waiver for the same key is rejected.
func (m *Memory) CreateWaiver(_ context.Context, w payroll.DeductionWaiver) (payroll.DeductionWaiver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := waiverKey{teacherKey{w.TenantID, w.TeacherID}, w.Date, w.Type}
	if _, exists := m.waivers[k]; exists {
		return payroll.DeductionWaiver{}, fmt.Errorf("waiver for %s %s on %s: %w", w.TeacherID, w.Type, w.Date, generic.ErrDuplicateWaiver)
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	m.waivers[k] = w
	return w, nil
}

func (m *Memory) SaveBonus(_ context.Context, b payroll.QualityBonus) (payroll.QualityBonus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	k := teacherKey{b.TenantID, b.TeacherID}
	m.bonuses[k] = append(m.bonuses[k], b)
	return b, nil
}

func (m *Memory) SavePayment(_ context.Context, p payroll.Payment) (payroll.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := paymentKey{teacherKey{p.TenantID, p.TeacherID}, p.Period.Start, p.Period.End}
	if _, exists := m.payments[k]; exists {
		return payroll.Payment{}, fmt.Errorf("payment for %s %s: %w", p.TeacherID, p.Period, generic.ErrDuplicatePayment)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now().UTC()
	}
	m.payments[k] = p
	return p, nil
}

// =============================================================================
// READS - payroll.Backend
// =============================================================================

func (m *Memory) GetTenant(_ context.Context, tenantID generic.TenantID) (*payroll.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("directory"); err != nil {
		return nil, err
	}
	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) ListTenants(_ context.Context) ([]payroll.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("directory"); err != nil {
		return nil, err
	}
	out := make([]payroll.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetTeacher(_ context.Context, tenantID generic.TenantID, teacherID generic.TeacherID) (*payroll.Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("directory"); err != nil {
		return nil, err
	}
	t, ok := m.teachers[teacherKey{tenantID, teacherID}]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) ListTeachers(_ context.Context, tenantID generic.TenantID) ([]payroll.Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("directory"); err != nil {
		return nil, err
	}
	var out []payroll.Teacher
	for k, t := range m.teachers {
		if k.tenant == tenantID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListActiveAssignments(_ context.Context, teacherID generic.TeacherID, tenantID generic.TenantID) ([]payroll.ScheduleAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("schedule"); err != nil {
		return nil, err
	}
	src := m.assignments[teacherKey{tenantID, teacherID}]
	out := make([]payroll.ScheduleAssignment, len(src))
	copy(out, src)
	return out, nil
}

func (m *Memory) ListDeliveryEvents(_ context.Context, teacherID generic.TeacherID, tenantID generic.TenantID, from, to time.Time) ([]payroll.DeliveryEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("delivery_events"); err != nil {
		return nil, err
	}
	var out []payroll.DeliveryEvent
	for _, e := range m.events[teacherKey{tenantID, teacherID}] {
		if !e.DispatchedAt.Before(from) && e.DispatchedAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetDeductionConfig returns the most recently effective config covering asOf.
func (m *Memory) GetDeductionConfig(_ context.Context, tenantID generic.TenantID, asOf generic.TimePoint) (*payroll.DeductionConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("deduction_config"); err != nil {
		return nil, err
	}
	var best *payroll.DeductionConfig
	for i := range m.configs[tenantID] {
		c := m.configs[tenantID][i]
		if !c.EffectiveOn(asOf) {
			continue
		}
		if best == nil || !c.EffectiveFrom.Before(best.EffectiveFrom) {
			cc := c
			best = &cc
		}
	}
	return best, nil
}

func (m *Memory) ListDeductionConfigs(_ context.Context, tenantID generic.TenantID, period generic.Period) ([]payroll.DeductionConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("deduction_config"); err != nil {
		return nil, err
	}
	var out []payroll.DeductionConfig
	for _, c := range m.configs[tenantID] {
		if c.Overlaps(period) || c.EffectiveOn(period.Start) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EffectiveFrom.Before(out[j].EffectiveFrom) })
	return out, nil
}

func (m *Memory) FindWaiver(_ context.Context, teacherID generic.TeacherID, tenantID generic.TenantID, date generic.TimePoint, typ payroll.DeductionType) (*payroll.DeductionWaiver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("waivers"); err != nil {
		return nil, err
	}
	w, ok := m.waivers[waiverKey{teacherKey{tenantID, teacherID}, date, typ}]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *Memory) ListBonuses(_ context.Context, teacherID generic.TeacherID, tenantID generic.TenantID, period generic.Period) ([]payroll.QualityBonus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("bonuses"); err != nil {
		return nil, err
	}
	var out []payroll.QualityBonus
	for _, b := range m.bonuses[teacherKey{tenantID, teacherID}] {
		if period.Contains(b.WeekStart) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) GetPayment(_ context.Context, tenantID generic.TenantID, teacherID generic.TeacherID, period generic.Period) (*payroll.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("payments"); err != nil {
		return nil, err
	}
	p, ok := m.payments[paymentKey{teacherKey{tenantID, teacherID}, period.Start, period.End}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
