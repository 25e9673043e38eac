/*
stores.go - Collaborator contracts consumed by the engine

PURPOSE:
  The engine owns no data. Schedules, delivery events, deduction configs,
  waivers, bonuses, payments and the teacher directory are read through
  these interfaces. Implementations:
  - store/sqlite/sqlite.go: production SQLite
  - payroll/store/memory.go: in-memory, for tests and demos

CONTRACT:
  - Every method takes a context and returns explicit errors.
  - "Not found" is (nil, nil), never an error.
  - Reads only. Writes belong to the concrete stores.

SEE ALSO:
  - calculator.go: the only consumer
*/
package payroll

import (
	"context"
	"time"

	"github.com/warp/payroll-engine/generic"
)

// ScheduleStore returns every assignment of a teacher that was not hard
// deleted, closed windows included, so past periods still resolve.
type ScheduleStore interface {
	ListActiveAssignments(ctx context.Context, teacherID generic.TeacherID, tenantID generic.TenantID) ([]ScheduleAssignment, error)
}

// DeliveryStore returns events whose DispatchedAt is in [from, to).
type DeliveryStore interface {
	ListDeliveryEvents(ctx context.Context, teacherID generic.TeacherID, tenantID generic.TenantID, from, to time.Time) ([]DeliveryEvent, error)
}

// ConfigStore returns tenant deduction configs. GetDeductionConfig returns
// the version effective on asOf, or nil. ListDeductionConfigs returns every
// version whose window overlaps the period, ordered by effective_from and
// then by save order.
type ConfigStore interface {
	GetDeductionConfig(ctx context.Context, tenantID generic.TenantID, asOf generic.TimePoint) (*DeductionConfig, error)
	ListDeductionConfigs(ctx context.Context, tenantID generic.TenantID, period generic.Period) ([]DeductionConfig, error)
}

// WaiverStore finds the waiver for one exact deduction key, or nil.
type WaiverStore interface {
	FindWaiver(ctx context.Context, teacherID generic.TeacherID, tenantID generic.TenantID, date generic.TimePoint, typ DeductionType) (*DeductionWaiver, error)
}

// BonusStore returns bonuses whose week start is within the period.
type BonusStore interface {
	ListBonuses(ctx context.Context, teacherID generic.TeacherID, tenantID generic.TenantID, period generic.Period) ([]QualityBonus, error)
}

// Directory resolves tenant and teacher scope.
type Directory interface {
	GetTenant(ctx context.Context, tenantID generic.TenantID) (*Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	GetTeacher(ctx context.Context, tenantID generic.TenantID, teacherID generic.TeacherID) (*Teacher, error)
	ListTeachers(ctx context.Context, tenantID generic.TenantID) ([]Teacher, error)
}

// PaymentStore returns the payment for exactly this period, or nil.
type PaymentStore interface {
	GetPayment(ctx context.Context, tenantID generic.TenantID, teacherID generic.TeacherID, period generic.Period) (*Payment, error)
}

// Stores bundles every collaborator. A single backend usually fills all.
type Stores struct {
	Schedule  ScheduleStore
	Delivery  DeliveryStore
	Config    ConfigStore
	Waivers   WaiverStore
	Bonuses   BonusStore
	Directory Directory
	Payments  PaymentStore
}

// Backend is a store implementing every collaborator contract.
type Backend interface {
	ScheduleStore
	DeliveryStore
	ConfigStore
	WaiverStore
	BonusStore
	Directory
	PaymentStore
}

// StoresFrom fills every slot from one backend.
func StoresFrom(b Backend) Stores {
	return Stores{
		Schedule:  b,
		Delivery:  b,
		Config:    b,
		Waivers:   b,
		Bonuses:   b,
		Directory: b,
		Payments:  b,
	}
}
