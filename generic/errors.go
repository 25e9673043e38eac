/*
errors.go - Centralized error taxonomy for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these with context; the HTTP layer maps them to
  status codes with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Validation errors - malformed ranges, bad day-packages (client input)
  2. Scope errors - unknown tenant or teacher
  3. Data errors - a collaborator store failed (scoped to one calculation)
  4. Authorization errors - principal lacks a capability
  5. Conflict errors - duplicate waiver or payment

ConfigMissing is never returned to callers: the engine substitutes the
default deduction table and logs it.

SEE ALSO:
  - payroll/calculator.go: produces DataUnavailableError
  - api/handlers.go: maps errors to HTTP status
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when from > to or either date is unparsable.
	// Always raised before any store lookup.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrUnknownTenant is returned when no tenant matches the scope.
	ErrUnknownTenant = errors.New("unknown tenant")

	// ErrUnknownTeacher is returned when the teacher does not belong to the tenant.
	ErrUnknownTeacher = errors.New("unknown teacher")

	// ErrConfigMissing marks a tenant without an effective deduction config.
	// Logged, never returned.
	ErrConfigMissing = errors.New("deduction config missing, defaults applied")

	// ErrPartialDataUnavailable is returned when one collaborator store fails.
	ErrPartialDataUnavailable = errors.New("partial data unavailable")

	// ErrInvalidDayPackage is returned for an unparsable recurrence code.
	ErrInvalidDayPackage = errors.New("invalid day package")

	// ErrForbidden is returned when the principal lacks a capability.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateWaiver is returned when a waiver already exists for
	// (teacher, tenant, date, type). Waivers are immutable.
	ErrDuplicateWaiver = errors.New("waiver already exists")

	// ErrDuplicatePayment is returned when the period is already paid.
	ErrDuplicatePayment = errors.New("payment already recorded")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RangeError describes why a date range was rejected.
type RangeError struct {
	From   string
	To     string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid date range [%s, %s]: %s", e.From, e.To, e.Reason)
}

func (e *RangeError) Unwrap() error {
	return ErrInvalidRange
}

// DataUnavailableError names the collaborator store that failed.
type DataUnavailableError struct {
	Store     string // e.g. "schedule", "delivery_events"
	TenantID  TenantID
	TeacherID TeacherID
	Err       error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s store unavailable for teacher %s in tenant %s: %v",
		e.Store, e.TeacherID, e.TenantID, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *DataUnavailableError) Unwrap() []error {
	return []error{ErrPartialDataUnavailable, e.Err}
}

// DayPackageError reports the offending recurrence code.
type DayPackageError struct {
	Code  string
	Token string
}

func (e *DayPackageError) Error() string {
	return fmt.Sprintf("invalid day package %q: unknown day %q", e.Code, e.Token)
}

func (e *DayPackageError) Unwrap() error {
	return ErrInvalidDayPackage
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidDayPackage)
}

// IsConflict returns true if the write collides with an immutable record.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateWaiver) ||
		errors.Is(err, ErrDuplicatePayment)
}

// IsNotFound returns true if the error indicates a missing scope.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownTenant) ||
		errors.Is(err, ErrUnknownTeacher)
}
