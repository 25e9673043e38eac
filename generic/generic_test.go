package generic_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// PERIOD
// =============================================================================

func TestParsePeriod_Valid(t *testing.T) {
	p, err := generic.ParsePeriod("2025-01-01", "2025-02-01")
	require.NoError(t, err)
	assert.Len(t, p.Days(), 31)
	assert.True(t, p.Contains(generic.NewTimePoint(2025, time.January, 1)))
	assert.True(t, p.Contains(generic.NewTimePoint(2025, time.January, 31)))
	assert.False(t, p.Contains(generic.NewTimePoint(2025, time.February, 1)))
}

func TestParsePeriod_EndIsExclusive(t *testing.T) {
	p, err := generic.ParsePeriod("2025-01-06", "2025-01-13")
	require.NoError(t, err)

	days := p.Days()
	require.Len(t, days, 7)
	assert.Equal(t, "2025-01-12", days[6].String())
	assert.False(t, p.Contains(generic.NewTimePoint(2025, time.January, 13)))
}

func TestParsePeriod_SameDayIsEmpty(t *testing.T) {
	p, err := generic.ParsePeriod("2025-01-06", "2025-01-06")
	require.NoError(t, err)
	assert.Empty(t, p.Days())
	assert.False(t, p.Contains(generic.NewTimePoint(2025, time.January, 6)))

	from, to := p.Bounds(time.UTC)
	assert.True(t, from.Equal(to))
}

func TestDayPeriod(t *testing.T) {
	p := generic.DayPeriod(generic.NewTimePoint(2025, time.January, 6))
	assert.Len(t, p.Days(), 1)

	from, to := p.Bounds(time.UTC)
	assert.Equal(t, 24*time.Hour, to.Sub(from))
}

func TestParsePeriod_Invalid(t *testing.T) {
	cases := []struct{ from, to string }{
		{"2025-02-01", "2025-01-01"},
		{"yesterday", "2025-01-01"},
		{"2025-01-01", ""},
	}
	for _, tc := range cases {
		_, err := generic.ParsePeriod(tc.from, tc.to)
		assert.ErrorIs(t, err, generic.ErrInvalidRange, "%s..%s", tc.from, tc.to)
		assert.True(t, generic.IsClientError(err))

		var rangeErr *generic.RangeError
		assert.ErrorAs(t, err, &rangeErr)
	}
}

func TestPeriod_BoundsInZone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	p := generic.MonthPeriod(generic.NewTimePoint(2025, time.February, 14))
	from, to := p.Bounds(loc)

	assert.True(t, p.Start.Equal(generic.NewTimePoint(2025, time.February, 1)))
	assert.True(t, p.End.Equal(generic.NewTimePoint(2025, time.March, 1)))
	assert.Len(t, p.Days(), 28)
	assert.Equal(t, time.Date(2025, time.February, 1, 5, 0, 0, 0, time.UTC), from.UTC())
	assert.Equal(t, time.Date(2025, time.March, 1, 5, 0, 0, 0, time.UTC), to.UTC())
}

func TestPeriod_JSON(t *testing.T) {
	p, err := generic.ParsePeriod("2025-01-01", "2025-02-01")
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"2025-01-01","to":"2025-02-01"}`, string(raw))

	var back generic.Period
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Start.Equal(p.Start))
	assert.True(t, back.End.Equal(p.End))
}

func TestDateOf_UsesZone(t *testing.T) {
	instant := time.Date(2025, time.January, 6, 23, 30, 0, 0, time.UTC)
	assert.True(t, generic.DateOf(instant, time.UTC).Equal(generic.NewTimePoint(2025, time.January, 6)))

	plus3 := time.FixedZone("UTC+3", 3*60*60)
	assert.True(t, generic.DateOf(instant, plus3).Equal(generic.NewTimePoint(2025, time.January, 7)))
}

func TestParseClockTime(t *testing.T) {
	c, err := generic.ParseClockTime("09:05:59")
	require.NoError(t, err)
	assert.Equal(t, "09:05", c.String())
	assert.Equal(t, 545, c.Minutes())

	_, err = generic.ParseClockTime("25:00")
	assert.Error(t, err)
}

// =============================================================================
// MONEY
// =============================================================================

func TestParseMoney(t *testing.T) {
	d, err := generic.ParseMoney("12.50")
	require.NoError(t, err)
	assert.Equal(t, "12.5", d.String())

	_, err = generic.ParseMoney("-1")
	assert.Error(t, err)
	_, err = generic.ParseMoney("ten")
	assert.Error(t, err)

	assert.Equal(t, "30", generic.Sum(decimal.NewFromInt(10), decimal.NewFromInt(20)).String())
	assert.True(t, generic.Sum().IsZero())
}

// =============================================================================
// ERRORS
// =============================================================================

func TestDataUnavailableError_UnwrapsBoth(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&generic.DataUnavailableError{Store: "schedule", TenantID: "t1", TeacherID: "x", Err: cause})

	assert.ErrorIs(t, err, generic.ErrPartialDataUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "schedule")
	assert.False(t, generic.IsClientError(err))
}

func TestErrorCategories(t *testing.T) {
	assert.True(t, generic.IsNotFound(generic.ErrUnknownTeacher))
	assert.True(t, generic.IsClientError(&generic.DayPackageError{Code: "x", Token: "x"}))
	assert.True(t, generic.IsConflict(generic.ErrDuplicateWaiver))
	assert.False(t, generic.IsConflict(generic.ErrForbidden))
}

// =============================================================================
// PRINCIPAL
// =============================================================================

func principal(t *testing.T, id, roles string) generic.Principal {
	t.Helper()
	caps, err := generic.ParseCapabilities(roles)
	require.NoError(t, err)
	return generic.Principal{ID: id, Tenant: "t1", Capabilities: caps}
}

func TestParseCapabilities(t *testing.T) {
	caps, err := generic.ParseCapabilities(" Registrar , admin ")
	require.NoError(t, err)
	assert.Equal(t, "admin,registrar", caps.String())

	_, err = generic.ParseCapabilities("admin,janitor")
	assert.Error(t, err)
	_, err = generic.ParseCapabilities(" , ")
	assert.Error(t, err)
}

func TestPrincipal_TeacherSeesOnlySelf(t *testing.T) {
	p := principal(t, "teacher-1", "teacher")
	assert.True(t, p.CanViewSalary("teacher-1"))
	assert.False(t, p.CanViewSalary("teacher-2"))
	assert.False(t, p.CanRunBatch())
	assert.False(t, p.CanClearCache())
}

func TestPrincipal_Capabilities(t *testing.T) {
	admin := principal(t, "a", "admin")
	controller := principal(t, "c", "controller")
	registrar := principal(t, "r", "registrar")

	assert.True(t, admin.CanManageWaivers())
	assert.True(t, admin.CanManageConfig())
	assert.True(t, admin.CanClearCache())

	assert.True(t, controller.CanRunBatch())
	assert.True(t, controller.CanRecordBonuses())
	assert.False(t, controller.CanRecordPayments())
	assert.False(t, controller.CanManageWaivers())

	assert.True(t, registrar.CanViewSalary("anyone"))
	assert.True(t, registrar.CanRecordPayments())
	assert.False(t, registrar.CanRunBatch())
}

func TestTenantScope(t *testing.T) {
	assert.Equal(t, generic.TenantID("default"), generic.TenantScopeFrom("  ").Resolve("default"))
	assert.Equal(t, generic.TenantID("t9"), generic.TenantScopeFrom("t9").Resolve("default"))

	_, ok := generic.NoTenant().Get()
	assert.False(t, ok)
	id, ok := generic.SomeTenant("t2").Get()
	assert.True(t, ok)
	assert.Equal(t, generic.TenantID("t2"), id)
}
