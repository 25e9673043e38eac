package payroll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func jan(day int) generic.TimePoint {
	return generic.NewTimePoint(2025, time.January, day)
}

func period(from, to generic.TimePoint) generic.Period {
	return generic.Period{Start: from, End: to}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func at(date generic.TimePoint, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.UTC)
}

func assignment(id, pkg string, slot string) ScheduleAssignment {
	clock, _ := generic.ParseClockTime(slot)
	return ScheduleAssignment{
		ID:           id,
		TenantID:     "t1",
		TeacherID:    "teacher-1",
		StudentID:    "student-1",
		DayPackage:   pkg,
		Slot:         clock,
		OccupiedFrom: jan(1),
	}
}

func joinedEvent(id int64, dispatched time.Time, joined time.Time) DeliveryEvent {
	return DeliveryEvent{
		ID:           id,
		TenantID:     "t1",
		TeacherID:    "teacher-1",
		StudentID:    "student-1",
		DispatchedAt: dispatched,
		JoinedAt:     &joined,
		Status:       DeliveryEnded,
	}
}

// =============================================================================
// DAY PACKAGES
// =============================================================================

func TestParseDayPackage_Explicit(t *testing.T) {
	for _, code := range []string{"Mon/Wed/Fri", "mon_wed_fri", "monday, wednesday, friday", "MON-WED-FRI"} {
		dp, err := ParseDayPackage(code)
		require.NoError(t, err, code)
		assert.True(t, dp.Includes(time.Monday), code)
		assert.True(t, dp.Includes(time.Wednesday), code)
		assert.True(t, dp.Includes(time.Friday), code)
		assert.False(t, dp.Includes(time.Tuesday), code)
		assert.False(t, dp.Includes(time.Sunday), code)
	}
}

func TestParseDayPackage_Wildcards(t *testing.T) {
	for _, code := range []string{"all", "ALL_DAYS", "daily", "*"} {
		dp, err := ParseDayPackage(code)
		require.NoError(t, err, code)
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			assert.True(t, dp.Includes(wd), "%s should include %s", code, wd)
		}
	}
}

func TestParseDayPackage_Invalid(t *testing.T) {
	for _, code := range []string{"", "  ", "mon/funday", "weekends"} {
		_, err := ParseDayPackage(code)
		assert.ErrorIs(t, err, generic.ErrInvalidDayPackage, code)

		var dpErr *generic.DayPackageError
		assert.ErrorAs(t, err, &dpErr, code)
	}
}

// =============================================================================
// SCHEDULE RESOLVER
// =============================================================================

func TestResolveOccurrences_DayPackageAndWindow(t *testing.T) {
	// GIVEN: Mon/Wed assignment, occupied from Jan 8 (Wednesday)
	// WHEN: Resolving [Jan 6 (Mon), Jan 16)
	// THEN: Jan 8, 13, 15 only

	a := assignment("a1", "Mon/Wed", "09:00")
	a.OccupiedFrom = jan(8)

	occ, err := ResolveOccurrences([]ScheduleAssignment{a}, period(jan(6), jan(16)), time.UTC)
	require.NoError(t, err)
	require.Len(t, occ, 3)
	assert.True(t, occ[0].Date.Equal(jan(8)))
	assert.True(t, occ[1].Date.Equal(jan(13)))
	assert.True(t, occ[2].Date.Equal(jan(15)))
	assert.Equal(t, at(jan(8), 9, 0), occ[0].ScheduledStart)
}

func TestResolveOccurrences_ClosedWindowExcludesLaterDays(t *testing.T) {
	a := assignment("a1", "all", "10:30")
	until := jan(7)
	a.OccupiedUntil = &until

	occ, err := ResolveOccurrences([]ScheduleAssignment{a}, period(jan(6), jan(10)), time.UTC)
	require.NoError(t, err)
	require.Len(t, occ, 2)
	assert.True(t, occ[1].Date.Equal(jan(7)))
}

func TestResolveOccurrences_OrderedByDateThenSlot(t *testing.T) {
	late := assignment("b", "all", "15:00")
	early := assignment("a", "all", "08:00")

	occ, err := ResolveOccurrences([]ScheduleAssignment{late, early}, period(jan(6), jan(8)), time.UTC)
	require.NoError(t, err)
	require.Len(t, occ, 4)
	assert.Equal(t, "a", occ[0].Assignment.ID)
	assert.Equal(t, "b", occ[1].Assignment.ID)
	assert.Equal(t, "a", occ[2].Assignment.ID)
	assert.True(t, occ[2].Date.Equal(jan(7)))
}

func TestResolveOccurrences_SlotInTenantZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	occ, err := ResolveOccurrences([]ScheduleAssignment{assignment("a1", "Mon", "09:00")}, period(jan(6), jan(7)), loc)
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.True(t, occ[0].ScheduledStart.Equal(at(jan(6), 6, 0)))
}

func TestResolveOccurrences_InvalidInputs(t *testing.T) {
	_, err := ResolveOccurrences(nil, period(jan(10), jan(1)), time.UTC)
	assert.ErrorIs(t, err, generic.ErrInvalidRange)

	_, err = ResolveOccurrences([]ScheduleAssignment{assignment("a1", "someday", "09:00")}, period(jan(1), jan(2)), time.UTC)
	assert.ErrorIs(t, err, generic.ErrInvalidDayPackage)
}

// =============================================================================
// RECONCILER
// =============================================================================

func TestReconcile_EarliestEventWins(t *testing.T) {
	occ, err := ResolveOccurrences([]ScheduleAssignment{assignment("a1", "Mon", "09:00")}, period(jan(6), jan(7)), time.UTC)
	require.NoError(t, err)

	events := []DeliveryEvent{
		joinedEvent(2, at(jan(6), 9, 5), at(jan(6), 9, 12)),
		joinedEvent(1, at(jan(6), 8, 55), at(jan(6), 9, 3)),
	}
	matches := Reconcile(occ, events, time.UTC)
	require.Len(t, matches, 1)
	require.NotNil(t, matches[0].Event)
	assert.Equal(t, int64(1), matches[0].Event.ID)
	assert.Equal(t, 3, matches[0].DelayMinutes)
}

func TestReconcile_TieOnDispatchGoesToSmallestID(t *testing.T) {
	occ, _ := ResolveOccurrences([]ScheduleAssignment{assignment("a1", "Mon", "09:00")}, period(jan(6), jan(7)), time.UTC)
	events := []DeliveryEvent{
		joinedEvent(9, at(jan(6), 9, 0), at(jan(6), 9, 0)),
		joinedEvent(4, at(jan(6), 9, 0), at(jan(6), 9, 20)),
	}
	matches := Reconcile(occ, events, time.UTC)
	assert.Equal(t, int64(4), matches[0].Event.ID)
}

func TestReconcile_EventAttendsOneClass(t *testing.T) {
	// GIVEN: Two slots with the same student on one day, one event
	// THEN: The first slot gets the event, the second is unmatched
	occ, _ := ResolveOccurrences([]ScheduleAssignment{
		assignment("a1", "Mon", "09:00"),
		assignment("a2", "Mon", "14:00"),
	}, period(jan(6), jan(7)), time.UTC)

	matches := Reconcile(occ, []DeliveryEvent{joinedEvent(1, at(jan(6), 9, 0), at(jan(6), 9, 0))}, time.UTC)
	require.Len(t, matches, 2)
	assert.NotNil(t, matches[0].Event)
	assert.Nil(t, matches[1].Event)
	assert.Equal(t, Absent, Classify(matches[1]))
}

func TestReconcile_IgnoresOtherDaysStudentsAndTeachers(t *testing.T) {
	occ, _ := ResolveOccurrences([]ScheduleAssignment{assignment("a1", "Mon", "09:00")}, period(jan(6), jan(7)), time.UTC)

	otherDay := joinedEvent(1, at(jan(7), 9, 0), at(jan(7), 9, 0))
	otherStudent := joinedEvent(2, at(jan(6), 9, 0), at(jan(6), 9, 0))
	otherStudent.StudentID = "student-2"
	otherTeacher := joinedEvent(3, at(jan(6), 9, 0), at(jan(6), 9, 0))
	otherTeacher.TeacherID = "teacher-2"

	matches := Reconcile(occ, []DeliveryEvent{otherDay, otherStudent, otherTeacher}, time.UTC)
	require.Len(t, matches, 1)
	assert.Nil(t, matches[0].Event)
}

func TestReconcile_EarlyJoinIsZeroDelay(t *testing.T) {
	occ, _ := ResolveOccurrences([]ScheduleAssignment{assignment("a1", "Mon", "09:00")}, period(jan(6), jan(7)), time.UTC)
	matches := Reconcile(occ, []DeliveryEvent{joinedEvent(1, at(jan(6), 8, 50), at(jan(6), 8, 55))}, time.UTC)
	assert.Equal(t, 0, matches[0].DelayMinutes)
	assert.Equal(t, OnTime, Classify(matches[0]))
}

// =============================================================================
// EVALUATORS
// =============================================================================

func TestClassify_Exclusive(t *testing.T) {
	// Every match lands in exactly one class.
	joined := at(jan(6), 9, 7)
	cases := []struct {
		name string
		m    Match
		want Classification
	}{
		{"no event", Match{}, Absent},
		{"no show", Match{Event: &DeliveryEvent{Status: DeliveryNoShow, JoinedAt: &joined}}, Absent},
		{"never joined", Match{Event: &DeliveryEvent{Status: DeliveryEnded}}, Absent},
		{"late", Match{Event: &DeliveryEvent{Status: DeliveryEnded, JoinedAt: &joined}, DelayMinutes: 7}, Late},
		{"on time", Match{Event: &DeliveryEvent{Status: DeliveryEnded, JoinedAt: &joined}}, OnTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.m))

			ledger := Evaluate([]Match{tc.m}, NewDeductionRules("t1", nil))
			require.Len(t, ledger, 1)
			if tc.want == Absent {
				assert.Equal(t, DeductionAbsence, ledger[0].Type)
			} else {
				assert.Equal(t, DeductionLateness, ledger[0].Type)
			}
		})
	}
}

func TestEvaluate_DefaultTable(t *testing.T) {
	joined := at(jan(6), 9, 7)
	ev := &DeliveryEvent{ID: 7, Status: DeliveryEnded, JoinedAt: &joined}

	ledger := Evaluate([]Match{
		{Event: ev, DelayMinutes: 7},
		{Event: ev, DelayMinutes: 3},
		{Event: ev, DelayMinutes: 45},
		{},
	}, NewDeductionRules("t1", nil))

	require.Len(t, ledger, 4)
	assert.True(t, ledger[0].Amount.Equal(dec(10)))
	assert.True(t, ledger[0].Charged.Equal(dec(10)))
	assert.Equal(t, int64(7), *ledger[0].EventID)
	assert.True(t, ledger[1].Amount.IsZero())
	assert.Equal(t, Late, ledger[1].Classification)
	assert.True(t, ledger[2].Amount.Equal(dec(20)))
	assert.True(t, ledger[3].Amount.Equal(dec(30)))
	assert.Nil(t, ledger[3].EventID)
}

// =============================================================================
// DEDUCTION CONFIG
// =============================================================================

func TestLatenessDeduction_MonotonicInDelay(t *testing.T) {
	cfg, _ := ResolveDeductionConfig("t1", &DeductionConfig{
		LatenessTiers: []LatenessTier{
			{MinMinutes: 15, Amount: dec(25)},
			{MinMinutes: 1, Amount: dec(5)},
			{MinMinutes: 30, Amount: dec(40)},
		},
		AbsenceAmount: dec(50),
	}, jan(1))
	require.NoError(t, cfg.Validate())

	prev := decimal.Zero
	for delay := -5; delay <= 120; delay++ {
		got := cfg.LatenessDeduction(delay)
		assert.False(t, got.LessThan(prev), "deduction dropped at %d minutes", delay)
		prev = got
	}
	assert.True(t, cfg.LatenessDeduction(0).IsZero())
	assert.True(t, cfg.LatenessDeduction(14).Equal(dec(5)))
	assert.True(t, cfg.LatenessDeduction(15).Equal(dec(25)))
	assert.True(t, cfg.LatenessDeduction(500).Equal(dec(40)))
}

func TestResolveDeductionConfig_FallsBackOutsideWindow(t *testing.T) {
	until := jan(31)
	stored := &DeductionConfig{
		EffectiveFrom: jan(1),
		EffectiveTo:   &until,
		AbsenceAmount: dec(99),
	}

	cfg, src := ResolveDeductionConfig("t1", stored, jan(15))
	assert.Equal(t, ConfigFromTenant, src)
	assert.True(t, cfg.AbsenceAmount.Equal(dec(99)))

	cfg, src = ResolveDeductionConfig("t1", stored, generic.NewTimePoint(2025, time.February, 1))
	assert.Equal(t, ConfigFromDefault, src)
	assert.True(t, cfg.AbsenceAmount.Equal(DefaultAbsenceAmount))
	assert.Equal(t, generic.TenantID("t1"), cfg.TenantID)

	_, src = ResolveDeductionConfig("t1", nil, jan(15))
	assert.Equal(t, ConfigFromDefault, src)
}

func TestDeductionRules_PicksVersionPerDate(t *testing.T) {
	// GIVEN: 100 per absence until Jan 10, nothing Jan 11-19, 50 from Jan 20
	until := jan(10)
	rules := NewDeductionRules("t1", []DeductionConfig{
		{EffectiveFrom: jan(20), AbsenceAmount: dec(50)},
		{EffectiveFrom: jan(1), EffectiveTo: &until, AbsenceAmount: dec(100)},
	})

	cases := []struct {
		date   generic.TimePoint
		amount int64
		src    ConfigSource
	}{
		{jan(1), 100, ConfigFromTenant},
		{jan(10), 100, ConfigFromTenant},
		{jan(11), 30, ConfigFromDefault},
		{jan(20), 50, ConfigFromTenant},
		{jan(31), 50, ConfigFromTenant},
	}
	for _, tc := range cases {
		cfg, src := rules.On(tc.date)
		assert.Equal(t, tc.src, src, tc.date.String())
		assert.True(t, cfg.AbsenceAmount.Equal(dec(tc.amount)), "%s: %s", tc.date, cfg.AbsenceAmount)
	}
}

func TestDeductionRules_LaterVersionWinsOnSameStart(t *testing.T) {
	rules := NewDeductionRules("t1", []DeductionConfig{
		{EffectiveFrom: jan(1), AbsenceAmount: dec(40)},
		{EffectiveFrom: jan(1), AbsenceAmount: dec(45)},
	})
	cfg, _ := rules.On(jan(15))
	assert.True(t, cfg.AbsenceAmount.Equal(dec(45)))
}

func TestDeductionRules_Source(t *testing.T) {
	rules := NewDeductionRules("t1", []DeductionConfig{{EffectiveFrom: jan(10), AbsenceAmount: dec(40)}})

	ledger := Evaluate([]Match{
		{Occurrence: ClassOccurrence{Date: jan(6)}},
		{Occurrence: ClassOccurrence{Date: jan(13)}},
	}, rules)
	require.Len(t, ledger, 2)
	assert.Equal(t, ConfigFromDefault, ledger[0].ConfigSource)
	assert.True(t, ledger[0].Amount.Equal(dec(30)))
	assert.Equal(t, ConfigFromTenant, ledger[1].ConfigSource)
	assert.True(t, ledger[1].Amount.Equal(dec(40)))

	assert.Equal(t, ConfigMixed, rules.Source(ledger, jan(1)))
	assert.Equal(t, ConfigFromTenant, rules.Source(ledger[1:], jan(1)))
	assert.Equal(t, ConfigFromDefault, rules.Source(nil, jan(1)))
	assert.Equal(t, ConfigFromTenant, rules.Source(nil, jan(10)))
}

func TestDeductionConfig_Overlaps(t *testing.T) {
	until := jan(10)
	cfg := DeductionConfig{EffectiveFrom: jan(5), EffectiveTo: &until}

	assert.True(t, cfg.Overlaps(period(jan(1), jan(6))))
	assert.True(t, cfg.Overlaps(period(jan(10), jan(20))))
	assert.False(t, cfg.Overlaps(period(jan(1), jan(5))))
	assert.False(t, cfg.Overlaps(period(jan(11), jan(20))))
}

func TestDeductionConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultDeductionConfig().Validate())

	decreasing := DeductionConfig{LatenessTiers: []LatenessTier{
		{MinMinutes: 5, Amount: dec(20)},
		{MinMinutes: 10, Amount: dec(10)},
	}}
	assert.Error(t, decreasing.Validate())

	duplicate := DeductionConfig{LatenessTiers: []LatenessTier{
		{MinMinutes: 5, Amount: dec(10)},
		{MinMinutes: 5, Amount: dec(20)},
	}}
	assert.Error(t, duplicate.Validate())

	negative := DeductionConfig{AbsenceAmount: dec(-1)}
	assert.Error(t, negative.Validate())

	before := jan(1)
	backwards := DeductionConfig{EffectiveFrom: jan(10), EffectiveTo: &before}
	assert.Error(t, backwards.Validate())
}

// =============================================================================
// WAIVERS
// =============================================================================

func lateLedger() []LedgerEntry {
	joined := at(jan(6), 9, 7)
	ev := &DeliveryEvent{ID: 1, Status: DeliveryEnded, JoinedAt: &joined}
	occ := ClassOccurrence{Date: jan(6)}
	return Evaluate([]Match{
		{Occurrence: occ, Event: ev, DelayMinutes: 7},
		{Occurrence: occ},
		{Occurrence: ClassOccurrence{Date: jan(7)}, Event: ev, DelayMinutes: 1},
	}, NewDeductionRules("t1", nil))
}

func TestApplyWaivers_MovesAmountToWaived(t *testing.T) {
	ledger := lateLedger()
	calls := 0
	lookup := func(_ context.Context, date generic.TimePoint, typ DeductionType) (*DeductionWaiver, error) {
		calls++
		if date.Equal(jan(6)) && typ == DeductionLateness {
			return &DeductionWaiver{ID: "w1", Date: date, Type: typ, Reason: "network outage", IssuedBy: "admin-1"}, nil
		}
		return nil, nil
	}

	applied, err := ApplyWaivers(context.Background(), ledger, lookup)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "w1", applied[0].ID)

	// Lateness on Jan 6 waived; absence on Jan 6 untouched.
	assert.True(t, ledger[0].Charged.IsZero())
	assert.True(t, ledger[0].Waived.Equal(dec(10)))
	require.NotNil(t, ledger[0].Waiver)
	assert.Equal(t, "network outage", ledger[0].Waiver.Reason)
	assert.True(t, ledger[1].Charged.Equal(dec(30)))
	assert.Nil(t, ledger[1].Waiver)

	// Zero-amount entries are never looked up: Jan 6 lateness + Jan 6 absence.
	assert.Equal(t, 2, calls)
}

func TestApplyWaivers_Idempotent(t *testing.T) {
	ledger := lateLedger()
	lookup := func(_ context.Context, date generic.TimePoint, typ DeductionType) (*DeductionWaiver, error) {
		return &DeductionWaiver{ID: "w-" + string(typ), Date: date, Type: typ}, nil
	}

	_, err := ApplyWaivers(context.Background(), ledger, lookup)
	require.NoError(t, err)
	once := append([]LedgerEntry(nil), ledger...)

	_, err = ApplyWaivers(context.Background(), ledger, lookup)
	require.NoError(t, err)
	assert.Equal(t, once, ledger)
}

func TestApplyWaivers_IgnoresMismatchedKey(t *testing.T) {
	ledger := lateLedger()
	lookup := func(_ context.Context, date generic.TimePoint, typ DeductionType) (*DeductionWaiver, error) {
		return &DeductionWaiver{ID: "wrong", Date: date.AddDays(1), Type: typ}, nil
	}
	applied, err := ApplyWaivers(context.Background(), ledger, lookup)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.True(t, ledger[0].Charged.Equal(dec(10)))
}

func TestApplyWaivers_LookupErrorPropagates(t *testing.T) {
	boom := errors.New("waiver store down")
	_, err := ApplyWaivers(context.Background(), lateLedger(), func(context.Context, generic.TimePoint, DeductionType) (*DeductionWaiver, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

// =============================================================================
// BONUSES & AGGREGATE
// =============================================================================

func TestSumBonuses_WeekStartInPeriod(t *testing.T) {
	bonuses := []QualityBonus{
		{ID: "b2", WeekStart: jan(13), Amount: dec(75)},
		{ID: "b1", WeekStart: jan(6), Amount: dec(50)},
		{ID: "b0", WeekStart: generic.NewTimePoint(2024, time.December, 30), Amount: dec(40)},
		{ID: "b3", WeekStart: generic.NewTimePoint(2025, time.February, 1), Amount: dec(99)},
	}
	total, counted := SumBonuses(bonuses, generic.MonthPeriod(jan(1)))
	assert.True(t, total.Equal(dec(125)))
	require.Len(t, counted, 2)
	assert.Equal(t, "b1", counted[0].ID)
}

func TestAggregate_NetSalaryIdentity(t *testing.T) {
	ledger := lateLedger()
	_, err := ApplyWaivers(context.Background(), ledger, func(_ context.Context, date generic.TimePoint, typ DeductionType) (*DeductionWaiver, error) {
		if typ == DeductionLateness {
			return &DeductionWaiver{ID: "w1", Date: date, Type: typ}, nil
		}
		return nil, nil
	})
	require.NoError(t, err)

	r := Aggregate(AggregateInput{
		Period:     generic.MonthPeriod(jan(1)),
		BaseSalary: dec(1000),
		Ledger:     ledger,
		Bonuses:    []QualityBonus{{ID: "b", WeekStart: jan(6), Amount: dec(50)}},
	})

	expected := r.BaseSalary.Sub(r.Lateness.Charged).Sub(r.Absence.Charged).Add(r.TotalBonus)
	assert.True(t, r.NetSalary.Equal(expected))
	assert.True(t, r.NetSalary.Equal(dec(1020)), "1000 - 0 - 30 + 50, got %s", r.NetSalary)
	assert.True(t, r.Lateness.Waived.Equal(dec(10)))
	assert.True(t, r.TotalWaived.Equal(dec(10)))
	assert.Equal(t, OccurrenceCounts{Scheduled: 3, Late: 2, Absent: 1}, r.Counts)
}

func TestAggregate_EmptyLedger(t *testing.T) {
	r := Aggregate(AggregateInput{BaseSalary: dec(800), Period: generic.MonthPeriod(jan(1))})
	assert.True(t, r.NetSalary.Equal(dec(800)))
	assert.NotNil(t, r.Ledger)
	assert.NotNil(t, r.Bonuses)
	assert.True(t, r.TotalCharged().IsZero())
}
