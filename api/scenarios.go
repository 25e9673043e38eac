/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates a tenant, teachers, recurring
	assignments and the delivery events the meeting subsystem would have
	recorded, so salaries can be computed end to end.

AVAILABLE SCENARIOS:

	basic:            Three teachers, one punctual, one often late or
	                  absent, one late once. Default deduction table.
	late-and-waived:  basic plus a strict tenant table, a waived absence,
	                  a quality bonus and one teacher already paid.

HOW SCENARIOS WORK:
 1. Reset database (clear all data) and the salary cache
 2. Create the tenant of the calling principal and its teachers
 3. Create assignments from the first day of the previous month
 4. Record one delivery event per class up to now
 5. Optionally add config, waivers, bonuses and payments

USAGE VIA API:

	POST /api/scenarios/late-and-waived

	Salaries for the previous month are complete; the current month is
	filled up to today.

NOTE:

	Scenarios reset the database. The routes exist only when
	server.enable_scenarios is set.

SEE ALSO:
  - handlers.go: salary endpoints to query afterwards
  - factory/deduction.go: deduction table presets
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "basic",
		Name:        "Basic",
		Description: "Three teachers on the default deduction table",
	},
	{
		ID:          "late-and-waived",
		Name:        "Late and Waived",
		Description: "Strict deduction table, a waived absence, a bonus and a paid teacher",
	},
}

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario": current})
}

// LoadScenario resets the database and loads the named scenario into the
// principal's tenant.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.Capabilities.Has(generic.CapAdmin) {
		h.fail(w, r, "Not allowed to load scenarios", generic.ErrForbidden)
		return
	}
	name := chi.URLParam(r, "name")

	var load func(context.Context, *scenarioSeed) error
	switch name {
	case "basic":
		load = h.loadBasicScenario
	case "late-and-waived":
		load = h.loadLateAndWaivedScenario
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown scenario: %s", name), nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	if _, err := h.Service.ClearCache(ctx, payroll.ClearAll()); err != nil {
		h.fail(w, r, "Failed to clear cache", err)
		return
	}

	seed := h.newSeed(p)
	if err := load(ctx, seed); err != nil {
		h.fail(w, r, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = name
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		Scenario: name,
		Tenant:   string(seed.tenant),
		Teachers: len(seed.teachers),
		From:     seed.window.Start.String(),
		To:       seed.window.End.String(),
	})
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

// scenarioSeed is the tenant, window and roster a scenario writes.
type scenarioSeed struct {
	tenant   generic.TenantID
	issuer   string
	now      time.Time
	window   generic.Period // [first of previous month, tomorrow)
	previous generic.Period // the complete previous month
	teachers []payroll.Teacher
	// absences records each teacher's no-show dates in order
	absences map[generic.TeacherID][]generic.TimePoint
}

// attendance returns how far after the slot the teacher joined on their
// n-th class, or ok=false for a no-show.
type attendance func(n int) (late time.Duration, ok bool)

type rosterEntry struct {
	teacher    payroll.Teacher
	student    generic.StudentID
	dayPackage string
	slot       generic.ClockTime
	attend     attendance
}

func (h *Handler) newSeed(p generic.Principal) *scenarioSeed {
	now := h.Now()
	today := generic.DateOf(now, h.Location)
	previous := generic.MonthPeriod(generic.StartOfMonth(today.Year(), today.Month()).AddMonths(-1))
	return &scenarioSeed{
		tenant:   p.Tenant,
		issuer:   p.ID,
		now:      now,
		window:   generic.Period{Start: previous.Start, End: today.AddDays(1)},
		previous: previous,
		absences: make(map[generic.TeacherID][]generic.TimePoint),
	}
}

// demoRoster is the teachers every scenario starts from.
func demoRoster(tenant generic.TenantID) []rosterEntry {
	punctual := func(int) (time.Duration, bool) { return -2 * time.Minute, true }
	return []rosterEntry{
		{
			teacher:    payroll.Teacher{ID: "amina", TenantID: tenant, Name: "Amina Diallo", BaseSalary: decimal.NewFromInt(1200)},
			student:    "student-ali",
			dayPackage: "Mon,Wed",
			slot:       generic.ClockTime{Hour: 9},
			attend:     punctual,
		},
		{
			teacher:    payroll.Teacher{ID: "bilal", TenantID: tenant, Name: "Bilal Haddad", BaseSalary: decimal.NewFromInt(950)},
			student:    "student-sara",
			dayPackage: "Tue,Thu",
			slot:       generic.ClockTime{Hour: 14},
			attend: func(n int) (time.Duration, bool) {
				switch n % 4 {
				case 1:
					return 7 * time.Minute, true
				case 3:
					return 0, false
				}
				return 0, true
			},
		},
		{
			teacher:    payroll.Teacher{ID: "chen", TenantID: tenant, Name: "Chen Wei", BaseSalary: decimal.NewFromInt(1000)},
			student:    "student-omar",
			dayPackage: "Fri",
			slot:       generic.ClockTime{Hour: 16, Minute: 30},
			attend: func(n int) (time.Duration, bool) {
				if n == 0 {
					return 12 * time.Minute, true
				}
				return 0, true
			},
		},
	}
}

// loadBasicScenario writes the tenant, roster, assignments and events.
func (h *Handler) loadBasicScenario(ctx context.Context, seed *scenarioSeed) error {
	if err := h.Store.SaveTenant(ctx, payroll.Tenant{ID: seed.tenant, Name: "Demo Academy"}); err != nil {
		return err
	}

	for _, entry := range demoRoster(seed.tenant) {
		if err := h.Store.SaveTeacher(ctx, entry.teacher); err != nil {
			return err
		}
		assignment, err := h.Store.SaveAssignment(ctx, payroll.ScheduleAssignment{
			TenantID:     seed.tenant,
			TeacherID:    entry.teacher.ID,
			StudentID:    entry.student,
			DayPackage:   entry.dayPackage,
			Slot:         entry.slot,
			OccupiedFrom: seed.window.Start,
		})
		if err != nil {
			return err
		}

		occurrences, err := payroll.ResolveOccurrences([]payroll.ScheduleAssignment{assignment}, seed.window, h.Location)
		if err != nil {
			return err
		}
		for n, occ := range occurrences {
			if !occ.ScheduledStart.Before(seed.now) {
				break
			}
			event := payroll.DeliveryEvent{
				TenantID:     seed.tenant,
				TeacherID:    entry.teacher.ID,
				StudentID:    entry.student,
				DispatchedAt: occ.ScheduledStart.Add(-5 * time.Minute),
				Duration:     time.Hour,
				Status:       payroll.DeliveryEnded,
			}
			if late, ok := entry.attend(n); ok {
				joined := occ.ScheduledStart.Add(late)
				event.JoinedAt = &joined
			} else {
				event.Status = payroll.DeliveryNoShow
				event.Duration = 0
				seed.absences[entry.teacher.ID] = append(seed.absences[entry.teacher.ID], occ.Date)
			}
			if _, err := h.Store.SaveDeliveryEvent(ctx, event); err != nil {
				return err
			}
		}
		seed.teachers = append(seed.teachers, entry.teacher)
	}
	return nil
}

// loadLateAndWaivedScenario layers config, a waiver, a bonus and a payment
// over the basic data.
func (h *Handler) loadLateAndWaivedScenario(ctx context.Context, seed *scenarioSeed) error {
	if err := h.loadBasicScenario(ctx, seed); err != nil {
		return err
	}

	cfg, err := h.Deductions.ParseDeductionConfig(seed.tenant, factory.StrictDeductionJSON(seed.window.Start.String()))
	if err != nil {
		return err
	}
	if err := h.Store.SaveDeductionConfig(ctx, *cfg); err != nil {
		return err
	}

	if dates := seed.absences["bilal"]; len(dates) > 0 {
		_, err := h.Store.CreateWaiver(ctx, payroll.DeductionWaiver{
			TenantID:       seed.tenant,
			TeacherID:      "bilal",
			Date:           dates[0],
			Type:           payroll.DeductionAbsence,
			Reason:         "Platform outage, class could not start",
			OriginalAmount: cfg.AbsenceAmount,
			IssuedBy:       seed.issuer,
		})
		if err != nil {
			return err
		}
	}

	if _, err := h.Store.SaveBonus(ctx, payroll.QualityBonus{
		TenantID:  seed.tenant,
		TeacherID: "amina",
		WeekStart: seed.previous.Start,
		Amount:    decimal.NewFromInt(50),
		Rating:    "excellent",
	}); err != nil {
		return err
	}

	paid, err := h.Service.CalculateSalary(ctx, "chen", seed.tenant, seed.previous)
	if err != nil {
		return err
	}
	if _, err := h.Store.SavePayment(ctx, payroll.Payment{
		TenantID:  seed.tenant,
		TeacherID: "chen",
		Period:    seed.previous,
		Amount:    paid.NetSalary,
		PaidBy:    seed.issuer,
	}); err != nil {
		return err
	}
	_, err = h.Service.ClearCache(ctx, payroll.ClearTeacher(seed.tenant, "chen"))
	return err
}
