/*
scenarios_test.go - Tests for demo scenarios and the cache warmer

PURPOSE:
	Tests that each scenario sets up the expected state and that the
	salaries computed from it match hand-checked figures. The scenarios
	double as end-to-end tests of store, engine and API.
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/payroll"
)

func TestLoadScenario_Basic(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.admin(t, http.MethodPost, "/api/scenarios/basic", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoadScenarioResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, LoadScenarioResponse{
		Scenario: "basic",
		Tenant:   "academy",
		Teachers: 3,
		From:     "2025-01-01",
		To:       "2025-02-11",
	}, resp)

	teachers, err := env.store.ListTeachers(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Len(t, teachers, 3)

	rec = env.admin(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.JSONEq(t, `{"scenario":"basic"}`, rec.Body.String())
}

func TestLoadScenario_LateAndWaived(t *testing.T) {
	// GIVEN: strict table (5+ min -> 20, absence 60), first absence waived
	env := setupTestEnv(t)
	env.loadScenario(t, "late-and-waived")

	// THEN: bilal pays 2x20 lateness and one of two 60 absences
	bilal := env.salary(t, "bilal")
	assert.Equal(t, payroll.ConfigFromTenant, bilal.ConfigSource)
	assert.True(t, bilal.Lateness.Charged.Equal(dec(40)), bilal.Lateness.Charged.String())
	assert.True(t, bilal.Absence.Total.Equal(dec(120)))
	assert.True(t, bilal.Absence.Waived.Equal(dec(60)))
	assert.True(t, bilal.NetSalary.Equal(dec(850)), bilal.NetSalary.String())
	require.Len(t, bilal.Waivers, 1)
	assert.Equal(t, "2025-01-14", bilal.Waivers[0].Date.String())

	// amina earns the weekly bonus
	amina := env.salary(t, "amina")
	assert.True(t, amina.TotalBonus.Equal(dec(50)))
	assert.True(t, amina.NetSalary.Equal(dec(1250)))

	// chen is already paid for January
	chen := env.salary(t, "chen")
	assert.Equal(t, payroll.PaymentPaid, chen.PaymentStatus)
	assert.True(t, chen.NetSalary.Equal(dec(980)))
}

func TestLoadScenario_ResetsPreviousData(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "late-and-waived")
	env.loadScenario(t, "basic")

	bilal := env.salary(t, "bilal")
	assert.Equal(t, payroll.ConfigFromDefault, bilal.ConfigSource)
	assert.Empty(t, bilal.Waivers)
	assert.Equal(t, payroll.PaymentUnpaid, env.salary(t, "chen").PaymentStatus)
}

func TestLoadScenario_UnknownAndForbidden(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.admin(t, http.MethodPost, "/api/scenarios/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.call(t, http.MethodPost, "/api/scenarios/basic", "ctrl-1", "controller", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScenarios_DisabledRoutes(t *testing.T) {
	env := setupTestEnv(t)
	router := NewRouter(env.handler, RouterOptions{DefaultTenant: testTenant})

	rec := httptestCall(t, router, http.MethodPost, "/api/scenarios/basic")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CACHE WARMER
// =============================================================================

func TestCacheWarmer_WarmsCurrentMonth(t *testing.T) {
	// GIVEN: the basic scenario and an empty cache
	env := setupTestEnv(t)
	env.loadScenario(t, "basic")
	require.Equal(t, 0, env.cache.Len())

	warmer := NewCacheWarmer(env.handler.Service, time.UTC, zap.NewNop())
	warmer.Now = func() time.Time { return testNow }

	// WHEN: one pass runs
	stats := warmer.WarmOnce(context.Background())

	// THEN: every teacher's February is cached
	assert.Equal(t, WarmStats{Tenants: 1, Teachers: 3}, stats)
	assert.Equal(t, 3, env.cache.Len())

	// A second pass reads through without adding entries
	warmer.WarmOnce(context.Background())
	assert.Equal(t, 3, env.cache.Len())
}

func TestCacheWarmer_StartStop(t *testing.T) {
	env := setupTestEnv(t)
	env.loadScenario(t, "basic")

	warmer := NewCacheWarmer(env.handler.Service, time.UTC, zap.NewNop())
	warmer.Now = func() time.Time { return testNow }
	warmer.Interval = time.Hour

	warmer.Start()
	require.Eventually(t, func() bool { return env.cache.Len() == 3 }, 5*time.Second, 10*time.Millisecond)
	warmer.Stop()
	warmer.Stop()
}

func TestCacheWarmer_Disabled(t *testing.T) {
	env := setupTestEnv(t)
	warmer := NewCacheWarmer(env.handler.Service, time.UTC, nil)
	warmer.Enabled = false
	warmer.Start()
	warmer.Stop()
	assert.Equal(t, 0, env.cache.Len())
}
