/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes salary calculation, batch payroll and the records that feed it
  (waivers, bonuses, payments, deduction tables) via REST API. Handles
  HTTP request/response and JSON serialization; every rule lives in the
  payroll package.

ENDPOINTS:
  Salaries:
    GET    /api/salaries/{teacherID}?from=&to=   One teacher
    GET    /api/salaries?from=&to=               Every teacher of the tenant
    GET    /api/salaries/export?from=&to=        Batch as xlsx

  Records:
    POST   /api/waivers                          Waive one deduction
    POST   /api/bonuses                          Record a quality bonus
    POST   /api/payments                         Mark a period paid
    GET    /api/deduction-config?date=           Effective deduction table
    PUT    /api/deduction-config                 Store a deduction table

  Admin:
    DELETE /api/cache?teacher_id=&scope=all      Invalidate cached salaries

  Periods are [from, to): to=2025-02-01 ends January. Omitting from and
  to selects the current calendar month.

AUTHORIZATION:
  The principal comes from Authenticate. Teachers read only their own
  salary; batch and export need admin or controller; waivers, config and
  cache need admin; payments need admin or registrar.

CACHING:
  Writing a waiver, bonus or config does NOT invalidate cached salaries.
  Call DELETE /api/cache after a retroactive edit. Recording a payment
  clears the paid teacher's entries so the status flips immediately.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid range, bad day-package, malformed body
  - 401: Missing or invalid principal headers
  - 403: Principal lacks the capability
  - 404: Unknown tenant or teacher
  - 409: Duplicate waiver or payment
  - 503: A collaborator store is unavailable
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/export"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

const maxConfigBody = 64 << 10

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service    *payroll.Service
	Store      *sqlite.Store
	Deductions *factory.DeductionFactory
	Location   *time.Location
	Logger     *zap.Logger
	Now        func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. The store receives every write; the
// service computes salaries over the same data.
func NewHandler(service *payroll.Service, store *sqlite.Store, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:    service,
		Store:      store,
		Deductions: factory.NewDeductionFactory(),
		Location:   loc,
		Logger:     logger,
		Now:        time.Now,
	}
}

// =============================================================================
// SALARY HANDLERS
// =============================================================================

// GetSalary returns one teacher's salary for the requested period.
func (h *Handler) GetSalary(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	teacherID := generic.TeacherID(chi.URLParam(r, "teacherID"))
	if !p.CanViewSalary(teacherID) {
		h.fail(w, r, "Not allowed to view this salary", generic.ErrForbidden)
		return
	}
	period, err := h.periodFrom(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}

	result, err := h.Service.CalculateSalary(r.Context(), teacherID, p.Tenant, period)
	if err != nil {
		h.fail(w, r, "Failed to calculate salary", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListSalaries returns the payroll of every teacher of the tenant.
func (h *Handler) ListSalaries(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// ExportSalaries returns the batch as an xlsx workbook.
func (h *Handler) ExportSalaries(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.batch(w, r)
	if !ok {
		return
	}

	// Render fully before writing headers so a failure is still JSON.
	var buf bytes.Buffer
	if err := export.Write(&buf, batch); err != nil {
		h.fail(w, r, "Failed to build workbook", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(batch)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Logger.Warn("workbook write interrupted", zap.Error(err))
	}
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) (*payroll.BatchResult, bool) {
	p := principal(r)
	if !p.CanRunBatch() {
		h.fail(w, r, "Not allowed to run payroll", generic.ErrForbidden)
		return nil, false
	}
	period, err := h.periodFrom(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return nil, false
	}
	batch, err := h.Service.CalculateAllSalaries(r.Context(), p.Tenant, period)
	if err != nil {
		h.fail(w, r, "Failed to calculate payroll", err)
		return nil, false
	}
	return batch, true
}

// =============================================================================
// CACHE
// =============================================================================

// ClearCache drops cached salaries. scope=all clears every tenant,
// teacher_id one teacher, otherwise the principal's tenant.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.CanClearCache() {
		h.fail(w, r, "Not allowed to clear the cache", generic.ErrForbidden)
		return
	}

	q := r.URL.Query()
	scope := payroll.ClearTenant(p.Tenant)
	label := "tenant"
	switch {
	case q.Get("scope") == "all":
		scope, label = payroll.ClearAll(), "all"
	case q.Get("scope") != "":
		writeError(w, http.StatusBadRequest, "Unknown scope (use scope=all)", nil)
		return
	case q.Get("teacher_id") != "":
		scope, label = payroll.ClearTeacher(p.Tenant, generic.TeacherID(q.Get("teacher_id"))), "teacher"
	}

	n, err := h.Service.ClearCache(r.Context(), scope)
	if err != nil {
		h.fail(w, r, "Failed to clear cache", err)
		return
	}
	writeJSON(w, http.StatusOK, ClearCacheResponse{Scope: label, Cleared: n})
}

// =============================================================================
// WAIVERS & BONUSES
// =============================================================================

// CreateWaiver waives one deduction. Cached salaries are left alone.
func (h *Handler) CreateWaiver(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.CanManageWaivers() {
		h.fail(w, r, "Not allowed to waive deductions", generic.ErrForbidden)
		return
	}

	var req CreateWaiverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	typ := payroll.DeductionType(req.Type)
	if !typ.Valid() {
		writeError(w, http.StatusBadRequest, "type must be lateness or absence", nil)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "reason is required", nil)
		return
	}
	teacherID := generic.TeacherID(req.TeacherID)
	if !h.teacherExists(w, r, p.Tenant, teacherID) {
		return
	}

	amount := req.OriginalAmount
	if amount == nil {
		entry, err := h.ledgerEntry(r, p.Tenant, teacherID, date, typ)
		if err != nil {
			h.fail(w, r, "Failed to look up the deduction", err)
			return
		}
		if entry == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("No %s deduction on %s to waive", typ, date), nil)
			return
		}
		amount = &entry.Amount
	}
	if amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "original_amount must not be negative", nil)
		return
	}

	waiver, err := h.Store.CreateWaiver(r.Context(), payroll.DeductionWaiver{
		TenantID:       p.Tenant,
		TeacherID:      teacherID,
		Date:           date,
		Type:           typ,
		Reason:         strings.TrimSpace(req.Reason),
		OriginalAmount: *amount,
		IssuedBy:       p.ID,
	})
	if err != nil {
		h.fail(w, r, "Failed to create waiver", err)
		return
	}
	writeJSON(w, http.StatusCreated, waiver)
}

// ledgerEntry finds the charged deduction the waiver would cancel.
func (h *Handler) ledgerEntry(r *http.Request, tenantID generic.TenantID, teacherID generic.TeacherID, date generic.TimePoint, typ payroll.DeductionType) (*payroll.LedgerEntry, error) {
	result, err := h.Service.CalculateSalary(r.Context(), teacherID, tenantID, generic.DayPeriod(date))
	if err != nil {
		return nil, err
	}
	for i := range result.Ledger {
		e := result.Ledger[i]
		if e.Type == typ && e.Amount.IsPositive() {
			return &e, nil
		}
	}
	return nil, nil
}

// CreateBonus records a weekly quality bonus.
func (h *Handler) CreateBonus(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.CanRecordBonuses() {
		h.fail(w, r, "Not allowed to record bonuses", generic.ErrForbidden)
		return
	}

	var req CreateBonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	week, err := generic.ParseDate(req.WeekStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start format (use YYYY-MM-DD)", err)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}
	teacherID := generic.TeacherID(req.TeacherID)
	if !h.teacherExists(w, r, p.Tenant, teacherID) {
		return
	}

	bonus, err := h.Store.SaveBonus(r.Context(), payroll.QualityBonus{
		TenantID:  p.Tenant,
		TeacherID: teacherID,
		WeekStart: week,
		Amount:    req.Amount,
		Rating:    req.Rating,
	})
	if err != nil {
		h.fail(w, r, "Failed to record bonus", err)
		return
	}
	writeJSON(w, http.StatusCreated, bonus)
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment marks a teacher paid for a period and clears their cached
// salaries so the payment status is visible on the next read.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.CanRecordPayments() {
		h.fail(w, r, "Not allowed to record payments", generic.ErrForbidden)
		return
	}

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := generic.ParsePeriod(req.From, req.To)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	teacherID := generic.TeacherID(req.TeacherID)
	if !h.teacherExists(w, r, p.Tenant, teacherID) {
		return
	}

	amount := req.Amount
	if amount == nil {
		result, err := h.Service.CalculateSalary(r.Context(), teacherID, p.Tenant, period)
		if err != nil {
			h.fail(w, r, "Failed to calculate salary", err)
			return
		}
		amount = &result.NetSalary
	}

	payment, err := h.Store.SavePayment(r.Context(), payroll.Payment{
		TenantID:  p.Tenant,
		TeacherID: teacherID,
		Period:    period,
		Amount:    *amount,
		PaidBy:    p.ID,
	})
	if err != nil {
		h.fail(w, r, "Failed to record payment", err)
		return
	}

	cleared, err := h.Service.ClearCache(r.Context(), payroll.ClearTeacher(p.Tenant, teacherID))
	if err != nil {
		// The payment is stored; a stale entry only delays the status flip.
		h.Logger.Error("cache clear after payment failed",
			zap.String("tenant_id", string(p.Tenant)),
			zap.String("teacher_id", string(teacherID)),
			zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, PaymentResponse{Payment: payment, CacheCleared: cleared})
}

// =============================================================================
// DEDUCTION CONFIG
// =============================================================================

// GetDeductionConfig returns the table effective on ?date= (default today)
// and whether it is the tenant's own or the defaults.
func (h *Handler) GetDeductionConfig(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.CanRunBatch() && !p.CanManageConfig() {
		h.fail(w, r, "Not allowed to read the deduction config", generic.ErrForbidden)
		return
	}
	asOf := generic.DateOf(h.Now(), h.Location)
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := generic.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		asOf = d
	}

	stored, err := h.Store.GetDeductionConfig(r.Context(), p.Tenant, asOf)
	if err != nil {
		h.fail(w, r, "Failed to load deduction config",
			&generic.DataUnavailableError{Store: "deduction_config", TenantID: p.Tenant, Err: err})
		return
	}
	cfg, source := payroll.ResolveDeductionConfig(p.Tenant, stored, asOf)
	if source == payroll.ConfigFromDefault {
		cfg.EffectiveFrom = asOf
	}
	writeJSON(w, http.StatusOK, DeductionConfigResponse{Source: source, Config: h.Deductions.ToJSON(cfg)})
}

// PutDeductionConfig stores a new deduction table for the principal's tenant.
// Salaries already cached keep the old amounts until the cache is cleared.
func (h *Handler) PutDeductionConfig(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.CanManageConfig() {
		h.fail(w, r, "Not allowed to change the deduction config", generic.ErrForbidden)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	cfg, err := h.Deductions.ParseDeductionConfig(p.Tenant, string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid deduction config", err)
		return
	}

	tenant, err := h.Service.Directory().GetTenant(r.Context(), p.Tenant)
	if err != nil {
		h.fail(w, r, "Failed to load tenant", &generic.DataUnavailableError{Store: "directory", TenantID: p.Tenant, Err: err})
		return
	}
	if tenant == nil {
		h.fail(w, r, "Tenant not found", generic.ErrUnknownTenant)
		return
	}

	if err := h.Store.SaveDeductionConfig(r.Context(), *cfg); err != nil {
		h.fail(w, r, "Failed to save deduction config", err)
		return
	}
	h.Logger.Info("deduction config stored",
		zap.String("tenant_id", string(p.Tenant)),
		zap.String("effective_from", cfg.EffectiveFrom.String()),
		zap.String("issued_by", p.ID))
	writeJSON(w, http.StatusOK, DeductionConfigResponse{Source: payroll.ConfigFromTenant, Config: h.Deductions.ToJSON(*cfg)})
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func principal(r *http.Request) generic.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

// periodFrom reads ?from=&to=. Both absent selects the current month.
func (h *Handler) periodFrom(r *http.Request) (generic.Period, error) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		return generic.MonthPeriod(generic.DateOf(h.Now(), h.Location)), nil
	}
	return generic.ParsePeriod(from, to)
}

func (h *Handler) teacherExists(w http.ResponseWriter, r *http.Request, tenantID generic.TenantID, teacherID generic.TeacherID) bool {
	if teacherID == "" {
		writeError(w, http.StatusBadRequest, "teacher_id is required", nil)
		return false
	}
	t, err := h.Service.Directory().GetTeacher(r.Context(), tenantID, teacherID)
	if err != nil {
		h.fail(w, r, "Failed to load teacher",
			&generic.DataUnavailableError{Store: "directory", TenantID: tenantID, TeacherID: teacherID, Err: err})
		return false
	}
	if t == nil {
		h.fail(w, r, "Teacher not found", generic.ErrUnknownTeacher)
		return false
	}
	return true
}

// statusFor maps the engine's error taxonomy to HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrForbidden):
		return http.StatusForbidden
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, generic.ErrPartialDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message, zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
