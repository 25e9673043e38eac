/*
dto.go - Request and response bodies of the HTTP API

Salary results, batches, waivers, bonuses and payments already carry JSON
tags in package payroll and are written as-is. This file holds the shapes
that exist only at the HTTP boundary.
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// REQUEST DTOs
// =============================================================================

// CreateWaiverRequest waives one deduction. OriginalAmount defaults to the
// amount currently on the teacher's ledger for that date and type.
type CreateWaiverRequest struct {
	TeacherID      string           `json:"teacher_id"`
	Date           string           `json:"date"`
	Type           string           `json:"type"`
	Reason         string           `json:"reason"`
	OriginalAmount *decimal.Decimal `json:"original_amount,omitempty"`
}

type CreateBonusRequest struct {
	TeacherID string          `json:"teacher_id"`
	WeekStart string          `json:"week_start"`
	Amount    decimal.Decimal `json:"amount"`
	Rating    string          `json:"rating"`
}

// RecordPaymentRequest marks a period paid. Amount defaults to the
// computed net salary.
type RecordPaymentRequest struct {
	TeacherID string           `json:"teacher_id"`
	From      string           `json:"from"`
	To        string           `json:"to"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

type ClearCacheResponse struct {
	Scope   string `json:"scope"`
	Cleared int    `json:"cleared"`
}

type PaymentResponse struct {
	Payment      payroll.Payment `json:"payment"`
	CacheCleared int             `json:"cache_cleared"`
}

type DeductionConfigResponse struct {
	Source payroll.ConfigSource        `json:"source"`
	Config factory.DeductionConfigJSON `json:"config"`
}

// ScenarioDTO describes a demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioResponse struct {
	Scenario string `json:"scenario"`
	Tenant   string `json:"tenant"`
	Teachers int    `json:"teachers"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
