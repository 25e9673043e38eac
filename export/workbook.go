// Package export renders payroll batches as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/payroll-engine/payroll"
)

const (
	SummarySheet  = "Summary"
	SalariesSheet = "Salaries"
	LedgerSheet   = "Ledger"
)

var salaryHeader = []interface{}{
	"Teacher ID", "Teacher", "Base salary", "Lateness charged", "Absence charged",
	"Waived", "Bonus", "Net salary", "Payment", "Scheduled", "On time", "Late",
	"Absent", "Config", "Error",
}

var ledgerHeader = []interface{}{
	"Teacher ID", "Date", "Assignment", "Student", "Scheduled start",
	"Classification", "Delay (min)", "Type", "Amount", "Charged", "Waived",
	"Waiver ID", "Waiver reason", "Issued by",
}

// Filename is the suggested attachment name for a batch.
func Filename(batch *payroll.BatchResult) string {
	return fmt.Sprintf("payroll_%s_%s_%s.xlsx", batch.TenantID, batch.Period.Start, batch.Period.End)
}

// Workbook builds the Summary, Salaries and Ledger sheets. The caller owns
// the returned file and must Close it.
func Workbook(batch *payroll.BatchResult) (*excelize.File, error) {
	if batch == nil {
		return nil, fmt.Errorf("export: nil batch")
	}
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	w := &sheetWriter{f: f, header: header}
	w.summary(batch)
	w.salaries(batch)
	w.ledger(batch)
	if w.err != nil {
		f.Close()
		return nil, w.err
	}

	idx, err := f.GetSheetIndex(SummarySheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write renders the workbook straight to out.
func Write(out io.Writer, batch *payroll.BatchResult) error {
	f, err := Workbook(batch)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// =============================================================================
// SHEETS
// =============================================================================

// sheetWriter keeps the first error so the sheet code reads top to bottom.
type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) sheet(name string, widths map[string]float64) {
	if w.err != nil {
		return
	}
	if _, err := w.f.NewSheet(name); err != nil {
		w.err = err
		return
	}
	for col, width := range widths {
		if err := w.f.SetColWidth(name, col, col, width); err != nil {
			w.err = err
			return
		}
	}
}

func (w *sheetWriter) row(sheet string, row int, values []interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) headerRow(sheet string, values []interface{}) {
	w.row(sheet, 1, values)
	if w.err != nil {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(values), 1)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(sheet, "A1", last, w.header)
}

func (w *sheetWriter) summary(batch *payroll.BatchResult) {
	w.sheet(SummarySheet, map[string]float64{"A": 20, "B": 28})
	s := batch.Statistics
	rows := [][]interface{}{
		{"Tenant", string(batch.TenantID)},
		{"From", batch.Period.Start.String()},
		{"To", batch.Period.End.String()},
		{"Teachers", s.Teachers},
		{"Paid", s.Paid},
		{"Unpaid", s.Unpaid},
		{"Failed", s.Failed},
		{"Total net", money(s.TotalNet)},
		{"Total deductions", money(s.TotalDeductions)},
		{"Total waived", money(s.TotalWaived)},
		{"Total bonuses", money(s.TotalBonuses)},
		{"Average net", money(s.AverageNet)},
		{"Payment rate (%)", money(s.PaymentRate)},
		{"Computed at", batch.ComputedAt.UTC().Format(time.RFC3339)},
	}
	for i, r := range rows {
		w.row(SummarySheet, i+1, r)
	}
}

func (w *sheetWriter) salaries(batch *payroll.BatchResult) {
	w.sheet(SalariesSheet, map[string]float64{"A": 16, "B": 22, "O": 40})
	w.headerRow(SalariesSheet, salaryHeader)
	for i, s := range batch.Salaries {
		r := s.Result
		if r == nil {
			w.row(SalariesSheet, i+2, []interface{}{
				string(s.TeacherID), s.TeacherName, "", "", "", "", "", "", "", "", "", "", "", "", s.Error,
			})
			continue
		}
		w.row(SalariesSheet, i+2, []interface{}{
			string(s.TeacherID), s.TeacherName,
			money(r.BaseSalary), money(r.Lateness.Charged), money(r.Absence.Charged),
			money(r.TotalWaived), money(r.TotalBonus), money(r.NetSalary),
			string(r.PaymentStatus),
			r.Counts.Scheduled, r.Counts.OnTime, r.Counts.Late, r.Counts.Absent,
			string(r.ConfigSource), "",
		})
	}
}

func (w *sheetWriter) ledger(batch *payroll.BatchResult) {
	w.sheet(LedgerSheet, map[string]float64{"A": 16, "C": 38, "E": 22, "M": 30})
	w.headerRow(LedgerSheet, ledgerHeader)
	row := 2
	for _, s := range batch.Salaries {
		if s.Result == nil {
			continue
		}
		for _, e := range s.Result.Ledger {
			var waiverID, reason, issuedBy string
			if e.Waiver != nil {
				waiverID, reason, issuedBy = e.Waiver.ID, e.Waiver.Reason, e.Waiver.IssuedBy
			}
			w.row(LedgerSheet, row, []interface{}{
				string(s.TeacherID), e.Date.String(), e.AssignmentID, string(e.StudentID),
				e.ScheduledStart.Format(time.RFC3339), string(e.Classification), e.DelayMinutes,
				string(e.Type), money(e.Amount), money(e.Charged), money(e.Waived),
				waiverID, reason, issuedBy,
			})
			row++
		}
	}
}

// money writes amounts as numbers so the sheet can sum them. Amounts carry
// two decimals at most, well inside float64 precision.
func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
