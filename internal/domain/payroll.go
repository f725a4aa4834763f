package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayrollRecord is the persisted monthly salary entry for one employee.
type PayrollRecord struct {
	ID              uuid.UUID          `json:"id"`
	EmployeeID      string             `json:"employee_id"`
	Name            string             `json:"name"`
	Department      string             `json:"department"`
	Year            int                `json:"year"`
	Month           int                `json:"month"`
	BaseSalary      float64            `json:"base_salary"`
	Allowances      map[string]float64 `json:"allowances"`
	Deductions      map[string]float64 `json:"deductions"`
	TotalAllowances float64            `json:"total_allowances"`
	TotalDeductions float64            `json:"total_deductions"`
	NetSalary       float64            `json:"net_salary"`
	BatchID         uuid.UUID          `json:"batch_id"`
	CreatedAt       time.Time          `json:"created_at"`
}

// NewPayrollRecord builds a record from component amounts. The derived
// totals and net salary are always recomputed here so the invariant
// netSalary = baseSalary + totalAllowances - totalDeductions cannot be
// violated by a caller passing inconsistent declared totals.
func NewPayrollRecord(employeeID, name, department string, year, month int, baseSalary float64, allowances, deductions map[string]float64) PayrollRecord {
	record := PayrollRecord{
		ID:         uuid.New(),
		EmployeeID: employeeID,
		Name:       name,
		Department: department,
		Year:       year,
		Month:      month,
		BaseSalary: baseSalary,
		Allowances: map[string]float64{},
		Deductions: map[string]float64{},
		CreatedAt:  time.Now(),
	}
	for key, amount := range allowances {
		record.Allowances[key] = amount
		record.TotalAllowances += amount
	}
	for key, amount := range deductions {
		record.Deductions[key] = amount
		record.TotalDeductions += amount
	}
	record.NetSalary = record.BaseSalary + record.TotalAllowances - record.TotalDeductions
	return record
}

// YearMonth renders the pay period as "YYYY-MM" for storage keys.
func (r PayrollRecord) YearMonth() string {
	return formatYearMonth(r.Year, r.Month)
}

func formatYearMonth(year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// RecordFromRow converts a validated decoded row into a payroll record.
// Optional deduction columns may be absent from the upload; any gap between
// the declared 공제합계 and the present components is kept under "other" so
// the declared total survives the component-derived invariant.
func RecordFromRow(row DecodedRow, year, month int) PayrollRecord {
	allowances := map[string]float64{}
	for _, field := range AllowanceFields {
		if amount, ok := row.Number(field); ok {
			allowances[field] = amount
		}
	}
	deductions := map[string]float64{}
	componentSum := 0.0
	for _, field := range DeductionFields {
		if amount, ok := row.Number(field); ok {
			deductions[field] = amount
			componentSum += amount
		}
	}
	if declared, ok := row.Number(FieldTotalDeductions); ok && declared > componentSum {
		deductions["other"] = declared - componentSum
	}
	base, _ := row.Number(FieldBaseSalary)
	return NewPayrollRecord(
		row.Text(FieldEmployeeID),
		row.Text(FieldName),
		row.Text(FieldDepartment),
		year, month, base, allowances, deductions,
	)
}
