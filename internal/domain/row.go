package domain

import (
	"strings"

	"github.com/nukk-pain/smpain-hr/pkg/cellconv"
)

// Canonical field names for payroll workbook columns.
const (
	FieldEmployeeID          = "employeeId"
	FieldName                = "name"
	FieldDepartment          = "department"
	FieldBaseSalary          = "baseSalary"
	FieldMealAllowance       = "mealAllowance"
	FieldTransportAllowance  = "transportAllowance"
	FieldBonus               = "bonus"
	FieldTotalAllowances     = "totalAllowances"
	FieldTotalDeductions     = "totalDeductions"
	FieldIncomeTax           = "incomeTax"
	FieldNetSalary           = "netSalary"
	FieldNationalPension     = "nationalPension"
	FieldHealthInsurance     = "healthInsurance"
	FieldEmploymentInsurance = "employmentInsurance"
)

// ColumnLabels maps the Korean header labels found in uploaded payroll
// workbooks to canonical field names.
var ColumnLabels = map[string]string{
	"사원번호": FieldEmployeeID,
	"성명":   FieldName,
	"부서":   FieldDepartment,
	"기본급":  FieldBaseSalary,
	"식대":   FieldMealAllowance,
	"교통비":  FieldTransportAllowance,
	"상여금":  FieldBonus,
	"수당합계": FieldTotalAllowances,
	"공제합계": FieldTotalDeductions,
	"소득세":  FieldIncomeTax,
	"실수령액": FieldNetSalary,
	"국민연금": FieldNationalPension,
	"건강보험": FieldHealthInsurance,
	"고용보험": FieldEmploymentInsurance,
}

// RequiredColumns lists the canonical fields every payroll upload must carry.
// The three insurance components are optional; 소득세 is not.
var RequiredColumns = []string{
	FieldEmployeeID,
	FieldName,
	FieldDepartment,
	FieldBaseSalary,
	FieldMealAllowance,
	FieldTransportAllowance,
	FieldBonus,
	FieldTotalAllowances,
	FieldTotalDeductions,
	FieldIncomeTax,
	FieldNetSalary,
}

// TextFields are columns decoded as text rather than numbers.
var TextFields = map[string]bool{
	FieldEmployeeID: true,
	FieldName:       true,
	FieldDepartment: true,
}

// AllowanceFields are the component columns summed into totalAllowances.
var AllowanceFields = []string{FieldMealAllowance, FieldTransportAllowance, FieldBonus}

// DeductionFields are the component columns summed into totalDeductions.
var DeductionFields = []string{FieldNationalPension, FieldHealthInsurance, FieldEmploymentInsurance, FieldIncomeTax}

// FieldValue carries one decoded cell: the original raw text, the coerced
// value, and whatever the coercion layer had to fix or reject.
type FieldValue struct {
	Raw     string           `json:"raw"`
	Number  float64          `json:"number,omitempty"`
	Text    string           `json:"text,omitempty"`
	Fix     cellconv.FixType `json:"fix,omitempty"`
	Invalid bool             `json:"invalid,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

// DecodedRow is one workbook row after coercion and validation. RowNumber
// uses 1-based, header-inclusive Excel numbering so error reports match
// what the uploader sees in their spreadsheet.
type DecodedRow struct {
	RowNumber int                   `json:"row_number"`
	Fields    map[string]FieldValue `json:"fields"`
	Errors    []ValidationError     `json:"errors,omitempty"`
	Valid     bool                  `json:"valid"`
}

// Field returns the decoded value for a canonical field name.
func (r DecodedRow) Field(name string) (FieldValue, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Number returns the numeric value of a field, and whether it is present
// and parsed cleanly.
func (r DecodedRow) Number(name string) (float64, bool) {
	v, ok := r.Fields[name]
	if !ok || v.Invalid || strings.TrimSpace(v.Raw) == "" {
		return 0, false
	}
	return v.Number, true
}

// Text returns the textual value of a field, empty when absent.
func (r DecodedRow) Text(name string) string {
	return r.Fields[name].Text
}
