package ingestion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nukk-pain/smpain-hr/internal/domain"
)

// criticalNumericFields are numeric columns whose unparseable values block
// the row. Component columns only degrade to non-critical errors because a
// bad 식대 cell still leaves a committable salary.
var criticalNumericFields = map[string]bool{
	domain.FieldBaseSalary:      true,
	domain.FieldTotalAllowances: true,
	domain.FieldTotalDeductions: true,
	domain.FieldNetSalary:       true,
}

// Validator applies per-row payroll checks in a fixed order: required
// fields, numeric validity, value ranges, cross-row duplicates, arithmetic
// consistency. All failures for a row are collected; nothing short-circuits
// inside the row.
type Validator struct {
	// seen maps employee ids to the first row number that used them.
	seen map[string]int
}

// NewValidator creates a validator for one ingestion pass. Duplicate
// detection is stateful across the pass, so rows must arrive in source
// order: the first occurrence is the original, later ones the duplicates.
func NewValidator() *Validator {
	return &Validator{seen: make(map[string]int)}
}

// Validate checks one decoded row and returns its error list.
func (v *Validator) Validate(row domain.DecodedRow) []domain.ValidationError {
	var errs []domain.ValidationError

	errs = append(errs, v.checkRequired(row)...)
	errs = append(errs, v.checkNumbers(row)...)
	errs = append(errs, v.checkRanges(row)...)
	errs = append(errs, v.checkDuplicate(row)...)
	errs = append(errs, v.checkArithmetic(row)...)

	return errs
}

func (v *Validator) checkRequired(row domain.DecodedRow) []domain.ValidationError {
	var errs []domain.ValidationError
	for _, field := range []string{domain.FieldEmployeeID, domain.FieldName} {
		value, ok := row.Field(field)
		if !ok || strings.TrimSpace(value.Text) == "" {
			errs = append(errs, domain.ValidationError{
				Field:      field,
				RawValue:   value.Raw,
				Type:       domain.ErrorTypeRequiredFieldMissing,
				Severity:   domain.SeverityCritical,
				Message:    fmt.Sprintf("%s is required", field),
				Suggestion: fmt.Sprintf("fill in the %s cell on row %d", field, row.RowNumber),
			})
		}
	}
	for _, field := range criticalFieldOrder() {
		value, ok := row.Field(field)
		if !ok || strings.TrimSpace(value.Raw) == "" {
			errs = append(errs, domain.ValidationError{
				Field:      field,
				RawValue:   value.Raw,
				Type:       domain.ErrorTypeRequiredFieldMissing,
				Severity:   domain.SeverityCritical,
				Message:    fmt.Sprintf("%s is required", field),
				Suggestion: fmt.Sprintf("fill in the %s cell on row %d", field, row.RowNumber),
			})
		}
	}
	return errs
}

// criticalFieldOrder keeps error output deterministic.
func criticalFieldOrder() []string {
	return []string{
		domain.FieldBaseSalary,
		domain.FieldTotalAllowances,
		domain.FieldTotalDeductions,
		domain.FieldNetSalary,
	}
}

func (v *Validator) checkNumbers(row domain.DecodedRow) []domain.ValidationError {
	var errs []domain.ValidationError
	for field, value := range row.Fields {
		if domain.TextFields[field] || !value.Invalid {
			continue
		}
		severity := domain.SeverityNonCritical
		if criticalNumericFields[field] {
			severity = domain.SeverityCritical
		}
		errs = append(errs, domain.ValidationError{
			Field:      field,
			RawValue:   value.Raw,
			Type:       domain.ErrorTypeInvalidNumber,
			Severity:   severity,
			Message:    value.Reason,
			Suggestion: "enter a plain number; currency symbols and separators are repaired automatically",
		})
	}
	sortErrorsByField(errs)
	return errs
}

func (v *Validator) checkRanges(row domain.DecodedRow) []domain.ValidationError {
	var errs []domain.ValidationError
	if base, ok := row.Number(domain.FieldBaseSalary); ok && base < 0 {
		errs = append(errs, domain.ValidationError{
			Field:      domain.FieldBaseSalary,
			RawValue:   row.Fields[domain.FieldBaseSalary].Raw,
			Type:       domain.ErrorTypeBusinessRule,
			Severity:   domain.SeverityCritical,
			Message:    "base salary cannot be negative",
			Suggestion: "check the sign of the base salary amount",
		})
	}
	if net, ok := row.Number(domain.FieldNetSalary); ok && net < 0 {
		errs = append(errs, domain.ValidationError{
			Field:      domain.FieldNetSalary,
			RawValue:   row.Fields[domain.FieldNetSalary].Raw,
			Type:       domain.ErrorTypeBusinessRule,
			Severity:   domain.SeverityCritical,
			Message:    "net salary cannot be negative",
			Suggestion: "deductions exceed pay; verify the deduction amounts",
		})
	}
	return errs
}

func (v *Validator) checkDuplicate(row domain.DecodedRow) []domain.ValidationError {
	employeeID := strings.TrimSpace(row.Text(domain.FieldEmployeeID))
	if employeeID == "" {
		return nil
	}
	if firstRow, ok := v.seen[employeeID]; ok {
		return []domain.ValidationError{{
			Field:      domain.FieldEmployeeID,
			RawValue:   employeeID,
			Type:       domain.ErrorTypeDuplicateValue,
			Severity:   domain.SeverityCritical,
			Message:    fmt.Sprintf("employee %s on row %d duplicates row %d", employeeID, row.RowNumber, firstRow),
			Suggestion: fmt.Sprintf("remove or correct one of rows %d and %d", firstRow, row.RowNumber),
		}}
	}
	v.seen[employeeID] = row.RowNumber
	return nil
}

// checkArithmetic verifies declared totals against their components with
// zero tolerance. Mismatches are reported, never silently corrected.
func (v *Validator) checkArithmetic(row domain.DecodedRow) []domain.ValidationError {
	var errs []domain.ValidationError

	if declared, ok := row.Number(domain.FieldTotalAllowances); ok {
		sum := 0.0
		complete := true
		for _, field := range domain.AllowanceFields {
			amount, present := row.Number(field)
			if !present {
				if value, exists := row.Field(field); exists && value.Invalid {
					complete = false
				}
				continue
			}
			sum += amount
		}
		if complete && sum != declared {
			errs = append(errs, domain.ValidationError{
				Field:      domain.FieldTotalAllowances,
				RawValue:   row.Fields[domain.FieldTotalAllowances].Raw,
				Type:       domain.ErrorTypeCalculationMismatch,
				Severity:   domain.SeverityNonCritical,
				Message:    fmt.Sprintf("declared total allowances %.0f does not equal component sum %.0f", declared, sum),
				Suggestion: "recalculate 수당합계 from 식대, 교통비 and 상여금",
			})
		}
	}

	base, hasBase := row.Number(domain.FieldBaseSalary)
	allowances, hasAllowances := row.Number(domain.FieldTotalAllowances)
	deductions, hasDeductions := row.Number(domain.FieldTotalDeductions)
	net, hasNet := row.Number(domain.FieldNetSalary)
	if hasBase && hasAllowances && hasDeductions && hasNet {
		expected := base + allowances - deductions
		if net != expected {
			errs = append(errs, domain.ValidationError{
				Field:      domain.FieldNetSalary,
				RawValue:   row.Fields[domain.FieldNetSalary].Raw,
				Type:       domain.ErrorTypeCalculationMismatch,
				Severity:   domain.SeverityNonCritical,
				Message:    fmt.Sprintf("declared net salary %.0f does not equal %.0f (base + allowances - deductions)", net, expected),
				Suggestion: "recalculate 실수령액 as 기본급 + 수당합계 - 공제합계",
			})
		}
	}

	return errs
}

func sortErrorsByField(errs []domain.ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
}
