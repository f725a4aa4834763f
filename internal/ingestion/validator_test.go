package ingestion

import (
	"context"
	"testing"

	"github.com/nukk-pain/smpain-hr/internal/domain"
)

// decodeRows parses a payroll CSV through the reader so validator tests see
// the same coerced values production does.
func decodeRows(t *testing.T, dataRows ...string) []domain.DecodedRow {
	t.Helper()
	reader := NewReader(ReaderOptions{})
	rows, _, err := reader.Read(context.Background(), "test.csv", payrollCSV(dataRows...), nil)
	if err != nil {
		t.Fatalf("read returned error: %v", err)
	}
	return rows
}

func findError(errs []domain.ValidationError, field string, errType domain.ErrorType) (domain.ValidationError, bool) {
	for _, err := range errs {
		if err.Field == field && err.Type == errType {
			return err, true
		}
	}
	return domain.ValidationError{}, false
}

func TestValidatorAcceptsCleanRow(t *testing.T) {
	rows := decodeRows(t, "E001,김철수,개발팀,3000000,100000,50000,0,150000,300000,90000,2850000")

	errs := NewValidator().Validate(rows[0])
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %+v", errs)
	}
}

func TestValidatorFlagsMissingRequiredFields(t *testing.T) {
	rows := decodeRows(t, ",김철수,개발팀,,100000,50000,0,150000,300000,90000,2850000")

	errs := NewValidator().Validate(rows[0])

	idErr, ok := findError(errs, domain.FieldEmployeeID, domain.ErrorTypeRequiredFieldMissing)
	if !ok || !idErr.Critical() {
		t.Fatalf("expected critical missing employeeId, got %+v", errs)
	}
	baseErr, ok := findError(errs, domain.FieldBaseSalary, domain.ErrorTypeRequiredFieldMissing)
	if !ok || !baseErr.Critical() {
		t.Fatalf("expected critical missing baseSalary, got %+v", errs)
	}
}

func TestValidatorInvalidNumberSeverityDependsOnField(t *testing.T) {
	rows := decodeRows(t, "E001,김철수,개발팀,삼백만,abc,50000,0,150000,300000,90000,2850000")

	errs := NewValidator().Validate(rows[0])

	baseErr, ok := findError(errs, domain.FieldBaseSalary, domain.ErrorTypeInvalidNumber)
	if !ok || baseErr.Severity != domain.SeverityCritical {
		t.Fatalf("expected critical invalid baseSalary, got %+v", errs)
	}
	mealErr, ok := findError(errs, domain.FieldMealAllowance, domain.ErrorTypeInvalidNumber)
	if !ok || mealErr.Severity != domain.SeverityNonCritical {
		t.Fatalf("expected non-critical invalid mealAllowance, got %+v", errs)
	}
}

func TestValidatorRejectsNegativeBaseSalary(t *testing.T) {
	rows := decodeRows(t, "E001,김철수,개발팀,-3000000,100000,50000,0,150000,300000,90000,-3150000")

	errs := NewValidator().Validate(rows[0])

	if _, ok := findError(errs, domain.FieldBaseSalary, domain.ErrorTypeBusinessRule); !ok {
		t.Fatalf("expected business rule violation for negative base salary, got %+v", errs)
	}
	if _, ok := findError(errs, domain.FieldNetSalary, domain.ErrorTypeBusinessRule); !ok {
		t.Fatalf("expected business rule violation for negative net salary, got %+v", errs)
	}
}

func TestValidatorDetectsDuplicateEmployees(t *testing.T) {
	rows := decodeRows(t,
		"E001,김철수,개발팀,3000000,100000,50000,0,150000,300000,90000,2850000",
		"E001,김철수,개발팀,3000000,100000,50000,0,150000,300000,90000,2850000",
	)

	validator := NewValidator()
	if errs := validator.Validate(rows[0]); len(errs) != 0 {
		t.Fatalf("first occurrence should be clean, got %+v", errs)
	}

	errs := validator.Validate(rows[1])
	dupErr, ok := findError(errs, domain.FieldEmployeeID, domain.ErrorTypeDuplicateValue)
	if !ok || !dupErr.Critical() {
		t.Fatalf("expected critical duplicate error, got %+v", errs)
	}
}

func TestValidatorReportsArithmeticMismatchAsNonCritical(t *testing.T) {
	// Declared 수당합계 differs from component sum; declared 실수령액 differs
	// from base + allowances - deductions.
	rows := decodeRows(t, "E001,김철수,개발팀,3000000,100000,50000,0,200000,300000,90000,2850000")

	errs := NewValidator().Validate(rows[0])

	allowErr, ok := findError(errs, domain.FieldTotalAllowances, domain.ErrorTypeCalculationMismatch)
	if !ok || allowErr.Severity != domain.SeverityNonCritical {
		t.Fatalf("expected non-critical allowance mismatch, got %+v", errs)
	}
	netErr, ok := findError(errs, domain.FieldNetSalary, domain.ErrorTypeCalculationMismatch)
	if !ok || netErr.Severity != domain.SeverityNonCritical {
		t.Fatalf("expected non-critical net salary mismatch, got %+v", errs)
	}
	if domain.HasCritical(errs) {
		t.Fatalf("mismatches alone must not block the row: %+v", errs)
	}
}

func TestValidatorSkipsArithmeticWhenComponentInvalid(t *testing.T) {
	rows := decodeRows(t, "E001,김철수,개발팀,3000000,abc,50000,0,150000,300000,90000,2850000")

	errs := NewValidator().Validate(rows[0])
	if _, ok := findError(errs, domain.FieldTotalAllowances, domain.ErrorTypeCalculationMismatch); ok {
		t.Fatalf("mismatch must not be reported when a component failed to parse: %+v", errs)
	}
}
