package domain

import "testing"

func judgedRow(rowNumber int, errs ...ValidationError) DecodedRow {
	return DecodedRow{
		RowNumber: rowNumber,
		Errors:    errs,
		Valid:     !HasCritical(errs),
	}
}

func TestBuildReportCountsAndRates(t *testing.T) {
	rows := []DecodedRow{
		judgedRow(2),
		judgedRow(3, ValidationError{Field: FieldEmployeeID, Type: ErrorTypeRequiredFieldMissing, Severity: SeverityCritical}),
		judgedRow(4),
		judgedRow(5, ValidationError{Field: FieldBaseSalary, Type: ErrorTypeInvalidNumber, Severity: SeverityCritical}),
		judgedRow(6),
	}

	report := BuildReport(rows)

	if report.TotalRows != 5 || report.ValidRows != 3 || report.InvalidRows != 2 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.SuccessRate != 60 {
		t.Fatalf("expected 60%% success rate, got %.1f", report.SuccessRate)
	}
	if len(report.AffectedRowNumbers) != 2 || report.AffectedRowNumbers[0] != 3 || report.AffectedRowNumbers[1] != 5 {
		t.Fatalf("unexpected affected rows: %v", report.AffectedRowNumbers)
	}
	if report.ErrorsByType[ErrorTypeRequiredFieldMissing] != 1 || report.ErrorsByField[FieldBaseSalary] != 1 {
		t.Fatalf("unexpected error breakdown: %+v", report)
	}
}

func TestBuildReportIgnoresNonCriticalErrorsOnValidRows(t *testing.T) {
	rows := []DecodedRow{
		judgedRow(2, ValidationError{Field: FieldNetSalary, Type: ErrorTypeCalculationMismatch, Severity: SeverityNonCritical}),
	}

	report := BuildReport(rows)

	if report.ValidRows != 1 || report.InvalidRows != 0 {
		t.Fatalf("non-critical errors must not invalidate the row: %+v", report)
	}
	if len(report.AffectedRowNumbers) != 0 {
		t.Fatalf("valid rows never count as affected: %v", report.AffectedRowNumbers)
	}
}

func TestBuildReportEmptyInput(t *testing.T) {
	report := BuildReport(nil)
	if report.TotalRows != 0 || report.SuccessRate != 0 {
		t.Fatalf("unexpected empty report: %+v", report)
	}
}
