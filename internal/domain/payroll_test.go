package domain

import "testing"

func TestNewPayrollRecordRecomputesDerivedAmounts(t *testing.T) {
	record := NewPayrollRecord("E001", "김철수", "개발팀", 2025, 6, 3000000,
		map[string]float64{FieldMealAllowance: 100000, FieldTransportAllowance: 50000},
		map[string]float64{FieldIncomeTax: 90000, FieldNationalPension: 135000},
	)

	if record.TotalAllowances != 150000 {
		t.Fatalf("expected total allowances 150000, got %.0f", record.TotalAllowances)
	}
	if record.TotalDeductions != 225000 {
		t.Fatalf("expected total deductions 225000, got %.0f", record.TotalDeductions)
	}
	if record.NetSalary != 2925000 {
		t.Fatalf("expected net salary 2925000, got %.0f", record.NetSalary)
	}
	if record.YearMonth() != "2025-06" {
		t.Fatalf("expected year month 2025-06, got %s", record.YearMonth())
	}
}

func TestRecordFromRowKeepsDeclaredDeductionGap(t *testing.T) {
	row := DecodedRow{
		RowNumber: 2,
		Fields: map[string]FieldValue{
			FieldEmployeeID:      {Raw: "E001", Text: "E001"},
			FieldName:            {Raw: "김철수", Text: "김철수"},
			FieldDepartment:      {Raw: "개발팀", Text: "개발팀"},
			FieldBaseSalary:      {Raw: "3000000", Number: 3000000},
			FieldMealAllowance:   {Raw: "100000", Number: 100000},
			FieldTotalAllowances: {Raw: "100000", Number: 100000},
			FieldIncomeTax:       {Raw: "90000", Number: 90000},
			FieldTotalDeductions: {Raw: "300000", Number: 300000},
			FieldNetSalary:       {Raw: "2800000", Number: 2800000},
		},
		Valid: true,
	}

	record := RecordFromRow(row, 2025, 6)

	// The upload declared 300000 in deductions but itemized only 90000;
	// the gap survives under "other" so the stored total matches.
	if record.Deductions["other"] != 210000 {
		t.Fatalf("expected 210000 under other, got %+v", record.Deductions)
	}
	if record.TotalDeductions != 300000 {
		t.Fatalf("expected declared total preserved, got %.0f", record.TotalDeductions)
	}
	if record.NetSalary != 2800000 {
		t.Fatalf("expected net 2800000, got %.0f", record.NetSalary)
	}
}
