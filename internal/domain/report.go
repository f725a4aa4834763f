package domain

// ProcessingReport aggregates the outcome of one ingestion pass over a
// workbook. It is computed once per pass and never mutated afterwards.
type ProcessingReport struct {
	TotalRows          int               `json:"total_rows"`
	ValidRows          int               `json:"valid_rows"`
	InvalidRows        int               `json:"invalid_rows"`
	SuccessRate        float64           `json:"success_rate"`
	ErrorsByType       map[ErrorType]int `json:"errors_by_type"`
	ErrorsByField      map[string]int    `json:"errors_by_field"`
	AffectedRowNumbers []int             `json:"affected_row_numbers"`
}

// BuildReport computes the processing report for a set of decoded rows.
// Rows are expected in source order; affected row numbers preserve it.
func BuildReport(rows []DecodedRow) ProcessingReport {
	report := ProcessingReport{
		TotalRows:          len(rows),
		ErrorsByType:       map[ErrorType]int{},
		ErrorsByField:      map[string]int{},
		AffectedRowNumbers: []int{},
	}

	for _, row := range rows {
		if row.Valid {
			report.ValidRows++
			continue
		}
		report.InvalidRows++
		report.AffectedRowNumbers = append(report.AffectedRowNumbers, row.RowNumber)
		for _, rowErr := range row.Errors {
			report.ErrorsByType[rowErr.Type]++
			report.ErrorsByField[rowErr.Field]++
		}
	}

	if report.TotalRows > 0 {
		report.SuccessRate = float64(report.ValidRows) / float64(report.TotalRows) * 100
	}
	return report
}
