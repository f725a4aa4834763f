package ingestion

import "github.com/nukk-pain/smpain-hr/internal/domain"

// Strategy selects how the orchestrator treats invalid rows. It is a
// closed set: an unknown strategy is unrepresentable at the call site.
type Strategy int

const (
	// SkipInvalid processes every row but excludes invalid rows from the
	// commit set, listing them separately. It is the zero value, so an
	// unset strategy skips invalid rows instead of aborting the batch.
	SkipInvalid Strategy = iota
	// FailFast aborts at the first invalid row and reports how far it got.
	FailFast
	// Continue processes every row and collects all failures.
	Continue
)

func (s Strategy) String() string {
	switch s {
	case FailFast:
		return "FAIL_FAST"
	case Continue:
		return "CONTINUE"
	case SkipInvalid:
		return "SKIP_INVALID"
	default:
		return "UNKNOWN"
	}
}

// IsolatedFailure names one invalid row and everything wrong with it, so
// failures never leak into the valid data set.
type IsolatedFailure struct {
	RowNumber int                      `json:"rowNumber"`
	Errors    []domain.ValidationError `json:"errors"`
}

// RunResult is the orchestrator's verdict over one pass.
type RunResult struct {
	Success          bool                    `json:"success"`
	PartialFailure   bool                    `json:"partialFailure"`
	Report           domain.ProcessingReport `json:"report"`
	IsolatedFailures []IsolatedFailure       `json:"isolatedFailures"`
	// Rows are all judged rows in source order, verdicts attached.
	Rows []domain.DecodedRow `json:"-"`
	// CommitRows are the rows cleared for downstream commit.
	CommitRows []domain.DecodedRow `json:"-"`
	// Processed counts rows actually examined; under FailFast this stops
	// at the first invalid row.
	Processed int `json:"processed"`
}

// Run validates rows in source order under the given strategy. The rows
// come in coerced but unjudged; they leave with Errors and Valid set.
func Run(rows []domain.DecodedRow, strategy Strategy) RunResult {
	validator := NewValidator()
	result := RunResult{}

	judged := make([]domain.DecodedRow, 0, len(rows))
	for _, row := range rows {
		row.Errors = validator.Validate(row)
		row.Valid = !domain.HasCritical(row.Errors)
		judged = append(judged, row)
		result.Processed++

		if !row.Valid {
			result.IsolatedFailures = append(result.IsolatedFailures, IsolatedFailure{
				RowNumber: row.RowNumber,
				Errors:    row.Errors,
			})
			if strategy == FailFast {
				break
			}
		}
	}

	result.Rows = judged
	result.Report = domain.BuildReport(judged)
	result.PartialFailure = result.Report.InvalidRows > 0 && result.Report.ValidRows > 0

	switch strategy {
	case FailFast:
		result.Success = result.Report.InvalidRows == 0
		if result.Success {
			result.CommitRows = judged
		}
	case Continue:
		result.Success = result.Report.InvalidRows == 0
		result.CommitRows = validRows(judged)
	case SkipInvalid:
		// Skipping is the policy, so invalid rows do not fail the run;
		// they are just excluded and listed.
		result.Success = result.Report.ValidRows > 0 || result.Report.TotalRows == 0
		result.CommitRows = validRows(judged)
	}

	return result
}

func validRows(rows []domain.DecodedRow) []domain.DecodedRow {
	var valid []domain.DecodedRow
	for _, row := range rows {
		if row.Valid {
			valid = append(valid, row)
		}
	}
	return valid
}
