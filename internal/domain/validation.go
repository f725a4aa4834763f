package domain

// ErrorType identifies the category of a row validation failure.
type ErrorType string

const (
	ErrorTypeMissingColumns       ErrorType = "MISSING_COLUMNS"
	ErrorTypeRequiredFieldMissing ErrorType = "REQUIRED_FIELD_MISSING"
	ErrorTypeInvalidNumber        ErrorType = "INVALID_NUMBER"
	ErrorTypeBusinessRule         ErrorType = "BUSINESS_RULE_VIOLATION"
	ErrorTypeDuplicateValue       ErrorType = "DUPLICATE_VALUE"
	ErrorTypeCalculationMismatch  ErrorType = "CALCULATION_MISMATCH"
)

// Severity partitions validation errors into those that block a commit
// and those that are reported but tolerated.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityNonCritical Severity = "non-critical"
)

// ValidationError describes a single failed check on one field of one row.
// Errors are collected as values, never raised, so a bad cell cannot abort
// the rest of a row or the rest of the file.
type ValidationError struct {
	Field      string    `json:"field"`
	RawValue   string    `json:"raw_value"`
	Type       ErrorType `json:"error_type"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// Critical reports whether the error blocks the row from being committed.
func (e ValidationError) Critical() bool {
	return e.Severity == SeverityCritical
}

// HasCritical reports whether any error in the list is critical.
func HasCritical(errs []ValidationError) bool {
	for _, err := range errs {
		if err.Critical() {
			return true
		}
	}
	return false
}
