// Package cellconv converts raw spreadsheet cell text into typed values.
// Payroll workbooks arrive with currency symbols, thousands separators and
// Korean currency words baked into numeric cells; this package strips them
// and records which fix was applied so callers can distinguish clean input
// from repaired input. Malformed input never produces an error value or a
// panic, only a Result with Valid=false and a human-readable reason, so
// validators can aggregate every problem in a row instead of stopping at
// the first bad cell.
package cellconv

import (
	"strconv"
	"strings"
)

// FixType names the formatting repair applied before a successful parse.
type FixType string

const (
	FixNone                FixType = ""
	FixWhitespace          FixType = "whitespace"
	FixThousandsSeparators FixType = "thousands_separators"
	FixCurrencySymbol      FixType = "currency_symbol"
	FixCurrencyWord        FixType = "currency_word"
)

// Result is the outcome of coercing one cell.
type Result struct {
	Value  float64
	Valid  bool
	Fix    FixType
	Reason string
}

var currencySymbols = []string{"₩", "￦", "$", "¥", "€"}

var currencyWords = []string{"원", "won", "krw"}

var placeholders = map[string]bool{
	"-": true, "—": true, "n/a": true, "na": true, "없음": true, "null": true,
}

// Number coerces a raw cell into a float64. Placeholder cells ("-", "N/A")
// coerce to zero without a fix mark. The first repair applied determines
// Fix when several would match: symbol, then word, then separators.
func Number(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Valid: false, Reason: "empty cell"}
	}
	if placeholders[strings.ToLower(trimmed)] {
		return Result{Value: 0, Valid: true}
	}

	fix := FixNone
	if trimmed != raw {
		fix = FixWhitespace
	}

	cleaned := trimmed
	for _, symbol := range currencySymbols {
		if strings.Contains(cleaned, symbol) {
			cleaned = strings.ReplaceAll(cleaned, symbol, "")
			fix = FixCurrencySymbol
		}
	}

	lowered := strings.ToLower(cleaned)
	for _, word := range currencyWords {
		if strings.HasSuffix(lowered, word) {
			cleaned = strings.TrimSpace(cleaned[:len(cleaned)-len(word)])
			lowered = strings.ToLower(cleaned)
			if fix == FixNone || fix == FixWhitespace {
				fix = FixCurrencyWord
			}
		}
	}

	if strings.Contains(cleaned, ",") {
		stripped := strings.ReplaceAll(cleaned, ",", "")
		if !validSeparatorPlacement(cleaned) {
			return Result{Valid: false, Reason: "misplaced thousands separator in " + strconv.Quote(raw)}
		}
		cleaned = stripped
		if fix == FixNone || fix == FixWhitespace {
			fix = FixThousandsSeparators
		}
	}

	cleaned = strings.TrimSpace(cleaned)
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return Result{Valid: false, Reason: "not a number: " + strconv.Quote(raw)}
	}
	return Result{Value: value, Valid: true, Fix: fix}
}

// Int coerces a raw cell into an integer, rejecting fractional values.
func Int(raw string) (int64, bool) {
	result := Number(raw)
	if !result.Valid {
		return 0, false
	}
	if result.Value != float64(int64(result.Value)) {
		return 0, false
	}
	return int64(result.Value), true
}

// String normalizes a text cell: trimmed, inner whitespace preserved.
func String(raw string) string {
	return strings.TrimSpace(raw)
}

// validSeparatorPlacement checks that commas sit in 3-digit group positions
// ("1,234,567"), so "1,23" is rejected rather than silently becoming 123.
func validSeparatorPlacement(value string) bool {
	if strings.HasPrefix(value, "-") || strings.HasPrefix(value, "+") {
		value = value[1:]
	}

	integer := value
	if dot := strings.IndexByte(value, '.'); dot >= 0 {
		if strings.Contains(value[dot:], ",") {
			return false
		}
		integer = value[:dot]
	}

	groups := strings.Split(integer, ",")
	if len(groups) == 1 {
		return true
	}
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, group := range groups[1:] {
		if len(group) != 3 {
			return false
		}
	}
	return true
}
