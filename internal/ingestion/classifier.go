package ingestion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nukk-pain/smpain-hr/internal/domain"
	"github.com/nukk-pain/smpain-hr/pkg/cellconv"
)

// Classification groups a pass's validation errors for reporting and for
// the auto-fix decision. AutoFixable holds only formatting repairs the
// coercion layer already proved it can make; identifier and business-rule
// failures are never auto-fixable.
type Classification struct {
	ByType      map[domain.ErrorType][]RowError `json:"by_type"`
	ByField     map[string][]RowError           `json:"by_field"`
	AutoFixable []AutoFix                       `json:"auto_fixable"`
	Critical    []RowError                      `json:"critical"`
}

// RowError pairs a validation error with its source row.
type RowError struct {
	RowNumber int                    `json:"row_number"`
	Err       domain.ValidationError `json:"error"`
}

// AutoFix records a formatting repair the coercion layer applied on its own.
type AutoFix struct {
	RowNumber int              `json:"row_number"`
	Field     string           `json:"field"`
	RawValue  string           `json:"raw_value"`
	Fixed     float64          `json:"fixed_value"`
	FixType   cellconv.FixType `json:"fix_type"`
}

// Priority orders recommendation steps.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityLow      Priority = "low"
)

// RecommendationStep is one human-actionable remediation item.
type RecommendationStep struct {
	StepNumber       int      `json:"stepNumber"`
	Action           string   `json:"action"`
	Description      string   `json:"description"`
	Details          string   `json:"details"`
	Priority         Priority `json:"priority"`
	AffectedRows     []int    `json:"affectedRows"`
	EstimatedFixTime string   `json:"estimatedFixTime"`
}

// RecoveryGuide is the optional remediation payload returned on failures.
type RecoveryGuide struct {
	ErrorType            domain.ErrorType     `json:"errorType"`
	Steps                []RecommendationStep `json:"steps"`
	EstimatedTime        string               `json:"estimatedTime"`
	TemplateDownloadLink string               `json:"templateDownloadLink"`
}

// Classify groups the errors of all rows and collects the fixes the
// coercion layer applied.
func Classify(rows []domain.DecodedRow) Classification {
	c := Classification{
		ByType:  map[domain.ErrorType][]RowError{},
		ByField: map[string][]RowError{},
	}

	for _, row := range rows {
		for _, rowErr := range row.Errors {
			entry := RowError{RowNumber: row.RowNumber, Err: rowErr}
			c.ByType[rowErr.Type] = append(c.ByType[rowErr.Type], entry)
			c.ByField[rowErr.Field] = append(c.ByField[rowErr.Field], entry)
			if rowErr.Critical() {
				c.Critical = append(c.Critical, entry)
			}
		}
		for field, value := range row.Fields {
			if value.Fix != cellconv.FixNone && !value.Invalid {
				c.AutoFixable = append(c.AutoFixable, AutoFix{
					RowNumber: row.RowNumber,
					Field:     field,
					RawValue:  value.Raw,
					Fixed:     value.Number,
					FixType:   value.Fix,
				})
			}
		}
	}

	sort.Slice(c.AutoFixable, func(i, j int) bool {
		if c.AutoFixable[i].RowNumber != c.AutoFixable[j].RowNumber {
			return c.AutoFixable[i].RowNumber < c.AutoFixable[j].RowNumber
		}
		return c.AutoFixable[i].Field < c.AutoFixable[j].Field
	})
	return c
}

// remediation maps each error type to its advice template.
var remediation = map[domain.ErrorType]struct {
	action      string
	description string
	priority    Priority
	minutesPer  int
}{
	domain.ErrorTypeMissingColumns:       {"restore_columns", "add the missing required columns to the sheet header", PriorityCritical, 10},
	domain.ErrorTypeRequiredFieldMissing: {"fill_required_fields", "fill in the empty required cells", PriorityCritical, 2},
	domain.ErrorTypeDuplicateValue:       {"resolve_duplicates", "remove or correct duplicated employee rows", PriorityCritical, 3},
	domain.ErrorTypeBusinessRule:         {"review_amounts", "correct amounts that violate payroll rules", PriorityCritical, 3},
	domain.ErrorTypeInvalidNumber:        {"fix_number_format", "rewrite unparseable numeric cells as plain numbers", PriorityHigh, 1},
	domain.ErrorTypeCalculationMismatch:  {"recalculate_totals", "recompute declared totals from their components", PriorityLow, 2},
}

var priorityRank = map[Priority]int{PriorityCritical: 0, PriorityHigh: 1, PriorityLow: 2}

// Advise turns a classification into an ordered remediation plan,
// critical first.
func Advise(c Classification) []RecommendationStep {
	var steps []RecommendationStep
	for errType, entries := range c.ByType {
		advice, ok := remediation[errType]
		if !ok {
			continue
		}
		rows := affectedRows(entries)
		steps = append(steps, RecommendationStep{
			Action:           advice.action,
			Description:      advice.description,
			Details:          stepDetails(errType, entries),
			Priority:         advice.priority,
			AffectedRows:     rows,
			EstimatedFixTime: fmt.Sprintf("%dm", advice.minutesPer*len(rows)),
		})
	}

	sort.Slice(steps, func(i, j int) bool {
		if priorityRank[steps[i].Priority] != priorityRank[steps[j].Priority] {
			return priorityRank[steps[i].Priority] < priorityRank[steps[j].Priority]
		}
		return steps[i].Action < steps[j].Action
	})
	for idx := range steps {
		steps[idx].StepNumber = idx + 1
	}
	return steps
}

// BuildRecoveryGuide wraps the advice for the dominant error type.
func BuildRecoveryGuide(c Classification, templateLink string) RecoveryGuide {
	steps := Advise(c)
	guide := RecoveryGuide{
		Steps:                steps,
		TemplateDownloadLink: templateLink,
	}
	if len(steps) > 0 {
		guide.ErrorType = dominantErrorType(c)
		guide.EstimatedTime = totalEstimate(steps)
	}
	return guide
}

func dominantErrorType(c Classification) domain.ErrorType {
	var dominant domain.ErrorType
	most := -1
	types := make([]domain.ErrorType, 0, len(c.ByType))
	for errType := range c.ByType {
		types = append(types, errType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, errType := range types {
		if count := len(c.ByType[errType]); count > most {
			most = count
			dominant = errType
		}
	}
	return dominant
}

func totalEstimate(steps []RecommendationStep) string {
	total := 0
	for _, step := range steps {
		var minutes int
		if _, err := fmt.Sscanf(step.EstimatedFixTime, "%dm", &minutes); err == nil {
			total += minutes
		}
	}
	return fmt.Sprintf("%dm", total)
}

func affectedRows(entries []RowError) []int {
	seen := map[int]bool{}
	var rows []int
	for _, entry := range entries {
		if !seen[entry.RowNumber] {
			seen[entry.RowNumber] = true
			rows = append(rows, entry.RowNumber)
		}
	}
	sort.Ints(rows)
	return rows
}

func stepDetails(errType domain.ErrorType, entries []RowError) string {
	fields := map[string]bool{}
	for _, entry := range entries {
		if entry.Err.Field != "" {
			fields[entry.Err.Field] = true
		}
	}
	names := make([]string, 0, len(fields))
	for field := range fields {
		names = append(names, field)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s on fields: %s", errType, strings.Join(names, ", "))
}
