// Package rollback decides, plans and executes the undo of provisional
// payroll writes. Batches (one storage transaction each) are the unit of
// undo; the run is the unit of decision: the run-wide failure rate trips
// the threshold, the strategy picks which batches unwind.
package rollback

import (
	"context"
	"fmt"
	"time"

	"github.com/nukk-pain/smpain-hr/internal/domain"

	"github.com/google/uuid"
)

// Strategy selects which batches a triggered rollback unwinds.
type Strategy int

const (
	// Full undoes every provisional write in the run.
	Full Strategy = iota
	// Selective undoes only batches whose own failure rate exceeds the
	// threshold, preserving clean batches.
	Selective
)

func (s Strategy) String() string {
	switch s {
	case Full:
		return "FULL"
	case Selective:
		return "SELECTIVE"
	default:
		return "UNKNOWN"
	}
}

// Evaluation is the threshold verdict for a run.
type Evaluation struct {
	FailureRate       float64 `json:"failureRate"`
	ThresholdExceeded bool    `json:"thresholdExceeded"`
}

// Step is one undo operation in a rollback plan.
type Step struct {
	BatchID uuid.UUID `json:"batchId"`
	Records int       `json:"records"`
	Reason  string    `json:"reason"`
}

// Plan is an ordered list of undo operations plus operator-facing sizing.
type Plan struct {
	Strategy              Strategy `json:"strategy"`
	Steps                 []Step   `json:"rollbackSteps"`
	AffectedRecords       int      `json:"affectedRecords"`
	EstimatedRecoveryTime string   `json:"estimatedRecoveryTime"`
}

// BackupStrategy is surfaced when executing the rollback itself fails:
// the system refuses to end in an undefined state silently, so the
// failure escalates with concrete recovery options.
type BackupStrategy struct {
	Action      string   `json:"action"`
	SnapshotRef string   `json:"snapshotRef"`
	Options     []string `json:"options"`
}

// ExecResult reports what the rollback actually undid.
type ExecResult struct {
	RolledBack int             `json:"rolledBack"`
	Failures   []string        `json:"failures,omitempty"`
	Backup     *BackupStrategy `json:"backupStrategy,omitempty"`
}

// Engine evaluates failure rates against a percentage threshold.
type Engine struct {
	threshold float64
}

// NewEngine creates an engine with the given threshold percentage.
func NewEngine(threshold float64) *Engine {
	return &Engine{threshold: threshold}
}

// Threshold returns the configured percentage.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Evaluate computes the failure rate and the trigger verdict. The
// comparison is strictly greater-than: a rate exactly at the threshold
// does not trigger.
func (e *Engine) Evaluate(attempted, failed int) Evaluation {
	eval := Evaluation{}
	if attempted > 0 {
		eval.FailureRate = float64(failed) / float64(attempted) * 100
	}
	eval.ThresholdExceeded = eval.FailureRate > e.threshold
	return eval
}

// PlanRollback builds the ordered undo list for the given batches. Batches
// with nothing committed are skipped; there is nothing to undo in them.
func (e *Engine) PlanRollback(batches []domain.BatchResult, strategy Strategy) Plan {
	plan := Plan{Strategy: strategy}

	for _, batch := range batches {
		if batch.Committed == 0 {
			continue
		}
		switch strategy {
		case Full:
			plan.Steps = append(plan.Steps, Step{
				BatchID: batch.BatchID,
				Records: batch.Committed,
				Reason:  "run failure rate exceeded threshold",
			})
		case Selective:
			if batch.FailureRate() > e.threshold {
				plan.Steps = append(plan.Steps, Step{
					BatchID: batch.BatchID,
					Records: batch.Committed,
					Reason:  fmt.Sprintf("batch failure rate %.1f%% exceeded threshold %.1f%%", batch.FailureRate(), e.threshold),
				})
			}
		}
	}

	for _, step := range plan.Steps {
		plan.AffectedRecords += step.Records
	}
	plan.EstimatedRecoveryTime = estimateRecovery(plan.AffectedRecords)
	return plan
}

// Execute applies the plan through the caller-supplied undo function, one
// batch at a time. A failed undo is recorded, the remaining steps still
// run, and the result escalates with a backup strategy instead of
// pretending the run is clean.
func (e *Engine) Execute(ctx context.Context, plan Plan, undo func(ctx context.Context, batchID uuid.UUID) error) ExecResult {
	result := ExecResult{}
	for _, step := range plan.Steps {
		if err := undo(ctx, step.BatchID); err != nil {
			result.Failures = append(result.Failures, fmt.Sprintf("batch %s: %v", step.BatchID, err))
			continue
		}
		result.RolledBack += step.Records
	}

	if len(result.Failures) > 0 {
		result.Backup = &BackupStrategy{
			Action:      "manual_review",
			SnapshotRef: fmt.Sprintf("rollback-%s", time.Now().UTC().Format("20060102T150405Z")),
			Options: []string{
				"flag the run for manual review",
				"retry the failed batch undo once storage recovers",
				"restore from the recovery snapshot",
			},
		}
	}
	return result
}

// estimateRecovery sizes the operator-facing recovery estimate from the
// record count. The constants come from observed undo throughput, not from
// any guarantee.
func estimateRecovery(records int) string {
	if records == 0 {
		return "0s"
	}
	seconds := records/200 + 1
	return (time.Duration(seconds) * time.Second).String()
}
