package rollback

import (
	"context"
	"errors"
	"testing"

	"github.com/nukk-pain/smpain-hr/internal/domain"

	"github.com/google/uuid"
)

func TestEvaluateThresholdIsStrictlyGreaterThan(t *testing.T) {
	engine := NewEngine(50)

	atThreshold := engine.Evaluate(2, 1)
	if atThreshold.FailureRate != 50 || atThreshold.ThresholdExceeded {
		t.Fatalf("a rate exactly at the threshold must not trigger: %+v", atThreshold)
	}

	above := engine.Evaluate(4, 3)
	if above.FailureRate != 75 || !above.ThresholdExceeded {
		t.Fatalf("expected 75%% to trigger: %+v", above)
	}

	empty := engine.Evaluate(0, 0)
	if empty.FailureRate != 0 || empty.ThresholdExceeded {
		t.Fatalf("an empty run cannot trigger: %+v", empty)
	}
}

func TestPlanRollbackFullUndoesEveryCommittedBatch(t *testing.T) {
	engine := NewEngine(50)
	batches := []domain.BatchResult{
		{BatchID: uuid.New(), Attempted: 100, Committed: 100},
		{BatchID: uuid.New(), Attempted: 100, Committed: 40, Failed: 60},
		{BatchID: uuid.New(), Attempted: 50, Committed: 0, Failed: 50},
	}

	plan := engine.PlanRollback(batches, Full)

	if len(plan.Steps) != 2 {
		t.Fatalf("batches with nothing committed have nothing to undo: %+v", plan.Steps)
	}
	if plan.AffectedRecords != 140 {
		t.Fatalf("expected 140 affected records, got %d", plan.AffectedRecords)
	}
	if plan.EstimatedRecoveryTime == "" {
		t.Fatalf("expected a recovery estimate")
	}
}

func TestPlanRollbackSelectivePreservesCleanBatches(t *testing.T) {
	engine := NewEngine(50)
	clean := domain.BatchResult{BatchID: uuid.New(), Attempted: 100, Committed: 100}
	dirty := domain.BatchResult{BatchID: uuid.New(), Attempted: 100, Committed: 40, Failed: 60}

	plan := engine.PlanRollback([]domain.BatchResult{clean, dirty}, Selective)

	if len(plan.Steps) != 1 {
		t.Fatalf("expected only the dirty batch in the plan: %+v", plan.Steps)
	}
	if plan.Steps[0].BatchID != dirty.BatchID {
		t.Fatalf("wrong batch selected: %+v", plan.Steps[0])
	}
	if plan.AffectedRecords != 40 {
		t.Fatalf("expected 40 affected records, got %d", plan.AffectedRecords)
	}
}

func TestExecuteUndoesAllSteps(t *testing.T) {
	engine := NewEngine(50)
	batches := []domain.BatchResult{
		{BatchID: uuid.New(), Attempted: 10, Committed: 10},
		{BatchID: uuid.New(), Attempted: 10, Committed: 10},
	}
	plan := engine.PlanRollback(batches, Full)

	var undone []uuid.UUID
	result := engine.Execute(context.Background(), plan, func(ctx context.Context, batchID uuid.UUID) error {
		undone = append(undone, batchID)
		return nil
	})

	if result.RolledBack != 20 {
		t.Fatalf("expected 20 records rolled back, got %d", result.RolledBack)
	}
	if len(undone) != 2 {
		t.Fatalf("expected both batches undone, got %d", len(undone))
	}
	if result.Backup != nil {
		t.Fatalf("clean execution must not escalate: %+v", result.Backup)
	}
}

func TestExecuteEscalatesOnUndoFailure(t *testing.T) {
	engine := NewEngine(50)
	failing := uuid.New()
	batches := []domain.BatchResult{
		{BatchID: failing, Attempted: 10, Committed: 10},
		{BatchID: uuid.New(), Attempted: 10, Committed: 10},
	}
	plan := engine.PlanRollback(batches, Full)

	result := engine.Execute(context.Background(), plan, func(ctx context.Context, batchID uuid.UUID) error {
		if batchID == failing {
			return errors.New("storage unavailable")
		}
		return nil
	})

	if result.RolledBack != 10 {
		t.Fatalf("remaining steps must still run after a failure, got %d rolled back", result.RolledBack)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %+v", result.Failures)
	}
	if result.Backup == nil || result.Backup.Action != "manual_review" {
		t.Fatalf("expected backup strategy escalation, got %+v", result.Backup)
	}
	if len(result.Backup.Options) == 0 {
		t.Fatalf("backup strategy must offer concrete options")
	}
}

func TestStrategyString(t *testing.T) {
	if Full.String() != "FULL" || Selective.String() != "SELECTIVE" {
		t.Fatalf("unexpected strategy names: %s / %s", Full, Selective)
	}
}
