package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nukk-pain/smpain-hr/internal/cache"
	"github.com/nukk-pain/smpain-hr/internal/domain"
	"github.com/nukk-pain/smpain-hr/internal/repository"
	"github.com/nukk-pain/smpain-hr/internal/rollback"
	"github.com/nukk-pain/smpain-hr/internal/token"

	"github.com/google/uuid"
)

// ConfirmRequest applies a previously previewed upload.
type ConfirmRequest struct {
	CallerID       uuid.UUID
	PreviewToken   string
	IdempotencyKey string
	// Payload, when re-supplied, is re-verified against the digest captured
	// at Preview time.
	Payload []byte
	// RollbackPreview computes the rollback verdict without writing.
	RollbackPreview bool
}

// RollbackPreviewResult is the dry-run verdict.
type RollbackPreviewResult struct {
	WouldTrigger          bool            `json:"wouldTrigger"`
	FailureRate           float64         `json:"failureRate"`
	AffectedRecords       int             `json:"affectedRecords"`
	RollbackSteps         []rollback.Step `json:"rollbackSteps"`
	EstimatedRecoveryTime string          `json:"estimatedRecoveryTime"`
}

// ConfirmResponse is the Confirm phase outcome. For a replayed idempotency
// key this is the recorded first outcome, returned verbatim.
type ConfirmResponse struct {
	Success           bool                     `json:"success"`
	State             State                    `json:"state"`
	ErrorType         string                   `json:"errorType,omitempty"`
	Message           string                   `json:"message,omitempty"`
	AffectedRows      []int                    `json:"affectedRows,omitempty"`
	Committed         int                      `json:"committed"`
	FailureRate       float64                  `json:"failureRate"`
	RollbackTriggered bool                     `json:"rollbackTriggered"`
	Batches           []domain.BatchResult     `json:"batches,omitempty"`
	RollbackPreview   *RollbackPreviewResult   `json:"rollbackPreview,omitempty"`
	RollbackExecuted  bool                     `json:"rollbackExecuted"`
	BackupStrategy    *rollback.BackupStrategy `json:"backupStrategy,omitempty"`
}

// Confirm verifies the capability token, resolves the server-held session,
// dedupes on the idempotency key, re-checks integrity, and executes the
// rollback-guarded transactional write. The preview session is deleted
// exactly once on any terminal outcome, so a session can never be
// confirmed twice successfully.
func (c *Coordinator) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResponse, error) {
	if req.CallerID == uuid.Nil {
		return nil, errors.New("caller id is required")
	}
	if req.IdempotencyKey == "" && !req.RollbackPreview {
		return nil, errors.New("idempotency key is required")
	}

	claims, err := c.issuer.Verify(req.PreviewToken)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return failResponse(ErrTypeTokenExpired, "preview token expired"), nil
		}
		return failResponse(ErrTypeTokenInvalid, "preview token invalid"), nil
	}

	// A dry-run consumes no idempotency key and deletes no session.
	if req.RollbackPreview {
		return c.rollbackPreview(claims, req)
	}

	idemKey := idempotencyKey(req.CallerID, req.IdempotencyKey)
	won, err := c.idempotency.SetNX(idemKey, []byte(idempotencyPendingMarker), c.opts.IdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !won {
		return c.awaitRecordedOutcome(ctx, idemKey)
	}

	resp := c.confirmLocked(ctx, claims, req)

	encoded, err := json.Marshal(resp)
	if err != nil {
		// The write already happened; losing the record would let a retry
		// re-execute it. Treat this as unrecoverable for the request.
		return nil, fmt.Errorf("failed to record confirm outcome: %w", err)
	}
	if err := c.idempotency.Set(idemKey, encoded, c.opts.IdempotencyTTL); err != nil {
		return nil, fmt.Errorf("failed to record confirm outcome: %w", err)
	}
	return resp, nil
}

// confirmLocked runs the CONFIRMING leg after this caller has won the
// idempotency race.
func (c *Coordinator) confirmLocked(ctx context.Context, claims token.Claims, req ConfirmRequest) *ConfirmResponse {
	session, resp := c.resolveSession(claims, req.CallerID)
	if resp != nil {
		return resp
	}

	if len(req.Payload) > 0 && cache.Key(req.Payload) != session.IntegrityDigest {
		c.deleteSession(session.ID)
		return failResponse(ErrTypeIntegrityMismatch, "uploaded file does not match the previewed file")
	}

	run := Run(session.Rows, c.opts.CommitStrategy)
	outcome := c.commitRows(ctx, session, run)
	c.deleteSession(session.ID)
	c.recordConfirmHistory(ctx, session, outcome)
	return outcome
}

// resolveSession loads and checks the referenced session. A missing
// session is an expired preview, never an invalid token: the token
// checked out, the state behind it is simply gone.
func (c *Coordinator) resolveSession(claims token.Claims, callerID uuid.UUID) (domain.PreviewSession, *ConfirmResponse) {
	encoded, ok, err := c.sessions.Get(sessionKey(claims.SessionID))
	if err != nil || !ok {
		return domain.PreviewSession{}, failResponse(ErrTypeSessionExpired, "preview session expired or not found")
	}

	var session domain.PreviewSession
	if err := json.Unmarshal(encoded, &session); err != nil {
		return domain.PreviewSession{}, failResponse(ErrTypeSessionExpired, "preview session unreadable")
	}
	if session.Expired(time.Now()) {
		c.deleteSession(session.ID)
		return domain.PreviewSession{}, failResponse(ErrTypeSessionExpired, "preview session expired or not found")
	}
	if session.OwnerID != callerID {
		// The rightful owner can still confirm; the session stays.
		return domain.PreviewSession{}, failResponse(ErrTypeNotOwner, "preview session belongs to a different caller")
	}
	return session, nil
}

// commitRows is the CONFIRMING→{COMMITTED|FAILED|ROLLED_BACK} leg: one
// storage transaction per batch, then a run-wide rollback evaluation.
func (c *Coordinator) commitRows(ctx context.Context, session domain.PreviewSession, run RunResult) *ConfirmResponse {
	resp := &ConfirmResponse{State: StateConfirming}

	if len(run.CommitRows) == 0 {
		resp.State = StateFailed
		resp.ErrorType = ErrTypeNoCommittableRows
		resp.Message = "no valid rows to commit"
		resp.FailureRate = c.engine.Evaluate(run.Report.TotalRows, run.Report.InvalidRows).FailureRate
		for _, failure := range run.IsolatedFailures {
			resp.AffectedRows = append(resp.AffectedRows, failure.RowNumber)
		}
		return resp
	}

	yearMonth := fmt.Sprintf("%04d-%02d", session.Year, session.Month)
	var batches []domain.BatchResult
	storageFailed := 0

	for start := 0; start < len(run.CommitRows); start += c.opts.BatchSize {
		end := start + c.opts.BatchSize
		if end > len(run.CommitRows) {
			end = len(run.CommitRows)
		}
		chunk := run.CommitRows[start:end]

		batch := domain.BatchResult{BatchID: uuid.New(), Attempted: len(chunk)}
		err := c.payroll.RunInTransaction(ctx, func(tx repository.PayrollTx) error {
			var records []domain.PayrollRecord
			for _, row := range chunk {
				exists, dupErr := tx.FindDuplicate(ctx, row.Text(domain.FieldEmployeeID), yearMonth)
				if dupErr != nil {
					return dupErr
				}
				if exists {
					batch.Failed++
					continue
				}
				record := domain.RecordFromRow(row, session.Year, session.Month)
				record.BatchID = batch.BatchID
				records = append(records, record)
			}
			if len(records) == 0 {
				return nil
			}
			if insertErr := tx.InsertMany(ctx, records); insertErr != nil {
				return insertErr
			}
			batch.Committed = len(records)
			return nil
		})
		if err != nil {
			// The transaction rolled itself back; nothing from this batch
			// is provisional.
			log.Printf("[CONFIRM] batch %s failed: %v", batch.BatchID, err)
			batch.Committed = 0
			batch.Failed = batch.Attempted
		}
		storageFailed += batch.Failed
		batches = append(batches, batch)
	}

	totalRows := run.Report.TotalRows
	failedRows := run.Report.InvalidRows + storageFailed
	eval := c.engine.Evaluate(totalRows, failedRows)
	resp.FailureRate = eval.FailureRate
	resp.Batches = batches
	for _, failure := range run.IsolatedFailures {
		resp.AffectedRows = append(resp.AffectedRows, failure.RowNumber)
	}

	committed := 0
	for _, batch := range batches {
		committed += batch.Committed
	}

	if !eval.ThresholdExceeded {
		resp.Success = true
		resp.State = StateCommitted
		resp.Committed = committed
		return resp
	}

	resp.RollbackTriggered = true
	plan := c.engine.PlanRollback(batches, c.opts.RollbackStrategy)
	result := c.engine.Execute(ctx, plan, func(ctx context.Context, batchID uuid.UUID) error {
		_, undoErr := c.payroll.DeleteBatch(ctx, batchID)
		return undoErr
	})
	resp.RollbackExecuted = true
	resp.State = StateRolledBack
	resp.ErrorType = ErrTypeCommitFailed
	resp.Message = fmt.Sprintf("failure rate %.1f%% exceeded threshold %.1f%%; rolled back %d records", eval.FailureRate, c.engine.Threshold(), result.RolledBack)
	resp.Committed = committed - result.RolledBack
	for idx := range resp.Batches {
		for _, step := range plan.Steps {
			if resp.Batches[idx].BatchID == step.BatchID {
				resp.Batches[idx].RolledBack = true
			}
		}
	}
	if result.Backup != nil {
		resp.BackupStrategy = result.Backup
	}
	return resp
}

// rollbackPreview computes the would-be rollback verdict with zero writes.
func (c *Coordinator) rollbackPreview(claims token.Claims, req ConfirmRequest) (*ConfirmResponse, error) {
	session, resp := c.resolveSession(claims, req.CallerID)
	if resp != nil {
		return resp, nil
	}

	run := Run(session.Rows, c.opts.CommitStrategy)
	eval := c.engine.Evaluate(run.Report.TotalRows, run.Report.InvalidRows)

	// Partition the commit rows the way a real confirm would, so the plan
	// sizes match what execution would produce.
	var batches []domain.BatchResult
	for start := 0; start < len(run.CommitRows); start += c.opts.BatchSize {
		end := start + c.opts.BatchSize
		if end > len(run.CommitRows) {
			end = len(run.CommitRows)
		}
		batches = append(batches, domain.BatchResult{
			BatchID:   uuid.New(),
			Attempted: end - start,
			Committed: end - start,
		})
	}

	preview := &RollbackPreviewResult{
		WouldTrigger: eval.ThresholdExceeded,
		FailureRate:  eval.FailureRate,
	}
	if eval.ThresholdExceeded {
		plan := c.engine.PlanRollback(batches, c.opts.RollbackStrategy)
		preview.AffectedRecords = plan.AffectedRecords
		preview.RollbackSteps = plan.Steps
		preview.EstimatedRecoveryTime = plan.EstimatedRecoveryTime
	}

	return &ConfirmResponse{
		Success:          true,
		State:            StatePreviewed,
		FailureRate:      eval.FailureRate,
		RollbackPreview:  preview,
		RollbackExecuted: false,
	}, nil
}

// awaitRecordedOutcome is the losing side of an idempotency race: it
// returns the winner's recorded outcome once the winner has stored it.
func (c *Coordinator) awaitRecordedOutcome(ctx context.Context, idemKey string) (*ConfirmResponse, error) {
	deadline := time.Now().Add(c.opts.PendingWait)
	for {
		encoded, ok, err := c.idempotency.Get(idemKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup failed: %w", err)
		}
		if ok && string(encoded) != idempotencyPendingMarker {
			var recorded ConfirmResponse
			if err := json.Unmarshal(encoded, &recorded); err != nil {
				return nil, fmt.Errorf("recorded confirm outcome unreadable: %w", err)
			}
			return &recorded, nil
		}
		if time.Now().After(deadline) {
			return failResponse(ErrTypeConfirmInProgress, "a confirm with this idempotency key is still in progress"), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.PendingPollPeriod):
		}
	}
}

func (c *Coordinator) deleteSession(id uuid.UUID) {
	if err := c.sessions.Delete(sessionKey(id)); err != nil {
		log.Printf("[CONFIRM] failed to delete preview session %s: %v", id, err)
	}
}

func (c *Coordinator) recordConfirmHistory(ctx context.Context, session domain.PreviewSession, outcome *ConfirmResponse) {
	if c.history == nil {
		return
	}
	message := fmt.Sprintf("confirm %s: committed=%d failureRate=%.1f%%", outcome.State, outcome.Committed, outcome.FailureRate)
	entry := domain.UploadHistoryEntry{
		OwnerID:   session.OwnerID,
		FileName:  session.FileName,
		YearMonth: fmt.Sprintf("%04d-%02d", session.Year, session.Month),
		Message:   message,
	}
	if err := c.history.Record(ctx, entry); err != nil {
		log.Printf("[HISTORY] failed to record confirm outcome: %v", err)
	}
}

func idempotencyKey(callerID uuid.UUID, key string) string {
	return "idem/" + callerID.String() + "/" + key
}

func failResponse(errType, message string) *ConfirmResponse {
	return &ConfirmResponse{
		Success:   false,
		State:     StateFailed,
		ErrorType: errType,
		Message:   message,
	}
}
