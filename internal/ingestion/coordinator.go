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
	"github.com/nukk-pain/smpain-hr/internal/kvstore"
	"github.com/nukk-pain/smpain-hr/internal/repository"
	"github.com/nukk-pain/smpain-hr/internal/rollback"
	"github.com/nukk-pain/smpain-hr/internal/token"

	"github.com/google/uuid"
)

// State names a position in the two-phase ingestion lifecycle.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateParsing    State = "PARSING"
	StateValidated  State = "VALIDATED"
	StatePreviewed  State = "PREVIEWED"
	StateConfirming State = "CONFIRMING"
	StateCommitted  State = "COMMITTED"
	StateFailed     State = "FAILED"
	StateRolledBack State = "ROLLED_BACK"
)

// Error type strings surfaced at the HTTP boundary. Data-validation
// conditions always name their type; a bare internal error is never the
// answer to a bad spreadsheet.
const (
	ErrTypeMissingColumns    = "MISSING_COLUMNS"
	ErrTypeUnsupportedFile   = "UNSUPPORTED_FILE"
	ErrTypeEmptyFile         = "EMPTY_FILE"
	ErrTypeTokenInvalid      = "TOKEN_INVALID"
	ErrTypeTokenExpired      = "TOKEN_EXPIRED"
	ErrTypeSessionExpired    = "PREVIEW_EXPIRED"
	ErrTypeNotOwner          = "NOT_OWNER"
	ErrTypeIntegrityMismatch = "INTEGRITY_MISMATCH"
	ErrTypeConfirmInProgress = "CONFIRM_IN_PROGRESS"
	ErrTypeCommitFailed      = "COMMIT_FAILED"
	ErrTypeNoCommittableRows = "NO_COMMITTABLE_ROWS"
	integrityAlgorithm       = "SHA-256"
	idempotencyPendingMarker = "__pending__"
)

// CoordinatorOptions configure the two-phase flow.
type CoordinatorOptions struct {
	SessionTTL       time.Duration
	CacheTTL         time.Duration
	IdempotencyTTL   time.Duration
	BatchSize        int
	CommitStrategy   Strategy
	RollbackStrategy rollback.Strategy
	TemplateLink     string
	// PendingWait bounds how long a losing Confirm waits for the winner's
	// recorded outcome before giving up.
	PendingWait       time.Duration
	PendingPollPeriod time.Duration
}

// DefaultCoordinatorOptions mirror the original system's timings.
func DefaultCoordinatorOptions() CoordinatorOptions {
	return CoordinatorOptions{
		SessionTTL:        30 * time.Minute,
		CacheTTL:          10 * time.Minute,
		IdempotencyTTL:    24 * time.Hour,
		BatchSize:         100,
		CommitStrategy:    SkipInvalid,
		RollbackStrategy:  rollback.Full,
		TemplateLink:      "/templates/payroll-upload.xlsx",
		PendingWait:       5 * time.Second,
		PendingPollPeriod: 100 * time.Millisecond,
	}
}

// Coordinator drives the Preview/Confirm protocol. All mutable shared
// state (cache, session store, idempotency store) is injected so tests
// can substitute deterministic fakes.
type Coordinator struct {
	reader      *Reader
	parseCache  *cache.Cache
	sessions    kvstore.Store
	idempotency kvstore.Store
	issuer      *token.Issuer
	payroll     repository.PayrollRepository
	history     repository.UploadHistoryRepository
	engine      *rollback.Engine
	opts        CoordinatorOptions
}

// NewCoordinator wires the two-phase flow.
func NewCoordinator(
	reader *Reader,
	parseCache *cache.Cache,
	sessions kvstore.Store,
	idempotency kvstore.Store,
	issuer *token.Issuer,
	payroll repository.PayrollRepository,
	history repository.UploadHistoryRepository,
	engine *rollback.Engine,
	opts CoordinatorOptions,
) *Coordinator {
	defaults := DefaultCoordinatorOptions()
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaults.SessionTTL
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaults.CacheTTL
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaults.IdempotencyTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.PendingWait <= 0 {
		opts.PendingWait = defaults.PendingWait
	}
	if opts.PendingPollPeriod <= 0 {
		opts.PendingPollPeriod = defaults.PendingPollPeriod
	}
	if opts.TemplateLink == "" {
		opts.TemplateLink = defaults.TemplateLink
	}
	return &Coordinator{
		reader:      reader,
		parseCache:  parseCache,
		sessions:    sessions,
		idempotency: idempotency,
		issuer:      issuer,
		payroll:     payroll,
		history:     history,
		engine:      engine,
		opts:        opts,
	}
}

// PreviewRequest describes one uploaded workbook.
type PreviewRequest struct {
	CallerID             uuid.UUID
	FileName             string
	Year                 int
	Month                int
	Payload              []byte
	IncludeRecoveryGuide bool
}

// IntegritySummary reports the content digest captured at Preview time.
type IntegritySummary struct {
	Algorithm    string    `json:"algorithm"`
	HashPrefix   string    `json:"hashPrefix"`
	CalculatedAt time.Time `json:"calculatedAt"`
	Verified     bool      `json:"verified"`
}

// PreviewSummary is the caller-facing digest of the pass.
type PreviewSummary struct {
	TotalRows   int              `json:"totalRows"`
	ValidRows   int              `json:"validRows"`
	InvalidRows int              `json:"invalidRows"`
	Integrity   IntegritySummary `json:"integrity"`
}

// ErrorDetails names what went wrong with a data upload.
type ErrorDetails struct {
	Type           string   `json:"type"`
	Message        string   `json:"message"`
	AffectedRows   int      `json:"affectedRows"`
	MissingColumns []string `json:"missingColumns,omitempty"`
}

// PreviewResponse is the Preview phase outcome.
type PreviewResponse struct {
	Success          bool                     `json:"success"`
	State            State                    `json:"state"`
	PreviewToken     string                   `json:"previewToken,omitempty"`
	FromCache        bool                     `json:"fromCache"`
	Summary          *PreviewSummary          `json:"summary,omitempty"`
	Report           *domain.ProcessingReport `json:"report,omitempty"`
	IsolatedFailures []IsolatedFailure        `json:"isolatedFailures,omitempty"`
	ErrorDetails     *ErrorDetails            `json:"errorDetails,omitempty"`
	RecoveryGuide    *RecoveryGuide           `json:"recoveryGuide,omitempty"`
	MemoryDegraded   bool                     `json:"memoryDegraded,omitempty"`
}

// Preview parses, validates and classifies an upload, stores the preview
// session server-side, and hands the caller an opaque capability token.
// This is the only place payroll state crosses the trust boundary; from
// here on the client holds a reference, never the data.
func (c *Coordinator) Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	if req.CallerID == uuid.Nil {
		return nil, errors.New("caller id is required")
	}
	if req.Year < 2000 || req.Month < 1 || req.Month > 12 {
		return nil, fmt.Errorf("invalid pay period %d-%d", req.Year, req.Month)
	}
	if len(req.Payload) == 0 {
		return &PreviewResponse{
			Success:      false,
			State:        StateFailed,
			ErrorDetails: &ErrorDetails{Type: ErrTypeEmptyFile, Message: "uploaded file is empty"},
		}, nil
	}

	parsed, fromCache := c.lookupCache(req.Payload)
	if !fromCache {
		var failResp *PreviewResponse
		var err error
		parsed, failResp, err = c.parseAndValidate(ctx, req)
		if err != nil {
			return nil, err
		}
		if failResp != nil {
			return failResp, nil
		}
		c.parseCache.Put(req.Payload, parsed, c.opts.CacheTTL)
	}

	session := domain.NewPreviewSession(
		req.CallerID, req.FileName, req.Year, req.Month,
		parsed.Rows, parsed.Report, parsed.Digest, c.opts.SessionTTL,
	)
	if err := c.storeSession(session); err != nil {
		return nil, err
	}

	signed, err := c.issuer.Issue(session)
	if err != nil {
		return nil, err
	}

	report := parsed.Report
	resp := &PreviewResponse{
		Success:      true,
		State:        StatePreviewed,
		PreviewToken: signed,
		FromCache:    fromCache,
		Summary: &PreviewSummary{
			TotalRows:   report.TotalRows,
			ValidRows:   report.ValidRows,
			InvalidRows: report.InvalidRows,
			Integrity: IntegritySummary{
				Algorithm:    integrityAlgorithm,
				HashPrefix:   hashPrefix(parsed.Digest),
				CalculatedAt: parsed.CalculatedAt,
				Verified:     true,
			},
		},
		Report:         &report,
		MemoryDegraded: parsed.Stats.MemoryDegraded,
	}
	for _, row := range parsed.Rows {
		if !row.Valid {
			resp.IsolatedFailures = append(resp.IsolatedFailures, IsolatedFailure{
				RowNumber: row.RowNumber,
				Errors:    row.Errors,
			})
		}
	}
	if req.IncludeRecoveryGuide && report.InvalidRows > 0 {
		guide := BuildRecoveryGuide(Classify(parsed.Rows), c.opts.TemplateLink)
		resp.RecoveryGuide = &guide
	}
	return resp, nil
}

func (c *Coordinator) lookupCache(payload []byte) (*cache.ParsedResult, bool) {
	if c.parseCache == nil {
		return nil, false
	}
	return c.parseCache.Get(payload)
}

// parseAndValidate is the RECEIVED→PARSING→VALIDATED leg. A structural
// failure still produces a report; it is just an empty one.
func (c *Coordinator) parseAndValidate(ctx context.Context, req PreviewRequest) (*cache.ParsedResult, *PreviewResponse, error) {
	rows, stats, err := c.reader.Read(ctx, req.FileName, req.Payload, nil)
	if err != nil {
		var missing *MissingColumnsError
		switch {
		case errors.As(err, &missing):
			c.recordHistory(ctx, req, nil, missing.Error())
			resp := &PreviewResponse{
				Success: false,
				State:   StateFailed,
				Report:  &domain.ProcessingReport{ErrorsByType: map[domain.ErrorType]int{domain.ErrorTypeMissingColumns: 1}, ErrorsByField: map[string]int{}, AffectedRowNumbers: []int{}},
				ErrorDetails: &ErrorDetails{
					Type:           ErrTypeMissingColumns,
					Message:        missing.Error(),
					AffectedRows:   0,
					MissingColumns: missing.Missing,
				},
			}
			if req.IncludeRecoveryGuide {
				guide := structuralRecoveryGuide(missing, c.opts.TemplateLink)
				resp.RecoveryGuide = &guide
			}
			return nil, resp, nil
		case errors.Is(err, ErrUnsupportedFormat):
			return nil, &PreviewResponse{
				Success:      false,
				State:        StateFailed,
				ErrorDetails: &ErrorDetails{Type: ErrTypeUnsupportedFile, Message: err.Error()},
			}, nil
		case errors.Is(err, ErrEmptyFile):
			return nil, &PreviewResponse{
				Success:      false,
				State:        StateFailed,
				ErrorDetails: &ErrorDetails{Type: ErrTypeEmptyFile, Message: err.Error()},
			}, nil
		default:
			return nil, nil, err
		}
	}

	run := Run(rows, Continue)
	for _, failure := range run.IsolatedFailures {
		rowNumber := failure.RowNumber
		c.recordHistory(ctx, req, &rowNumber, summarizeErrors(failure.Errors))
	}

	return &cache.ParsedResult{
		Rows:         run.Rows,
		Report:       run.Report,
		Stats:        stats,
		Digest:       cache.Key(req.Payload),
		CalculatedAt: time.Now().UTC(),
	}, nil, nil
}

func structuralRecoveryGuide(missing *MissingColumnsError, templateLink string) RecoveryGuide {
	return RecoveryGuide{
		ErrorType: domain.ErrorTypeMissingColumns,
		Steps: []RecommendationStep{{
			StepNumber:       1,
			Action:           "restore_columns",
			Description:      "add the missing required columns to the sheet header",
			Details:          fmt.Sprintf("missing: %v", missing.Missing),
			Priority:         PriorityCritical,
			AffectedRows:     []int{0},
			EstimatedFixTime: "10m",
		}},
		EstimatedTime:        "10m",
		TemplateDownloadLink: templateLink,
	}
}

func hashPrefix(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func summarizeErrors(errs []domain.ValidationError) string {
	if len(errs) == 0 {
		return ""
	}
	msg := string(errs[0].Type) + ": " + errs[0].Message
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s (+%d more)", msg, len(errs)-1)
	}
	return msg
}

func (c *Coordinator) storeSession(session domain.PreviewSession) error {
	encoded, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode preview session: %w", err)
	}
	if err := c.sessions.Set(sessionKey(session.ID), encoded, c.opts.SessionTTL); err != nil {
		return fmt.Errorf("failed to store preview session: %w", err)
	}
	return nil
}

func sessionKey(id uuid.UUID) string {
	return "session/" + id.String()
}

// Records lists the committed payroll records for a pay period.
func (c *Coordinator) Records(ctx context.Context, year, month int) ([]domain.PayrollRecord, error) {
	return c.payroll.ListByMonth(ctx, year, month)
}

// History lists the recorded upload outcomes for one caller and period.
func (c *Coordinator) History(ctx context.Context, callerID uuid.UUID, year, month, limit, offset int) ([]domain.UploadHistoryEntry, error) {
	if c.history == nil {
		return nil, nil
	}
	yearMonth := fmt.Sprintf("%04d-%02d", year, month)
	return c.history.List(ctx, callerID, yearMonth, limit, offset)
}

// Sweep purges expired sessions, idempotency records and cache entries.
// Run it periodically; expiry is also enforced lazily on access, so a
// missed sweep costs memory, not correctness.
func (c *Coordinator) Sweep() {
	swept := c.sessions.Sweep()
	swept += c.idempotency.Sweep()
	evicted := 0
	if c.parseCache != nil {
		evicted = c.parseCache.Sweep()
	}
	if swept > 0 || evicted > 0 {
		log.Printf("[SWEEP] purged %d store entries, %d cache entries", swept, evicted)
	}
}

func (c *Coordinator) recordHistory(ctx context.Context, req PreviewRequest, rowNumber *int, message string) {
	if c.history == nil || message == "" {
		return
	}
	entry := domain.UploadHistoryEntry{
		OwnerID:   req.CallerID,
		FileName:  req.FileName,
		YearMonth: fmt.Sprintf("%04d-%02d", req.Year, req.Month),
		RowNumber: rowNumber,
		Message:   message,
	}
	if err := c.history.Record(ctx, entry); err != nil {
		log.Printf("[HISTORY] failed to record upload history: %v", err)
	}
}
