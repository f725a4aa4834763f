package repository

import (
	"context"

	"github.com/nukk-pain/smpain-hr/internal/domain"

	"github.com/google/uuid"
)

// PayrollTx is the slice of the storage contract available inside one
// batch transaction.
type PayrollTx interface {
	InsertMany(ctx context.Context, records []domain.PayrollRecord) error
	FindDuplicate(ctx context.Context, employeeID, yearMonth string) (bool, error)
}

// PayrollRepository defines the interface for payroll record operations.
// Confirm writes run through RunInTransaction so each batch commits or
// rolls back as a unit; DeleteBatch is the rollback engine's undo.
type PayrollRepository interface {
	RunInTransaction(ctx context.Context, fn func(tx PayrollTx) error) error
	DeleteBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
	ListByMonth(ctx context.Context, year, month int) ([]domain.PayrollRecord, error)
}

// UploadHistoryRepository defines the interface for upload audit entries.
type UploadHistoryRepository interface {
	Record(ctx context.Context, entry domain.UploadHistoryEntry) error
	List(ctx context.Context, ownerID uuid.UUID, yearMonth string, limit, offset int) ([]domain.UploadHistoryEntry, error)
}
