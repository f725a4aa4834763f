package domain

import (
	"time"

	"github.com/google/uuid"
)

// UploadHistoryEntry captures row level issues and run outcomes for payroll uploads.
type UploadHistoryEntry struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	FileName  string    `json:"file_name"`
	YearMonth string    `json:"year_month"`
	RowNumber *int      `json:"row_number,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
