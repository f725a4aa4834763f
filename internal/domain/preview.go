package domain

import (
	"time"

	"github.com/google/uuid"
)

// PreviewSession holds the server-side state issued by a Preview call and
// consumed by the matching Confirm. Sessions are immutable once stored;
// deletion is the only mutation, and deleting an absent session is a no-op.
type PreviewSession struct {
	ID              uuid.UUID        `json:"id"`
	OwnerID         uuid.UUID        `json:"owner_id"`
	FileName        string           `json:"file_name"`
	Year            int              `json:"year"`
	Month           int              `json:"month"`
	Rows            []DecodedRow     `json:"rows"`
	Report          ProcessingReport `json:"report"`
	IntegrityDigest string           `json:"integrity_digest"`
	CreatedAt       time.Time        `json:"created_at"`
	ExpiresAt       time.Time        `json:"expires_at"`
}

// NewPreviewSession creates a session owned by the issuing caller.
func NewPreviewSession(ownerID uuid.UUID, fileName string, year, month int, rows []DecodedRow, report ProcessingReport, digest string, ttl time.Duration) PreviewSession {
	now := time.Now()
	return PreviewSession{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		FileName:        fileName,
		Year:            year,
		Month:           month,
		Rows:            rows,
		Report:          report,
		IntegrityDigest: digest,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
}

// Expired reports whether the session has passed its expiry.
func (s PreviewSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
