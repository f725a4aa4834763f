package domain

import "github.com/google/uuid"

// BatchResult tracks the outcome of one storage-layer transaction during a
// Confirm run. Batches exist only for the duration of the run's rollback
// decision and are not persisted.
type BatchResult struct {
	BatchID    uuid.UUID `json:"batch_id"`
	Attempted  int       `json:"records_attempted"`
	Committed  int       `json:"records_committed"`
	Failed     int       `json:"records_failed"`
	RolledBack bool      `json:"rollback_applied"`
}

// FailureRate returns the batch-local failure percentage.
func (b BatchResult) FailureRate() float64 {
	if b.Attempted == 0 {
		return 0
	}
	return float64(b.Failed) / float64(b.Attempted) * 100
}
