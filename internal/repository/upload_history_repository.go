package repository

import (
	"context"
	"fmt"

	"github.com/nukk-pain/smpain-hr/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type uploadHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewUploadHistoryRepository wires a repository backed by pgxpool.
func NewUploadHistoryRepository(pool *pgxpool.Pool) UploadHistoryRepository {
	return &uploadHistoryRepository{pool: pool}
}

func (r *uploadHistoryRepository) Record(ctx context.Context, entry domain.UploadHistoryEntry) error {
	if r.pool == nil {
		return fmt.Errorf("upload history repository not initialized")
	}

	var rowNumber any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO upload_history (owner_id, file_name, year_month, row_number, message)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.OwnerID,
		entry.FileName,
		entry.YearMonth,
		rowNumber,
		entry.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to record upload history: %w", err)
	}

	return nil
}

func (r *uploadHistoryRepository) List(ctx context.Context, ownerID uuid.UUID, yearMonth string, limit, offset int) ([]domain.UploadHistoryEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("upload history repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, owner_id, file_name, year_month, row_number, message, created_at
		 FROM upload_history
		 WHERE owner_id = $1
		   AND year_month = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		ownerID,
		yearMonth,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload history: %w", err)
	}
	defer rows.Close()

	entries := []domain.UploadHistoryEntry{}
	for rows.Next() {
		var (
			entry     domain.UploadHistoryEntry
			rowNumber pgtype.Int4
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.OwnerID,
			&entry.FileName,
			&entry.YearMonth,
			&rowNumber,
			&entry.Message,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan upload history entry: %w", scanErr)
		}

		if rowNumber.Valid {
			value := int(rowNumber.Int32)
			entry.RowNumber = &value
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}

		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate upload history: %w", rowsErr)
	}

	return entries, nil
}
