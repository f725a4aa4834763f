package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nukk-pain/smpain-hr/internal/db"
	"github.com/nukk-pain/smpain-hr/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type payrollRepository struct {
	conn *db.Connection
}

// NewPayrollRepository wires a repository backed by the shared connection.
func NewPayrollRepository(conn *db.Connection) PayrollRepository {
	return &payrollRepository{conn: conn}
}

type payrollTx struct {
	tx pgx.Tx
}

func (r *payrollRepository) RunInTransaction(ctx context.Context, fn func(tx PayrollTx) error) error {
	if r.conn == nil {
		return fmt.Errorf("payroll repository not initialized")
	}
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&payrollTx{tx: tx})
	})
}

func (t *payrollTx) InsertMany(ctx context.Context, records []domain.PayrollRecord) error {
	for _, record := range records {
		allowances, err := json.Marshal(record.Allowances)
		if err != nil {
			return fmt.Errorf("failed to encode allowances: %w", err)
		}
		deductions, err := json.Marshal(record.Deductions)
		if err != nil {
			return fmt.Errorf("failed to encode deductions: %w", err)
		}

		_, err = t.tx.Exec(
			ctx,
			`INSERT INTO payroll_records
			   (id, employee_id, name, department, year_month, base_salary,
			    allowances, deductions, total_allowances, total_deductions,
			    net_salary, batch_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			record.ID,
			record.EmployeeID,
			record.Name,
			record.Department,
			record.YearMonth(),
			record.BaseSalary,
			allowances,
			deductions,
			record.TotalAllowances,
			record.TotalDeductions,
			record.NetSalary,
			record.BatchID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payroll record for %s: %w", record.EmployeeID, err)
		}
	}
	return nil
}

func (t *payrollTx) FindDuplicate(ctx context.Context, employeeID, yearMonth string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM payroll_records WHERE employee_id = $1 AND year_month = $2
		 )`,
		employeeID,
		yearMonth,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate payroll record: %w", err)
	}
	return exists, nil
}

func (r *payrollRepository) DeleteBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	if r.conn == nil {
		return 0, fmt.Errorf("payroll repository not initialized")
	}
	tag, err := r.conn.Pool.Exec(ctx, `DELETE FROM payroll_records WHERE batch_id = $1`, batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete batch %s: %w", batchID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *payrollRepository) ListByMonth(ctx context.Context, year, month int) ([]domain.PayrollRecord, error) {
	if r.conn == nil {
		return nil, fmt.Errorf("payroll repository not initialized")
	}

	yearMonth := fmt.Sprintf("%04d-%02d", year, month)
	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT id, employee_id, name, department, base_salary,
		        allowances, deductions, total_allowances, total_deductions,
		        net_salary, batch_id, created_at
		 FROM payroll_records
		 WHERE year_month = $1
		 ORDER BY employee_id`,
		yearMonth,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll records: %w", err)
	}
	defer rows.Close()

	records := []domain.PayrollRecord{}
	for rows.Next() {
		var (
			record     domain.PayrollRecord
			allowances []byte
			deductions []byte
			createdAt  pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&record.ID,
			&record.EmployeeID,
			&record.Name,
			&record.Department,
			&record.BaseSalary,
			&allowances,
			&deductions,
			&record.TotalAllowances,
			&record.TotalDeductions,
			&record.NetSalary,
			&record.BatchID,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan payroll record: %w", scanErr)
		}

		if err := json.Unmarshal(allowances, &record.Allowances); err != nil {
			return nil, fmt.Errorf("failed to decode allowances: %w", err)
		}
		if err := json.Unmarshal(deductions, &record.Deductions); err != nil {
			return nil, fmt.Errorf("failed to decode deductions: %w", err)
		}
		record.Year = year
		record.Month = month
		if createdAt.Valid {
			record.CreatedAt = createdAt.Time
		}

		records = append(records, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate payroll records: %w", rowsErr)
	}

	return records, nil
}
