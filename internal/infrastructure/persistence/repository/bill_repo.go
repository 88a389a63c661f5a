package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shivam7053/patient-management-system/internal/application/port"
	"github.com/shivam7053/patient-management-system/internal/domain/entity"
	"github.com/shivam7053/patient-management-system/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// BillRepository implements port.BillRepository
type BillRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBillRepository creates a new bill repository
func NewBillRepository(db *sql.DB, logger *zap.Logger) port.BillRepository {
	return &BillRepository{
		db:     db,
		logger: logger,
	}
}

const billColumns = `
	b.id, b.patient_id, b.appointment_id, b.created_at, b.total_amount,
	b.status, b.currency, b.notes, COALESCE(p.name, '')
`

// Create inserts a bill. CreatedAt defaults to now when zero.
func (r *BillRepository) Create(ctx context.Context, bill *entity.Bill) error {
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now()
	}
	bill.CreatedAt = bill.CreatedAt.UTC().Truncate(time.Second)

	query := `
		INSERT INTO bills (
			patient_id, appointment_id, created_at, total_amount,
			status, currency, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		bill.PatientID,
		nullInt64(bill.AppointmentID),
		sqliteTime(bill.CreatedAt),
		bill.TotalAmount.String(),
		string(bill.Status),
		bill.Currency,
		nullString(bill.Notes),
	)
	if err != nil {
		r.logger.Error("Failed to create bill", zap.Int64("patient_id", bill.PatientID), zap.Error(err))
		return fmt.Errorf("failed to create bill: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	bill.ID = id
	return nil
}

// GetByID retrieves a bill by ID
func (r *BillRepository) GetByID(ctx context.Context, id int64) (*entity.Bill, error) {
	query := `SELECT ` + billColumns + `
		FROM bills b
		LEFT JOIN patients p ON p.id = b.patient_id
		WHERE b.id = ?
	`

	bill, err := scanBill(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get bill by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	return bill, nil
}

// List returns bills matching filter ordered by created_at desc, id desc
func (r *BillRepository) List(ctx context.Context, filter port.BillFilter) ([]*entity.Bill, error) {
	where, args := billWhere(filter)
	query := `SELECT ` + billColumns + `
		FROM bills b
		LEFT JOIN patients p ON p.id = b.patient_id` + where + `
		ORDER BY b.created_at DESC, b.id DESC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list bills", zap.Error(err))
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []*entity.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			r.logger.Error("Failed to scan bill", zap.Error(err))
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bills: %w", err)
	}

	return bills, nil
}

// Update writes the mutable fields of a bill
func (r *BillRepository) Update(ctx context.Context, bill *entity.Bill) error {
	query := `
		UPDATE bills
		SET status = ?, notes = ?, total_amount = ?
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(bill.Status),
		nullString(bill.Notes),
		bill.TotalAmount.String(),
		bill.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update bill", zap.Int64("id", bill.ID), zap.Error(err))
		return fmt.Errorf("failed to update bill: %w", err)
	}

	return nil
}

// UpdateStatus sets the status of a bill
func (r *BillRepository) UpdateStatus(ctx context.Context, id int64, status entity.BillStatus) error {
	query := `UPDATE bills SET status = ? WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, string(status), id)
	if err != nil {
		r.logger.Error("Failed to update bill status",
			zap.Int64("id", id),
			zap.String("status", status.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update bill status: %w", err)
	}

	return nil
}

// getExecutor returns appropriate executor based on context
func (r *BillRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBill(row rowScanner) (*entity.Bill, error) {
	var bill entity.Bill
	var appointmentID sql.NullInt64
	var notes sql.NullString
	var status string

	err := row.Scan(
		&bill.ID,
		&bill.PatientID,
		&appointmentID,
		&bill.CreatedAt,
		&bill.TotalAmount,
		&status,
		&bill.Currency,
		&notes,
		&bill.PatientName,
	)
	if err != nil {
		return nil, err
	}

	bill.AppointmentID = int64Ptr(appointmentID)
	bill.Notes = stringPtr(notes)
	bill.Status = entity.BillStatus(status)
	return &bill, nil
}

func billWhere(filter port.BillFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.PatientID != nil {
		conds = append(conds, "b.patient_id = ?")
		args = append(args, *filter.PatientID)
	}
	if filter.CreatedFrom != nil {
		conds = append(conds, "b.created_at >= ?")
		args = append(args, sqliteTime(*filter.CreatedFrom))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}
