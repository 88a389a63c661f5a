package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shivam7053/patient-management-system/internal/application/port"
	"github.com/shivam7053/patient-management-system/internal/domain/entity"
	"github.com/shivam7053/patient-management-system/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PaymentRepository implements port.PaymentRepository
type PaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) port.PaymentRepository {
	return &PaymentRepository{
		db:     db,
		logger: logger,
	}
}

const paymentColumns = `pay.id, pay.bill_id, pay.amount, pay.method, pay.paid_at, pay.reference`

// Create appends a payment. PaidAt defaults to now when zero.
func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now()
	}
	payment.PaidAt = payment.PaidAt.UTC().Truncate(time.Second)

	query := `
		INSERT INTO payments (bill_id, amount, method, paid_at, reference)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		payment.BillID,
		payment.Amount.String(),
		payment.Method,
		sqliteTime(payment.PaidAt),
		nullString(payment.Reference),
	)
	if err != nil {
		r.logger.Error("Failed to create payment", zap.Int64("bill_id", payment.BillID), zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	payment.ID = id
	return nil
}

// GetByBillID retrieves all payments of a bill, oldest first
func (r *PaymentRepository) GetByBillID(ctx context.Context, billID int64) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments pay
		WHERE pay.bill_id = ?
		ORDER BY pay.paid_at ASC, pay.id ASC
	`
	return r.query(ctx, "get payments by bill ID", query, billID)
}

// List retrieves payments of bills matching filter, oldest first
func (r *PaymentRepository) List(ctx context.Context, filter port.BillFilter) ([]*entity.Payment, error) {
	where, args := billWhere(filter)
	query := `SELECT ` + paymentColumns + `
		FROM payments pay
		JOIN bills b ON b.id = pay.bill_id` + where + `
		ORDER BY pay.paid_at ASC, pay.id ASC
	`
	return r.query(ctx, "list payments", query, args...)
}

// ListRecentDays retrieves the payments of the most recent `days` dates
// on which at least one payment was made
func (r *PaymentRepository) ListRecentDays(ctx context.Context, days int) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments pay
		WHERE date(pay.paid_at) IN (
			SELECT DISTINCT date(paid_at) AS day
			FROM payments
			ORDER BY day DESC
			LIMIT ?
		)
		ORDER BY pay.paid_at ASC, pay.id ASC
	`
	return r.query(ctx, "list payments for recent days", query, days)
}

func (r *PaymentRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*entity.Payment, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var payments []*entity.Payment
	for rows.Next() {
		var p entity.Payment
		var reference sql.NullString

		if err := rows.Scan(
			&p.ID,
			&p.BillID,
			&p.Amount,
			&p.Method,
			&p.PaidAt,
			&reference,
		); err != nil {
			r.logger.Error("Failed to scan payment", zap.Error(err))
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}

		p.Reference = stringPtr(reference)
		payments = append(payments, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return payments, nil
}

// getExecutor returns appropriate executor based on context
func (r *PaymentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}
