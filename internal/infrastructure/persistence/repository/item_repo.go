package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shivam7053/patient-management-system/internal/application/port"
	"github.com/shivam7053/patient-management-system/internal/domain/entity"
	"github.com/shivam7053/patient-management-system/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// BillItemRepository implements port.BillItemRepository
type BillItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBillItemRepository creates a new bill item repository
func NewBillItemRepository(db *sql.DB, logger *zap.Logger) port.BillItemRepository {
	return &BillItemRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new bill item
func (r *BillItemRepository) Create(ctx context.Context, item *entity.BillItem) error {
	query := `
		INSERT INTO bill_items (bill_id, description, quantity, unit_price)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		item.BillID,
		item.Description,
		item.Quantity,
		item.UnitPrice.String(),
	)
	if err != nil {
		r.logger.Error("Failed to create bill item", zap.Int64("bill_id", item.BillID), zap.Error(err))
		return fmt.Errorf("failed to create bill item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	item.ID = id
	return nil
}

// GetByBillID retrieves all items of a bill in insertion order
func (r *BillItemRepository) GetByBillID(ctx context.Context, billID int64) ([]*entity.BillItem, error) {
	query := `
		SELECT id, bill_id, description, quantity, unit_price
		FROM bill_items
		WHERE bill_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, billID)
	if err != nil {
		r.logger.Error("Failed to get items by bill ID", zap.Int64("bill_id", billID), zap.Error(err))
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	var items []*entity.BillItem
	for rows.Next() {
		var item entity.BillItem
		if err := rows.Scan(
			&item.ID,
			&item.BillID,
			&item.Description,
			&item.Quantity,
			&item.UnitPrice,
		); err != nil {
			r.logger.Error("Failed to scan bill item", zap.Error(err))
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

// DeleteByBillID removes every item of a bill
func (r *BillItemRepository) DeleteByBillID(ctx context.Context, billID int64) error {
	_, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM bill_items WHERE bill_id = ?`, billID)
	if err != nil {
		r.logger.Error("Failed to delete bill items", zap.Int64("bill_id", billID), zap.Error(err))
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *BillItemRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}
