package port

import (
	"context"
	"time"

	"github.com/shivam7053/patient-management-system/internal/domain/entity"
)

// BillFilter narrows bill and payment listings. Nil fields do not filter.
type BillFilter struct {
	PatientID   *int64
	CreatedFrom *time.Time
}

// BillRepository defines persistence operations for Bill.
// GetByID returns (nil, nil) when the bill does not exist.
type BillRepository interface {
	Create(ctx context.Context, bill *entity.Bill) error
	GetByID(ctx context.Context, id int64) (*entity.Bill, error)

	// List returns bills with PatientName populated, newest first
	List(ctx context.Context, filter BillFilter) ([]*entity.Bill, error)

	// Update writes status, notes and total_amount
	Update(ctx context.Context, bill *entity.Bill) error
	UpdateStatus(ctx context.Context, id int64, status entity.BillStatus) error
}

// BillItemRepository defines persistence operations for BillItem
type BillItemRepository interface {
	Create(ctx context.Context, item *entity.BillItem) error
	GetByBillID(ctx context.Context, billID int64) ([]*entity.BillItem, error)
	DeleteByBillID(ctx context.Context, billID int64) error
}

// PaymentRepository defines persistence operations for Payment.
// There is no update or delete: payments are append-only.
type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	GetByBillID(ctx context.Context, billID int64) ([]*entity.Payment, error)

	// List returns payments of bills matching filter, oldest first
	List(ctx context.Context, filter BillFilter) ([]*entity.Payment, error)

	// ListRecentDays returns every payment made on the most recent `days`
	// calendar dates that have at least one payment, oldest first
	ListRecentDays(ctx context.Context, days int) ([]*entity.Payment, error)
}

// PatientDirectory resolves patient and appointment references owned by
// the wider hospital system. GetPatient returns (nil, nil) when missing.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id int64) (*entity.Patient, error)
	AppointmentExists(ctx context.Context, id int64) (bool, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
