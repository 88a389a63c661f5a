package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shivam7053/patient-management-system/internal/application/port"
	"github.com/shivam7053/patient-management-system/internal/domain/billing"
	"github.com/shivam7053/patient-management-system/internal/domain/entity"
	"github.com/shivam7053/patient-management-system/pkg/utils"
	"github.com/shopspring/decimal"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ItemInput is one requested bill line before defaults are applied
type ItemInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateBillRequest is the typed body of a bill creation
type CreateBillRequest struct {
	PatientID     int64       `json:"patient_id"`
	AppointmentID *int64      `json:"appointment_id"`
	Items         []ItemInput `json:"items"`
	Currency      string      `json:"currency"`
	Notes         *string     `json:"notes"`
}

// RecordPaymentRequest is the typed body of a payment
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference *string         `json:"reference"`
}

// OptionalString distinguishes an absent JSON key from one set to null.
// Set is true whenever the key was present.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// UpdateBillRequest is the typed body of a bill update. A nil Items means
// the items are left alone; a non-nil empty slice clears them.
type UpdateBillRequest struct {
	Status *string        `json:"status"`
	Notes  OptionalString `json:"notes"`
	Items  *[]ItemInput   `json:"items"`
}

// BillSummary is a bill with its paid aggregate
type BillSummary struct {
	Bill       *entity.Bill
	PaidAmount decimal.Decimal
}

// BillDetail is a bill with its items, payments and derived amounts
type BillDetail struct {
	Bill       *entity.Bill
	Items      []*entity.BillItem
	Payments   []*entity.Payment
	PaidAmount decimal.Decimal
	DueAmount  decimal.Decimal
}

// PaymentResult is the outcome of recording a payment
type PaymentResult struct {
	Payment    *entity.Payment
	BillStatus entity.BillStatus
}

// BillingService composes bills, accrues payments and serves bill reads
type BillingService interface {
	CreateBill(ctx context.Context, req CreateBillRequest) (*entity.Bill, error)
	RecordPayment(ctx context.Context, billID int64, req RecordPaymentRequest) (*PaymentResult, error)
	UpdateBill(ctx context.Context, billID int64, req UpdateBillRequest) (*entity.Bill, error)
	GetBill(ctx context.Context, billID int64) (*BillDetail, error)
	ListBillsForPatient(ctx context.Context, patientID int64) ([]*BillSummary, error)
}

type billingServiceImpl struct {
	billRepo        port.BillRepository
	itemRepo        port.BillItemRepository
	paymentRepo     port.PaymentRepository
	patients        port.PatientDirectory
	txManager       port.TransactionManager
	defaultCurrency string
	billLocks       *keyedMutex
	logger          Logger
}

// NewBillingService creates a new BillingService. An empty defaultCurrency
// falls back to INR.
func NewBillingService(
	billRepo port.BillRepository,
	itemRepo port.BillItemRepository,
	paymentRepo port.PaymentRepository,
	patients port.PatientDirectory,
	txManager port.TransactionManager,
	defaultCurrency string,
	logger Logger,
) BillingService {
	if defaultCurrency == "" {
		defaultCurrency = entity.DefaultCurrency
	}
	return &billingServiceImpl{
		billRepo:        billRepo,
		itemRepo:        itemRepo,
		paymentRepo:     paymentRepo,
		patients:        patients,
		txManager:       txManager,
		defaultCurrency: defaultCurrency,
		billLocks:       newKeyedMutex(),
		logger:          logger,
	}
}

// CreateBill validates references, applies item defaults and persists the
// bill with its items in one transaction
func (s *billingServiceImpl) CreateBill(ctx context.Context, req CreateBillRequest) (*entity.Bill, error) {
	if req.PatientID == 0 {
		return nil, billing.Validation("patient_id required")
	}

	patient, err := s.patients.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("lookup patient: %w", err)
	}
	if patient == nil {
		return nil, billing.NotFound("patient not found")
	}

	if req.AppointmentID != nil && *req.AppointmentID != 0 {
		exists, err := s.patients.AppointmentExists(ctx, *req.AppointmentID)
		if err != nil {
			return nil, fmt.Errorf("lookup appointment: %w", err)
		}
		if !exists {
			return nil, billing.NotFound("appointment not found")
		}
	} else {
		req.AppointmentID = nil
	}

	if len(req.Items) == 0 {
		return nil, billing.Validation("At least one bill item required")
	}

	items, err := normalizeItems(req.Items)
	if err != nil {
		return nil, err
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	bill := &entity.Bill{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		TotalAmount:   billing.ComputeTotal(items),
		Status:        entity.StatusPending,
		Currency:      currency,
		Notes:         req.Notes,
		PatientName:   patient.Name,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.billRepo.Create(txCtx, bill); err != nil {
			return fmt.Errorf("create bill: %w", err)
		}
		return s.insertItems(txCtx, bill.ID, items)
	})
	if err != nil {
		s.logger.Error("Failed to create bill", "error", err, "patient_id", req.PatientID)
		return nil, err
	}

	s.logger.Info("Bill created",
		"bill_id", bill.ID,
		"patient_id", bill.PatientID,
		"total_amount", bill.TotalAmount.String(),
		"items", len(items))
	return bill, nil
}

// RecordPayment appends a payment and re-derives the bill status. Accrual on
// one bill is serialized: the paid aggregate is re-read inside the same
// transaction that writes the status.
func (s *billingServiceImpl) RecordPayment(ctx context.Context, billID int64, req RecordPaymentRequest) (*PaymentResult, error) {
	method := strings.TrimSpace(req.Method)
	if !req.Amount.IsPositive() || method == "" {
		return nil, billing.Validation("amount and method required")
	}

	unlock := s.billLocks.Lock(billID)
	defer unlock()

	result := &PaymentResult{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		bill, err := s.billRepo.GetByID(txCtx, billID)
		if err != nil {
			return fmt.Errorf("get bill: %w", err)
		}
		if bill == nil {
			return billing.NotFound("bill not found")
		}

		payment := &entity.Payment{
			BillID:    billID,
			Amount:    req.Amount,
			Method:    method,
			Reference: req.Reference,
		}
		if err := s.paymentRepo.Create(txCtx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		payments, err := s.paymentRepo.GetByBillID(txCtx, billID)
		if err != nil {
			return fmt.Errorf("reload payments: %w", err)
		}

		status := billing.DeriveStatus(bill.Status, bill.TotalAmount, billing.PaidAmount(payments))
		if status != bill.Status {
			if err := s.billRepo.UpdateStatus(txCtx, billID, status); err != nil {
				return fmt.Errorf("update bill status: %w", err)
			}
		}

		result.Payment = payment
		result.BillStatus = status
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record payment", "error", err, "bill_id", billID)
		return nil, err
	}

	s.logger.Info("Payment recorded",
		"bill_id", billID,
		"payment_id", result.Payment.ID,
		"amount", req.Amount.String(),
		"bill_status", result.BillStatus.String())
	return result, nil
}

// UpdateBill applies a status change, notes and a wholesale item
// replacement in one transaction
func (s *billingServiceImpl) UpdateBill(ctx context.Context, billID int64, req UpdateBillRequest) (*entity.Bill, error) {
	var items []*entity.BillItem
	if req.Items != nil {
		var err error
		if items, err = normalizeItems(*req.Items); err != nil {
			return nil, err
		}
	}

	var updated *entity.Bill
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		bill, err := s.billRepo.GetByID(txCtx, billID)
		if err != nil {
			return fmt.Errorf("get bill: %w", err)
		}
		if bill == nil {
			return billing.NotFound("bill not found")
		}

		if req.Status != nil {
			if status := entity.BillStatus(*req.Status); status.IsAssignable() {
				bill.Status = status
			}
		}

		if req.Notes.Set {
			bill.Notes = req.Notes.Value
		}

		if req.Items != nil {
			if err := s.itemRepo.DeleteByBillID(txCtx, billID); err != nil {
				return fmt.Errorf("delete items: %w", err)
			}
			if err := s.insertItems(txCtx, billID, items); err != nil {
				return err
			}
			bill.TotalAmount = billing.ComputeTotal(items)
		}

		if err := s.billRepo.Update(txCtx, bill); err != nil {
			return fmt.Errorf("update bill: %w", err)
		}

		updated = bill
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update bill", "error", err, "bill_id", billID)
		return nil, err
	}

	s.logger.Info("Bill updated",
		"bill_id", billID,
		"status", updated.Status.String(),
		"items_replaced", req.Items != nil)
	return updated, nil
}

// GetBill returns a bill with its items, payments and derived amounts
func (s *billingServiceImpl) GetBill(ctx context.Context, billID int64) (*BillDetail, error) {
	bill, err := s.billRepo.GetByID(ctx, billID)
	if err != nil {
		s.logger.Error("Failed to get bill", "error", err, "bill_id", billID)
		return nil, err
	}
	if bill == nil {
		return nil, billing.NotFound("bill not found")
	}

	items, err := s.itemRepo.GetByBillID(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	payments, err := s.paymentRepo.GetByBillID(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("get payments: %w", err)
	}

	paid := billing.PaidAmount(payments)
	return &BillDetail{
		Bill:       bill,
		Items:      items,
		Payments:   payments,
		PaidAmount: paid,
		DueAmount:  billing.DueAmount(bill.TotalAmount, paid),
	}, nil
}

// ListBillsForPatient returns the patient's bills newest first
func (s *billingServiceImpl) ListBillsForPatient(ctx context.Context, patientID int64) ([]*BillSummary, error) {
	filter := port.BillFilter{PatientID: &patientID}

	bills, err := s.billRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list bills", "error", err, "patient_id", patientID)
		return nil, err
	}

	payments, err := s.paymentRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list payments", "error", err, "patient_id", patientID)
		return nil, err
	}
	byBill := groupPaymentsByBill(payments)

	summaries := make([]*BillSummary, 0, len(bills))
	for _, b := range bills {
		summaries = append(summaries, &BillSummary{
			Bill:       b,
			PaidAmount: billing.PaidAmount(byBill[b.ID]),
		})
	}
	return summaries, nil
}

func (s *billingServiceImpl) insertItems(ctx context.Context, billID int64, items []*entity.BillItem) error {
	for _, it := range items {
		it.BillID = billID
		if err := s.itemRepo.Create(ctx, it); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
	}
	return nil
}

// normalizeItems applies the item defaults: quantity 0 becomes 1 and an empty
// description becomes "Item". Negative quantities or prices are rejected.
func normalizeItems(inputs []ItemInput) ([]*entity.BillItem, error) {
	items := make([]*entity.BillItem, 0, len(inputs))
	for i, in := range inputs {
		if in.Quantity < 0 {
			return nil, billing.Validation(fmt.Sprintf("items[%d]: quantity must not be negative", i))
		}
		if in.UnitPrice.IsNegative() {
			return nil, billing.Validation(fmt.Sprintf("items[%d]: unit_price must not be negative", i))
		}

		item := &entity.BillItem{
			Description: strings.TrimSpace(utils.SanitizeString(in.Description)),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
		}
		if item.Description == "" {
			item.Description = entity.DefaultItemDescription
		}
		if item.Quantity == 0 {
			item.Quantity = entity.DefaultItemQuantity
		}
		items = append(items, item)
	}
	return items, nil
}

func groupPaymentsByBill(payments []*entity.Payment) map[int64][]*entity.Payment {
	byBill := make(map[int64][]*entity.Payment)
	for _, p := range payments {
		byBill[p.BillID] = append(byBill[p.BillID], p)
	}
	return byBill
}
