package service

import (
	"context"
	"errors"

	"github.com/shivam7053/patient-management-system/internal/application/port"
	"github.com/shivam7053/patient-management-system/internal/domain/billing"
	"github.com/shivam7053/patient-management-system/internal/export"
)

var billExportHeaders = []string{
	"Bill ID", "Patient", "Total Amount", "Paid Amount", "Due Amount", "Status", "Created At",
}

// ExportService renders bill listings as downloadable files
type ExportService interface {
	ExportBills(ctx context.Context, patientID *int64, format string) (*export.File, error)
}

type exportServiceImpl struct {
	billRepo    port.BillRepository
	paymentRepo port.PaymentRepository
	writer      *export.Writer
	logger      Logger
}

// NewExportService creates a new ExportService
func NewExportService(
	billRepo port.BillRepository,
	paymentRepo port.PaymentRepository,
	writer *export.Writer,
	logger Logger,
) ExportService {
	return &exportServiceImpl{
		billRepo:    billRepo,
		paymentRepo: paymentRepo,
		writer:      writer,
		logger:      logger,
	}
}

// ExportBills exports every bill, or the bills of one patient, as csv or excel
func (s *exportServiceImpl) ExportBills(ctx context.Context, patientID *int64, format string) (*export.File, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, billing.Validation("format must be csv or excel")
	}

	filter := port.BillFilter{PatientID: patientID}

	bills, err := s.billRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to load bills for export", "error", err)
		return nil, err
	}
	if len(bills) == 0 {
		return nil, billing.NotFound("No records found")
	}

	payments, err := s.paymentRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to load payments for export", "error", err)
		return nil, err
	}
	byBill := groupPaymentsByBill(payments)

	table := export.Table{Headers: billExportHeaders}
	for _, b := range bills {
		paid := billing.PaidAmount(byBill[b.ID])
		table.Rows = append(table.Rows, []interface{}{
			b.ID,
			b.PatientName,
			b.TotalAmount,
			paid,
			billing.DueAmount(b.TotalAmount, paid),
			b.Status.String(),
			b.CreatedAt,
		})
	}

	file, err := s.writer.Write("bills", f, table)
	if errors.Is(err, export.ErrEmptyTable) {
		return nil, billing.NotFound("No records found")
	}
	if err != nil {
		s.logger.Error("Failed to render bill export", "error", err, "format", string(f))
		return nil, err
	}

	s.logger.Info("Bills exported", "rows", len(table.Rows), "format", string(f))
	return file, nil
}
