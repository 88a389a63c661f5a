package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/shivam7053/patient-management-system/internal/application/service"
	"github.com/shivam7053/patient-management-system/internal/domain/billing"
	"github.com/shivam7053/patient-management-system/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	billing service.BillingService
	reports service.ReportService
	export  service.ExportService
	db      Pinger
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, db Pinger, logger Logger) *Handlers {
	return &Handlers{
		billing: services.Billing,
		reports: services.Reports,
		export:  services.Export,
		db:      db,
		logger:  logger,
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// BillCreatedResponse is returned by POST /billing/
type BillCreatedResponse struct {
	Message string `json:"message"`
	BillID  int64  `json:"bill_id"`
}

// PaymentRecordedResponse is returned by POST /billing/:id/pay
type PaymentRecordedResponse struct {
	Message    string `json:"message"`
	PaymentID  int64  `json:"payment_id"`
	BillStatus string `json:"bill_status"`
}

// BillSummaryResponse is one row of a patient's bill list
type BillSummaryResponse struct {
	ID          int64           `json:"id"`
	CreatedAt   string          `json:"created_at"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Status      string          `json:"status"`
	Currency    string          `json:"currency"`
	Notes       *string         `json:"notes"`
}

// ItemResponse represents a bill item with its derived amount
type ItemResponse struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID        int64           `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	PaidAt    string          `json:"paid_at"`
	Reference *string         `json:"reference"`
}

// BillDetailResponse represents a single bill with items and payments
type BillDetailResponse struct {
	ID            int64             `json:"id"`
	PatientID     int64             `json:"patient_id"`
	AppointmentID *int64            `json:"appointment_id"`
	CreatedAt     string            `json:"created_at"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	PaidAmount    decimal.Decimal   `json:"paid_amount"`
	DueAmount     decimal.Decimal   `json:"due_amount"`
	Status        string            `json:"status"`
	Currency      string            `json:"currency"`
	Items         []ItemResponse    `json:"items"`
	Payments      []PaymentResponse `json:"payments"`
	Notes         *string           `json:"notes"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
	}

	c.JSON(http.StatusOK, response)
}

// CreateBill handles POST /billing/
func (h *Handlers) CreateBill(c *gin.Context) {
	var req service.CreateBillRequest
	if !h.bindJSON(c, &req) {
		return
	}

	bill, err := h.billing.CreateBill(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, BillCreatedResponse{Message: "Bill created", BillID: bill.ID})
}

// ListBillsForPatient handles GET /billing/patient/:id
func (h *Handlers) ListBillsForPatient(c *gin.Context) {
	patientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid patient id"})
		return
	}

	summaries, err := h.billing.ListBillsForPatient(c.Request.Context(), patientID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := make([]BillSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		response = append(response, BillSummaryResponse{
			ID:          s.Bill.ID,
			CreatedAt:   s.Bill.CreatedAt.Format(entity.DateTimeLayout),
			TotalAmount: s.Bill.TotalAmount,
			PaidAmount:  s.PaidAmount,
			Status:      s.Bill.Status.String(),
			Currency:    s.Bill.Currency,
			Notes:       s.Bill.Notes,
		})
	}

	c.JSON(http.StatusOK, response)
}

// GetBill handles GET /billing/:id
func (h *Handlers) GetBill(c *gin.Context) {
	billID, ok := billIDParam(c)
	if !ok {
		return
	}

	detail, err := h.billing.GetBill(c.Request.Context(), billID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBillDetailResponse(detail))
}

// RecordPayment handles POST /billing/:id/pay
func (h *Handlers) RecordPayment(c *gin.Context) {
	billID, ok := billIDParam(c)
	if !ok {
		return
	}

	var req service.RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.billing.RecordPayment(c.Request.Context(), billID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, PaymentRecordedResponse{
		Message:    "Payment recorded",
		PaymentID:  result.Payment.ID,
		BillStatus: result.BillStatus.String(),
	})
}

// UpdateBill handles PUT /billing/:id
func (h *Handlers) UpdateBill(c *gin.Context) {
	billID, ok := billIDParam(c)
	if !ok {
		return
	}

	var req service.UpdateBillRequest
	if !h.bindJSON(c, &req) {
		return
	}

	bill, err := h.billing.UpdateBill(c.Request.Context(), billID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, BillCreatedResponse{Message: "Bill updated", BillID: bill.ID})
}

// DailyRevenue handles GET /billing/reports/revenue/daily
func (h *Handlers) DailyRevenue(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "days must be an integer"})
			return
		}
		days = n
	}

	rows, err := h.reports.DailyRevenue(c.Request.Context(), days)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

// Outstanding handles GET /billing/reports/outstanding
func (h *Handlers) Outstanding(c *gin.Context) {
	rows, err := h.reports.Outstanding(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

// RevenueAggregate handles GET /billing/reports/revenue/aggregate
func (h *Handlers) RevenueAggregate(c *gin.Context) {
	buckets, err := h.reports.RevenueAggregate(c.Request.Context(), c.DefaultQuery("period", service.PeriodDaily))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, buckets)
}

// ExportBills handles GET /export/bills
func (h *Handlers) ExportBills(c *gin.Context) {
	var patientID *int64
	if raw := c.Query("patient_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid patient_id"})
			return
		}
		patientID = &id
	}

	file, err := h.export.ExportBills(c.Request.Context(), patientID, c.Query("format"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// bindJSON decodes the request body into dst. An empty body decodes as {}.
func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Info("Invalid request body", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// respondError maps service errors to status codes. Internal errors are
// logged and never described to the client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, billing.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: billing.Message(err)})
	case errors.Is(err, billing.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: billing.Message(err)})
	default:
		h.logger.Error("Request failed",
			"error", err,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// billIDParam parses :id. A non-numeric id cannot name a bill, so it is a 404.
func billIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "bill not found"})
		return 0, false
	}
	return id, true
}

func toBillDetailResponse(d *service.BillDetail) BillDetailResponse {
	items := make([]ItemResponse, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, ItemResponse{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount(),
		})
	}

	payments := make([]PaymentResponse, 0, len(d.Payments))
	for _, p := range d.Payments {
		payments = append(payments, PaymentResponse{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    p.Method,
			PaidAt:    p.PaidAt.Format(entity.DateTimeLayout),
			Reference: p.Reference,
		})
	}

	return BillDetailResponse{
		ID:            d.Bill.ID,
		PatientID:     d.Bill.PatientID,
		AppointmentID: d.Bill.AppointmentID,
		CreatedAt:     d.Bill.CreatedAt.Format(entity.DateTimeLayout),
		TotalAmount:   d.Bill.TotalAmount,
		PaidAmount:    d.PaidAmount,
		DueAmount:     d.DueAmount,
		Status:        d.Bill.Status.String(),
		Currency:      d.Bill.Currency,
		Items:         items,
		Payments:      payments,
		Notes:         d.Bill.Notes,
	}
}
