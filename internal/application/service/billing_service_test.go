package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shivam7053/patient-management-system/internal/domain/billing"
	"github.com/shivam7053/patient-management-system/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64p(v int64) *int64 { return &v }

func strp(s string) *string { return &s }

func TestCreateBill_Success(t *testing.T) {
	f := newFixture()
	f.ledger.addPatient(7, "Asha Verma")
	svc := f.billing()

	bill, err := svc.CreateBill(context.Background(), CreateBillRequest{
		PatientID: 7,
		Items: []ItemInput{
			{Description: "Consultation", Quantity: 1, UnitPrice: dec("500")},
			{Description: "Blood test", Quantity: 2, UnitPrice: dec("300")},
		},
	})
	require.NoError(t, err)

	assert.NotZero(t, bill.ID)
	assert.Equal(t, entity.StatusPending, bill.Status)
	assert.True(t, bill.TotalAmount.Equal(dec("1100")))
	assert.Equal(t, "INR", bill.Currency)
	assert.Equal(t, 1, f.tx.calls)

	items, _ := f.items.GetByBillID(context.Background(), bill.ID)
	require.Len(t, items, 2)
	assert.Equal(t, bill.ID, items[0].BillID)
}

func TestCreateBill_ItemDefaults(t *testing.T) {
	f := newFixture()
	f.ledger.addPatient(1, "Asha")
	svc := f.billing()

	bill, err := svc.CreateBill(context.Background(), CreateBillRequest{
		PatientID: 1,
		Currency:  "USD",
		Notes:     strp("walk-in"),
		Items: []ItemInput{
			{UnitPrice: dec("250")},
			{Description: "Dressing", Quantity: 3},
		},
	})
	require.NoError(t, err)

	items, _ := f.items.GetByBillID(context.Background(), bill.ID)
	require.Len(t, items, 2)
	assert.Equal(t, "Item", items[0].Description)
	assert.Equal(t, 1, items[0].Quantity)
	assert.True(t, items[1].UnitPrice.IsZero())
	assert.True(t, bill.TotalAmount.Equal(dec("250")))
	assert.Equal(t, "USD", bill.Currency)
	require.NotNil(t, bill.Notes)
	assert.Equal(t, "walk-in", *bill.Notes)
}

func TestCreateBill_Failures(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateBillRequest
		kind    error
		message string
	}{
		{
			name:    "missing patient",
			req:     CreateBillRequest{Items: []ItemInput{{Quantity: 1}}},
			kind:    billing.ErrValidation,
			message: "patient_id required",
		},
		{
			name:    "unknown patient",
			req:     CreateBillRequest{PatientID: 99, Items: []ItemInput{{Quantity: 1}}},
			kind:    billing.ErrNotFound,
			message: "patient not found",
		},
		{
			name:    "unknown appointment",
			req:     CreateBillRequest{PatientID: 1, AppointmentID: int64p(5), Items: []ItemInput{{Quantity: 1}}},
			kind:    billing.ErrNotFound,
			message: "appointment not found",
		},
		{
			name:    "no items",
			req:     CreateBillRequest{PatientID: 1},
			kind:    billing.ErrValidation,
			message: "At least one bill item required",
		},
		{
			name:    "negative price",
			req:     CreateBillRequest{PatientID: 1, Items: []ItemInput{{Quantity: 1, UnitPrice: dec("-1")}}},
			kind:    billing.ErrValidation,
			message: "items[0]: unit_price must not be negative",
		},
		{
			name:    "negative quantity",
			req:     CreateBillRequest{PatientID: 1, Items: []ItemInput{{Quantity: -2}}},
			kind:    billing.ErrValidation,
			message: "items[0]: quantity must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.ledger.addPatient(1, "Asha")

			_, err := f.billing().CreateBill(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.message, billing.Message(err))
			assert.Empty(t, f.ledger.bills)
			assert.Zero(t, f.tx.calls)
		})
	}
}

func TestCreateBill_WithAppointment(t *testing.T) {
	f := newFixture()
	f.ledger.addPatient(1, "Asha")
	f.ledger.appointments[3] = true

	bill, err := f.billing().CreateBill(context.Background(), CreateBillRequest{
		PatientID:     1,
		AppointmentID: int64p(3),
		Items:         []ItemInput{{Quantity: 1, UnitPrice: dec("10")}},
	})
	require.NoError(t, err)
	require.NotNil(t, bill.AppointmentID)
	assert.Equal(t, int64(3), *bill.AppointmentID)
}

func TestCreateBill_ItemFailurePropagates(t *testing.T) {
	f := newFixture()
	f.ledger.addPatient(1, "Asha")
	boom := errors.New("disk full")
	f.items.createFunc = func(ctx context.Context, item *entity.BillItem) error { return boom }

	_, err := f.billing().CreateBill(context.Background(), CreateBillRequest{
		PatientID: 1,
		Items:     []ItemInput{{Quantity: 1}},
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, billing.ErrValidation))
}

func TestRecordPayment_StatusTransitions(t *testing.T) {
	f := newFixture()
	f.ledger.addPatient(1, "Asha")
	bill := f.ledger.addBill(1, "1100", time.Now())
	svc := f.billing()
	ctx := context.Background()

	res, err := svc.RecordPayment(ctx, bill.ID, RecordPaymentRequest{Amount: dec("600"), Method: "cash"})
	require.NoError(t, err)
	assert.NotZero(t, res.Payment.ID)
	assert.Equal(t, entity.StatusPartial, res.BillStatus)
	assert.Equal(t, entity.StatusPartial, f.ledger.bill(bill.ID).Status)

	detail, err := svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "500", detail.DueAmount.String())

	res, err = svc.RecordPayment(ctx, bill.ID, RecordPaymentRequest{Amount: dec("500"), Method: "upi", Reference: strp("UPI-1")})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, res.BillStatus)

	detail, err = svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.True(t, detail.DueAmount.IsZero())
	assert.True(t, detail.PaidAmount.Equal(dec("1100")))
	require.Len(t, detail.Payments, 2)
	assert.Equal(t, "UPI-1", *detail.Payments[1].Reference)
}

func TestRecordPayment_Overpayment(t *testing.T) {
	f := newFixture()
	bill := f.ledger.addBill(1, "100", time.Now())

	res, err := f.billing().RecordPayment(context.Background(), bill.ID, RecordPaymentRequest{Amount: dec("150"), Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, res.BillStatus)
}

func TestRecordPayment_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  RecordPaymentRequest
	}{
		{"zero amount", RecordPaymentRequest{Amount: dec("0"), Method: "cash"}},
		{"negative amount", RecordPaymentRequest{Amount: dec("-5"), Method: "cash"}},
		{"missing method", RecordPaymentRequest{Amount: dec("5")}},
		{"blank method", RecordPaymentRequest{Amount: dec("5"), Method: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			bill := f.ledger.addBill(1, "100", time.Now())

			_, err := f.billing().RecordPayment(context.Background(), bill.ID, tt.req)
			assert.ErrorIs(t, err, billing.ErrValidation)
			assert.Equal(t, "amount and method required", billing.Message(err))
			assert.Empty(t, f.ledger.payments)
			assert.Equal(t, entity.StatusPending, f.ledger.bill(bill.ID).Status)
		})
	}
}

func TestRecordPayment_BillNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.billing().RecordPayment(context.Background(), 42, RecordPaymentRequest{Amount: dec("5"), Method: "cash"})
	assert.ErrorIs(t, err, billing.ErrNotFound)
	assert.Equal(t, "bill not found", billing.Message(err))
	assert.Empty(t, f.ledger.payments)
}

func TestRecordPayment_ConcurrentAccrualIsSerialized(t *testing.T) {
	f := newFixture()
	bill := f.ledger.addBill(1, "1000", time.Now())
	svc := f.billing()

	const workers = 10
	statuses := make(chan entity.BillStatus, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.RecordPayment(context.Background(), bill.ID, RecordPaymentRequest{Amount: dec("100"), Method: "cash"})
			if assert.NoError(t, err) {
				statuses <- res.BillStatus
			}
		}()
	}
	wg.Wait()
	close(statuses)

	counts := map[entity.BillStatus]int{}
	for s := range statuses {
		counts[s]++
	}
	assert.Equal(t, 1, counts[entity.StatusPaid])
	assert.Equal(t, workers-1, counts[entity.StatusPartial])
	assert.Equal(t, entity.StatusPaid, f.ledger.bill(bill.ID).Status)
}

func TestUpdateBill_StatusAndNotes(t *testing.T) {
	f := newFixture()
	bill := f.ledger.addBill(1, "100", time.Now())
	svc := f.billing()
	ctx := context.Background()

	updated, err := svc.UpdateBill(ctx, bill.ID, UpdateBillRequest{
		Status: strp("cancelled"),
		Notes:  OptionalString{Set: true, Value: strp("patient left")},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, updated.Status)
	assert.Equal(t, "patient left", *f.ledger.bill(bill.ID).Notes)

	// paid cannot be assigned directly
	updated, err = svc.UpdateBill(ctx, bill.ID, UpdateBillRequest{Status: strp("paid")})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, updated.Status)
	assert.Equal(t, "patient left", *updated.Notes)

	updated, err = svc.UpdateBill(ctx, bill.ID, UpdateBillRequest{Notes: OptionalString{Set: true}})
	require.NoError(t, err)
	assert.Nil(t, updated.Notes)
}

func TestUpdateBill_ReplaceItems(t *testing.T) {
	f := newFixture()
	f.ledger.addPatient(1, "Asha")
	svc := f.billing()
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, CreateBillRequest{
		PatientID: 1,
		Items:     []ItemInput{{Quantity: 1, UnitPrice: dec("500")}},
	})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, bill.ID, RecordPaymentRequest{Amount: dec("500"), Method: "cash"})
	require.NoError(t, err)

	replacement := []ItemInput{{Description: "Room", Quantity: 2, UnitPrice: dec("150.25")}}
	updated, err := svc.UpdateBill(ctx, bill.ID, UpdateBillRequest{Items: &replacement})
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(dec("300.5")))
	assert.Equal(t, entity.StatusPaid, updated.Status)

	detail, err := svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "Room", detail.Items[0].Description)
	assert.Len(t, detail.Payments, 1)
}

func TestUpdateBill_EmptyItemsZeroesBill(t *testing.T) {
	f := newFixture()
	bill := f.ledger.addBill(1, "900", time.Now())
	f.ledger.items[bill.ID] = []*entity.BillItem{{ID: 50, BillID: bill.ID, Quantity: 1, UnitPrice: dec("900")}}

	empty := []ItemInput{}
	updated, err := f.billing().UpdateBill(context.Background(), bill.ID, UpdateBillRequest{Items: &empty})
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.IsZero())
	assert.Empty(t, f.ledger.items[bill.ID])
}

func TestUpdateBill_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.billing().UpdateBill(context.Background(), 8, UpdateBillRequest{Status: strp("cancelled")})
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestGetBill_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.billing().GetBill(context.Background(), 8)
	assert.ErrorIs(t, err, billing.ErrNotFound)
	assert.Equal(t, "bill not found", billing.Message(err))
}

func TestListBillsForPatient(t *testing.T) {
	f := newFixture()
	f.ledger.addPatient(1, "Asha")
	f.ledger.addPatient(2, "Ravi")
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	older := f.ledger.addBill(1, "100", base)
	newer := f.ledger.addBill(1, "200", base.Add(time.Hour))
	other := f.ledger.addBill(2, "300", base)
	f.ledger.addPayment(older.ID, "40", base)
	f.ledger.addPayment(older.ID, "10", base)
	f.ledger.addPayment(other.ID, "300", base)

	summaries, err := f.billing().ListBillsForPatient(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, newer.ID, summaries[0].Bill.ID)
	assert.True(t, summaries[0].PaidAmount.IsZero())
	assert.Equal(t, older.ID, summaries[1].Bill.ID)
	assert.True(t, summaries[1].PaidAmount.Equal(dec("50")))
}

func TestUpdateBillRequest_DecodesPresence(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		notesSet  bool
		notes     *string
		itemsNil  bool
		itemCount int
	}{
		{"absent keys", `{}`, false, nil, true, 0},
		{"null notes", `{"notes": null}`, true, nil, true, 0},
		{"empty notes", `{"notes": ""}`, true, strp(""), true, 0},
		{"null items", `{"items": null}`, false, nil, true, 0},
		{"empty items", `{"items": []}`, false, nil, false, 0},
		{"one item", `{"items": [{"unit_price": 12.5}]}`, false, nil, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateBillRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			assert.Equal(t, tt.notesSet, req.Notes.Set)
			assert.Equal(t, tt.notes, req.Notes.Value)
			assert.Equal(t, tt.itemsNil, req.Items == nil)
			if req.Items != nil {
				assert.Len(t, *req.Items, tt.itemCount)
			}
		})
	}
}
