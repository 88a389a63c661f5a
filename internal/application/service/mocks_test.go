package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shivam7053/patient-management-system/internal/application/port"
	"github.com/shivam7053/patient-management-system/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// memLedger is the in-memory state shared by the mock repositories
type memLedger struct {
	mu           sync.Mutex
	nextID       int64
	bills        map[int64]*entity.Bill
	items        map[int64][]*entity.BillItem
	payments     []*entity.Payment
	patients     map[int64]*entity.Patient
	appointments map[int64]bool
}

func newMemLedger() *memLedger {
	return &memLedger{
		bills:        make(map[int64]*entity.Bill),
		items:        make(map[int64][]*entity.BillItem),
		patients:     make(map[int64]*entity.Patient),
		appointments: make(map[int64]bool),
	}
}

func (l *memLedger) id() int64 {
	l.nextID++
	return l.nextID
}

func (l *memLedger) addPatient(id int64, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.patients[id] = &entity.Patient{ID: id, Name: name}
}

func (l *memLedger) addBill(patientID int64, total string, createdAt time.Time) *entity.Bill {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := &entity.Bill{
		ID:          l.id(),
		PatientID:   patientID,
		CreatedAt:   createdAt,
		TotalAmount: decimal.RequireFromString(total),
		Status:      entity.StatusPending,
		Currency:    entity.DefaultCurrency,
	}
	if p, ok := l.patients[patientID]; ok {
		b.PatientName = p.Name
	}
	l.bills[b.ID] = b
	cp := *b
	return &cp
}

func (l *memLedger) addPayment(billID int64, amount string, paidAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payments = append(l.payments, &entity.Payment{
		ID:     l.id(),
		BillID: billID,
		Amount: decimal.RequireFromString(amount),
		Method: entity.MethodCash,
		PaidAt: paidAt,
	})
}

func (l *memLedger) bill(id int64) *entity.Bill {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bills[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

// mockBillRepo implements port.BillRepository
type mockBillRepo struct {
	ledger      *memLedger
	getByIDFunc func(ctx context.Context, id int64) (*entity.Bill, error)
	listFunc    func(ctx context.Context, filter port.BillFilter) ([]*entity.Bill, error)
	updateFunc  func(ctx context.Context, bill *entity.Bill) error
}

func (m *mockBillRepo) Create(ctx context.Context, bill *entity.Bill) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	bill.ID = m.ledger.id()
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}
	cp := *bill
	m.ledger.bills[bill.ID] = &cp
	return nil
}

func (m *mockBillRepo) GetByID(ctx context.Context, id int64) (*entity.Bill, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return m.ledger.bill(id), nil
}

func (m *mockBillRepo) List(ctx context.Context, filter port.BillFilter) ([]*entity.Bill, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()

	var bills []*entity.Bill
	for _, b := range m.ledger.bills {
		if filter.PatientID != nil && b.PatientID != *filter.PatientID {
			continue
		}
		if filter.CreatedFrom != nil && b.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		cp := *b
		bills = append(bills, &cp)
	}
	sort.Slice(bills, func(i, j int) bool {
		if !bills[i].CreatedAt.Equal(bills[j].CreatedAt) {
			return bills[i].CreatedAt.After(bills[j].CreatedAt)
		}
		return bills[i].ID > bills[j].ID
	})
	return bills, nil
}

func (m *mockBillRepo) Update(ctx context.Context, bill *entity.Bill) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, bill)
	}
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	cp := *bill
	m.ledger.bills[bill.ID] = &cp
	return nil
}

func (m *mockBillRepo) UpdateStatus(ctx context.Context, id int64, status entity.BillStatus) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	if b, ok := m.ledger.bills[id]; ok {
		b.Status = status
	}
	return nil
}

// mockItemRepo implements port.BillItemRepository
type mockItemRepo struct {
	ledger     *memLedger
	createFunc func(ctx context.Context, item *entity.BillItem) error
}

func (m *mockItemRepo) Create(ctx context.Context, item *entity.BillItem) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, item)
	}
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	item.ID = m.ledger.id()
	cp := *item
	m.ledger.items[item.BillID] = append(m.ledger.items[item.BillID], &cp)
	return nil
}

func (m *mockItemRepo) GetByBillID(ctx context.Context, billID int64) ([]*entity.BillItem, error) {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	return append([]*entity.BillItem(nil), m.ledger.items[billID]...), nil
}

func (m *mockItemRepo) DeleteByBillID(ctx context.Context, billID int64) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	delete(m.ledger.items, billID)
	return nil
}

// mockPaymentRepo implements port.PaymentRepository
type mockPaymentRepo struct {
	ledger             *memLedger
	listRecentDaysFunc func(ctx context.Context, days int) ([]*entity.Payment, error)
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *entity.Payment) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	payment.ID = m.ledger.id()
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	cp := *payment
	m.ledger.payments = append(m.ledger.payments, &cp)
	return nil
}

func (m *mockPaymentRepo) GetByBillID(ctx context.Context, billID int64) ([]*entity.Payment, error) {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	var out []*entity.Payment
	for _, p := range m.ledger.payments {
		if p.BillID == billID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) List(ctx context.Context, filter port.BillFilter) ([]*entity.Payment, error) {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	var out []*entity.Payment
	for _, p := range m.ledger.payments {
		b, ok := m.ledger.bills[p.BillID]
		if !ok {
			continue
		}
		if filter.PatientID != nil && b.PatientID != *filter.PatientID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockPaymentRepo) ListRecentDays(ctx context.Context, days int) ([]*entity.Payment, error) {
	if m.listRecentDaysFunc != nil {
		return m.listRecentDaysFunc(ctx, days)
	}
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	return append([]*entity.Payment(nil), m.ledger.payments...), nil
}

// mockPatientDirectory implements port.PatientDirectory
type mockPatientDirectory struct {
	ledger         *memLedger
	getPatientFunc func(ctx context.Context, id int64) (*entity.Patient, error)
}

func (m *mockPatientDirectory) GetPatient(ctx context.Context, id int64) (*entity.Patient, error) {
	if m.getPatientFunc != nil {
		return m.getPatientFunc(ctx, id)
	}
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	return m.ledger.patients[id], nil
}

func (m *mockPatientDirectory) AppointmentExists(ctx context.Context, id int64) (bool, error) {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	return m.ledger.appointments[id], nil
}

// mockTxManager runs fn inline and counts transactions
type mockTxManager struct {
	mu    sync.Mutex
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// fixture wires every service against one ledger
type fixture struct {
	ledger   *memLedger
	bills    *mockBillRepo
	items    *mockItemRepo
	payments *mockPaymentRepo
	patients *mockPatientDirectory
	tx       *mockTxManager
}

func newFixture() *fixture {
	l := newMemLedger()
	return &fixture{
		ledger:   l,
		bills:    &mockBillRepo{ledger: l},
		items:    &mockItemRepo{ledger: l},
		payments: &mockPaymentRepo{ledger: l},
		patients: &mockPatientDirectory{ledger: l},
		tx:       &mockTxManager{},
	}
}

func (f *fixture) billing() BillingService {
	return NewBillingService(f.bills, f.items, f.payments, f.patients, f.tx, "", &mockLogger{})
}

func (f *fixture) reports(opts ...ReportOption) ReportService {
	return NewReportService(f.bills, f.payments, &mockLogger{}, opts...)
}
