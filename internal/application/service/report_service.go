package service

import (
	"context"
	"sort"
	"time"

	"github.com/shivam7053/patient-management-system/internal/application/port"
	"github.com/shivam7053/patient-management-system/internal/domain/billing"
	"github.com/shivam7053/patient-management-system/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// DefaultReportDays is the daily revenue window when none is given
const DefaultReportDays = 7

// Revenue aggregate periods
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// bucket counts per period
const (
	dailyBuckets   = 7
	weeklyBuckets  = 4
	monthlyBuckets = 6
)

// DailyRevenue is the sum of payments received on one calendar date
type DailyRevenue struct {
	Date      string          `json:"date"`
	TotalPaid decimal.Decimal `json:"total_paid"`
}

// OutstandingBalance is the unpaid amount owed by one patient
type OutstandingBalance struct {
	PatientID   int64           `json:"patient_id"`
	PatientName string          `json:"patient_name"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// RevenueBucket is the billed total for one day, ISO week or month.
// Only the fields of the requested period are set.
type RevenueBucket struct {
	Date      string          `json:"date,omitempty"`
	WeekStart string          `json:"week_start,omitempty"`
	WeekEnd   string          `json:"week_end,omitempty"`
	Month     string          `json:"month,omitempty"`
	Revenue   decimal.Decimal `json:"revenue"`

	start, end time.Time
}

// ReportService produces read-only reconciliation reports
type ReportService interface {
	DailyRevenue(ctx context.Context, days int) ([]DailyRevenue, error)
	Outstanding(ctx context.Context) ([]OutstandingBalance, error)
	RevenueAggregate(ctx context.Context, period string) ([]RevenueBucket, error)
}

type reportServiceImpl struct {
	billRepo    port.BillRepository
	paymentRepo port.PaymentRepository
	defaultDays int
	now         func() time.Time
	logger      Logger
}

// ReportOption configures the report service
type ReportOption func(*reportServiceImpl)

// WithDefaultDays overrides the daily revenue window used when the caller
// passes a non-positive value
func WithDefaultDays(days int) ReportOption {
	return func(s *reportServiceImpl) {
		if days > 0 {
			s.defaultDays = days
		}
	}
}

// WithClock overrides the time source used for aggregate windows
func WithClock(now func() time.Time) ReportOption {
	return func(s *reportServiceImpl) {
		s.now = now
	}
}

// NewReportService creates a new ReportService
func NewReportService(
	billRepo port.BillRepository,
	paymentRepo port.PaymentRepository,
	logger Logger,
	opts ...ReportOption,
) ReportService {
	s := &reportServiceImpl{
		billRepo:    billRepo,
		paymentRepo: paymentRepo,
		defaultDays: DefaultReportDays,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DailyRevenue sums payments per calendar date over the most recent `days`
// dates that saw payments, oldest first. Dates without payments are absent.
func (s *reportServiceImpl) DailyRevenue(ctx context.Context, days int) ([]DailyRevenue, error) {
	if days <= 0 {
		days = s.defaultDays
	}

	payments, err := s.paymentRepo.ListRecentDays(ctx, days)
	if err != nil {
		s.logger.Error("Failed to load payments for daily revenue", "error", err, "days", days)
		return nil, err
	}

	result := make([]DailyRevenue, 0, days)
	index := make(map[string]int)
	for _, p := range payments {
		date := p.PaidAt.UTC().Format(entity.DateLayout)
		i, ok := index[date]
		if !ok {
			i = len(result)
			index[date] = i
			result = append(result, DailyRevenue{Date: date, TotalPaid: decimal.Zero})
		}
		result[i].TotalPaid = result[i].TotalPaid.Add(p.Amount)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// Outstanding returns per-patient unpaid totals ordered by patient id. Each
// bill's due is rounded to two places before it is added to the patient sum.
func (s *reportServiceImpl) Outstanding(ctx context.Context) ([]OutstandingBalance, error) {
	bills, err := s.billRepo.List(ctx, port.BillFilter{})
	if err != nil {
		s.logger.Error("Failed to load bills for outstanding report", "error", err)
		return nil, err
	}

	payments, err := s.paymentRepo.List(ctx, port.BillFilter{})
	if err != nil {
		s.logger.Error("Failed to load payments for outstanding report", "error", err)
		return nil, err
	}
	byBill := groupPaymentsByBill(payments)

	byPatient := make(map[int64]*OutstandingBalance)
	for _, b := range bills {
		due := billing.DueAmount(b.TotalAmount, billing.PaidAmount(byBill[b.ID]))
		if !due.IsPositive() {
			continue
		}

		row, ok := byPatient[b.PatientID]
		if !ok {
			row = &OutstandingBalance{
				PatientID:   b.PatientID,
				PatientName: b.PatientName,
				Outstanding: decimal.Zero,
			}
			byPatient[b.PatientID] = row
		}
		row.Outstanding = row.Outstanding.Add(due)
	}

	result := make([]OutstandingBalance, 0, len(byPatient))
	for _, row := range byPatient {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PatientID < result[j].PatientID })
	return result, nil
}

// RevenueAggregate buckets billed totals by bill creation date: the last 7
// days, the last 4 ISO weeks or the last 6 calendar months, zero-filled and
// oldest first
func (s *reportServiceImpl) RevenueAggregate(ctx context.Context, period string) ([]RevenueBucket, error) {
	if period == "" {
		period = PeriodDaily
	}

	today := truncateDay(s.now().UTC())
	buckets, err := revenueBuckets(period, today)
	if err != nil {
		return nil, err
	}

	from := buckets[0].start
	bills, err := s.billRepo.List(ctx, port.BillFilter{CreatedFrom: &from})
	if err != nil {
		s.logger.Error("Failed to load bills for revenue aggregate", "error", err, "period", period)
		return nil, err
	}

	for _, b := range bills {
		created := b.CreatedAt.UTC()
		for i := range buckets {
			if !created.Before(buckets[i].start) && created.Before(buckets[i].end) {
				buckets[i].Revenue = buckets[i].Revenue.Add(b.TotalAmount)
				break
			}
		}
	}

	return buckets, nil
}

// revenueBuckets lays out the empty buckets for period ending at today
func revenueBuckets(period string, today time.Time) ([]RevenueBucket, error) {
	var buckets []RevenueBucket

	switch period {
	case PeriodDaily:
		for i := dailyBuckets - 1; i >= 0; i-- {
			day := today.AddDate(0, 0, -i)
			buckets = append(buckets, RevenueBucket{
				Date:  day.Format(entity.DateLayout),
				start: day,
				end:   day.AddDate(0, 0, 1),
			})
		}

	case PeriodWeekly:
		// ISO weeks start on Monday
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -offset)
		for i := weeklyBuckets - 1; i >= 0; i-- {
			start := monday.AddDate(0, 0, -7*i)
			buckets = append(buckets, RevenueBucket{
				WeekStart: start.Format(entity.DateLayout),
				WeekEnd:   start.AddDate(0, 0, 6).Format(entity.DateLayout),
				start:     start,
				end:       start.AddDate(0, 0, 7),
			})
		}

	case PeriodMonthly:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		for i := monthlyBuckets - 1; i >= 0; i-- {
			start := first.AddDate(0, -i, 0)
			buckets = append(buckets, RevenueBucket{
				Month: start.Format("2006-01"),
				start: start,
				end:   start.AddDate(0, 1, 0),
			})
		}

	default:
		return nil, billing.Validation("period must be one of daily, weekly, monthly")
	}

	for i := range buckets {
		buckets[i].Revenue = decimal.Zero
	}
	return buckets, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
