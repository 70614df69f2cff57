package finance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
	pkgerrors "github.com/lukasortiz/taskpay-backend/pkg/errors"
)

type fakeRepository struct {
	payments        []PaymentRow
	payouts         []PayoutRow
	pendingPayouts  []PayoutRow
	disputes        []DisputeRow
	overdueInvoices []InvoiceRow
	events          []models.FinanceEvent
	alertStates     map[string]*models.AlertState
	upserts         []models.AlertState
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{alertStates: map[string]*models.AlertState{}}
}

func (f *fakeRepository) ListPayments(ctx context.Context, w Window) ([]PaymentRow, error) {
	return f.payments, nil
}

func (f *fakeRepository) ListPayouts(ctx context.Context, w Window) ([]PayoutRow, error) {
	return f.payouts, nil
}

func (f *fakeRepository) ListPendingPayouts(ctx context.Context, asOf time.Time) ([]PayoutRow, error) {
	return f.pendingPayouts, nil
}

func (f *fakeRepository) ListDisputes(ctx context.Context, w Window) ([]DisputeRow, error) {
	return f.disputes, nil
}

func (f *fakeRepository) ListOverdueInvoices(ctx context.Context, asOf time.Time, limit int) ([]InvoiceRow, error) {
	return f.overdueInvoices, nil
}

func (f *fakeRepository) ListEventsByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.FinanceEvent, error) {
	return f.events, nil
}

func (f *fakeRepository) GetAlertState(ctx context.Context, alias string) (*models.AlertState, error) {
	state, ok := f.alertStates[alias]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (f *fakeRepository) UpsertAlertState(ctx context.Context, state *models.AlertState) error {
	copied := *state
	f.alertStates[state.Alias] = &copied
	f.upserts = append(f.upserts, copied)
	return nil
}

type recordingNotifier struct {
	published []Alert
}

func (n *recordingNotifier) Publish(ctx context.Context, alert Alert) error {
	n.published = append(n.published, alert)
	return nil
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testWindow() ReportQuery {
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	return ReportQuery{Start: end.AddDate(0, 0, -30), End: end}
}

func TestGenerateReportTotals(t *testing.T) {
	repo := newFakeRepository()
	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	serviceA := uuid.New()

	repo.payments = []PaymentRow{
		{ID: uuid.New(), ServiceID: serviceA, Status: enums.PaymentStatusCaptured, Amount: money("100.00"), Currency: "EUR", CreatedAt: day1, CapturedAt: &day1},
		{ID: uuid.New(), ServiceID: serviceA, Status: enums.PaymentStatusCaptured, Amount: money("50.00"), Currency: "EUR", CreatedAt: day2, CapturedAt: &day2},
		{ID: uuid.New(), ServiceID: serviceA, Status: enums.PaymentStatusPending, Amount: money("25.00"), Currency: "EUR", CreatedAt: day2},
		{ID: uuid.New(), ServiceID: serviceA, Status: enums.PaymentStatusRefunded, Amount: money("10.00"), Currency: "EUR", CreatedAt: day1, RefundedAt: &day2},
		{ID: uuid.New(), ServiceID: serviceA, Status: enums.PaymentStatusFailed, Amount: money("5.00"), Currency: "EUR", CreatedAt: day1},
		{ID: uuid.New(), ServiceID: serviceA, Status: enums.PaymentStatusCaptured, Amount: money("200.00"), Currency: "USD", CreatedAt: day1, CapturedAt: &day1},
	}
	repo.payouts = []PayoutRow{
		{ID: uuid.New(), ProviderID: uuid.New(), Status: enums.PayoutStatusPaid, Amount: money("80.00"), Currency: "EUR", ScheduledFor: day2},
		{ID: uuid.New(), ProviderID: uuid.New(), Status: enums.PayoutStatusPending, Amount: money("30.00"), Currency: "EUR", ScheduledFor: day2},
	}
	repo.disputes = []DisputeRow{
		{ID: uuid.New(), ServiceID: &serviceA, Status: enums.DisputeStatusOpen, Amount: money("40.00"), Currency: "EUR", OpenedAt: day2},
	}

	svc, err := NewService(repo, nil, Config{})
	require.NoError(t, err)

	report, err := svc.GenerateReport(context.Background(), testWindow())
	require.NoError(t, err)

	eur := report.CurrencyTotals["EUR"]
	require.Equal(t, "150.00", eur.Captured.StringFixed(2))
	require.Equal(t, "25.00", eur.Pending.StringFixed(2))
	require.Equal(t, "10.00", eur.Refunded.StringFixed(2))
	require.Equal(t, "5.00", eur.Failed.StringFixed(2))
	require.Equal(t, "40.00", eur.Disputed.StringFixed(2))
	// Only paid payouts count toward the payouts total.
	require.Equal(t, "80.00", eur.Payouts.StringFixed(2))
	require.Equal(t, 2, eur.SuccessfulOrders)

	usd := report.CurrencyTotals["USD"]
	require.Equal(t, "200.00", usd.Captured.StringFixed(2))
	require.Equal(t, 1, usd.SuccessfulOrders)

	require.Len(t, report.TopServices, 1)
	require.Equal(t, serviceA, report.TopServices[0].ServiceID)
	require.Equal(t, 3, report.TopServices[0].SuccessfulOrders)
	require.Equal(t, 1, report.TopServices[0].DisputeCount)
	require.InDelta(t, 1.0/3.0, report.TopServices[0].DisputeRate, 1e-9)
}

func TestGenerateReportDailySeries(t *testing.T) {
	repo := newFakeRepository()
	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

	repo.payments = []PaymentRow{
		// Bucketed by capture date, not creation date.
		{ID: uuid.New(), ServiceID: uuid.New(), Status: enums.PaymentStatusCaptured, Amount: money("100.00"), Currency: "EUR", CreatedAt: day1, CapturedAt: &day2},
		{ID: uuid.New(), ServiceID: uuid.New(), Status: enums.PaymentStatusPending, Amount: money("20.00"), Currency: "EUR", CreatedAt: day1},
	}

	svc, err := NewService(repo, nil, Config{})
	require.NoError(t, err)

	report, err := svc.GenerateReport(context.Background(), testWindow())
	require.NoError(t, err)

	require.Len(t, report.Daily, 2)
	require.Equal(t, "2026-03-10", report.Daily[0].Date)
	require.Equal(t, "20.00", report.Daily[0].Pending.StringFixed(2))
	require.Equal(t, "2026-03-11", report.Daily[1].Date)
	require.Equal(t, "100.00", report.Daily[1].Captured.StringFixed(2))
}

func TestGenerateReportTruncatesOldestRows(t *testing.T) {
	repo := newFakeRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		at := base.AddDate(0, 0, i)
		repo.payments = append(repo.payments, PaymentRow{
			ID: uuid.New(), ServiceID: uuid.New(), Status: enums.PaymentStatusCaptured,
			Amount: money("10.00"), Currency: "EUR", CreatedAt: at, CapturedAt: &at,
		})
	}

	svc, err := NewService(repo, nil, Config{ExportRowLimit: 4})
	require.NoError(t, err)

	report, err := svc.GenerateReport(context.Background(), testWindow())
	require.NoError(t, err)

	require.Len(t, report.Daily, 4)
	// The two oldest days fall off.
	require.Equal(t, "2026-03-03", report.Daily[0].Date)
	require.Equal(t, "2026-03-06", report.Daily[3].Date)
}

func TestGenerateReportValidatesWindow(t *testing.T) {
	svc, err := NewService(newFakeRepository(), nil, Config{})
	require.NoError(t, err)

	_, err = svc.GenerateReport(context.Background(), ReportQuery{})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.GenerateReport(context.Background(), ReportQuery{Start: end, End: end})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGenerateReportBacklog(t *testing.T) {
	repo := newFakeRepository()
	providerA := uuid.New()
	providerB := uuid.New()
	now := time.Now().UTC()
	repo.pendingPayouts = []PayoutRow{
		{ID: uuid.New(), ProviderID: providerA, Status: enums.PayoutStatusPending, Amount: money("60.00"), Currency: "EUR", ScheduledFor: now.AddDate(0, 0, -9)},
		{ID: uuid.New(), ProviderID: providerA, Status: enums.PayoutStatusPending, Amount: money("40.00"), Currency: "EUR", ScheduledFor: now.AddDate(0, 0, -2)},
		{ID: uuid.New(), ProviderID: providerB, Status: enums.PayoutStatusPending, Amount: money("25.00"), Currency: "EUR", ScheduledFor: now.AddDate(0, 0, -1)},
	}

	svc, err := NewService(repo, nil, Config{})
	require.NoError(t, err)

	report, err := svc.GenerateReport(context.Background(), testWindow())
	require.NoError(t, err)

	require.Equal(t, 3, report.PayoutBacklog.Count)
	require.Equal(t, "125.00", report.PayoutBacklog.Total.StringFixed(2))
	require.Equal(t, 9, report.PayoutBacklog.OldestAgeDays)
	require.Equal(t, 2, report.PayoutBacklog.ProvidersImpacted)
}

func TestOrderTimelineRequiresOrderID(t *testing.T) {
	svc, err := NewService(newFakeRepository(), nil, Config{})
	require.NoError(t, err)

	_, err = svc.OrderTimeline(context.Background(), uuid.Nil)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestOverviewUsesTrailingWindow(t *testing.T) {
	repo := newFakeRepository()
	now := time.Now().UTC()
	repo.payments = []PaymentRow{
		{ID: uuid.New(), ServiceID: uuid.New(), Status: enums.PaymentStatusCaptured, Amount: money("75.00"), Currency: "EUR", CreatedAt: now, CapturedAt: &now},
	}

	svc, err := NewService(repo, nil, Config{})
	require.NoError(t, err)

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Equal(t, 30, overview.WindowDays)
	require.Equal(t, "75.00", overview.CurrencyTotals["EUR"].Captured.StringFixed(2))
}
