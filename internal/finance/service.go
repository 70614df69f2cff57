package finance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
	pkgerrors "github.com/lukasortiz/taskpay-backend/pkg/errors"
)

const (
	overviewWindowDays  = 30
	overdueInvoiceLimit = 15
)

// Service generates finance reports, alerts and read-side views.
type Service interface {
	GenerateReport(ctx context.Context, query ReportQuery) (*Report, error)
	GenerateAlerts(ctx context.Context, report *Report) ([]Alert, error)
	Overview(ctx context.Context) (*Overview, error)
	OrderTimeline(ctx context.Context, orderID uuid.UUID) ([]models.FinanceEvent, error)
}

// Config tunes report shaping.
type Config struct {
	ExportRowLimit   int
	TopServicesLimit int
}

type service struct {
	repo     Repository
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// NewService builds the finance reporting service. The notifier may be nil
// when alert hand-off is not wired (tests, one-shot report runs).
func NewService(repo Repository, notifier Notifier, cfg Config) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("finance repository required")
	}
	if cfg.ExportRowLimit <= 0 {
		cfg.ExportRowLimit = 90
	}
	if cfg.TopServicesLimit <= 0 {
		cfg.TopServicesLimit = 5
	}
	return &service{
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) GenerateReport(ctx context.Context, query ReportQuery) (*Report, error) {
	if query.Start.IsZero() || query.End.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report window start and end required")
	}
	if !query.End.After(query.Start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report window end must be after start")
	}

	window := Window{Start: query.Start, End: query.End, RegionID: query.RegionID, ProviderID: query.ProviderID}

	payments, err := s.repo.ListPayments(ctx, window)
	if err != nil {
		return nil, err
	}
	payouts, err := s.repo.ListPayouts(ctx, window)
	if err != nil {
		return nil, err
	}
	disputes, err := s.repo.ListDisputes(ctx, window)
	if err != nil {
		return nil, err
	}

	now := s.now()
	backlogRows, err := s.repo.ListPendingPayouts(ctx, now)
	if err != nil {
		return nil, err
	}
	invoiceRows, err := s.repo.ListOverdueInvoices(ctx, now, overdueInvoiceLimit)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Start:           query.Start,
		End:             query.End,
		CurrencyTotals:  buildCurrencyTotals(payments, payouts, disputes),
		Daily:           buildDailySeries(payments, payouts, disputes, s.cfg.ExportRowLimit),
		PayoutBacklog:   buildBacklog(backlogRows, now),
		PayoutFailures:  buildPayoutFailures(payouts),
		Disputes:        buildDisputeStats(disputes),
		TopServices:     buildTopServices(payments, disputes, s.cfg.TopServicesLimit),
		OverdueInvoices: buildOverdueInvoices(invoiceRows, now),
		GeneratedAt:     now,
	}
	return report, nil
}

func (s *service) Overview(ctx context.Context) (*Overview, error) {
	now := s.now()
	report, err := s.GenerateReport(ctx, ReportQuery{
		Start: now.AddDate(0, 0, -overviewWindowDays),
		End:   now,
	})
	if err != nil {
		return nil, err
	}
	return &Overview{
		WindowDays:     overviewWindowDays,
		CurrencyTotals: report.CurrencyTotals,
		PayoutBacklog:  report.PayoutBacklog,
		Disputes:       report.Disputes,
		GeneratedAt:    report.GeneratedAt,
	}, nil
}

func (s *service) OrderTimeline(ctx context.Context, orderID uuid.UUID) ([]models.FinanceEvent, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.ListEventsByOrderID(ctx, orderID)
}

func buildCurrencyTotals(payments []PaymentRow, payouts []PayoutRow, disputes []DisputeRow) map[string]CurrencyTotals {
	totals := map[string]CurrencyTotals{}
	get := func(currency string) CurrencyTotals {
		if t, ok := totals[currency]; ok {
			return t
		}
		return CurrencyTotals{
			Captured: decimal.Zero,
			Pending:  decimal.Zero,
			Refunded: decimal.Zero,
			Failed:   decimal.Zero,
			Disputed: decimal.Zero,
			Payouts:  decimal.Zero,
		}
	}

	for _, p := range payments {
		t := get(p.Currency)
		switch p.Status {
		case enums.PaymentStatusCaptured:
			t.Captured = t.Captured.Add(p.Amount)
			t.SuccessfulOrders++
		case enums.PaymentStatusPending:
			t.Pending = t.Pending.Add(p.Amount)
		case enums.PaymentStatusRefunded:
			t.Refunded = t.Refunded.Add(p.Amount)
		case enums.PaymentStatusFailed, enums.PaymentStatusCancelled:
			t.Failed = t.Failed.Add(p.Amount)
		}
		totals[p.Currency] = t
	}
	for _, p := range payouts {
		if p.Status != enums.PayoutStatusPaid {
			continue
		}
		t := get(p.Currency)
		t.Payouts = t.Payouts.Add(p.Amount)
		totals[p.Currency] = t
	}
	for _, d := range disputes {
		t := get(d.Currency)
		t.Disputed = t.Disputed.Add(d.Amount)
		totals[d.Currency] = t
	}
	return totals
}

func buildDailySeries(payments []PaymentRow, payouts []PayoutRow, disputes []DisputeRow, limit int) []DailyRow {
	type key struct {
		date     string
		currency string
	}
	rows := map[key]DailyRow{}
	get := func(date, currency string) DailyRow {
		k := key{date, currency}
		if row, ok := rows[k]; ok {
			return row
		}
		return DailyRow{
			Date:     date,
			Currency: currency,
			Captured: decimal.Zero,
			Pending:  decimal.Zero,
			Refunded: decimal.Zero,
			Failed:   decimal.Zero,
			Payouts:  decimal.Zero,
			Disputes: decimal.Zero,
		}
	}
	put := func(row DailyRow) {
		rows[key{row.Date, row.Currency}] = row
	}

	for _, p := range payments {
		switch p.Status {
		case enums.PaymentStatusCaptured:
			at := p.CreatedAt
			if p.CapturedAt != nil {
				at = *p.CapturedAt
			}
			row := get(dateOf(at), p.Currency)
			row.Captured = row.Captured.Add(p.Amount)
			put(row)
		case enums.PaymentStatusPending:
			row := get(dateOf(p.CreatedAt), p.Currency)
			row.Pending = row.Pending.Add(p.Amount)
			put(row)
		case enums.PaymentStatusRefunded:
			at := p.CreatedAt
			if p.RefundedAt != nil {
				at = *p.RefundedAt
			}
			row := get(dateOf(at), p.Currency)
			row.Refunded = row.Refunded.Add(p.Amount)
			put(row)
		case enums.PaymentStatusFailed, enums.PaymentStatusCancelled:
			row := get(dateOf(p.CreatedAt), p.Currency)
			row.Failed = row.Failed.Add(p.Amount)
			put(row)
		}
	}
	for _, p := range payouts {
		if p.Status != enums.PayoutStatusPaid {
			continue
		}
		row := get(dateOf(p.ScheduledFor), p.Currency)
		row.Payouts = row.Payouts.Add(p.Amount)
		put(row)
	}
	for _, d := range disputes {
		row := get(dateOf(d.OpenedAt), d.Currency)
		row.Disputes = row.Disputes.Add(d.Amount)
		put(row)
	}

	series := make([]DailyRow, 0, len(rows))
	for _, row := range rows {
		series = append(series, row)
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].Date != series[j].Date {
			return series[i].Date < series[j].Date
		}
		return series[i].Currency < series[j].Currency
	})

	// Oldest rows are dropped first when the series exceeds the export row limit.
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	return series
}

func buildBacklog(rows []PayoutRow, now time.Time) PayoutBacklog {
	backlog := PayoutBacklog{Total: decimal.Zero}
	providers := map[uuid.UUID]struct{}{}
	for _, row := range rows {
		backlog.Count++
		backlog.Total = backlog.Total.Add(row.Amount)
		providers[row.ProviderID] = struct{}{}
		age := int(now.Sub(row.ScheduledFor).Hours() / 24)
		if age > backlog.OldestAgeDays {
			backlog.OldestAgeDays = age
		}
	}
	backlog.ProvidersImpacted = len(providers)
	return backlog
}

func buildPayoutFailures(payouts []PayoutRow) []PayoutFailure {
	failures := []PayoutFailure{}
	for _, p := range payouts {
		if p.Status != enums.PayoutStatusFailed {
			continue
		}
		reason := ""
		if p.FailureReason != nil {
			reason = *p.FailureReason
		}
		failures = append(failures, PayoutFailure{
			PayoutID:   p.ID,
			ProviderID: p.ProviderID,
			Amount:     p.Amount,
			Currency:   p.Currency,
			Reason:     reason,
		})
	}
	return failures
}

func buildDisputeStats(disputes []DisputeRow) DisputeStats {
	stats := DisputeStats{TotalAmount: decimal.Zero}
	for _, d := range disputes {
		switch d.Status {
		case enums.DisputeStatusOpen:
			stats.Open++
			if stats.MostRecentOpenAt == nil || d.OpenedAt.After(*stats.MostRecentOpenAt) {
				at := d.OpenedAt
				stats.MostRecentOpenAt = &at
			}
		case enums.DisputeStatusUnderReview:
			stats.UnderReview++
		case enums.DisputeStatusResolved:
			stats.Resolved++
		}
		stats.TotalAmount = stats.TotalAmount.Add(d.Amount)
	}
	return stats
}

func buildTopServices(payments []PaymentRow, disputes []DisputeRow, limit int) []ServiceStats {
	byService := map[uuid.UUID]*ServiceStats{}
	for _, p := range payments {
		if p.Status != enums.PaymentStatusCaptured {
			continue
		}
		stats, ok := byService[p.ServiceID]
		if !ok {
			stats = &ServiceStats{ServiceID: p.ServiceID, Captured: decimal.Zero}
			byService[p.ServiceID] = stats
		}
		stats.Captured = stats.Captured.Add(p.Amount)
		stats.SuccessfulOrders++
	}
	for _, d := range disputes {
		if d.ServiceID == nil {
			continue
		}
		if stats, ok := byService[*d.ServiceID]; ok {
			stats.DisputeCount++
		}
	}

	ranked := make([]ServiceStats, 0, len(byService))
	for _, stats := range byService {
		if stats.SuccessfulOrders > 0 {
			stats.DisputeRate = float64(stats.DisputeCount) / float64(stats.SuccessfulOrders)
		}
		ranked = append(ranked, *stats)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Captured.GreaterThan(ranked[j].Captured)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func buildOverdueInvoices(rows []InvoiceRow, now time.Time) []OverdueInvoice {
	invoices := make([]OverdueInvoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, OverdueInvoice{
			InvoiceID:   row.ID,
			OrderID:     row.OrderID,
			AmountDue:   row.AmountDue,
			Currency:    row.Currency,
			DueAt:       row.DueAt,
			OverdueDays: int(now.Sub(row.DueAt).Hours() / 24),
		})
	}
	return invoices
}

func dateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
