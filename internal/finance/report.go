package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportQuery bounds one report generation.
type ReportQuery struct {
	Start      time.Time
	End        time.Time
	RegionID   *uuid.UUID
	ProviderID *uuid.UUID
}

// CurrencyTotals aggregates one currency's money movement over the window.
type CurrencyTotals struct {
	Captured         decimal.Decimal `json:"captured"`
	Pending          decimal.Decimal `json:"pending"`
	Refunded         decimal.Decimal `json:"refunded"`
	Failed           decimal.Decimal `json:"failed"`
	Disputed         decimal.Decimal `json:"disputed"`
	Payouts          decimal.Decimal `json:"payouts"`
	SuccessfulOrders int             `json:"successful_orders"`
}

// DailyRow is one day of one currency in the report time series.
type DailyRow struct {
	Date     string          `json:"date"`
	Currency string          `json:"currency"`
	Captured decimal.Decimal `json:"captured"`
	Pending  decimal.Decimal `json:"pending"`
	Refunded decimal.Decimal `json:"refunded"`
	Failed   decimal.Decimal `json:"failed"`
	Payouts  decimal.Decimal `json:"payouts"`
	Disputes decimal.Decimal `json:"disputes"`
}

// PayoutBacklog summarizes payout requests past due but not settled.
type PayoutBacklog struct {
	Count             int             `json:"count"`
	Total             decimal.Decimal `json:"total"`
	OldestAgeDays     int             `json:"oldest_age_days"`
	ProvidersImpacted int             `json:"providers_impacted"`
}

// PayoutFailure is one failed payout request listed for review.
type PayoutFailure struct {
	PayoutID   uuid.UUID       `json:"payout_id"`
	ProviderID uuid.UUID       `json:"provider_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Reason     string          `json:"reason"`
}

// DisputeStats summarizes dispute volume in the window.
type DisputeStats struct {
	Open             int             `json:"open"`
	UnderReview      int             `json:"under_review"`
	Resolved         int             `json:"resolved"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	MostRecentOpenAt *time.Time      `json:"most_recent_open_at,omitempty"`
}

// ServiceStats flags a top service by captured revenue with its dispute rate.
type ServiceStats struct {
	ServiceID        uuid.UUID       `json:"service_id"`
	Captured         decimal.Decimal `json:"captured"`
	SuccessfulOrders int             `json:"successful_orders"`
	DisputeCount     int             `json:"dispute_count"`
	DisputeRate      float64         `json:"dispute_rate"`
}

// OverdueInvoice is one unpaid invoice past its due date.
type OverdueInvoice struct {
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	Currency    string          `json:"currency"`
	DueAt       time.Time       `json:"due_at"`
	OverdueDays int             `json:"overdue_days"`
}

// Report is the structured output of one reporting window.
type Report struct {
	Start           time.Time                 `json:"start"`
	End             time.Time                 `json:"end"`
	CurrencyTotals  map[string]CurrencyTotals `json:"currency_totals"`
	Daily           []DailyRow                `json:"daily"`
	PayoutBacklog   PayoutBacklog             `json:"payout_backlog"`
	PayoutFailures  []PayoutFailure           `json:"payout_failures"`
	Disputes        DisputeStats              `json:"disputes"`
	TopServices     []ServiceStats            `json:"top_services"`
	OverdueInvoices []OverdueInvoice          `json:"overdue_invoices"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}

// Overview is the trailing-window summary behind GET /finance/overview.
type Overview struct {
	WindowDays     int                       `json:"window_days"`
	CurrencyTotals map[string]CurrencyTotals `json:"currency_totals"`
	PayoutBacklog  PayoutBacklog             `json:"payout_backlog"`
	Disputes       DisputeStats              `json:"disputes"`
	GeneratedAt    time.Time                 `json:"generated_at"`
}
