package finance

import (
	"context"
	"fmt"

	pkgerrors "github.com/lukasortiz/taskpay-backend/pkg/errors"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
)

// Alert aliases. The alias keys the persisted de-duplication state.
const (
	AlertDisputeRatio   = "dispute-ratio"
	AlertPayoutBacklog  = "payout-backlog"
	AlertInvoiceOverdue = "invoice-overdue"
	AlertPayoutFailures = "payout-failures"
)

// Alert is a severity-tagged condition derived from a report. Delivery is an
// external concern; this core only generates and de-duplicates.
type Alert struct {
	Alias    string              `json:"alias"`
	Severity enums.AlertSeverity `json:"severity"`
	Message  string              `json:"message"`
}

// GenerateAlerts derives alerts from the report and filters them through the
// persisted per-alias state: only newly-opened alerts are returned and handed
// to the notifier; aliases that stopped firing are closed.
func (s *service) GenerateAlerts(ctx context.Context, report *Report) ([]Alert, error) {
	if report == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report required")
	}

	firing := evaluateAlerts(report)
	byAlias := map[string]Alert{}
	for _, alert := range firing {
		byAlias[alert.Alias] = alert
	}

	opened := []Alert{}
	for _, alias := range []string{AlertDisputeRatio, AlertPayoutBacklog, AlertInvoiceOverdue, AlertPayoutFailures} {
		state, err := s.repo.GetAlertState(ctx, alias)
		if err != nil {
			return nil, err
		}

		alert, isFiring := byAlias[alias]
		wasActive := state != nil && state.Active

		switch {
		case isFiring && !wasActive:
			opened = append(opened, alert)
			if err := s.repo.UpsertAlertState(ctx, &models.AlertState{
				Alias:    alias,
				Active:   true,
				Severity: alert.Severity,
			}); err != nil {
				return nil, err
			}
		case isFiring && wasActive:
			// Still firing; keep the recorded severity current but do not
			// re-notify.
			if state.Severity != alert.Severity {
				state.Severity = alert.Severity
				if err := s.repo.UpsertAlertState(ctx, state); err != nil {
					return nil, err
				}
			}
		case !isFiring && wasActive:
			state.Active = false
			if err := s.repo.UpsertAlertState(ctx, state); err != nil {
				return nil, err
			}
		}
	}

	if s.notifier != nil {
		for _, alert := range opened {
			if err := s.notifier.Publish(ctx, alert); err != nil {
				return nil, fmt.Errorf("publishing alert %s: %w", alert.Alias, err)
			}
		}
	}
	return opened, nil
}

func evaluateAlerts(report *Report) []Alert {
	alerts := []Alert{}

	totalDisputes := report.Disputes.Open + report.Disputes.UnderReview + report.Disputes.Resolved
	successfulOrders := 0
	for _, totals := range report.CurrencyTotals {
		successfulOrders += totals.SuccessfulOrders
	}
	if totalDisputes > 0 && successfulOrders > 0 {
		ratio := float64(totalDisputes) / float64(successfulOrders)
		switch {
		case ratio > 0.10:
			alerts = append(alerts, Alert{
				Alias:    AlertDisputeRatio,
				Severity: enums.AlertSeverityCritical,
				Message:  fmt.Sprintf("dispute ratio %.1f%% exceeds 10%%", ratio*100),
			})
		case ratio > 0.05:
			alerts = append(alerts, Alert{
				Alias:    AlertDisputeRatio,
				Severity: enums.AlertSeverityHigh,
				Message:  fmt.Sprintf("dispute ratio %.1f%% exceeds 5%%", ratio*100),
			})
		case report.Disputes.Open > 0:
			alerts = append(alerts, Alert{
				Alias:    AlertDisputeRatio,
				Severity: enums.AlertSeverityMedium,
				Message:  fmt.Sprintf("%d open disputes", report.Disputes.Open),
			})
		}
	}

	if report.PayoutBacklog.Count > 0 {
		severity := enums.AlertSeverityMedium
		switch {
		case report.PayoutBacklog.OldestAgeDays > 7:
			severity = enums.AlertSeverityCritical
		case report.PayoutBacklog.OldestAgeDays > 3:
			severity = enums.AlertSeverityHigh
		}
		alerts = append(alerts, Alert{
			Alias:    AlertPayoutBacklog,
			Severity: severity,
			Message: fmt.Sprintf("%d payouts pending, oldest %d days overdue",
				report.PayoutBacklog.Count, report.PayoutBacklog.OldestAgeDays),
		})
	}

	for _, invoice := range report.OverdueInvoices {
		if invoice.OverdueDays > 14 {
			alerts = append(alerts, Alert{
				Alias:    AlertInvoiceOverdue,
				Severity: enums.AlertSeverityHigh,
				Message:  fmt.Sprintf("invoice %s overdue %d days", invoice.InvoiceID, invoice.OverdueDays),
			})
			break
		}
	}

	if len(report.PayoutFailures) > 3 {
		alerts = append(alerts, Alert{
			Alias:    AlertPayoutFailures,
			Severity: enums.AlertSeverityHigh,
			Message:  fmt.Sprintf("%d payout failures in window", len(report.PayoutFailures)),
		})
	}

	return alerts
}
