package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lukasortiz/taskpay-backend/api/responses"
	"github.com/lukasortiz/taskpay-backend/api/validators"
	"github.com/lukasortiz/taskpay-backend/internal/finance"
	pkgerrors "github.com/lukasortiz/taskpay-backend/pkg/errors"
	"github.com/lukasortiz/taskpay-backend/pkg/logger"
)

const defaultReportWindowDays = 30

// FinanceOverview returns the trailing-window finance summary.
func FinanceOverview(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "finance service unavailable"))
			return
		}

		overview, err := svc.Overview(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

// FinanceReport generates a windowed report as JSON or, with ?format=csv, as
// the daily series export.
func FinanceReport(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "finance service unavailable"))
			return
		}

		query, err := parseReportQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.GenerateReport(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", `attachment; filename="finance-report.csv"`)
			if err := finance.WriteCSV(w, report); err != nil && logg != nil {
				logg.Error(r.Context(), "finance.report.csv_write", err)
			}
			return
		}

		responses.WriteSuccess(w, report)
	}
}

// FinanceAlerts evaluates alert conditions over the requested window and
// returns the alerts that are currently firing.
func FinanceAlerts(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "finance service unavailable"))
			return
		}

		query, err := parseReportQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.GenerateReport(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		alerts, err := svc.GenerateAlerts(r.Context(), report)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"alerts": alerts})
	}
}

// OrderTimeline lists the finance events recorded for one order.
func OrderTimeline(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "finance service unavailable"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id must be a uuid"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}

		events, err := svc.OrderTimeline(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "events": events})
	}
}

func parseReportQuery(r *http.Request) (finance.ReportQuery, error) {
	now := time.Now().UTC()

	end, err := validators.ParseQueryDate(r, "end", now)
	if err != nil {
		return finance.ReportQuery{}, err
	}
	start, err := validators.ParseQueryDate(r, "start", end.AddDate(0, 0, -defaultReportWindowDays))
	if err != nil {
		return finance.ReportQuery{}, err
	}
	regionID, err := validators.ParseQueryUUID(r, "region_id")
	if err != nil {
		return finance.ReportQuery{}, err
	}
	providerID, err := validators.ParseQueryUUID(r, "provider_id")
	if err != nil {
		return finance.ReportQuery{}, err
	}

	return finance.ReportQuery{
		Start:      start,
		End:        end,
		RegionID:   regionID,
		ProviderID: providerID,
	}, nil
}
