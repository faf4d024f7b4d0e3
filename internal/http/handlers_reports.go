package http

import (
	"context"
	"net/http"

	applog "stationdesk/internal/log"
	"stationdesk/internal/reports"
)

// reportView is shared by the report pages; exactly one of the report
// fields is set.
type reportView struct {
	From       string
	To         string
	Error      string
	Sales      *reports.SalesBreakdown
	Volumes    []reports.GradeVolumes
	Settlement *reports.Settlement
}

func (s *Server) handleDailySalesReport(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, "Daily sales", "daily-sales", "reports_daily_sales.html",
		func(ctx context.Context, rng DateRange, v *reportView) error {
			sales, err := s.deps.Reports.ListDailySales(ctx, rng.From, rng.To)
			if err != nil {
				return err
			}
			b := reports.DailySalesBreakdown(sales)
			v.Sales = &b
			return nil
		})
}

func (s *Server) handleFuelVolumesReport(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, "Fuel volumes", "fuel-volumes", "reports_fuel_volumes.html",
		func(ctx context.Context, rng DateRange, v *reportView) error {
			volumes, err := s.deps.Reports.ListFuelVolumes(ctx, rng.From, rng.To)
			if err != nil {
				return err
			}
			v.Volumes = reports.FuelVolumeDeltas(volumes)
			return nil
		})
}

func (s *Server) handleSettlementReport(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, "Settlement", "settlement", "reports_settlement.html",
		func(ctx context.Context, rng DateRange, v *reportView) error {
			entries, err := s.deps.Reports.ListSettlementEntries(ctx, rng.From, rng.To)
			if err != nil {
				return err
			}
			l := reports.SettlementLedger(entries)
			v.Settlement = &l
			return nil
		})
}

// report parses the date range, loads one report and renders its page. A
// bad range renders the page with an error and a 400 status.
func (s *Server) report(w http.ResponseWriter, r *http.Request, title, active, tmpl string, load func(context.Context, DateRange, *reportView) error) {
	rng, err := ParseDateRange(r.URL.Query(), s.now())
	view := reportView{From: rng.From.String(), To: rng.To.String()}
	if err != nil {
		view.Error = "Choose a valid date range of at most a year."
		view.From, view.To = r.URL.Query().Get("from"), r.URL.Query().Get("to")
		s.render(w, r, http.StatusBadRequest, tmpl, s.page(r, title, active, view))
		return
	}

	ctx, cancel := s.backendContext(r.Context())
	defer cancel()

	status := http.StatusOK
	if err := load(ctx, rng, &view); err != nil {
		s.log(r, applog.ComponentReports).ErrorContext(r.Context(), "Failed to load report",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRead,
			"report", active,
			"from", rng.From.String(),
			"to", rng.To.String())
		view.Error = "Could not load the report. Please try again."
		status = http.StatusBadGateway
	}
	s.render(w, r, status, tmpl, s.page(r, title, active, view))
}

// Empty reports whether the loaded report has no rows.
func (v reportView) Empty() bool {
	switch {
	case v.Sales != nil:
		return len(v.Sales.Rows) == 0
	case v.Settlement != nil:
		return len(v.Settlement.Rows) == 0
	default:
		return len(v.Volumes) == 0
	}
}
