package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"stationdesk/internal/backoffice/memory"
	"stationdesk/internal/core"
	applog "stationdesk/internal/log"
	"stationdesk/internal/services"
)

var (
	adminUser = core.User{Name: "Dana", Role: core.RoleAdmin}
	staffUser = core.User{Name: "Sam", Role: core.RoleStaff}
)

func side(total, resolved float64) core.AmountBreakdown {
	return core.AmountBreakdown{
		TotalAmount:    core.Amount(total),
		ResolvedAmount: core.Amount(resolved),
		PendingAmount:  core.Amount(core.Round2(total - resolved)),
	}
}

func testSeed() memory.Seed {
	return memory.Seed{
		PendingItems: []core.PendingItem{
			{ID: 1, Date: core.NewDate(2026, 3, 1), User: "Morgan", Safedrops: side(500, 250), CashInHand: side(100, 100)},
			{ID: 2, Date: core.NewDate(2026, 3, 2), User: "Riley", Safedrops: side(300, 0), CashInHand: side(80, 20)},
		},
		BankAccounts: []core.BankAccount{
			{ID: 1, AccountName: "Operating", AccountType: "checking", IsActive: true},
			{ID: 2, AccountName: "Reserve", AccountType: "savings", IsActive: true},
			{ID: 4, AccountName: "Legacy", AccountType: "checking", IsActive: false},
		},
		DailySales: []core.DailySale{
			{ID: 1, Date: core.NewDate(2026, 3, 1), FuelSales: 4200, StoreSales: 800.5, LotterySales: 100},
		},
		FuelVolumes: []core.FuelVolume{
			{ID: 1, Date: core.NewDate(2026, 3, 1), Grade: "regular", Volume: 18000},
			{ID: 2, Date: core.NewDate(2026, 3, 2), Grade: "regular", Volume: 16549.5},
		},
		Settlement: []core.SettlementEntry{
			{ID: 1, Date: core.NewDate(2026, 3, 1), Description: "Card settlement", Credit: 2940},
			{ID: 2, Date: core.NewDate(2026, 3, 1), Description: "Fuel supplier", Debit: 3000},
		},
	}
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{
		Handler:   slog.NewTextHandler(io.Discard, nil),
		Component: applog.ComponentApp,
	})
}

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(testSeed())
	srv, err := NewServer(":0", Deps{
		Pending:     store,
		Accounts:    store,
		History:     store,
		Reports:     store,
		Resolutions: services.NewResolutionService(store, nil, nil),
		Logger:      quietLogger(),
	}, opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	if srv.templates == nil {
		t.Fatal("templates failed to parse")
	}
	return srv, store
}

func do(srv *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, Options{DevUser: adminUser})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	rr := do(srv, http.MethodGet, "/metrics", nil)
	for _, want := range []string{"http_requests_total", `resolutions_total{outcome="accepted"} 0`, "uptime_seconds"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestReadyReportsFailingCheck(t *testing.T) {
	store := memory.New(testSeed())
	srv, err := NewServer(":0", Deps{
		Pending:     store,
		Accounts:    store,
		History:     store,
		Reports:     store,
		Resolutions: services.NewResolutionService(store, nil, nil),
		Logger:      quietLogger(),
		Checks: map[string]ReadinessCheck{
			"journal": func(context.Context) error { return errors.New("locked") },
		},
	}, Options{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Shutdown(context.Background())

	rr := do(srv, http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "failed: locked") {
		t.Errorf("body missing check failure: %s", rr.Body.String())
	}
}

func TestNewServerRequiresDeps(t *testing.T) {
	if _, err := NewServer(":0", Deps{}, Options{}); err == nil {
		t.Fatal("expected error without backend readers")
	}
}

func TestIndexRedirects(t *testing.T) {
	srv, _ := newTestServer(t, Options{DevUser: adminUser})
	rr := do(srv, http.MethodGet, "/", nil)
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/pending" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestPendingPage(t *testing.T) {
	srv, _ := newTestServer(t, Options{DevUser: adminUser})

	rr := do(srv, http.MethodGet, "/pending", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Mar 1, 2026", "$250.00", "/ui/resolve-modal?daily_sale_id=1", "No resolutions yet."} {
		if !strings.Contains(body, want) {
			t.Errorf("pending page missing %q", want)
		}
	}
	if strings.Contains(body, "daily_sale_id=1&amp;type=cash_in_hand") {
		t.Error("settled side must not offer a resolve action")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestPendingPageHidesResolveForStaff(t *testing.T) {
	srv, _ := newTestServer(t, Options{DevUser: staffUser})

	rr := do(srv, http.MethodGet, "/ui/pending-items", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "/ui/resolve-modal") {
		t.Error("staff must not see resolve actions")
	}

	if rr := do(srv, http.MethodGet, "/ui/resolve-modal?daily_sale_id=1&type=safedrops", nil); rr.Code != http.StatusForbidden {
		t.Errorf("modal status=%d, want 403", rr.Code)
	}
}

func TestResolveModal(t *testing.T) {
	srv, _ := newTestServer(t, Options{DevUser: adminUser})

	rr := do(srv, http.MethodGet, "/ui/resolve-modal?daily_sale_id=1&type=safedrops", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{`name="pending_amount" value="250.00"`, "Operating (checking)", "Resolve Safedrops"} {
		if !strings.Contains(body, want) {
			t.Errorf("modal missing %q", want)
		}
	}
	if strings.Contains(body, "Legacy") {
		t.Error("inactive accounts must not be selectable")
	}

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"settled side", "daily_sale_id=1&type=cash_in_hand", http.StatusNotFound},
		{"unknown day", "daily_sale_id=99&type=safedrops", http.StatusNotFound},
		{"bad type", "daily_sale_id=1&type=coins", http.StatusBadRequest},
		{"missing id", "type=safedrops", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, http.MethodGet, "/ui/resolve-modal?"+tt.query, nil)
			if rr.Code != tt.status {
				t.Errorf("status=%d, want %d", rr.Code, tt.status)
			}
		})
	}
}

func modalForm(id int64, kind core.ResolutionType, rows ...core.Allocation) url.Values {
	f := url.Values{
		"daily_sale_id":  {strconv.FormatInt(id, 10)},
		"type":           {string(kind)},
		"pending_amount": {"250.00"},
		"date":           {"2026-03-01"},
	}
	for _, r := range rows {
		f.Add("bank_account_id[]", strconv.FormatInt(r.BankAccountID, 10))
		f.Add("amount[]", amountInput(r.Amount))
		f.Add("notes[]", r.Notes)
	}
	return f
}

func TestResolveRowsActions(t *testing.T) {
	srv, _ := newTestServer(t, Options{DevUser: adminUser})

	form := modalForm(1, core.Safedrops, core.Allocation{BankAccountID: 1, Amount: 100})
	form.Set("action", ActionAdd)
	rr := do(srv, http.MethodPost, "/ui/resolve-modal/rows", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("add status=%d body=%s", rr.Code, rr.Body.String())
	}
	if n := strings.Count(rr.Body.String(), `name="amount[]"`); n != 2 {
		t.Errorf("rows after add = %d, want 2", n)
	}

	form = modalForm(1, core.Safedrops, core.Allocation{BankAccountID: 1})
	form.Set("action", ActionAutoFill)
	rr = do(srv, http.MethodPost, "/ui/resolve-modal/rows", form)
	if !strings.Contains(rr.Body.String(), `value="250"`) {
		t.Errorf("autofill did not fill the pending amount: %s", rr.Body.String())
	}

	// Amounts are clamped to the pending amount.
	form = modalForm(1, core.Safedrops, core.Allocation{BankAccountID: 1, Amount: 900})
	rr = do(srv, http.MethodPost, "/ui/resolve-modal/rows", form)
	if !strings.Contains(rr.Body.String(), `value="250"`) {
		t.Errorf("amount not clamped: %s", rr.Body.String())
	}

	rr = do(srv, http.MethodPost, "/ui/resolve-modal/rows", url.Values{"type": {"safedrops"}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing id status=%d, want 400", rr.Code)
	}
}

func TestSubmitResolution(t *testing.T) {
	srv, store := newTestServer(t, Options{DevUser: adminUser})

	form := modalForm(1, core.Safedrops,
		core.Allocation{BankAccountID: 1, Amount: 200, Notes: "deposit"},
		core.Allocation{BankAccountID: 2, Amount: 50})
	rr := do(srv, http.MethodPost, "/resolutions", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{"pending:refresh", "history:refresh", "modal:close", "Safedrops resolved"} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger %q missing %q", trigger, want)
		}
	}

	items, _ := store.ListPendingItems(context.Background())
	for _, item := range items {
		if item.ID == 1 {
			t.Errorf("day 1 still pending after resolve: %+v", item.Safedrops)
		}
	}

	rr = do(srv, http.MethodGet, "/ui/resolution-history", nil)
	if !strings.Contains(rr.Body.String(), "Operating") || !strings.Contains(rr.Body.String(), "deposit") {
		t.Errorf("history missing new records: %s", rr.Body.String())
	}

	// The day is settled now.
	rr = do(srv, http.MethodPost, "/resolutions", form)
	if rr.Code != http.StatusNotFound {
		t.Errorf("resubmit status=%d, want 404", rr.Code)
	}

	rr = do(srv, http.MethodGet, "/metrics", nil)
	if !strings.Contains(rr.Body.String(), `resolutions_total{outcome="accepted"} 1`) {
		t.Errorf("accepted counter not incremented")
	}
}

func TestSubmitResolutionRejected(t *testing.T) {
	tests := []struct {
		name     string
		rows     []core.Allocation
		status   int
		contains []string
	}{
		{
			name:     "over allocated",
			rows:     []core.Allocation{{BankAccountID: 1, Amount: 300}},
			status:   http.StatusUnprocessableEntity,
			contains: []string{"Allocated total exceeds the pending amount", `value="300"`},
		},
		{
			name:     "row without account",
			rows:     []core.Allocation{{Amount: 10}},
			status:   http.StatusUnprocessableEntity,
			contains: []string{"Select a bank account"},
		},
		{
			name:     "backend rejects inactive account",
			rows:     []core.Allocation{{BankAccountID: 4, Amount: 10}},
			status:   http.StatusUnprocessableEntity,
			contains: []string{"The given data was invalid.", "The selected bank account is invalid."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer(t, Options{DevUser: adminUser})

			rr := do(srv, http.MethodPost, "/resolutions", modalForm(1, core.Safedrops, tt.rows...))
			if rr.Code != tt.status {
				t.Fatalf("status=%d, want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
			for _, want := range tt.contains {
				if !strings.Contains(rr.Body.String(), want) {
					t.Errorf("body missing %q", want)
				}
			}

			items, _ := store.ListPendingItems(context.Background())
			if got := items[0].Safedrops.PendingAmount.Float64(); got != 250 {
				t.Errorf("pending changed to %v after a rejected submit", got)
			}
		})
	}
}

func TestSubmitResolutionForbiddenForStaff(t *testing.T) {
	srv, _ := newTestServer(t, Options{DevUser: staffUser})
	rr := do(srv, http.MethodPost, "/resolutions", modalForm(1, core.Safedrops, core.Allocation{BankAccountID: 1, Amount: 10}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", rr.Code)
	}
}

func TestResolveRowsForbiddenForStaff(t *testing.T) {
	srv, _ := newTestServer(t, Options{DevUser: staffUser})
	form := modalForm(2, core.Safedrops, core.Allocation{BankAccountID: 1, Amount: 10})
	form.Set("action", ActionAdd)

	rr := do(srv, http.MethodPost, "/ui/resolve-modal/rows", form)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "<option") {
		t.Fatalf("bank accounts rendered for staff: %s", rr.Body.String())
	}
}

func TestIdentityFromTrustedProxy(t *testing.T) {
	srv, _ := newTestServer(t, Options{TrustedProxies: []string{"192.0.2.1"}})

	req := httptest.NewRequest(http.MethodGet, "/ui/resolve-modal?daily_sale_id=1&type=safedrops", nil)
	req.Header.Set("X-Auth-User", "Dana")
	req.Header.Set("X-Auth-Role", "Admin")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("proxied admin status=%d", rr.Code)
	}

	rr = do(srv, http.MethodGet, "/ui/resolve-modal?daily_sale_id=1&type=safedrops", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("anonymous status=%d, want 403", rr.Code)
	}
}

func TestRateLimitAppliesToPosts(t *testing.T) {
	srv, _ := newTestServer(t, Options{DevUser: adminUser, RateLimitPerMinute: 1})

	form := modalForm(1, core.Safedrops, core.Allocation{})
	if rr := do(srv, http.MethodPost, "/ui/resolve-modal/rows", form); rr.Code != http.StatusOK {
		t.Fatalf("first post status=%d", rr.Code)
	}
	rr := do(srv, http.MethodPost, "/ui/resolve-modal/rows", form)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second post status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	for i := 0; i < 3; i++ {
		if rr := do(srv, http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
			t.Fatalf("GET limited: status=%d", rr.Code)
		}
	}
}

func TestReports(t *testing.T) {
	srv, _ := newTestServer(t, Options{DevUser: adminUser})
	q := "?from=2026-03-01&to=2026-03-02"

	tests := []struct {
		path     string
		contains []string
	}{
		{"/reports/daily-sales", []string{"$4,200.00", "$5,100.50"}},
		{"/reports/fuel-volumes", []string{"regular", "18000.00", "-1450.50"}},
		{"/reports/settlement", []string{"Card settlement", "-$60.00"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(srv, http.MethodGet, tt.path+q, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			for _, want := range tt.contains {
				if !strings.Contains(rr.Body.String(), want) {
					t.Errorf("%s missing %q", tt.path, want)
				}
			}
		})
	}

	rr := do(srv, http.MethodGet, "/reports/settlement?from=2026-03-05&to=2026-03-01", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad range status=%d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Choose a valid date range") {
		t.Error("bad range page missing error")
	}
}
