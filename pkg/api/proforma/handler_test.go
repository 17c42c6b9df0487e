package proforma

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"deal_proforma/pkg/core/loan"
	core "deal_proforma/pkg/core/proforma"
)

const dealJSON = `{
  "project": {
    "id": "maple-court",
    "closing_date": "2025-01-15",
    "leasing_start_date": "2025-07-01",
    "stabilized_date": "2026-07-01"
  },
  "revenues": [{"name": "Units", "base_monthly_amount": 10000, "at_leasing_start": true}],
  "costs": [{"name": "Land", "category": "hard", "amount": 750000, "payment_mode": "single", "month": 0}],
  "loans": [{"name": "Construction", "mode": "interest_only", "principal": 500000,
             "annual_rate_pct": 8, "term_months": 24, "funding_month": 0, "first_payment_month": 1}]
}`

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(core.NewEngine(24), nil).Register(mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleGrid(t *testing.T) {
	rec := do(newMux(), http.MethodPost, "/api/proforma/grid", dealJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var proj core.Projection
	if err := json.NewDecoder(rec.Body).Decode(&proj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if proj.Grid.Horizon != 24 || proj.Grid.Labels[0] != "Jan 2025" {
		t.Errorf("grid header: %d %v", proj.Grid.Horizon, proj.Grid.Labels[:1])
	}
	if proj.Grid.Funding.Values[0] != 500000 {
		t.Errorf("funding[0] = %v", proj.Grid.Funding.Values[0])
	}
	if len(proj.Loans) != 1 || len(proj.Loans[0].Table) != 23 {
		t.Errorf("loans = %+v", proj.Loans)
	}
}

func TestHandleGrid_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"Wrong method", http.MethodGet, "/api/proforma/grid", "", http.StatusMethodNotAllowed},
		{"Bad date", http.MethodPost, "/api/proforma/grid", `{"project": {"closing_date": "not a date"}}`, http.StatusBadRequest},
		{"Bad horizon", http.MethodPost, "/api/proforma/grid?horizon=x", dealJSON, http.StatusBadRequest},
		{"Huge horizon", http.MethodPost, "/api/proforma/grid?horizon=1000000000", dealJSON, http.StatusBadRequest},
		{"Huge loan horizon", http.MethodPost, "/api/proforma/loan", `{"terms": {"name": "L", "mode": "amortizing", "principal": 100, "term_months": 12}, "horizon": 1000000000}`, http.StatusBadRequest},
		{"Huge loan term", http.MethodPost, "/api/proforma/loan", `{"terms": {"name": "L", "mode": "amortizing", "principal": 100, "term_months": 1000000000}}`, http.StatusUnprocessableEntity},
		{"Loan past horizon", http.MethodPost, "/api/proforma/grid?horizon=12",
			strings.Replace(dealJSON, `"first_payment_month": 1`, `"first_payment_month": 15`, 1), http.StatusUnprocessableEntity},
		{"Bad report format", http.MethodPost, "/api/proforma/report?format=pdf", dealJSON, http.StatusBadRequest},
	}

	mux := newMux()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, tt.method, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
				t.Errorf("want JSON error body, got %v (%v)", body, err)
			}
		})
	}
}

func TestHandleOptions(t *testing.T) {
	rec := do(newMux(), http.MethodOptions, "/api/proforma/grid", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight: %d %v", rec.Code, rec.Header())
	}
}

func TestHandleReport(t *testing.T) {
	mux := newMux()

	md := do(mux, http.MethodPost, "/api/proforma/report", dealJSON)
	if md.Code != http.StatusOK || !strings.HasPrefix(md.Body.String(), "| Line | Jan 2025") {
		t.Errorf("markdown report: %d %q", md.Code, md.Body.String())
	}

	html := do(mux, http.MethodPost, "/api/proforma/report?format=html&rollup=annual&title=Maple", dealJSON)
	if html.Code != http.StatusOK {
		t.Fatalf("html status = %d: %s", html.Code, html.Body.String())
	}
	if ct := html.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	body := html.Body.String()
	for _, want := range []string{"<h1>Maple</h1>", "<table>", "Year 2"} {
		if !strings.Contains(body, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestHandleLoan(t *testing.T) {
	body := `{"terms": {"name": "Perm", "mode": "amortizing", "principal": 1200, "annual_rate_pct": 0,
	          "term_months": 12, "funding_month": 0, "first_payment_month": 1}, "horizon": 6}`
	rec := do(newMux(), http.MethodPost, "/api/proforma/loan", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var s loan.Schedule
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Full term in the table, horizon-length vectors.
	if len(s.Table) != 12 || len(s.Principal) != 6 {
		t.Fatalf("table %d rows, principal %d months", len(s.Table), len(s.Principal))
	}
	if s.Principal[1] != 100 || s.Table[11].Balance != 0 {
		t.Errorf("principal[1] = %v, final balance = %v", s.Principal[1], s.Table[11].Balance)
	}
}
