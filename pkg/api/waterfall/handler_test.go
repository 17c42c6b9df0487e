package waterfall

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"deal_proforma/pkg/core/distribution"
	"deal_proforma/pkg/core/mq"
	"deal_proforma/pkg/core/store"
	core "deal_proforma/pkg/core/waterfall"
)

type fakePublisher struct {
	err  error
	keys []string
	sent []core.Event
}

func (p *fakePublisher) Publish(_ context.Context, routingKey string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	p.sent = append(p.sent, payload.(core.Event))
	return nil
}

const registerBody = `{
  "project_id": "maple-court",
  "total_project_cost": 3000000,
  "lp_share_pct": 50,
  "investors": [
    {"id": "gp", "name": "Sponsor", "role": "gp", "capital_contributed": "1000000"},
    {"id": "lp", "name": "Fund I", "role": "lp", "capital_contributed": "2000000"}
  ]
}`

const refiBody = `{"id": "refi-1", "project_id": "maple-court", "source": "refinance", "amount": "900000", "at": "2026-01-20T00:00:00Z"}`

func newTestMux(t *testing.T, pub EventPublisher) *http.ServeMux {
	t.Helper()
	ledger, err := store.NewSQLiteLedger(":memory:")
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	svc := distribution.NewService(ledger, core.Policy{}, core.AccrualRule{RatePct: 8, Period: core.Monthly}, nil)
	mux := http.NewServeMux()
	NewHandler(svc, store.NewEventDeduper(nil, 0), pub, 50, nil).Register(mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRegisterDerivesHoldings(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := do(mux, http.MethodPost, "/api/waterfall/investors", registerBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	var state core.State
	decode(t, rec, &state)

	gp, _ := state.Investor("gp")
	lp, _ := state.Investor("lp")
	if !lp.HoldingPct.Equal(d("33.3333")) || !gp.HoldingPct.Equal(d("66.6667")) {
		t.Errorf("holdings gp=%s lp=%s", gp.HoldingPct, lp.HoldingPct)
	}
	if !lp.OutstandingCapital.Equal(d("2000000")) {
		t.Errorf("lp outstanding = %s", lp.OutstandingCapital)
	}

	got := do(mux, http.MethodGet, "/api/waterfall/investors?project_id=maple-court", "")
	if got.Code != http.StatusOK {
		t.Errorf("get status = %d", got.Code)
	}
	if missing := do(mux, http.MethodGet, "/api/waterfall/investors?project_id=nope", ""); missing.Code != http.StatusNotFound {
		t.Errorf("unknown project status = %d", missing.Code)
	}
}

func TestSubmitEvent_Inline(t *testing.T) {
	mux := newTestMux(t, nil)
	do(mux, http.MethodPost, "/api/waterfall/investors", registerBody)

	// Preview first; it must not record anything.
	preview := do(mux, http.MethodPost, "/api/waterfall/preview", refiBody)
	if preview.Code != http.StatusOK {
		t.Fatalf("preview status = %d: %s", preview.Code, preview.Body.String())
	}

	rec := do(mux, http.MethodPost, "/api/waterfall/events", refiBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}
	var dist core.Distribution
	decode(t, rec, &dist)
	gp, _ := dist.Line("gp")
	lp, _ := dist.Line("lp")
	if !gp.Total().Equal(d("300000")) || !lp.Total().Equal(d("600000")) {
		t.Errorf("payouts gp=%s lp=%s", gp.Total(), lp.Total())
	}

	if again := do(mux, http.MethodPost, "/api/waterfall/events", refiBody); again.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d", again.Code)
	}

	list := do(mux, http.MethodGet, "/api/waterfall/distributions?project_id=maple-court", "")
	var dists []core.Distribution
	decode(t, list, &dists)
	if len(dists) != 1 || dists[0].EventID != "refi-1" {
		t.Errorf("distributions = %+v", dists)
	}
}

func TestSubmitEvent_Rejections(t *testing.T) {
	mux := newTestMux(t, nil)
	do(mux, http.MethodPost, "/api/waterfall/investors", registerBody)
	do(mux, http.MethodPost, "/api/waterfall/events", refiBody)

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"Zero amount", `{"project_id": "maple-court", "source": "sale", "amount": "0", "at": "2026-02-01T00:00:00Z"}`, http.StatusBadRequest, ""},
		{"Sub-cent amount", `{"project_id": "maple-court", "source": "sale", "amount": "10.005", "at": "2026-02-01T00:00:00Z"}`, http.StatusBadRequest, "fractional cents"},
		{"Unknown source", `{"project_id": "maple-court", "source": "gift", "amount": "10", "at": "2026-02-01T00:00:00Z"}`, http.StatusBadRequest, ""},
		{"Missing project", `{"source": "sale", "amount": "10", "at": "2026-02-01T00:00:00Z"}`, http.StatusBadRequest, ""},
		{"Unknown project", `{"project_id": "nope", "source": "sale", "amount": "10", "at": "2026-02-01T00:00:00Z"}`, http.StatusNotFound, ""},
		{"Out of order", `{"project_id": "maple-court", "source": "noi", "amount": "10", "at": "2025-12-01T00:00:00Z"}`, http.StatusConflict, ""},
		{"Malformed", `{"amount": }`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, http.MethodPost, "/api/waterfall/events", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.message != "" && !strings.Contains(rec.Body.String(), tt.message) {
				t.Errorf("body %q does not mention %q", rec.Body.String(), tt.message)
			}
		})
	}

	// Preview applies the same whole-cent rule.
	rec := do(mux, http.MethodPost, "/api/waterfall/preview", `{"project_id": "maple-court", "source": "sale", "amount": "0.001", "at": "2026-02-01T00:00:00Z"}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "fractional cents") {
		t.Errorf("preview sub-cent: status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitEvent_Queued(t *testing.T) {
	pub := &fakePublisher{}
	mux := newTestMux(t, pub)

	body := `{"project_id": "maple-court", "source": "sale", "amount": "1500.25", "at": "2026-03-01T00:00:00Z"}`
	rec := do(mux, http.MethodPost, "/api/waterfall/events", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp SubmitResponse
	decode(t, rec, &resp)

	if len(pub.sent) != 1 || pub.keys[0] != mq.RoutingKeyEventSubmitted {
		t.Fatalf("published = %+v %v", pub.sent, pub.keys)
	}
	if resp.EventID == "" || pub.sent[0].ID != resp.EventID {
		t.Errorf("generated id %q not carried to the queue (%q)", resp.EventID, pub.sent[0].ID)
	}

	pub.err = errors.New("broker down")
	if failed := do(mux, http.MethodPost, "/api/waterfall/events", body); failed.Code != http.StatusServiceUnavailable {
		t.Errorf("publish failure status = %d", failed.Code)
	}
}

func TestDistributions_RequiresProject(t *testing.T) {
	mux := newTestMux(t, nil)
	if rec := do(mux, http.MethodGet, "/api/waterfall/distributions", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if rec := do(mux, http.MethodPost, "/api/waterfall/distributions", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}
