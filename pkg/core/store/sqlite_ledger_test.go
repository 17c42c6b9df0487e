package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"deal_proforma/pkg/core/waterfall"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(":memory:")
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func seedState() waterfall.State {
	return waterfall.State{
		ProjectID: "maple-court",
		Investors: []waterfall.Investor{
			{ID: "gp", Name: "Sponsor", Role: waterfall.GP, CapitalContributed: d("1000000"), HoldingPct: d("50"), OutstandingCapital: d("1000000"), AccruedPreferred: d("1250.50")},
			{ID: "lp", Name: "Fund I", Role: waterfall.LP, CapitalContributed: d("2000000"), HoldingPct: d("50"), OutstandingCapital: d("2000000"), AccruedPreferred: d("0")},
		},
		AccruedThrough: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func applyEvent(ev waterfall.Event) UpdateFunc {
	return func(s waterfall.State) (*waterfall.Distribution, waterfall.State, error) {
		dist, next, err := waterfall.Apply(s, ev, waterfall.Policy{})
		if err != nil {
			return nil, s, err
		}
		dist.ID = "dist-" + ev.ID
		return dist, next, nil
	}
}

func TestSQLiteLedger_RoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if err := l.SaveState(ctx, seedState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := l.LoadState(ctx, "maple-court")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(got.Investors) != 2 || got.Investors[0].ID != "gp" || got.Investors[1].ID != "lp" {
		t.Fatalf("investors out of order: %+v", got.Investors)
	}
	if !got.Investors[0].AccruedPreferred.Equal(d("1250.50")) {
		t.Errorf("accrued = %s", got.Investors[0].AccruedPreferred)
	}
	if got.Investors[1].Role != waterfall.LP || got.Investors[1].Name != "Fund I" {
		t.Errorf("lp fields = %+v", got.Investors[1])
	}
	if !got.AccruedThrough.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) || !got.LastEventAt.IsZero() {
		t.Errorf("marks = %s / %s", got.AccruedThrough, got.LastEventAt)
	}

	projects, err := l.ListProjects(ctx)
	if err != nil || len(projects) != 1 || projects[0] != "maple-court" {
		t.Errorf("projects = %v, %v", projects, err)
	}
}

func TestSQLiteLedger_UpdateRecordsDistribution(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	if err := l.SaveState(ctx, seedState()); err != nil {
		t.Fatalf("save: %v", err)
	}

	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	ev := waterfall.Event{ID: "refi-1", Source: waterfall.Refinance, Amount: d("901250.50"), At: at}
	dist, err := l.Update(ctx, "maple-court", applyEvent(ev))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if dist == nil || !dist.Total().Equal(d("901250.50")) {
		t.Fatalf("distribution = %+v", dist)
	}

	state, _ := l.LoadState(ctx, "maple-court")
	gp, _ := state.Investor("gp")
	lp, _ := state.Investor("lp")
	if !gp.AccruedPreferred.IsZero() || !gp.OutstandingCapital.Equal(d("700000")) || !lp.OutstandingCapital.Equal(d("1400000")) {
		t.Errorf("balances after event: gp=%+v lp=%+v", gp, lp)
	}
	if !state.LastEventAt.Equal(at) {
		t.Errorf("last event = %s", state.LastEventAt)
	}

	list, err := l.ListDistributions(ctx, "maple-court")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].EventID != "refi-1" || list[0].Strategy != "full_waterfall" || len(list[0].Lines) != 2 {
		t.Fatalf("stored distributions = %+v", list)
	}
	line, _ := list[0].Line("gp")
	if !line.PreferredPaid.Equal(d("1250.50")) || !line.PrincipalPaid.Equal(d("300000")) {
		t.Errorf("gp line = %+v", line)
	}
	if !list[0].At.Equal(at) {
		t.Errorf("stored at = %s", list[0].At)
	}
}

func TestSQLiteLedger_DuplicateEventRollsBack(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	if err := l.SaveState(ctx, seedState()); err != nil {
		t.Fatalf("save: %v", err)
	}

	at := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	ev := waterfall.Event{ID: "sale-1", Source: waterfall.Sale, Amount: d("3000"), At: at}
	if _, err := l.Update(ctx, "maple-court", applyEvent(ev)); err != nil {
		t.Fatalf("first update: %v", err)
	}
	before, _ := l.LoadState(ctx, "maple-court")

	ev.At = at.Add(time.Hour)
	_, err := l.Update(ctx, "maple-court", applyEvent(ev))
	if !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}

	after, _ := l.LoadState(ctx, "maple-court")
	gpBefore, _ := before.Investor("gp")
	gpAfter, _ := after.Investor("gp")
	if !gpBefore.OutstandingCapital.Equal(gpAfter.OutstandingCapital) || !after.LastEventAt.Equal(before.LastEventAt) {
		t.Error("rejected event changed stored balances")
	}
}

func TestSQLiteLedger_FuncErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	if err := l.SaveState(ctx, seedState()); err != nil {
		t.Fatalf("save: %v", err)
	}

	boom := errors.New("boom")
	_, err := l.Update(ctx, "maple-court", func(s waterfall.State) (*waterfall.Distribution, waterfall.State, error) {
		s.Investors[0].OutstandingCapital = d("1")
		return nil, s, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	state, _ := l.LoadState(ctx, "maple-court")
	if !state.Investors[0].OutstandingCapital.Equal(d("1000000")) {
		t.Error("failed update was persisted")
	}
}

func TestSQLiteLedger_UnknownProject(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	if _, err := l.LoadState(ctx, "nope"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("LoadState: expected ErrProjectNotFound, got %v", err)
	}
	_, err := l.Update(ctx, "nope", func(s waterfall.State) (*waterfall.Distribution, waterfall.State, error) {
		return nil, s, nil
	})
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Update: expected ErrProjectNotFound, got %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{":memory:", ":memory:"},
		{"proforma.db", "proforma.db?_txlock=immediate"},
		{"file:x.db?mode=ro", "file:x.db?mode=ro"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.path); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// Two ledgers on one file stand in for the API and the worker.
func TestSQLiteLedger_SharedFileSerializesWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	api, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatalf("open api ledger: %v", err)
	}
	defer api.Close()
	worker, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatalf("open worker ledger: %v", err)
	}
	defer worker.Close()

	var timeout int
	if err := worker.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil || timeout != BusyTimeoutMS {
		t.Fatalf("busy_timeout = %d (%v), want %d", timeout, err, BusyTimeoutMS)
	}

	seed := seedState()
	seed.Investors[1].AccruedPreferred = decimal.Zero
	if err := api.SaveState(ctx, seed); err != nil {
		t.Fatalf("save: %v", err)
	}

	bump := func(s waterfall.State) (*waterfall.Distribution, waterfall.State, error) {
		next := s.Clone()
		next.Investors[1].AccruedPreferred = next.Investors[1].AccruedPreferred.Add(decimal.NewFromInt(1))
		return nil, next, nil
	}

	const perLedger = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*perLedger)
	for _, l := range []*SQLiteLedger{api, worker} {
		wg.Add(1)
		go func(l *SQLiteLedger) {
			defer wg.Done()
			for i := 0; i < perLedger; i++ {
				if _, err := l.Update(ctx, "maple-court", bump); err != nil {
					errs <- err
				}
			}
		}(l)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("update: %v", err)
	}

	state, err := api.LoadState(ctx, "maple-court")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := state.Investors[1].AccruedPreferred; !got.Equal(decimal.NewFromInt(2 * perLedger)) {
		t.Errorf("accrued = %s, want %d: updates were lost", got, 2*perLedger)
	}
}

func TestEventDeduper_WithoutRedis(t *testing.T) {
	dd := NewEventDeduper(nil, time.Hour)
	if !dd.AcquireOnce(context.Background(), "p", "e") || !dd.AcquireOnce(context.Background(), "p", "e") {
		t.Error("a deduper without redis must let every event through")
	}
	dd.Release(context.Background(), "p", "e")
}
