package carrying

import (
	"errors"
	"math"
	"testing"

	"deal_proforma/pkg/core/schedule"
	"deal_proforma/pkg/core/series"
)

func intPtr(v int) *int { return &v }

func TestNormalize_Intervals(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		hits  []int
	}{
		{"Monthly open-ended", Entry{Amount: 100, Interval: Monthly, StartMonth: 57}, []int{57, 58, 59}},
		{"Quarterly", Entry{Amount: 100, Interval: Quarterly, StartMonth: 2, EndMonth: intPtr(12)}, []int{2, 5, 8, 11}},
		{"Semiannual", Entry{Amount: 100, Interval: Semiannual, StartMonth: 3, EndMonth: intPtr(20)}, []int{3, 9, 15}},
		{"Yearly", Entry{Amount: 100, Interval: Yearly, StartMonth: 0}, []int{0, 12, 24, 36, 48}},
		{"Yearly single occurrence", Entry{Amount: 100, Interval: Yearly, StartMonth: 50}, []int{50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Normalize(tt.entry, 60)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := series.New(60)
			for _, m := range tt.hits {
				want[m] = 100
			}
			if !series.Equal(v, want, 0) {
				t.Errorf("got non-zero months %v, want %v", nonZero(v), tt.hits)
			}
		})
	}
}

func TestNormalize_NoProration(t *testing.T) {
	// Ends one month after a quarterly occurrence: the full amount still posts.
	v, err := Normalize(Entry{Name: "Tax", Amount: 9000, Interval: Quarterly, StartMonth: 0, EndMonth: intPtr(4)}, 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v[3] != 9000 {
		t.Errorf("v[3] = %v, want 9000", v[3])
	}
	if v.Sum() != 18000 {
		t.Errorf("sum = %v, want 18000", v.Sum())
	}
}

func TestNormalizeWithRevenue_Management(t *testing.T) {
	revenue := series.New(6)
	for m := range revenue {
		revenue[m] = float64(m * 1000)
	}
	e := Entry{Name: "Management fee", Kind: Management, Interval: Monthly, StartMonth: 1, RevenuePct: 4}

	v, err := NormalizeWithRevenue(e, 6, revenue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v[0] != 0 {
		t.Errorf("v[0] = %v, want 0 before start", v[0])
	}
	if math.Abs(v[5]-200) > 1e-9 {
		t.Errorf("v[5] = %v, want 200", v[5])
	}
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		field string
	}{
		{"Unknown interval", Entry{Amount: 1, Interval: "weekly"}, "interval"},
		{"Start outside horizon", Entry{Amount: 1, Interval: Monthly, StartMonth: 60}, "start_month"},
		{"End before start", Entry{Amount: 1, Interval: Monthly, StartMonth: 10, EndMonth: intPtr(9)}, "end_month"},
		{"End outside horizon", Entry{Amount: 1, Interval: Monthly, EndMonth: intPtr(61)}, "end_month"},
		{"Revenue pct too large", Entry{Interval: Monthly, RevenuePct: 150}, "revenue_pct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.entry, 60)
			var schedErr *schedule.InvalidScheduleError
			if !errors.As(err, &schedErr) {
				t.Fatalf("expected InvalidScheduleError, got %v", err)
			}
			if schedErr.Field != tt.field {
				t.Errorf("field = %q, want %q", schedErr.Field, tt.field)
			}
		})
	}
}

func nonZero(v series.Vector) []int {
	var out []int
	for m, x := range v {
		if x != 0 {
			out = append(out, m)
		}
	}
	return out
}
