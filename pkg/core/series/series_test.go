package series

import "testing"

func TestVectorArithmetic(t *testing.T) {
	a := Vector{1, 2, 3}
	b := Vector{10, 20}

	if got := a.Plus(b); !Equal(got, Vector{11, 22, 3}, 1e-9) {
		t.Errorf("Plus = %v", got)
	}
	if got := a.Minus(b); !Equal(got, Vector{-9, -18, 3}, 1e-9) {
		t.Errorf("Minus = %v", got)
	}
	if !Equal(a, Vector{1, 2, 3}, 0) {
		t.Errorf("Plus/Minus modified the receiver: %v", a)
	}
	if got := a.Cumulative(); !Equal(got, Vector{1, 3, 6}, 1e-9) {
		t.Errorf("Cumulative = %v", got)
	}
	if a.Sum() != 6 {
		t.Errorf("Sum = %v", a.Sum())
	}
}

func TestSetAdd_OutsideHorizon(t *testing.T) {
	v := New(3)
	tests := []struct {
		month int
		ok    bool
	}{
		{-1, false},
		{0, true},
		{2, true},
		{3, false},
	}
	for _, tt := range tests {
		if got := v.Add(tt.month, 5); got != tt.ok {
			t.Errorf("Add(%d) = %v, want %v", tt.month, got, tt.ok)
		}
	}
	if !Equal(v, Vector{5, 0, 5}, 0) {
		t.Errorf("v = %v", v)
	}
	if len(New(-4)) != 0 {
		t.Error("negative horizon should give an empty vector")
	}
}

func TestRoundCents(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{33.333333, 33.33},
		{0.125, 0.13},
		{-0.125, -0.13},
		{100, 100},
	}
	for _, tt := range tests {
		if got := RoundCents(tt.in); got != tt.want {
			t.Errorf("RoundCents(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
