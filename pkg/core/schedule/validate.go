package schedule

import (
	"fmt"
	"math"
)

// Validate checks an entry against the horizon. It is the explicit step callers run before
// Expand; Expand repeats it and refuses anything it would reject.
func Validate(e Entry, horizon int) error {
	fail := func(field, format string, args ...any) error {
		return &InvalidScheduleError{Entry: e.Name, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	if math.IsNaN(e.TotalAmount) || math.IsInf(e.TotalAmount, 0) {
		return fail("total_amount", "must be a finite number")
	}

	inHorizon := func(m int) bool { return m >= 0 && m < horizon }

	switch s := e.Schedule.(type) {
	case nil:
		return fail("schedule", "missing")

	case Single:
		if !inHorizon(s.Month) {
			return fail("month", "%d outside [0,%d]", s.Month, horizon-1)
		}

	case Range:
		if !inHorizon(s.Start) {
			return fail("start_month", "%d outside [0,%d]", s.Start, horizon-1)
		}
		if !inHorizon(s.End) {
			return fail("end_month", "%d outside [0,%d]", s.End, horizon-1)
		}
		if s.End < s.Start {
			return fail("end_month", "%d is before start %d", s.End, s.Start)
		}
		if s.Percentages != nil {
			if err := validatePercentages(e.Name, s.Percentages, s.End-s.Start+1); err != nil {
				return err
			}
		}

	case MultiMonth:
		if len(s.Months) == 0 {
			return fail("months", "at least one month required")
		}
		seen := make(map[int]bool, len(s.Months))
		for _, m := range s.Months {
			if !inHorizon(m) {
				return fail("months", "%d outside [0,%d]", m, horizon-1)
			}
			if seen[m] {
				return fail("months", "month %d listed twice", m)
			}
			seen[m] = true
		}
		if s.Percentages != nil {
			if err := validatePercentages(e.Name, s.Percentages, len(s.Months)); err != nil {
				return err
			}
		}

	default:
		return fail("schedule", "unknown variant %T", s)
	}
	return nil
}

func validatePercentages(name string, pcts []float64, months int) error {
	if len(pcts) != months {
		return &InvalidScheduleError{
			Entry:  name,
			Field:  "percentages",
			Reason: fmt.Sprintf("%d values for %d months", len(pcts), months),
		}
	}
	sum := 0.0
	for i, p := range pcts {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return &InvalidScheduleError{
				Entry:  name,
				Field:  "percentages",
				Reason: fmt.Sprintf("value %d is %v", i, p),
			}
		}
		sum += p
	}
	if math.Abs(sum-100) > PercentTolerance {
		return &InvalidScheduleError{
			Entry:  name,
			Field:  "percentages",
			Reason: fmt.Sprintf("sum to %.4f, want 100", sum),
		}
	}
	return nil
}
