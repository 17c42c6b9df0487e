// Package schedule expands scheduled cost and revenue entries into monthly vectors.
//
// A schedule is one of three variants:
//   - Single: the whole amount posts in one month.
//   - Range: the amount spreads over a contiguous span of months.
//   - MultiMonth: the amount spreads over an arbitrary set of months.
//
// Range and MultiMonth either split evenly or follow explicit per-month percentages.
package schedule

import "fmt"

// Spec is the schedule variant attached to an entry. The set of variants is closed.
type Spec interface {
	// Kind returns the variant name as stored by the persistence layer.
	Kind() string
	isSpec()
}

// Single posts the full amount at Month.
type Single struct {
	Month int `json:"month"`
}

// Range spreads the amount over [Start, End]. Percentages, when non-nil, hold one value per month.
type Range struct {
	Start       int       `json:"start_month"`
	End         int       `json:"end_month"`
	Percentages []float64 `json:"percentages,omitempty"`
}

// MultiMonth spreads the amount over Months. Percentages, when non-nil, align with Months.
type MultiMonth struct {
	Months      []int     `json:"months"`
	Percentages []float64 `json:"percentages,omitempty"`
}

func (Single) Kind() string     { return KindSingle }
func (Range) Kind() string      { return KindRange }
func (MultiMonth) Kind() string { return KindMultiMonth }

func (Single) isSpec()     {}
func (Range) isSpec()      {}
func (MultiMonth) isSpec() {}

// Variant names used by the persistence layer's payment_mode column.
const (
	KindSingle     = "single"
	KindRange      = "range"
	KindMultiMonth = "multi"
)

// Entry is an amount plus the schedule it posts on.
type Entry struct {
	Name        string  `json:"name"`
	TotalAmount float64 `json:"total_amount"`
	Schedule    Spec    `json:"-"`
}

// PercentTolerance is how far a percentage list may sum away from 100.
const PercentTolerance = 0.01

// InvalidScheduleError reports an entry rejected before expansion.
type InvalidScheduleError struct {
	Entry  string
	Field  string
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("invalid schedule: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid schedule %q: %s: %s", e.Entry, e.Field, e.Reason)
}
