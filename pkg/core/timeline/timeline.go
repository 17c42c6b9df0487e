// Package timeline maps month offsets onto the project calendar.
//
// Every calculator works in month offsets relative to the anchor month (the month the
// project closed). Offsets are validated against the horizon here, before expansion;
// clamping user input into range is the form layer's job, not this package's.
package timeline

import (
	"fmt"
	"time"

	"deal_proforma/pkg/core/series"
)

// InvalidTimelineError reports a timeline field outside the horizon or out of order.
type InvalidTimelineError struct {
	Field  string
	Reason string
}

func (e *InvalidTimelineError) Error() string {
	return fmt.Sprintf("invalid timeline: %s: %s", e.Field, e.Reason)
}

// YearMonth is a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// String formats as "Jan 2025".
func (ym YearMonth) String() string {
	return fmt.Sprintf("%s %d", ym.Month.String()[:3], ym.Year)
}

// Timeline is the project's schedule anchor plus its leasing milestones, in month offsets.
type Timeline struct {
	Anchor            time.Time // first day of the closing month
	LeasingStartMonth int
	StabilizedMonth   int
	Horizon           int
}

// New builds a timeline from offsets. The anchor is normalized to the first of its month.
func New(anchor time.Time, leasingStart, stabilized, horizon int) (Timeline, error) {
	if horizon <= 0 {
		horizon = series.DefaultHorizon
	}
	tl := Timeline{
		Anchor:            FirstOfMonth(anchor),
		LeasingStartMonth: leasingStart,
		StabilizedMonth:   stabilized,
		Horizon:           horizon,
	}
	if err := tl.Validate(); err != nil {
		return Timeline{}, err
	}
	return tl, nil
}

// FromDates converts the collaborator's calendar dates into a validated timeline.
func FromDates(closing, leasingStart, stabilized time.Time, horizon int) (Timeline, error) {
	if closing.IsZero() {
		return Timeline{}, &InvalidTimelineError{Field: "closing_date", Reason: "required"}
	}
	anchor := FirstOfMonth(closing)
	ls := 0
	if !leasingStart.IsZero() {
		ls = MonthIndex(anchor, leasingStart)
	}
	st := ls
	if !stabilized.IsZero() {
		st = MonthIndex(anchor, stabilized)
	}
	return New(anchor, ls, st, horizon)
}

// Validate checks 0 <= leasingStart <= stabilized < horizon.
func (t Timeline) Validate() error {
	if t.Horizon <= 0 || t.Horizon > series.MaxHorizon {
		return &InvalidTimelineError{Field: "horizon", Reason: fmt.Sprintf("%d outside [1,%d]", t.Horizon, series.MaxHorizon)}
	}
	if !t.InHorizon(t.LeasingStartMonth) {
		return &InvalidTimelineError{Field: "leasing_start_month", Reason: t.rangeReason(t.LeasingStartMonth)}
	}
	if !t.InHorizon(t.StabilizedMonth) {
		return &InvalidTimelineError{Field: "stabilized_month", Reason: t.rangeReason(t.StabilizedMonth)}
	}
	if t.LeasingStartMonth > t.StabilizedMonth {
		return &InvalidTimelineError{
			Field:  "stabilized_month",
			Reason: fmt.Sprintf("%d is before leasing start %d", t.StabilizedMonth, t.LeasingStartMonth),
		}
	}
	return nil
}

func (t Timeline) rangeReason(m int) string {
	return fmt.Sprintf("%d outside [0,%d]", m, t.Horizon-1)
}

// InHorizon reports whether m is a valid offset.
func (t Timeline) InHorizon(m int) bool {
	return m >= 0 && m < t.Horizon
}

// Calendar returns the mapper for this timeline's anchor and horizon.
func (t Timeline) Calendar() Calendar {
	return Calendar{Anchor: t.Anchor, Horizon: t.Horizon}
}

// =============================================================================
// CALENDAR MAPPER
// =============================================================================

// Calendar converts month offsets to calendar months.
type Calendar struct {
	Anchor  time.Time
	Horizon int
}

// Month returns the calendar month of offset m. Offsets outside the horizon are a caller error.
func (c Calendar) Month(m int) (YearMonth, error) {
	if m < 0 || m >= c.Horizon {
		return YearMonth{}, &InvalidTimelineError{
			Field:  "month",
			Reason: fmt.Sprintf("%d outside [0,%d]", m, c.Horizon-1),
		}
	}
	d := FirstOfMonth(c.Anchor).AddDate(0, m, 0)
	return YearMonth{Year: d.Year(), Month: d.Month()}, nil
}

// Label formats offset m as "Jan 2025".
func (c Calendar) Label(m int) (string, error) {
	ym, err := c.Month(m)
	if err != nil {
		return "", err
	}
	return ym.String(), nil
}

// Labels returns the label of every month in the horizon.
func (c Calendar) Labels() []string {
	labels := make([]string, c.Horizon)
	anchor := FirstOfMonth(c.Anchor)
	for m := 0; m < c.Horizon; m++ {
		d := anchor.AddDate(0, m, 0)
		labels[m] = YearMonth{Year: d.Year(), Month: d.Month()}.String()
	}
	return labels
}

// FirstOfMonth truncates t to midnight UTC on the first day of its month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthIndex counts whole calendar months from anchor to date. Days are ignored.
func MonthIndex(anchor, date time.Time) int {
	return (date.Year()-anchor.Year())*12 + int(date.Month()) - int(anchor.Month())
}
