package waterfall

import (
	"fmt"
	"sort"
	"time"
)

// Apply distributes one event against the state and returns the distribution together with
// the next state. The given state is left as it was.
func Apply(s State, ev Event, p Policy) (*Distribution, State, error) {
	if err := ValidateEvent(ev); err != nil {
		return nil, s, err
	}
	if err := s.Validate(); err != nil {
		return nil, s, err
	}
	if ev.At.Before(s.LastEventAt) {
		return nil, s, fmt.Errorf("%w: event %q at %s, last applied %s",
			ErrOutOfOrder, ev.ID, ev.At.Format(time.RFC3339), s.LastEventAt.Format(time.RFC3339))
	}

	next := s.Clone()
	strategy := p.StrategyFor(ev.Source)
	lines := strategy.Distribute(next.Investors, ev.Amount)

	d := &Distribution{
		ProjectID: s.ProjectID,
		EventID:   ev.ID,
		Source:    ev.Source,
		Amount:    ev.Amount,
		Strategy:  strategy.Name(),
		At:        ev.At,
		Lines:     lines,
	}
	if total := d.Total(); !total.Equal(ev.Amount) {
		return nil, s, fmt.Errorf("distribution of event %q paid %s, want %s", ev.ID, total, ev.Amount)
	}

	next.LastEventAt = ev.At
	return d, next, nil
}

// ApplyAll applies events in timestamp order, stopping at the first failure. It returns
// the distributions made so far and the state after the last successful event.
func ApplyAll(s State, events []Event, p Policy) ([]*Distribution, State, error) {
	ordered := append([]Event(nil), events...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].At.Before(ordered[j].At)
	})

	var out []*Distribution
	for _, ev := range ordered {
		d, next, err := Apply(s, ev, p)
		if err != nil {
			return out, s, err
		}
		out = append(out, d)
		s = next
	}
	return out, s, nil
}
