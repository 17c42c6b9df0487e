package waterfall

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is returned for an event older than the last one applied to the state.
var ErrOutOfOrder = errors.New("event is older than the last applied event")

// InvalidEventError reports an event rejected before any allocation.
type InvalidEventError struct {
	EventID string
	Field   string
	Reason  string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event %q: %s: %s", e.EventID, e.Field, e.Reason)
}

// InvalidStateError reports investor balances the engine cannot distribute against.
type InvalidStateError struct {
	InvestorID string
	Field      string
	Reason     string
}

func (e *InvalidStateError) Error() string {
	if e.InvestorID == "" {
		return fmt.Sprintf("invalid waterfall state: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid waterfall state: investor %q: %s: %s", e.InvestorID, e.Field, e.Reason)
}
