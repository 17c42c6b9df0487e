package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"deal_proforma/pkg/core/mq"
	"deal_proforma/pkg/core/store"
	"deal_proforma/pkg/core/waterfall"
)

// HandleMessage is the queue handler for submitted events. A redelivered event that was
// already distributed is acknowledged; events that can never succeed are marked permanent
// so the consumer drops them; anything else is returned for redelivery.
func (s *Service) HandleMessage(ctx context.Context, data json.RawMessage) error {
	var ev waterfall.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return mq.Permanent(fmt.Errorf("decode event: %w", err))
	}

	_, err := s.Process(ctx, ev)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDuplicateEvent):
		s.log.Info("Duplicate event acknowledged",
			zap.String("project_id", ev.ProjectID),
			zap.String("event_id", ev.ID),
		)
		return nil
	case RejectReason(err) != "internal":
		return mq.Permanent(err)
	}
	return err
}
