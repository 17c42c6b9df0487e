// Package waterfall serves investor registration, event submission and distribution history.
package waterfall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"deal_proforma/pkg/core/distribution"
	"deal_proforma/pkg/core/logger"
	"deal_proforma/pkg/core/mq"
	"deal_proforma/pkg/core/store"
	core "deal_proforma/pkg/core/waterfall"
	"deal_proforma/pkg/models"
)

const maxBody = 1 << 20

// EventPublisher queues submitted events for the worker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Handler holds dependencies for the waterfall endpoints. Without a publisher, submitted
// events are distributed inline.
type Handler struct {
	Service    *distribution.Service
	Dedup      *store.EventDeduper
	Publisher  EventPublisher
	LPSharePct float64
	log        *zap.Logger
}

// NewHandler creates a waterfall handler; dedup and pub may be nil.
func NewHandler(svc *distribution.Service, dedup *store.EventDeduper, pub EventPublisher, lpSharePct float64, log *zap.Logger) *Handler {
	return &Handler{
		Service:    svc,
		Dedup:      dedup,
		Publisher:  pub,
		LPSharePct: lpSharePct,
		log:        logger.OrNop(log),
	}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/waterfall/preview", h.HandlePreview)
	mux.HandleFunc("/api/waterfall/events", h.HandleSubmitEvent)
	mux.HandleFunc("/api/waterfall/investors", h.HandleInvestors)
	mux.HandleFunc("/api/waterfall/distributions", h.HandleDistributions)
}

// RegisterRequest replaces a project's investor set. When TotalProjectCost is set the
// holding percentages are derived from capital instead of taken as given.
type RegisterRequest struct {
	ProjectID        string                  `json:"project_id"`
	Investors        []models.InvestorRecord `json:"investors"`
	TotalProjectCost float64                 `json:"total_project_cost,omitempty"`
	LPSharePct       float64                 `json:"lp_share_pct,omitempty"`
}

// PreviewResponse is a distribution that was computed but not recorded.
type PreviewResponse struct {
	Distribution *core.Distribution `json:"distribution"`
	State        core.State         `json:"state"`
}

// SubmitResponse acknowledges a queued event.
type SubmitResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

func cors(w http.ResponseWriter, r *http.Request, methods string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch distribution.RejectReason(err) {
	case "invalid_event":
		return http.StatusBadRequest
	case "invalid_state":
		return http.StatusUnprocessableEntity
	case "out_of_order", "duplicate":
		return http.StatusConflict
	case "not_found":
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func decodeEvent(w http.ResponseWriter, r *http.Request) (core.Event, bool) {
	var ev core.Event
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode event: %w", err))
		return ev, false
	}
	if ev.ProjectID == "" {
		writeError(w, http.StatusBadRequest, errors.New("project_id required"))
		return ev, false
	}
	if err := core.ValidateEvent(ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return ev, false
	}
	return ev, true
}

// HandlePreview distributes an event against the stored state without recording it.
// Amounts must be positive whole cents; "10.005" is rejected with 400, never rounded.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "POST") {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	ev, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	dist, state, err := h.Service.Preview(r.Context(), ev)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Distribution: dist, State: state})
}

// HandleSubmitEvent accepts a capital-return event. A repeated event ID is refused; the
// event is then queued (202) or, with no queue configured, distributed at once (201).
// Amounts follow the preview rule: positive whole cents, with fractional cents a 400.
func (h *Handler) HandleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "POST") {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	ev, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	ctx := r.Context()
	if !h.Dedup.AcquireOnce(ctx, ev.ProjectID, ev.ID) {
		writeError(w, http.StatusConflict, fmt.Errorf("event %s: %w", ev.ID, store.ErrDuplicateEvent))
		return
	}

	// 1. Queue for the worker
	if h.Publisher != nil {
		if err := h.Publisher.Publish(ctx, mq.RoutingKeyEventSubmitted, ev); err != nil {
			h.Dedup.Release(ctx, ev.ProjectID, ev.ID)
			h.log.Error("Event publish failed", zap.String("event_id", ev.ID), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, fmt.Errorf("queue event: %w", err))
			return
		}
		writeJSON(w, http.StatusAccepted, SubmitResponse{Status: "queued", EventID: ev.ID})
		return
	}

	// 2. Or distribute inline
	dist, err := h.Service.Process(ctx, ev)
	if err != nil {
		if !errors.Is(err, store.ErrDuplicateEvent) {
			h.Dedup.Release(ctx, ev.ProjectID, ev.ID)
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, dist)
}

// HandleInvestors returns (GET ?project_id=) or registers (POST) a project's investors.
func (h *Handler) HandleInvestors(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "GET, POST") {
		return
	}
	switch r.Method {
	case http.MethodGet:
		projectID := r.URL.Query().Get("project_id")
		if projectID == "" {
			writeError(w, http.StatusBadRequest, errors.New("project_id required"))
			return
		}
		state, err := h.Service.State(r.Context(), projectID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, state)

	case http.MethodPost:
		var req RegisterRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.ProjectID == "" {
			writeError(w, http.StatusBadRequest, errors.New("project_id required"))
			return
		}

		investors := distribution.InvestorsFromRecords(req.Investors)
		if req.TotalProjectCost > 0 {
			lpShare := req.LPSharePct
			if lpShare == 0 {
				lpShare = h.LPSharePct
			}
			var err error
			investors, err = core.DeriveHoldings(decimal.NewFromFloat(req.TotalProjectCost), decimal.NewFromFloat(lpShare), investors)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, err)
				return
			}
		}

		state, err := h.Service.Register(r.Context(), req.ProjectID, investors)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, state)

	default:
		methodNotAllowed(w)
	}
}

// HandleDistributions lists a project's recorded distributions, oldest first.
func (h *Handler) HandleDistributions(w http.ResponseWriter, r *http.Request) {
	if !cors(w, r, "GET") {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, errors.New("project_id required"))
		return
	}

	dists, err := h.Service.Distributions(r.Context(), projectID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if dists == nil {
		dists = []*core.Distribution{}
	}
	writeJSON(w, http.StatusOK, dists)
}
