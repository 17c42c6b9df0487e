// Package proforma serves cashflow grids, loan schedules and rendered reports.
package proforma

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"deal_proforma/pkg/core/dealfile"
	"deal_proforma/pkg/core/loan"
	"deal_proforma/pkg/core/logger"
	"deal_proforma/pkg/core/metrics"
	core "deal_proforma/pkg/core/proforma"
	"deal_proforma/pkg/core/report"
	"deal_proforma/pkg/core/series"
)

const maxBody = 4 << 20

// Handler holds dependencies for the proforma endpoints.
type Handler struct {
	Engine *core.Engine
	log    *zap.Logger
}

// NewHandler creates a proforma handler.
func NewHandler(engine *core.Engine, log *zap.Logger) *Handler {
	return &Handler{Engine: engine, log: logger.OrNop(log)}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/proforma/grid", h.HandleGrid)
	mux.HandleFunc("/api/proforma/loan", h.HandleLoan)
	mux.HandleFunc("/api/proforma/report", h.HandleReport)
}

// LoanRequest asks for one loan's schedule.
type LoanRequest struct {
	Terms   loan.Terms `json:"terms"`
	Horizon int        `json:"horizon"`
}

// preflight sets CORS headers and reports whether the request still needs handling.
func preflight(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
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

// build parses the request body as a deal document and projects it.
func (h *Handler) build(w http.ResponseWriter, r *http.Request) (*core.Projection, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	deal, format, err := dealfile.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}

	engine := h.Engine
	if v := r.URL.Query().Get("horizon"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > series.MaxHorizon {
			writeError(w, http.StatusBadRequest, fmt.Errorf("horizon must be an integer within [1,%d]", series.MaxHorizon))
			return nil, false
		}
		engine = core.NewEngine(n)
	}

	start := time.Now()
	proj, err := engine.BuildDeal(deal)
	metrics.RecordGridBuild(time.Since(start), err)
	if err != nil {
		h.log.Warn("Grid build rejected", zap.String("project_id", deal.Project.ID), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err)
		return nil, false
	}
	h.log.Info("Grid built",
		zap.String("project_id", deal.Project.ID),
		zap.String("format", string(format)),
		zap.Int("horizon", proj.Grid.Horizon),
		zap.Duration("elapsed", time.Since(start)),
	)
	return proj, true
}

// HandleGrid returns the projection of a deal document as JSON.
func (h *Handler) HandleGrid(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	proj, ok := h.build(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

// HandleLoan expands one loan's terms into its table and horizon vectors.
func (h *Handler) HandleLoan(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	var req LoanRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Horizon <= 0 {
		req.Horizon = h.Engine.Horizon
	}
	if req.Horizon > series.MaxHorizon {
		writeError(w, http.StatusBadRequest, fmt.Errorf("horizon must not exceed %d", series.MaxHorizon))
		return
	}

	s, err := loan.Amortize(req.Terms, req.Horizon)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleReport renders a deal's grid as Markdown (format=md, the default) or HTML.
// rollup=annual collapses the months into years.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "md"
	}
	if format != "md" && format != "html" {
		writeError(w, http.StatusBadRequest, errors.New("format must be md or html"))
		return
	}
	rollup := report.Monthly
	if q.Get("rollup") == string(report.Annual) {
		rollup = report.Annual
	}

	proj, ok := h.build(w, r)
	if !ok {
		return
	}
	opts := report.Options{Title: q.Get("title"), Rollup: rollup}

	if format == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, report.Markdown(proj.Grid, opts))
		return
	}
	html, err := report.HTML(proj.Grid, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, html)
}
