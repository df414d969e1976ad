package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/cpusim/internal/config"
	"github.com/me/cpusim/internal/report"
	"github.com/me/cpusim/internal/sim"
	"github.com/me/cpusim/internal/store"
	"github.com/me/cpusim/internal/workload"
	"github.com/me/cpusim/pkg/model"
)

// maxRequestBody bounds the size of a submitted workload.
const maxRequestBody = 4 << 20

// RunDetail is a run together with its summary figures.
type RunDetail struct {
	*model.Run
	Summary report.Summary `json:"summary"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.CreateRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	if strings.TrimSpace(req.Workload) == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("workload is required",
			model.FieldError{Field: "workload", Message: "must contain at least one process"}))
		return
	}
	entries, err := workload.ParseString(req.Workload)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid workload",
			model.FieldError{Field: "workload", Message: err.Error()}))
		return
	}

	cfg, err := s.simConfig(req).Engine()
	if err != nil {
		var ve *config.ValidationError
		if errors.As(err, &ve) {
			respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid parameters", ve.Problems...))
			return
		}
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}

	run, err := s.runner.Run(r.Context(), cfg, entries, nil)
	if err != nil {
		if errors.Is(err, sim.ErrTickLimit) {
			respondError(w, reqID, http.StatusUnprocessableEntity, model.NewValidationError(err.Error(),
				model.FieldError{Field: "workload", Message: "simulation exceeded the server tick limit"}))
			return
		}
		s.logger.Error("simulation failed", "error", err, "request_id", reqID)
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	respondCreated(w, reqID, RunDetail{Run: run, Summary: report.SummarizeRun(run)})
}

// simConfig overlays the request onto the command line defaults. Zero
// values keep the default.
func (s *Server) simConfig(req model.CreateRunRequest) config.SimConfig {
	cfg := config.DefaultSimConfig()
	if req.Policy != "" {
		cfg.Policy = req.Policy
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.IORequestChance != 0 {
		cfg.IORequestChance = req.IORequestChance
	}
	if req.IOCompletionChance != 0 {
		cfg.IOCompletionChance = req.IOCompletionChance
	}
	if req.Timeslices != nil {
		cfg.Timeslices = req.Timeslices
	}
	cfg.TimesliceExpr = req.TimesliceExpr
	cfg.MaxTicks = s.config.MaxTicks
	return cfg
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	q := r.URL.Query()
	var problems []model.FieldError
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, model.FieldError{Field: "limit", Message: "must be an integer"})
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, model.FieldError{Field: "offset", Message: "must be an integer"})
		}
		opts.Offset = n
	}
	if v := q.Get("policy"); v != "" {
		p, err := model.ParsePolicy(v)
		if err != nil {
			problems = append(problems, model.FieldError{Field: "policy", Message: err.Error()})
		}
		opts.Policy = p
	}
	if len(problems) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid query", problems...))
		return
	}
	opts.Clamp()

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		s.logger.Error("list runs", "error", err, "request_id", reqID)
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError("failed to list runs"))
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}

	respondList(w, reqID, runs, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(runs) < total,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.logger.Error("get run", "error", err, "run_id", id, "request_id", reqID)
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError("failed to load run"))
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	respondOK(w, reqID, RunDetail{Run: run, Summary: report.SummarizeRun(run)})
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteRun(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
			return
		}
		s.logger.Error("delete run", "error", err, "run_id", id, "request_id", reqID)
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError("failed to delete run"))
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "deleted": true})
}
