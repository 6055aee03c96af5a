package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// TrialsHandler handles trial submission and report reads.
type TrialsHandler struct {
	deps Dependencies
}

// NewTrialsHandler creates a new trials handler.
func NewTrialsHandler(deps Dependencies) *TrialsHandler {
	return &TrialsHandler{deps: deps}
}

// HandlePostTrial handles POST /trials. The trial is queued and answered
// with 202, or with 200 when its id was submitted before. With ?sync=true it
// is analysed before the response and the report is returned.
func (h *TrialsHandler) HandlePostTrial(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_trial"
	var req trialRequest
	if err := decode(w, r, &req); err != nil {
		fail(r.Context(), w, op, err)
		return
	}
	trial, err := req.toTrial()
	if err != nil {
		fail(r.Context(), w, op, err)
		return
	}

	if sync, _ := strconv.ParseBool(r.URL.Query().Get("sync")); sync {
		report, err := h.deps.AnalyzeNow(r.Context(), trial)
		if err != nil {
			fail(r.Context(), w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	ack, err := h.deps.Submit(r.Context(), trial)
	if err != nil {
		fail(r.Context(), w, op, err)
		return
	}
	if ack.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", TrialID: ack.TrialID, Duplicate: true})
		return
	}
	w.Header().Set("Location", "/trials/"+ack.TrialID)
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", TrialID: ack.TrialID})
}

// HandleListTrials handles GET /trials?limit=N.
func (h *TrialsHandler) HandleListTrials(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_trials"
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fail(r.Context(), w, op, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = n
	}
	list, err := h.deps.Reports(r.Context(), limit)
	if err != nil {
		fail(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGetTrial handles GET /trials/{id}.
func (h *TrialsHandler) HandleGetTrial(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trial"
	report, err := h.deps.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
