// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit queues a trial for asynchronous analysis.
	Submit(ctx context.Context, t model.Trial) (types.Ack, error)
	// AnalyzeNow analyses a trial synchronously and stores the report.
	AnalyzeNow(ctx context.Context, t model.Trial) (types.TrialReport, error)

	// Read operations expose stored reports.
	Report(ctx context.Context, trialID string) (types.TrialReport, error)
	Reports(ctx context.Context, limit int) ([]types.TrialSummary, error)

	Classify(ctx context.Context, samples []model.Sample) ([]types.FrameMembership, error)
	Arena() types.ArenaInfo
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	trialsHandler   *TrialsHandler
	classifyHandler *ClassifyHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		trialsHandler:   NewTrialsHandler(deps),
		classifyHandler: NewClassifyHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /trials", MetricsMiddleware(s.trialsHandler.HandlePostTrial, "trials"))
	mux.HandleFunc("GET /trials", MetricsMiddleware(s.trialsHandler.HandleListTrials, "trials"))
	mux.HandleFunc("GET /trials/{id}", MetricsMiddleware(s.trialsHandler.HandleGetTrial, "trial"))
	mux.HandleFunc("POST /classify", MetricsMiddleware(s.classifyHandler.HandleClassify, "classify"))
	mux.HandleFunc("GET /arena", MetricsMiddleware(s.classifyHandler.HandleArena, "arena"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = code
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err onto a status and error code and writes it. Server errors
// are logged; client errors are only counted by the middleware.
func fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(ctx, "request failed",
			logger.String("op", op),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}
