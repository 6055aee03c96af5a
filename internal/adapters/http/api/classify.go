package api

import (
	"net/http"

	"github.com/okian/zonetrack/internal/domain/types"
)

// ClassifyHandler serves zone membership and the arena description.
type ClassifyHandler struct {
	deps Dependencies
}

// NewClassifyHandler creates a new classify handler.
func NewClassifyHandler(deps Dependencies) *ClassifyHandler {
	return &ClassifyHandler{deps: deps}
}

type classifyResponse struct {
	Frames []types.FrameMembership `json:"frames"`
}

// HandleClassify handles POST /classify: the zones each sample falls in,
// without analysing or storing anything.
func (h *ClassifyHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	const op = "api.classify"
	var req classifyRequest
	if err := decode(w, r, &req); err != nil {
		fail(r.Context(), w, op, err)
		return
	}
	samples, err := toSamples(req.Samples)
	if err != nil {
		fail(r.Context(), w, op, err)
		return
	}
	frames, err := h.deps.Classify(r.Context(), samples)
	if err != nil {
		fail(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{Frames: frames})
}

// HandleArena handles GET /arena.
func (h *ClassifyHandler) HandleArena(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Arena())
}
