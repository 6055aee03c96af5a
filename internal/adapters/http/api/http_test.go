package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/zonetrack/internal/adapters/http/api"
	"github.com/okian/zonetrack/internal/adapters/mq/queue"
	"github.com/okian/zonetrack/internal/adapters/repository"
	service "github.com/okian/zonetrack/internal/app"
	"github.com/okian/zonetrack/internal/domain/analysis"
	"github.com/okian/zonetrack/internal/domain/model"
	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDeps records what the handlers pass through and answers with canned
// values or errors.
type mockDeps struct {
	submitted  []model.Trial
	seen       map[string]bool
	submitErr  error
	analyzeErr error
	classErr   error
	reports    map[string]types.TrialReport
	lastLimit  int
}

func newMockDeps() *mockDeps {
	return &mockDeps{seen: map[string]bool{}, reports: map[string]types.TrialReport{}}
}

func (m *mockDeps) Submit(_ context.Context, t model.Trial) (types.Ack, error) {
	if m.submitErr != nil {
		return types.Ack{}, m.submitErr
	}
	if t.ID == "" {
		t.ID = "generated"
	}
	if m.seen[t.ID] {
		return types.Ack{TrialID: t.ID, Duplicate: true}, nil
	}
	m.seen[t.ID] = true
	m.submitted = append(m.submitted, t)
	return types.Ack{TrialID: t.ID}, nil
}

func (m *mockDeps) AnalyzeNow(_ context.Context, t model.Trial) (types.TrialReport, error) {
	if m.analyzeErr != nil {
		return types.TrialReport{}, m.analyzeErr
	}
	r := types.TrialReport{TrialID: t.ID, FrameRate: t.FrameRate, Frames: len(t.Samples)}
	m.reports[t.ID] = r
	return r, nil
}

func (m *mockDeps) Report(_ context.Context, id string) (types.TrialReport, error) {
	r, ok := m.reports[id]
	if !ok {
		return types.TrialReport{}, fmt.Errorf("get %s: %w", id, repository.ErrNotFound)
	}
	return r, nil
}

func (m *mockDeps) Reports(_ context.Context, limit int) ([]types.TrialSummary, error) {
	m.lastLimit = limit
	out := []types.TrialSummary{}
	for _, r := range m.reports {
		out = append(out, r.Summary())
	}
	return out, nil
}

func (m *mockDeps) Classify(_ context.Context, samples []model.Sample) ([]types.FrameMembership, error) {
	if m.classErr != nil {
		return nil, m.classErr
	}
	out := make([]types.FrameMembership, len(samples))
	for i, s := range samples {
		out[i] = types.FrameMembership{Frame: s.Frame, Valid: s.Pos.Valid(), Inside: []string{}}
		if s.Pos.Valid() {
			out[i].Inside = []string{"floor"}
		}
	}
	return out, nil
}

func (m *mockDeps) Arena() types.ArenaInfo {
	return types.ArenaInfo{Name: "open-field", Units: "cm", Primary: []string{"center"}}
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "queueLength": 3}
}

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

const trialBody = `{
	"trial_id": "t-1",
	"subject": "mouse-3",
	"frame_rate": 25,
	"labels": {"group": "control"},
	"samples": [
		{"frame": 0, "x": 1, "y": 2},
		{"frame": 1, "x": null, "y": null},
		{"frame": 2, "x": 3, "y": 4, "likelihood": 0.4}
	]
}`

func TestPostTrial(t *testing.T) {
	Convey("Given the API over mock dependencies", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When a trial is posted", func() {
			w := do(mux, http.MethodPost, "/trials", trialBody)

			Convey("Then it is accepted for async analysis", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Header().Get("Location"), ShouldEqual, "/trials/t-1")
				body := decodeBody(w)
				So(body["status"], ShouldEqual, "accepted")
				So(body["trial_id"], ShouldEqual, "t-1")
			})

			Convey("Then samples are converted to the domain model", func() {
				So(deps.submitted, ShouldHaveLength, 1)
				tr := deps.submitted[0]
				So(tr.Subject, ShouldEqual, "mouse-3")
				So(tr.Labels["group"], ShouldEqual, "control")
				So(tr.Samples, ShouldHaveLength, 3)
				So(tr.Samples[0].Likelihood, ShouldEqual, 1.0)
				So(tr.Samples[1].Pos.Valid(), ShouldBeFalse)
				So(tr.Samples[2].Likelihood, ShouldEqual, 0.4)
			})

			Convey("Then posting it again is acknowledged as a duplicate", func() {
				again := do(mux, http.MethodPost, "/trials", trialBody)
				So(again.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(again)["duplicate"], ShouldEqual, true)
			})
		})

		Convey("When frames are omitted", func() {
			w := do(mux, http.MethodPost, "/trials", `{"frame_rate": 30, "samples": [{"x":1,"y":1},{"x":2,"y":2}]}`)

			Convey("Then they default to the sample index", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.submitted[0].Samples[1].Frame, ShouldEqual, 1)
				So(decodeBody(w)["trial_id"], ShouldEqual, "generated")
			})
		})

		Convey("When sync analysis is requested", func() {
			w := do(mux, http.MethodPost, "/trials?sync=true", trialBody)

			Convey("Then the report is returned directly", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["trial_id"], ShouldEqual, "t-1")
				So(body["frames"], ShouldEqual, 3)
				So(deps.submitted, ShouldBeEmpty)
			})
		})

		Convey("When the request is malformed", func() {
			bodies := []string{
				`{`,
				`{"trial_id":"x","frame_rate":0,"samples":[]}`,
				`{"frame_rate":10,"samples":[{"frame":0,"x":1}]}`,
				`{"frame_rate":10,"samples":[{"frame":0,"x":1,"y":1,"likelihood":2}]}`,
				`{"frame_rate":10,"samples":[]} {}`,
			}
			for _, body := range bodies {
				w := do(mux, http.MethodPost, "/trials", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "bad_request")
			}
			So(deps.submitted, ShouldBeEmpty)
		})

		Convey("When the service reports an error", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{fmt.Errorf("enqueue: %w", queue.ErrFull), http.StatusTooManyRequests, "backpressure"},
				{fmt.Errorf("enqueue: %w", queue.ErrClosed), http.StatusServiceUnavailable, "unavailable"},
				{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
				{fmt.Errorf("%w: frame 3 follows 4", analysis.ErrInvalidTrial), http.StatusBadRequest, "bad_request"},
				{fmt.Errorf("%w: 10 > 5", analysis.ErrTooManySamples), http.StatusRequestEntityTooLarge, "too_many_samples"},
				{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
			}
			for _, c := range cases {
				deps.submitErr = c.err
				w := do(mux, http.MethodPost, "/trials", trialBody)
				So(w.Code, ShouldEqual, c.status)
				So(decodeBody(w)["code"], ShouldEqual, c.code)
			}
		})
	})
}

func TestGetTrials(t *testing.T) {
	Convey("Given a stored report", t, func() {
		deps := newMockDeps()
		deps.reports["t-9"] = types.TrialReport{TrialID: "t-9", Frames: 100, AnalyzedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
		mux := newMux(deps)

		Convey("Then it can be fetched by id", func() {
			w := do(mux, http.MethodGet, "/trials/t-9", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["frames"], ShouldEqual, 100)
		})

		Convey("Then an unknown id is not found", func() {
			w := do(mux, http.MethodGet, "/trials/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody(w)["code"], ShouldEqual, "not_found")
		})

		Convey("Then the list passes the limit through", func() {
			w := do(mux, http.MethodGet, "/trials?limit=7", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 7)
			var list []types.TrialSummary
			So(json.Unmarshal(w.Body.Bytes(), &list), ShouldBeNil)
			So(list, ShouldHaveLength, 1)
			So(list[0].TrialID, ShouldEqual, "t-9")
		})

		Convey("Then an invalid limit is rejected", func() {
			So(do(mux, http.MethodGet, "/trials?limit=-1", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/trials?limit=ten", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then unsupported methods are refused by the mux", func() {
			So(do(mux, http.MethodDelete, "/trials/t-9", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestClassifyAndArena(t *testing.T) {
	Convey("Given the API over mock dependencies", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When samples are classified", func() {
			w := do(mux, http.MethodPost, "/classify", `{"samples":[{"frame":4,"x":1,"y":1},{"frame":5}]}`)

			Convey("Then each frame lists its zones", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Frames []types.FrameMembership `json:"frames"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Frames, ShouldHaveLength, 2)
				So(body.Frames[0].Frame, ShouldEqual, 4)
				So(body.Frames[0].Inside, ShouldResemble, []string{"floor"})
				So(body.Frames[1].Valid, ShouldBeFalse)
			})
		})

		Convey("When classification fails on frame order", func() {
			deps.classErr = fmt.Errorf("%w: frame 1 follows 2", analysis.ErrInvalidTrial)
			w := do(mux, http.MethodPost, "/classify", `{"samples":[{"frame":2},{"frame":1}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the arena is requested", func() {
			w := do(mux, http.MethodGet, "/arena", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["name"], ShouldEqual, "open-field")
			So(body["units"], ShouldEqual, "cm")
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the API", t, func() {
		mux := newMux(newMockDeps())

		Convey("Then stats are served as JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(decodeBody(w)["queueLength"], ShouldEqual, 3)
		})

		Convey("Then healthz serves the metrics registry", func() {
			_ = do(mux, http.MethodGet, "/stats", "")
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "zonetrack_")
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given the API refusing trials for backpressure", t, func() {
		deps := newMockDeps()
		deps.submitErr = fmt.Errorf("enqueue: %w", queue.ErrFull)
		mux := newMux(deps)

		Convey("When a trial is posted and metrics are scraped", func() {
			w := do(mux, http.MethodPost, "/trials", `{"frame_rate":10,"samples":[{"x":1,"y":1}]}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			scrape := do(mux, http.MethodGet, "/healthz", "").Body.String()

			Convey("Then the failure is counted under its error code", func() {
				So(scrape, ShouldContainSubstring, `component="trials",error_type="backpressure"`)
				So(scrape, ShouldContainSubstring, `error_type="backpressure",severity="medium"`)
			})
		})

		Convey("When a route is called with the wrong method", func() {
			w := do(mux, http.MethodDelete, "/arena", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}
