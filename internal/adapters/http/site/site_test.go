package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/zonetrack/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedArena types.ArenaInfo

func (f fixedArena) Arena() types.ArenaInfo { return types.ArenaInfo(f) }

func TestSiteHandler(t *testing.T) {
	Convey("Given the landing page registered on a mux", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux, fixedArena{
			Name:  "plus-maze",
			Units: "cm",
			Zones: []types.ZoneInfo{
				{ID: "open-arm", Shape: "polygon", Bounds: [4]float64{0, 0, 50, 10}, Primary: true},
				{ID: "<closed>", Shape: "rect", Bounds: [4]float64{20, -20, 30, 30}},
			},
		})

		Convey("Then the root path lists the arena and the endpoints", func() {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
			body := w.Body.String()
			So(body, ShouldContainSubstring, "Arena plus-maze")
			So(body, ShouldContainSubstring, "0.0, 0.0 .. 50.0, 10.0")
			So(body, ShouldContainSubstring, "&lt;closed&gt;")
			So(body, ShouldContainSubstring, "POST /trials")
		})

		Convey("Then other paths are not caught by the root route", func() {
			req := httptest.NewRequest(http.MethodGet, "/nothing-here", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a nil mux", t, func() {
		So(func() { Register(context.Background(), nil, fixedArena{}) }, ShouldPanic)
	})
}
