// Package site serves the landing page: the loaded arena and the API
// endpoints.
package site

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/pkg/logger"
)

//go:embed templates/index.html
var templatesFS embed.FS

var index = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// ArenaSource describes the arena being served.
type ArenaSource interface {
	Arena() types.ArenaInfo
}

// Register attaches the landing page to mux. Only the exact root path is
// served so unknown API paths still 404.
func Register(_ context.Context, mux *http.ServeMux, src ArenaSource) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := index.Execute(&buf, src.Arena()); err != nil {
			logger.Get().Named("site").Error(r.Context(), "render landing page", logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})
}
