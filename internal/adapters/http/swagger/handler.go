// Package swagger serves the OpenAPI document and a ReDoc page for it.
package swagger

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"gopkg.in/yaml.v3"
)

// Error constants.
var (
	ErrServe = errors.New("swagger serve failed")
)

const redocBundle = "https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"

// Info is the info block of the embedded OpenAPI document.
type Info struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// SpecInfo parses the info block of the embedded document.
func SpecInfo() (Info, error) {
	var doc struct {
		Info Info `yaml:"info"`
	}
	if err := yaml.Unmarshal(OpenAPI, &doc); err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrServe, err)
	}
	return doc.Info, nil
}

// Register attaches the docs routes to mux.
// Routes:
//
//	GET /api-docs      -> ReDoc HTML
//	GET /openapi.yaml  -> Embedded OpenAPI spec
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	info, err := SpecInfo()
	if err != nil {
		panic(err)
	}
	page := fmt.Sprintf(indexHTML, html.EscapeString(info.Title+" "+info.Version), redocBundle)

	mux.HandleFunc("/api-docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})

	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
}

const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>%s</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="%s"></script>
    <script>Redoc.init('/openapi.yaml', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`
