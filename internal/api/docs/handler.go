package docs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"gopkg.in/yaml.v3"
)

//go:embed swagger.yaml
var swaggerYAML []byte

// swaggerJSON renders the embedded document once for clients that only read JSON.
var swaggerJSON = sync.OnceValues(func() ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(swaggerYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse swagger.yaml: %w", err)
	}
	return json.Marshal(doc)
})

// Handler serves Swagger UI pointed at the embedded document.
func Handler() http.HandlerFunc {
	return httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	)
}

func serveYAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(swaggerYAML)
}

func serveJSON(w http.ResponseWriter, _ *http.Request) {
	data, err := swaggerJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// RegisterRoutes mounts the UI and both renderings of the OpenAPI document.
func RegisterRoutes(r chi.Router) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/index.html", http.StatusFound)
	})
	r.Get("/docs/swagger.yaml", serveYAML)
	r.Get("/docs/swagger.json", serveJSON)
	r.Get("/docs/*", Handler())
}
