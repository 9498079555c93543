package api

import (
	_ "embed"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

//go:embed openapi.json
var openAPISpec []byte

// SwaggerUIHandler returns a handler for the Swagger UI, pointed at the
// embedded OpenAPI document.
func SwaggerUIHandler() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL("/openapi.json"))
}

// OpenAPISpecHandler serves the embedded OpenAPI document.
func OpenAPISpecHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(openAPISpec)
	}
}
