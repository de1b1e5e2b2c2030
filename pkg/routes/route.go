// Package routes declares HTTP route groups once and uses the declaration
// both for ServeMux registration and for the OpenAPI document.
package routes

import (
	"net/http"

	"github.com/JaimeStill/panscan/pkg/openapi"
)

// Route binds an HTTP method and pattern to a handler.
// OpenAPI is optional; routes without it are served but not documented.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	OpenAPI *openapi.Operation
}
