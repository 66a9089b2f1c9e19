package httpapi

import (
	"net/http"

	"github.com/go-chi/cors"
)

const defaultMaxBodyBytes = 1 << 20

// maxBodyBytes caps JSON and form bodies read by add and edit.
var maxBodyBytes int64 = defaultMaxBodyBytes

// SetMaxBodyBytes sets the body size cap; n <= 0 restores the 1 MiB default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// Verbs and headers the crud routes understand, used when CORS is enabled
// without explicit lists.
var (
	crudMethods = []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	crudHeaders = []string{"Accept", "Content-Type", "X-Log-Level", "X-Requested-With"}
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

func corsOptions() cors.Options {
	o := cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: corsAllowedMethods,
		AllowedHeaders: corsAllowedHeaders,
		ExposedHeaders: []string{"Link", "Location"},
	}
	if len(o.AllowedMethods) == 0 {
		o.AllowedMethods = crudMethods
	}
	if len(o.AllowedHeaders) == 0 {
		o.AllowedHeaders = crudHeaders
	}
	return o
}
