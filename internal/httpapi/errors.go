package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"crudd/internal/crud"
	"crudd/internal/listener"
	"crudd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// errorStatus maps err to an HTTP status, 500 when err carries none.
func errorStatus(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeError writes err as JSON, as a JSON:API error document when
// jsonAPI is set. Validation failures carry their field errors.
func writeError(w http.ResponseWriter, err error, jsonAPI bool) int {
	status := errorStatus(err)
	if jsonAPI {
		w.Header().Set("Content-Type", types.JSONAPIMediaType)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(types.JSONAPIDocument{Errors: jsonAPIErrors(err, status)})
		return status
	}
	var ce *crud.Error
	if errors.As(err, &ce) && errors.Is(err, crud.ErrValidation) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(types.ValidationErrorResponse{
			Error:      ce.Error(),
			Code:       status,
			ErrorCount: ce.Count,
			Errors:     ce.Errors,
		})
		return status
	}
	writeJSONError(w, status, err.Error())
	return status
}

func jsonAPIErrors(err error, status int) []types.JSONAPIError {
	var de *listener.DocumentError
	if errors.As(err, &de) {
		return de.Errors
	}
	code := strconv.Itoa(status)
	var ce *crud.Error
	if errors.As(err, &ce) && len(ce.Errors) > 0 {
		var out []types.JSONAPIError
		for _, field := range ce.Fields() {
			rules := ce.Errors[field]
			names := make([]string, 0, len(rules))
			for rule := range rules {
				names = append(names, rule)
			}
			sort.Strings(names)
			for _, rule := range names {
				out = append(out, types.JSONAPIError{
					Status: code,
					Code:   rule,
					Title:  rules[rule],
					Source: &types.JSONAPIErrorSource{Pointer: "/data/attributes/" + field},
				})
			}
		}
		return out
	}
	return []types.JSONAPIError{{Status: code, Title: http.StatusText(status), Detail: err.Error()}}
}
