package ingestionapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/gbolabs/photoindex/internal/cmn"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type traceIDKey struct{}

// traceIDMiddleware stamps every response with X-Trace-Id (spec.md §6.1),
// reusing chi's per-request id when present so the header and the access
// log agree.
func traceIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id == "" {
			id = "untraced"
		}
		w.Header().Set("X-Trace-Id", id)
		ctx := context.WithValue(r.Context(), traceIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func traceIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return "untraced"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	TraceID string `json:"traceId"`
}

// writeError translates a *cmn.Error (or any error) into the
// {message, code, traceId} envelope from spec.md §6.1.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := err.Error()

	var ce *cmn.Error
	if errors.As(err, &ce) {
		status = ce.HTTPStatus()
		code = ce.Code
		message = ce.Message
	}

	writeJSON(w, status, errorBody{
		Message: message,
		Code:    code,
		TraceID: traceIDFrom(r.Context()),
	})
}
