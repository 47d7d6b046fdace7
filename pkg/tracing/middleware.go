package tracing

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func NewTracingMiddleware(t Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := RouteTemplate(r)
			ctx, span := t.StartSpanFromHeader(r.Context(), r.Header, strings.ToUpper(r.Method)+" "+route)
			defer span.End()

			t.InjectHTTP(ctx, w.Header())

			r = r.WithContext(ctx)
			rw := NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			span.SetAttributes(
				attribute.String("http.method", strings.ToUpper(r.Method)),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", rw.Status()),
			)
			if rw.Status() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.Status()))
			}
		})
	}
}

// RouteTemplate returns the matched mux route template, or the raw path
// when the request did not match a route.
func RouteTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

// ResponseWriter records the status code written through it.
type ResponseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *ResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Status returns 200 if nothing has been written yet.
func (rw *ResponseWriter) Status() int {
	return rw.status
}
