package pkgrouter

import (
	"net/http"

	"github.com/shandysiswandi/godataset/internal/pkg/pkglog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/shandysiswandi/godataset/internal/pkg/pkgrouter"

// MiddlewareTracing starts a server span per request, named after the method
// and the matched route pattern. An incoming trace context from the global
// propagator becomes the parent. It must run after the correlation id is set
// for the span to carry it.
func MiddlewareTracing(tp trace.TracerProvider) Middleware {
	tracer := tp.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := RoutePattern(r.Context())
			if route == "" {
				route = "unmatched"
			}

			parent := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(parent, r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("http.route", route),
				),
			)
			defer span.End()

			if cid := pkglog.GetCorrelationID(ctx); cid != "" {
				span.SetAttributes(attribute.String("correlation_id", cid))
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}
