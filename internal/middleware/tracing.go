package middleware

import (
	"errors"
	"fmt"
	"strings"

	"quoteit/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware adds OpenTelemetry tracing to requests. Once the route is
// matched the span is renamed after its template and tagged with the quote or
// user it targets.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Extract propagation context from headers
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, fmt.Sprintf("%s %s", c.Method(), c.Path()),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
				attribute.String("http.url", c.OriginalURL()),
				attribute.String("http.ip", c.IP()),
				attribute.String("http.user_agent", c.Get("User-Agent")),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		if requestID := c.Locals("requestid"); requestID != nil {
			span.SetAttributes(attribute.String("request.id", fmt.Sprintf("%v", requestID)))
		}
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		// Route and params are only known after the router matched
		if route := c.Route(); route != nil && route.Path != "" && route.Path != "/" {
			span.SetName(fmt.Sprintf("%s %s", c.Method(), route.Path))
			span.SetAttributes(attribute.String("http.route", route.Path))
			span.SetAttributes(routeTargetAttributes(c, route.Path)...)
		}

		status := c.Response().StatusCode()
		if err != nil {
			// The app error handler has not written the status yet
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fiber.ErrInternalServerError.Message)
		}

		if viewerID := ViewerID(c); viewerID != "" {
			span.SetAttributes(attribute.String("viewer.id", viewerID))
		}

		return err
	}
}

// routeTargetAttributes names the resource a matched route acts on.
func routeTargetAttributes(c *fiber.Ctx, path string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	switch {
	case strings.HasPrefix(path, "/api/quotes/:id"):
		attrs = append(attrs, attribute.String("quote.id", c.Params("id")))
	case strings.HasPrefix(path, "/api/users/by-username/"):
		attrs = append(attrs, attribute.String("user.username", c.Params("username")))
	case strings.HasPrefix(path, "/api/users/:id"):
		attrs = append(attrs, attribute.String("user.id", c.Params("id")))
	case path == "/ws/feed":
		attrs = append(attrs, attribute.String("feed.mode", c.Query("mode", "recommended")))
	}
	return attrs
}
