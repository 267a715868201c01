// Package pkgtrace builds the OpenTelemetry tracer provider for the service.
//
// The provider samples every root span. Spans are exported to stdout as JSON,
// or kept in-process only so their ids still reach the logs.
package pkgtrace
