// Package pkguid provides the ID generators used by the service: UUIDv7
// strings for correlation and event IDs, and Snowflake numbers for ingest IDs.
//
// Callers depend on the StringID and NumberID interfaces so tests can swap in
// deterministic generators.
package pkguid
