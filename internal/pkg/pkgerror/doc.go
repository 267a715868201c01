// Package pkgerror defines the structured error used between usecases and the
// HTTP edge.
//
// An Error carries a user-facing message, a Type (validation, business, server)
// and a Code that the router maps to an HTTP status. The underlying cause stays
// reachable through errors.Is and errors.As but is only ever logged.
package pkgerror
