// Package pkgrouter wraps httprouter with the service's JSON codecs and its
// middleware chain.
//
// Handlers return (payload, error); the router renders the payload as-is and
// turns errors into {"error": msg} with the status their pkgerror code maps to.
package pkgrouter
