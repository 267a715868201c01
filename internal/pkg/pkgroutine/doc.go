// Package pkgroutine runs background work that outlives the request that
// started it, such as announcing a freshly written upload.
//
// Manager bounds how many tasks run at once and refuses work rather than
// queue it. It keeps the errors tasks return and turns panics into errors, so
// the process can drain them on shutdown.
package pkgroutine
