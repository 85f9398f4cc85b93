// Package observability provides structured logging and tracing for the
// forward-auth gateway.
package observability
