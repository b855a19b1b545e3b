// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts, signal handling, and a health-check handler.
package httpserver
