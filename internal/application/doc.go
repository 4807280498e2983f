// Package application provides application initialization and dependency wiring.
// It seeds configuration storage, registers Prometheus collectors, and builds
// the handlers, routers and HTTP server, keeping the main package focused on
// CLI parsing and orchestration.
package application
