// Package handler exposes the router over HTTP: dispatching a notification,
// inspecting and resetting circuit breakers, and reading telemetry.
package handler
