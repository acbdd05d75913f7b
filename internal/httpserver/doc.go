// Package httpserver runs the operational HTTP surface with sane timeouts and
// graceful shutdown.
package httpserver
