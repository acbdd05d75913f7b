// Package logger builds the structured slog logger shared by every component.
// Records carry the service name and deployment environment.
package logger
