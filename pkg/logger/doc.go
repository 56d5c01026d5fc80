// Package logger builds configured slog.Logger instances for the services in
// this module: JSON or text handlers, level control, and static attributes
// such as the service name.
package logger
