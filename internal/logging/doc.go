// Package logging builds the slog loggers used across Chronicle: a console
// handler for interactive use and a JSON handler for machine consumption,
// with optional mirroring to a log file under the configured log directory.
package logging
