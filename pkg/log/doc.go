/*
Package log provides structured logging for sfmc-inventory using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. Console output is used for interactive runs and
JSON output for automation.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: false})

	logger := log.WithComponent("transport")
	logger.Info().Str("path", path).Int("status", status).Msg("request complete")

Component loggers carry a stable "component" field so a single extraction run
can be filtered per subsystem (auth, transport, cache, runner, snapshot).
WithExtractor and WithRunID add the corresponding correlation fields.
*/
package log
