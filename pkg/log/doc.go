/*
Package log provides structured logging built on zerolog.

Init configures the global logger once (level, console vs JSON output);
packages then derive component loggers:

	logger := log.WithComponent("transport")
	logger.Info().Str("app_id", id).Msg("deploy started")

WithAppID and WithAttemptID attach the fields used to correlate a
deployment's log lines across components.
*/
package log
