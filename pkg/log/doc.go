/*
Package log provides structured logging for herd using zerolog.

The package wraps a single global zerolog.Logger. herd is a short-lived CLI, so
logs are written to stderr by default and stdout is reserved for the reports
commands print (node tables, service listings).

# Levels

	debug   every executed command and its captured output
	info    lifecycle progress ("create virtualbox host lab-worker2")
	warn    recoverable oddities (poll attempt failed, retrying)
	error   operation failures

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
	})

Component loggers:

	logger := log.WithComponent("orchestrator")
	logger.Info().Str("node", "lab-manager1").Msg("Initializing swarm")

	nodeLog := log.WithNode("lab-worker1")
	nodeLog.Debug().Msg("Waiting for node to report down")

Until Init is called the global logger is the zero zerolog.Logger, which
discards every event. Tests rely on this.
*/
package log
