/*
Package log provides structured logging for the build database, wrapping
github.com/rs/zerolog.

A single package-level Logger is configured once via Init, then narrowed
per call site with a With<X> constructor that attaches one contextual
field (component, run id, key id, or step):

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	sched := log.WithComponent("scheduler")
	sched.Info().Msg("build starting")

	kl := log.WithKeyID(id)
	kl.Debug().Str("status", "waiting").Msg("joined existing build")

Plain package-level helpers (Info, Debug, Warn, Error, Fatal) exist for
one-off messages that don't need a component tag.
*/
package log
