// Package logger provides structured logging for scribe using zerolog.
//
// Components take a *Logger tagged with their name and log with map fields:
//
//	log := logger.WithComponent("router")
//	log.Info("plan ready", logger.Fields(logger.FieldModel, "large-v3", "attempts", 2))
//
// Levels follow one convention across the module: debug for probe detail,
// info for routing decisions and cancellation, warn for fallbacks, error for
// terminal failures only.
package logger
