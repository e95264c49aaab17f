// Package logger provides structured logging for the naming client
// using zerolog.
//
// It supports multiple output formats (JSON, console), log level
// configuration, and component-scoped loggers with structured fields.
// Every background task of the client (cache, heartbeat, registration,
// shutdown) logs through a component-tagged *Logger.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("nacos-serving").WithComponent("cache")
//	log.Info("push applied", logger.Fields("service", "user-service"))
package logger
