// Package logger provides structured logging for the admission engine.
//
// It wraps the zerolog library behind a small interface so components can log
// decisions and sweeps without caring about the sink, and so tests can
// capture output through the TestLogger implementation.
//
// Basic Usage:
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	if err := logger.Initialize(cfg); err != nil {
//	    // ...
//	}
//
//	logger.Info("engine started")
//	logger.WithField("identity", string(id)).Warn("request denied")
//
// Components accept a logger.Logger and fall back to the global instance when
// given nil, so wiring stays optional in tests.
package logger
