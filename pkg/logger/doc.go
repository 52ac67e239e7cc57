// Package logger wraps zerolog behind a small interface used by every
// flickrharvest component.
//
// A process initializes the global logger once from config:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("run_id", id).Info("harvest started")
//
// Components that need isolation in tests accept a Logger and are handed
// NewNopLogger or NewTestLogger instead of the global instance.
package logger
