// Package log provides simple leveled logging for keen-dnsset.
//
// Levels, from the most to the least noisy:
//
//   - TRACE: per-packet decisions on the hot path (only shown with SetTrace)
//   - DEBUG: rejected packets, decode failures (only shown in verbose mode)
//   - INFO: lifecycle events and set updates
//   - WARN: actionable problems (failed set updates, broken connections)
//   - ERROR: failures that stop a component
//
// # Example Usage
//
//	log.Infof("Listening on NFLOG group %d", group)
//	log.Debugf("Dropping packet: %v", err)
//
// Enabling verbose mode for debug output:
//
//	log.SetVerbose(true)
//
// Fatal errors that exit the application:
//
//	if err != nil {
//	    log.Fatalf("Failed to load rules: %v", err) // Exits with code 1
//	}
//
// Verbosity is configured once at startup, before any worker goroutine is
// started; the logging functions are then safe to call from any goroutine.
package log
