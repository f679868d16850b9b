package fanout

import log "github.com/sirupsen/logrus"

// defaultWaitWarnThreshold is the waiting-time percentage above which the
// run-end summary is escalated to a warning.
const defaultWaitWarnThreshold = 90.0

// defaultBufferCapacity is applied to workers registered with a zero capacity.
const defaultBufferCapacity = 64

// defaultConfig centralizes default values for config.
// These defaults form the base that New applies options on top of.
func defaultConfig() config {
	return config{
		Logger:                log.StandardLogger(),
		DefaultBufferCapacity: defaultBufferCapacity,
		WaitWarnThreshold:     defaultWaitWarnThreshold,
		ReadLimiter:           nil, // no throttling
	}
}

// validateConfig performs lightweight invariants checks.
// Options validate their own inputs; this is reserved for cross-field rules.
func validateConfig(_ *config) error {
	return nil
}
