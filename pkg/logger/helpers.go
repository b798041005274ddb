package logger

import "time"

// LogDecision logs one admission decision. Denials carry the retry interval;
// admissions log at debug so steady traffic stays quiet.
func LogDecision(identity string, allowed bool, retryAfter time.Duration) {
	fields := map[string]interface{}{
		"identity": identity,
		"allowed":  allowed,
	}
	if allowed {
		GetLogger().DebugWithFields("Request admitted", fields)
		return
	}
	fields["retry_after"] = retryAfter
	GetLogger().WarnWithFields("Request denied, over budget", fields)
}

// LogResolutionFailure logs a request whose attributes could not be resolved
// to an identity.
func LogResolutionFailure(reason string, err error) {
	GetLogger().WithError(err).WithField("reason", reason).Warn("Identity resolution failed")
}

// LogSweep logs the outcome of an eviction sweep.
func LogSweep(removed, remaining int) {
	GetLogger().DebugWithFields("Eviction sweep completed", map[string]interface{}{
		"removed":   removed,
		"remaining": remaining,
	})
}
