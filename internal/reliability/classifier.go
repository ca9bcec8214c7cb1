package reliability

import (
	"strings"
	"time"
)

// connectionFaultMarkers are message fragments that indicate a
// transport-level session fault rather than an application error.
var connectionFaultMarkers = []string{
	"connection",
	"not connected",
	"websocket",
	"broken pipe",
	"reset by peer",
	"use of closed",
	"eof",
	"timeout",
	"handshake",
}

// IsConnectionFault classifies an error as a recoverable session
// transport fault, the kind that warrants one reconnect attempt with
// buffering instead of dropping the call.
func IsConnectionFault(err error) bool {
	if err == nil {
		return false
	}
	return IsConnectionFaultMessage(err.Error())
}

// IsConnectionFaultMessage is the message-level form of
// IsConnectionFault, for errors that cross a serialization boundary.
func IsConnectionFaultMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range connectionFaultMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
