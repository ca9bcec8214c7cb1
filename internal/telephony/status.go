package telephony

import (
	"fmt"
	"net/http"
)

// Twilio call lifecycle statuses.
const (
	StatusQueued     = "queued"
	StatusInitiated  = "initiated"
	StatusRinging    = "ringing"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusBusy       = "busy"
	StatusFailed     = "failed"
	StatusNoAnswer   = "no-answer"
	StatusCanceled   = "canceled"
)

// StatusUpdate is one parsed status callback.
type StatusUpdate struct {
	CallSid string
	Status  string
}

// Answered reports whether a status means the callee picked up.
func Answered(status string) bool {
	return status == StatusInProgress
}

// Terminal reports whether a status ends the call's lifecycle.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer, StatusCanceled:
		return true
	}
	return false
}

// ParseStatusCallback reads a Twilio status webhook form post.
func ParseStatusCallback(r *http.Request) (StatusUpdate, error) {
	if err := r.ParseForm(); err != nil {
		return StatusUpdate{}, fmt.Errorf("telephony: parse status form: %w", err)
	}
	upd := StatusUpdate{
		CallSid: r.PostFormValue("CallSid"),
		Status:  r.PostFormValue("CallStatus"),
	}
	if upd.CallSid == "" || upd.Status == "" {
		return StatusUpdate{}, fmt.Errorf("telephony: status callback missing CallSid or CallStatus")
	}
	return upd, nil
}
