package bridge

import (
	"errors"
	"sync"
	"time"
)

var ErrCallNotFound = errors.New("bridge: call not found")

// CallSession is the bookkeeping record for one bridged telephony leg.
type CallSession struct {
	CallSid        string    `json:"call_sid"`
	StreamSid      string    `json:"stream_sid"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	FramesIn       int64     `json:"frames_in"`
	FramesOut      int64     `json:"frames_out"`
}

// Registry tracks active call sessions by call SID.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]*CallSession
}

func NewRegistry() *Registry {
	return &Registry{calls: make(map[string]*CallSession)}
}

func (r *Registry) Add(callSid, streamSid string) *CallSession {
	now := time.Now().UTC()
	s := &CallSession{
		CallSid:        callSid,
		StreamSid:      streamSid,
		StartedAt:      now,
		LastActivityAt: now,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[callSid] = s
	return cloneCall(s)
}

func (r *Registry) Get(callSid string) (*CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.calls[callSid]
	if !ok {
		return nil, ErrCallNotFound
	}
	return cloneCall(s), nil
}

func (r *Registry) Remove(callSid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, callSid)
}

// Touch bumps activity and frame counters for one relayed frame.
func (r *Registry) Touch(callSid string, inbound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.calls[callSid]
	if !ok {
		return
	}
	s.LastActivityAt = time.Now().UTC()
	if inbound {
		s.FramesIn++
	} else {
		s.FramesOut++
	}
}

func (r *Registry) List() []*CallSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CallSession, 0, len(r.calls))
	for _, s := range r.calls {
		out = append(out, cloneCall(s))
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}

func cloneCall(s *CallSession) *CallSession {
	c := *s
	return &c
}
