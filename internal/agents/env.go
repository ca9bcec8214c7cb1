// Package agents implements the assistant's tool handlers: reminders,
// contacts, user bio, notifications and the clock. Handlers are plain
// functions over an Env so the dispatch table can tag them instead of
// capturing state in closures.
package agents

import (
	"context"
	"time"

	"github.com/matedort/careline/internal/store"
)

// Notifier delivers out-of-band notifications. The "call" channel places
// a phone call; anything else is a plain notification.
type Notifier interface {
	Notify(ctx context.Context, message, channel string) error
}

// Env carries every dependency a handler may need. Handlers receive it
// per invocation; none of them hold state of their own.
type Env struct {
	Store    store.Store
	Notifier Notifier
	Now      func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
