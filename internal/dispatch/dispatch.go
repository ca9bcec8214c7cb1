// Package dispatch routes model function calls to their handlers. Each
// tool name is bound to a HandlerKind tag; Invoke switches on the tag,
// so the table holds data rather than captured closures.
package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/matedort/careline/internal/agents"
	"github.com/matedort/careline/internal/live"
)

// HandlerKind identifies which handler services a bound tool name.
type HandlerKind int

const (
	KindReminder HandlerKind = iota
	KindContact
	KindUserInfo
	KindNotification
	KindClock
)

func (k HandlerKind) String() string {
	switch k {
	case KindReminder:
		return "reminder"
	case KindContact:
		return "contact"
	case KindUserInfo:
		return "user_info"
	case KindNotification:
		return "notification"
	case KindClock:
		return "clock"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type binding struct {
	kind HandlerKind
	decl live.FunctionDeclaration
}

// Table binds tool names to handler kinds and carries the shared
// handler environment.
type Table struct {
	env      agents.Env
	order    []string
	bindings map[string]binding
}

// NewTable builds the table with every builtin tool registered.
func NewTable(env agents.Env) *Table {
	t := &Table{env: env, bindings: map[string]binding{}}
	for _, b := range builtins() {
		t.register(b.decl, b.kind)
	}
	return t
}

func (t *Table) register(decl live.FunctionDeclaration, kind HandlerKind) {
	if _, dup := t.bindings[decl.Name]; !dup {
		t.order = append(t.order, decl.Name)
	}
	t.bindings[decl.Name] = binding{kind: kind, decl: decl}
}

// Declarations returns the tool declarations in registration order, for
// the session setup message.
func (t *Table) Declarations() []live.FunctionDeclaration {
	decls := make([]live.FunctionDeclaration, 0, len(t.order))
	for _, name := range t.order {
		decls = append(decls, t.bindings[name].decl)
	}
	return decls
}

// Invoke runs every call and returns one response per call, in order.
// Failures never propagate as errors: an unknown name or a handler
// error becomes an error-shaped response so the model can recover in
// conversation.
func (t *Table) Invoke(ctx context.Context, calls []live.FunctionCall) []live.FunctionResponse {
	resps := make([]live.FunctionResponse, 0, len(calls))
	for _, call := range calls {
		resp := live.FunctionResponse{ID: call.ID, Name: call.Name}

		b, ok := t.bindings[call.Name]
		if !ok {
			resp.Err = fmt.Sprintf("unknown function %q", call.Name)
			resps = append(resps, resp)
			continue
		}

		result, err := t.run(ctx, b.kind, call.Args)
		if err != nil {
			log.Printf("dispatch: %s (%s) failed: %v", call.Name, b.kind, err)
			resp.Err = err.Error()
		} else {
			resp.Result = result
		}
		resps = append(resps, resp)
	}
	return resps
}

func (t *Table) run(ctx context.Context, kind HandlerKind, args map[string]any) (string, error) {
	switch kind {
	case KindReminder:
		return agents.ManageReminder(ctx, t.env, args)
	case KindContact:
		return agents.LookupContact(ctx, t.env, args)
	case KindUserInfo:
		return agents.LookupUserInfo(ctx, t.env, args)
	case KindNotification:
		return agents.SendNotification(ctx, t.env, args)
	case KindClock:
		return agents.CurrentTime(ctx, t.env, args)
	}
	return "", fmt.Errorf("no handler for kind %s", kind)
}
