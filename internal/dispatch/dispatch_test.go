package dispatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matedort/careline/internal/agents"
	"github.com/matedort/careline/internal/live"
	"github.com/matedort/careline/internal/store"
)

func testTable() *Table {
	return NewTable(agents.Env{
		Store: store.NewInMemoryStore(),
		Now:   func() time.Time { return time.Date(2025, 11, 3, 9, 0, 0, 0, time.Local) },
	})
}

func TestDeclarationsCoverAllTools(t *testing.T) {
	decls := testTable().Declarations()

	want := []string{"manage_reminder", "lookup_contact", "lookup_user_info", "send_notification", "get_current_time"}
	if len(decls) != len(want) {
		t.Fatalf("len(decls) = %d, want %d", len(decls), len(want))
	}
	for i, name := range want {
		if decls[i].Name != name {
			t.Fatalf("decls[%d].Name = %q, want %q", i, decls[i].Name, name)
		}
		if decls[i].Description == "" {
			t.Fatalf("%s has no description", name)
		}
	}
}

func TestInvokeSuccess(t *testing.T) {
	resps := testTable().Invoke(context.Background(), []live.FunctionCall{
		{ID: "42", Name: "manage_reminder", Args: map[string]any{"action": "list"}},
	})
	if len(resps) != 1 {
		t.Fatalf("len(resps) = %d, want 1", len(resps))
	}
	r := resps[0]
	if r.ID != "42" || r.Name != "manage_reminder" {
		t.Fatalf("response identity = %+v", r)
	}
	if r.Err != "" {
		t.Fatalf("Err = %q, want empty", r.Err)
	}
	if !strings.Contains(strings.ToLower(r.Result), "no reminders") {
		t.Fatalf("Result = %q", r.Result)
	}
}

func TestInvokeUnknownFunction(t *testing.T) {
	resps := testTable().Invoke(context.Background(), []live.FunctionCall{
		{ID: "7", Name: "launch_rocket", Args: nil},
	})
	if len(resps) != 1 {
		t.Fatalf("len(resps) = %d, want 1", len(resps))
	}
	if resps[0].ID != "7" || resps[0].Err == "" {
		t.Fatalf("response = %+v, want error with echoed id", resps[0])
	}
	if !strings.Contains(resps[0].Err, "launch_rocket") {
		t.Fatalf("Err = %q, should name the function", resps[0].Err)
	}
}

func TestInvokeHandlerError(t *testing.T) {
	// send_notification with no notifier configured fails inside the
	// handler; the failure must come back as a response, not an error.
	resps := testTable().Invoke(context.Background(), []live.FunctionCall{
		{ID: "1", Name: "send_notification", Args: map[string]any{"message": "hi"}},
	})
	if resps[0].Err == "" {
		t.Fatalf("response = %+v, want handler error surfaced", resps[0])
	}
}

func TestInvokePreservesOrder(t *testing.T) {
	resps := testTable().Invoke(context.Background(), []live.FunctionCall{
		{ID: "a", Name: "get_current_time"},
		{ID: "b", Name: "nope"},
		{ID: "c", Name: "manage_reminder", Args: map[string]any{"action": "list"}},
	})
	if len(resps) != 3 {
		t.Fatalf("len(resps) = %d, want 3", len(resps))
	}
	for i, id := range []string{"a", "b", "c"} {
		if resps[i].ID != id {
			t.Fatalf("resps[%d].ID = %q, want %q", i, resps[i].ID, id)
		}
	}
	if resps[0].Err != "" || resps[1].Err == "" || resps[2].Err != "" {
		t.Fatalf("unexpected error pattern: %+v", resps)
	}
}

func TestHandlerKindString(t *testing.T) {
	kinds := map[HandlerKind]string{
		KindReminder:     "reminder",
		KindContact:      "contact",
		KindUserInfo:     "user_info",
		KindNotification: "notification",
		KindClock:        "clock",
	}
	for k, want := range kinds {
		if got := k.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", int(k), got, want)
		}
	}
}
