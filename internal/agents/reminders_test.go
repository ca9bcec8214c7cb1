package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matedort/careline/internal/store"
)

func testEnv() Env {
	return Env{
		Store: store.NewInMemoryStore(),
		Now:   func() time.Time { return monday9am },
	}
}

func TestManageReminderCreateAndList(t *testing.T) {
	env := testEnv()
	ctx := context.Background()

	got, err := ManageReminder(ctx, env, map[string]any{
		"action": "create",
		"title":  "take my pill",
		"time":   "every day at 3pm",
	})
	if err != nil {
		t.Fatalf("create error = %v", err)
	}
	if !strings.Contains(got, "take my pill") || !strings.Contains(got, "every day") {
		t.Fatalf("create reply = %q", got)
	}

	got, err = ManageReminder(ctx, env, map[string]any{"action": "list"})
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(got, "take my pill") {
		t.Fatalf("list reply = %q", got)
	}
}

func TestManageReminderListEmpty(t *testing.T) {
	got, err := ManageReminder(context.Background(), testEnv(), map[string]any{"action": "list"})
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(strings.ToLower(got), "no reminders") {
		t.Fatalf("empty list reply = %q, want a no-reminders message", got)
	}
}

func TestManageReminderDeleteByTitle(t *testing.T) {
	env := testEnv()
	ctx := context.Background()

	if _, err := ManageReminder(ctx, env, map[string]any{
		"action": "create", "title": "call the doctor", "time": "4pm",
	}); err != nil {
		t.Fatalf("create error = %v", err)
	}

	got, err := ManageReminder(ctx, env, map[string]any{"action": "delete", "title": "doctor"})
	if err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if !strings.Contains(got, "call the doctor") {
		t.Fatalf("delete reply = %q", got)
	}

	reminders, err := env.Store.ListReminders(ctx, true)
	if err != nil || len(reminders) != 0 {
		t.Fatalf("reminders after delete = %v (err %v), want none", reminders, err)
	}
}

func TestManageReminderDeleteMissing(t *testing.T) {
	got, err := ManageReminder(context.Background(), testEnv(), map[string]any{
		"action": "delete", "title": "nonexistent",
	})
	if err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if !strings.Contains(got, "couldn't find") {
		t.Fatalf("delete-missing reply = %q", got)
	}
}

func TestManageReminderEdit(t *testing.T) {
	env := testEnv()
	ctx := context.Background()

	if _, err := ManageReminder(ctx, env, map[string]any{
		"action": "create", "title": "take my pill", "time": "3pm",
	}); err != nil {
		t.Fatalf("create error = %v", err)
	}

	got, err := ManageReminder(ctx, env, map[string]any{
		"action":    "edit",
		"old_title": "pill",
		"new_title": "take medication",
		"new_time":  "4pm",
	})
	if err != nil {
		t.Fatalf("edit error = %v", err)
	}
	if !strings.Contains(got, "take medication") || !strings.Contains(got, "04:00 PM") {
		t.Fatalf("edit reply = %q", got)
	}
}

func TestManageReminderUnknownAction(t *testing.T) {
	if _, err := ManageReminder(context.Background(), testEnv(), map[string]any{"action": "explode"}); err == nil {
		t.Fatalf("unknown action error = nil, want error")
	}
}

func TestManageReminderBadTime(t *testing.T) {
	if _, err := ManageReminder(context.Background(), testEnv(), map[string]any{
		"action": "create", "title": "x", "time": "",
	}); err == nil {
		t.Fatalf("empty time error = nil, want error")
	}
}
