package agents

import (
	"context"
	"strings"
	"testing"
)

func TestLookupContactAddAndLookup(t *testing.T) {
	env := testEnv()
	ctx := context.Background()

	got, err := LookupContact(ctx, env, map[string]any{
		"action":   "add",
		"name":     "Helen Stadler",
		"relation": "friend",
		"phone":    "404-953-5533",
		"birthday": "2004-08-27",
	})
	if err != nil {
		t.Fatalf("add error = %v", err)
	}
	if !strings.Contains(got, "Helen Stadler") || !strings.Contains(got, "404-953-5533") {
		t.Fatalf("add reply = %q", got)
	}

	got, err = LookupContact(ctx, env, map[string]any{"action": "lookup", "name": "Helen"})
	if err != nil {
		t.Fatalf("lookup error = %v", err)
	}
	if !strings.Contains(got, "August 27, 2004") {
		t.Fatalf("lookup reply = %q, want formatted birthday", got)
	}
}

func TestLookupContactMissing(t *testing.T) {
	got, err := LookupContact(context.Background(), testEnv(), map[string]any{
		"action": "lookup", "name": "Nobody",
	})
	if err != nil {
		t.Fatalf("lookup error = %v", err)
	}
	if !strings.Contains(got, "Nobody") {
		t.Fatalf("missing-contact reply = %q", got)
	}
}

func TestLookupContactAddDuplicate(t *testing.T) {
	env := testEnv()
	ctx := context.Background()

	if _, err := LookupContact(ctx, env, map[string]any{"action": "add", "name": "Harry"}); err != nil {
		t.Fatalf("add error = %v", err)
	}
	got, err := LookupContact(ctx, env, map[string]any{"action": "add", "name": "Harry"})
	if err != nil {
		t.Fatalf("duplicate add error = %v", err)
	}
	if !strings.Contains(got, "already exists") {
		t.Fatalf("duplicate reply = %q", got)
	}
}

func TestLookupContactEdit(t *testing.T) {
	env := testEnv()
	ctx := context.Background()

	if _, err := LookupContact(ctx, env, map[string]any{
		"action": "add", "name": "Harry", "phone": "555-1234",
	}); err != nil {
		t.Fatalf("add error = %v", err)
	}

	got, err := LookupContact(ctx, env, map[string]any{
		"action": "edit", "old_name": "Harry", "phone": "555-5678",
	})
	if err != nil {
		t.Fatalf("edit error = %v", err)
	}
	if !strings.Contains(got, "555-5678") {
		t.Fatalf("edit reply = %q", got)
	}
}

func TestLookupContactBirthdayCheck(t *testing.T) {
	env := testEnv()
	ctx := context.Background()

	// monday9am is November 3rd.
	if _, err := LookupContact(ctx, env, map[string]any{
		"action": "add", "name": "Anna", "birthday": "1950-11-03",
	}); err != nil {
		t.Fatalf("add error = %v", err)
	}
	if _, err := LookupContact(ctx, env, map[string]any{
		"action": "add", "name": "Ben", "birthday": "1960-02-14",
	}); err != nil {
		t.Fatalf("add error = %v", err)
	}

	got, err := LookupContact(ctx, env, map[string]any{"action": "birthday_check"})
	if err != nil {
		t.Fatalf("birthday_check error = %v", err)
	}
	if !strings.Contains(got, "Anna") || strings.Contains(got, "Ben") {
		t.Fatalf("birthday_check reply = %q", got)
	}
}

func TestLookupContactList(t *testing.T) {
	env := testEnv()
	ctx := context.Background()

	got, err := LookupContact(ctx, env, map[string]any{"action": "list"})
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(strings.ToLower(got), "no saved contacts") {
		t.Fatalf("empty list reply = %q", got)
	}

	if _, err := LookupContact(ctx, env, map[string]any{
		"action": "add", "name": "Harry", "relation": "friend",
	}); err != nil {
		t.Fatalf("add error = %v", err)
	}
	got, err = LookupContact(ctx, env, map[string]any{"action": "list"})
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(got, "Harry (friend)") {
		t.Fatalf("list reply = %q", got)
	}
}
