package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matedort/careline/internal/store"
)

// ManageReminder handles the create, list, delete and edit actions of
// the manage_reminder tool.
func ManageReminder(ctx context.Context, env Env, args map[string]any) (string, error) {
	action := argString(args, "action")
	if action == "" {
		action = "list"
	}

	switch action {
	case "create":
		return createReminder(ctx, env, args)
	case "list":
		return listReminders(ctx, env)
	case "delete":
		return deleteReminder(ctx, env, args)
	case "edit":
		return editReminder(ctx, env, args)
	default:
		return "", fmt.Errorf("unknown reminder action %q", action)
	}
}

func createReminder(ctx context.Context, env Env, args map[string]any) (string, error) {
	title := argString(args, "title")
	if title == "" {
		title = "Reminder"
	}
	when := argString(args, "time")

	sched, err := parseSchedule(when, env.now())
	if err != nil {
		return "", fmt.Errorf("could not understand the time %q", when)
	}

	r, err := env.Store.CreateReminder(ctx, store.Reminder{
		Title:       title,
		ScheduledAt: sched.at,
		Recurrence:  sched.recurrence,
		DaysOfWeek:  store.NormalizeDays(sched.days),
		Active:      true,
	})
	if err != nil {
		return "", fmt.Errorf("save reminder: %w", err)
	}

	return fmt.Sprintf("Reminder saved: %s at %s%s",
		r.Title, formatAt(r.ScheduledAt), recurrenceSuffix(r.Recurrence, r.DaysOfWeek)), nil
}

func listReminders(ctx context.Context, env Env) (string, error) {
	reminders, err := env.Store.ListReminders(ctx, true)
	if err != nil {
		return "", fmt.Errorf("list reminders: %w", err)
	}
	if len(reminders) == 0 {
		return "You have no reminders set.", nil
	}

	lines := []string{"Your reminders:"}
	for _, r := range reminders {
		lines = append(lines, fmt.Sprintf("- %s at %s%s",
			r.Title, formatAtShort(r.ScheduledAt), recurrenceSuffix(r.Recurrence, r.DaysOfWeek)))
	}
	return strings.Join(lines, "\n"), nil
}

func deleteReminder(ctx context.Context, env Env, args map[string]any) (string, error) {
	reminders, err := env.Store.ListReminders(ctx, true)
	if err != nil {
		return "", fmt.Errorf("list reminders: %w", err)
	}

	match, ok := findReminder(reminders, argString(args, "title"), argString(args, "time"))
	if !ok {
		return "I couldn't find that reminder.", nil
	}
	if err := env.Store.DeleteReminder(ctx, match.ID); err != nil {
		return "", fmt.Errorf("delete reminder: %w", err)
	}
	return "Reminder deleted: " + match.Title, nil
}

func editReminder(ctx context.Context, env Env, args map[string]any) (string, error) {
	reminders, err := env.Store.ListReminders(ctx, true)
	if err != nil {
		return "", fmt.Errorf("list reminders: %w", err)
	}

	title := argString(args, "title")
	searchTitle := argString(args, "old_title")
	if searchTitle == "" {
		searchTitle = title
	}
	match, ok := findReminder(reminders, searchTitle, argString(args, "old_time"))
	if !ok {
		term := searchTitle
		if term == "" {
			term = argString(args, "old_time")
		}
		return "I couldn't find that reminder: " + term, nil
	}

	upd := store.ReminderUpdate{}
	if newTitle := argString(args, "new_title"); newTitle != "" {
		upd.Title = &newTitle
	} else if title != "" && title != match.Title {
		upd.Title = &title
	}

	when := argString(args, "new_time")
	if when == "" {
		when = argString(args, "time")
	}
	if when != "" {
		sched, err := parseSchedule(when, env.now())
		if err != nil {
			return "", fmt.Errorf("could not understand the time %q", when)
		}
		upd.ScheduledAt = &sched.at
		if sched.recurrence != store.RecurrenceNone {
			upd.Recurrence = &sched.recurrence
		}
		if len(sched.days) > 0 {
			days := store.NormalizeDays(sched.days)
			upd.DaysOfWeek = &days
		}
	}

	if upd == (store.ReminderUpdate{}) {
		return "No changes specified for the reminder.", nil
	}
	if err := env.Store.UpdateReminder(ctx, match.ID, upd); err != nil {
		return "", fmt.Errorf("update reminder: %w", err)
	}

	updated, err := env.Store.GetReminder(ctx, match.ID)
	if err != nil {
		return "Reminder updated.", nil
	}
	return fmt.Sprintf("Reminder updated: %s at %s%s",
		updated.Title, formatAt(updated.ScheduledAt), recurrenceSuffix(updated.Recurrence, updated.DaysOfWeek)), nil
}

// findReminder matches by title substring first, then by spoken time of
// day ("9am", "3 pm") against the scheduled hour.
func findReminder(reminders []store.Reminder, title, spokenTime string) (store.Reminder, bool) {
	title = strings.ToLower(strings.TrimSpace(title))
	spokenTime = strings.ToLower(strings.TrimSpace(spokenTime))

	for _, r := range reminders {
		if title != "" && strings.Contains(strings.ToLower(r.Title), title) {
			return r, true
		}
		if spokenTime != "" && matchesSpokenTime(r.ScheduledAt, spokenTime) {
			return r, true
		}
	}
	return store.Reminder{}, false
}

func matchesSpokenTime(t time.Time, spoken string) bool {
	spoken = strings.ReplaceAll(spoken, " ", "")
	for _, layout := range []string{"3:04pm", "3pm", "03:04pm", "03pm"} {
		if strings.ToLower(t.Format(layout)) == spoken {
			return true
		}
	}
	return false
}
