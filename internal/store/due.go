package store

import (
	"strings"
	"time"
)

// filterDue applies the shared due-ness rules over active reminders. A
// reminder is due when its scheduled instant has passed and its
// recurrence-specific eligibility holds:
//
//   - recurring reminders fire at most once per calendar day, keyed on the
//     date of last_triggered;
//   - weekly reminders additionally require today's weekday to be in their
//     configured set; with an empty set the creation weekday stands in, so
//     the reminder only ever re-fires on the day of week it was created.
//
// Every backend routes DueReminders through this function so the rules
// cannot drift between implementations.
func filterDue(reminders []Reminder, now time.Time) []Reminder {
	var due []Reminder
	for _, r := range reminders {
		if !r.Active || r.ScheduledAt.After(now) {
			continue
		}
		if r.Recurrence != RecurrenceNone {
			if r.LastTriggered != nil && sameDate(*r.LastTriggered, now) {
				continue
			}
			if r.Recurrence == RecurrenceWeekly && !weeklyEligible(r, now) {
				continue
			}
		}
		due = append(due, r)
	}
	return due
}

func weeklyEligible(r Reminder, now time.Time) bool {
	if len(r.DaysOfWeek) == 0 {
		return r.LastTriggered == nil || now.Weekday() == r.CreatedAt.Weekday()
	}
	return weekdayIn(r.DaysOfWeek, now.Weekday())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func weekdayIn(days []string, wd time.Weekday) bool {
	name := strings.ToLower(wd.String())
	for _, d := range days {
		if strings.ToLower(strings.TrimSpace(d)) == name {
			return true
		}
	}
	return false
}

// NormalizeDays lowercases and trims a weekday set, dropping empty entries.
// Stored sets always pass through here so eligibility checks compare
// canonical names.
func NormalizeDays(days []string) []string {
	var out []string
	for _, d := range days {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
