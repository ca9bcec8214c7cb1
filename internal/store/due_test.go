package store

import (
	"testing"
	"time"
)

// mon is a Monday at 09:00 local time.
var mon = time.Date(2025, 11, 3, 9, 0, 0, 0, time.Local)

func TestFilterDueSkipsFutureAndInactive(t *testing.T) {
	reminders := []Reminder{
		{ID: "future", Active: true, ScheduledAt: mon.Add(time.Hour)},
		{ID: "inactive", Active: false, ScheduledAt: mon.Add(-time.Hour)},
		{ID: "due", Active: true, ScheduledAt: mon.Add(-time.Minute)},
	}
	due := filterDue(reminders, mon)
	if len(due) != 1 || due[0].ID != "due" {
		t.Fatalf("due = %+v, want only %q", due, "due")
	}
}

func TestFilterDueDailyOncePerDay(t *testing.T) {
	earlier := mon.Add(-2 * time.Hour)
	r := Reminder{
		ID: "r1", Active: true, Recurrence: RecurrenceDaily,
		ScheduledAt:   mon.Add(-time.Hour),
		LastTriggered: &earlier,
	}
	if due := filterDue([]Reminder{r}, mon); len(due) != 0 {
		t.Fatalf("daily reminder already triggered today should not be due, got %+v", due)
	}

	yesterday := mon.AddDate(0, 0, -1)
	r.LastTriggered = &yesterday
	if due := filterDue([]Reminder{r}, mon); len(due) != 1 {
		t.Fatalf("daily reminder last triggered yesterday should be due")
	}
}

func TestFilterDueWeeklyWeekdayGate(t *testing.T) {
	r := Reminder{
		ID: "pills", Active: true, Recurrence: RecurrenceWeekly,
		DaysOfWeek:  []string{"monday"},
		ScheduledAt: mon.Add(-time.Hour),
	}

	if due := filterDue([]Reminder{r}, mon); len(due) != 1 {
		t.Fatalf("weekly monday reminder should be due on Monday")
	}

	for d := 1; d <= 6; d++ {
		day := mon.AddDate(0, 0, d)
		if due := filterDue([]Reminder{r}, day); len(due) != 0 {
			t.Fatalf("weekly monday reminder should not be due on %s", day.Weekday())
		}
	}
}

func TestFilterDueWeeklyOncePerEligibleDay(t *testing.T) {
	earlier := mon.Add(-time.Hour)
	r := Reminder{
		ID: "pills", Active: true, Recurrence: RecurrenceWeekly,
		DaysOfWeek:    []string{"monday"},
		ScheduledAt:   mon.Add(-2 * time.Hour),
		LastTriggered: &earlier,
	}
	if due := filterDue([]Reminder{r}, mon); len(due) != 0 {
		t.Fatalf("weekly reminder already triggered this Monday should not re-fire")
	}

	nextMonday := mon.AddDate(0, 0, 7)
	if due := filterDue([]Reminder{r}, nextMonday); len(due) != 1 {
		t.Fatalf("weekly reminder should fire again the next Monday")
	}
}

func TestFilterDueWeeklyEmptySetUsesCreationWeekday(t *testing.T) {
	trig := mon
	r := Reminder{
		ID: "r1", Active: true, Recurrence: RecurrenceWeekly,
		ScheduledAt:   mon.Add(-time.Hour),
		CreatedAt:     mon, // created on a Monday
		LastTriggered: &trig,
	}

	tuesday := mon.AddDate(0, 0, 1)
	if due := filterDue([]Reminder{r}, tuesday); len(due) != 0 {
		t.Fatalf("empty-set weekly reminder should not re-fire on Tuesday")
	}

	nextMonday := mon.AddDate(0, 0, 7)
	if due := filterDue([]Reminder{r}, nextMonday); len(due) != 1 {
		t.Fatalf("empty-set weekly reminder should re-fire on its creation weekday")
	}
}

func TestFilterDueWeeklyFirstFireIgnoresWeekday(t *testing.T) {
	r := Reminder{
		ID: "r1", Active: true, Recurrence: RecurrenceWeekly,
		ScheduledAt: mon.Add(-time.Hour),
		CreatedAt:   mon,
	}
	tuesday := mon.AddDate(0, 0, 1)
	if due := filterDue([]Reminder{r}, tuesday); len(due) != 1 {
		t.Fatalf("never-triggered empty-set weekly reminder should fire when due")
	}
}

func TestNormalizeDays(t *testing.T) {
	got := NormalizeDays([]string{" Monday", "FRIDAY ", "", "sunday"})
	want := []string{"monday", "friday", "sunday"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeDays() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NormalizeDays()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
