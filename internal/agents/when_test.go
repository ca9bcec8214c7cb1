package agents

import (
	"testing"
	"time"

	"github.com/matedort/careline/internal/store"
)

// A Monday morning, so weekday and rollover cases are predictable.
var monday9am = time.Date(2025, 11, 3, 9, 0, 0, 0, time.Local)

func TestParseScheduleTimeOfDay(t *testing.T) {
	sched, err := parseSchedule("3pm", monday9am)
	if err != nil {
		t.Fatalf("parseSchedule() error = %v", err)
	}
	want := time.Date(2025, 11, 3, 15, 0, 0, 0, time.Local)
	if !sched.at.Equal(want) {
		t.Fatalf("at = %v, want %v", sched.at, want)
	}
	if sched.recurrence != store.RecurrenceNone {
		t.Fatalf("recurrence = %q, want none", sched.recurrence)
	}
}

func TestParseScheduleRollsPastTimesToTomorrow(t *testing.T) {
	sched, err := parseSchedule("8am", monday9am)
	if err != nil {
		t.Fatalf("parseSchedule() error = %v", err)
	}
	want := time.Date(2025, 11, 4, 8, 0, 0, 0, time.Local)
	if !sched.at.Equal(want) {
		t.Fatalf("at = %v, want next day %v", sched.at, want)
	}
}

func TestParseScheduleTomorrow(t *testing.T) {
	sched, err := parseSchedule("tomorrow at 8:30am", monday9am)
	if err != nil {
		t.Fatalf("parseSchedule() error = %v", err)
	}
	want := time.Date(2025, 11, 4, 8, 30, 0, 0, time.Local)
	if !sched.at.Equal(want) {
		t.Fatalf("at = %v, want %v", sched.at, want)
	}
}

func TestParseScheduleDaily(t *testing.T) {
	sched, err := parseSchedule("every day at 1pm", monday9am)
	if err != nil {
		t.Fatalf("parseSchedule() error = %v", err)
	}
	if sched.recurrence != store.RecurrenceDaily {
		t.Fatalf("recurrence = %q, want daily", sched.recurrence)
	}
	if sched.at.Hour() != 13 {
		t.Fatalf("hour = %d, want 13", sched.at.Hour())
	}
}

func TestParseScheduleWeekly(t *testing.T) {
	sched, err := parseSchedule("every monday and thursday at 2pm", monday9am)
	if err != nil {
		t.Fatalf("parseSchedule() error = %v", err)
	}
	if sched.recurrence != store.RecurrenceWeekly {
		t.Fatalf("recurrence = %q, want weekly", sched.recurrence)
	}
	if len(sched.days) != 2 || sched.days[0] != "monday" || sched.days[1] != "thursday" {
		t.Fatalf("days = %v, want [monday thursday]", sched.days)
	}
	if sched.at.Hour() != 14 {
		t.Fatalf("hour = %d, want 14", sched.at.Hour())
	}
}

func TestParseScheduleNoonAndMidnight(t *testing.T) {
	sched, err := parseSchedule("12pm", monday9am)
	if err != nil {
		t.Fatalf("parseSchedule() error = %v", err)
	}
	if sched.at.Hour() != 12 {
		t.Fatalf("noon hour = %d, want 12", sched.at.Hour())
	}

	sched, err = parseSchedule("tomorrow at 12am", monday9am)
	if err != nil {
		t.Fatalf("parseSchedule() error = %v", err)
	}
	if sched.at.Hour() != 0 {
		t.Fatalf("midnight hour = %d, want 0", sched.at.Hour())
	}
}

func TestParseScheduleEmptyFails(t *testing.T) {
	if _, err := parseSchedule("  ", monday9am); err == nil {
		t.Fatalf("parseSchedule(empty) error = nil, want error")
	}
}
