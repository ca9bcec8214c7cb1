package agents

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/matedort/careline/internal/store"
)

// schedule is the result of parsing a spoken time expression.
type schedule struct {
	at         time.Time
	recurrence store.Recurrence
	days       []string
}

var (
	clockRe   = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
	weekdayRe = regexp.MustCompile(`monday|tuesday|wednesday|thursday|friday|saturday|sunday`)
	dailyRe   = regexp.MustCompile(`every day|daily`)
)

// parseSchedule turns expressions like "3pm", "tomorrow at 8am",
// "every day at 1pm" or "every monday at 2pm" into a concrete schedule.
// A time of day that already passed today rolls to tomorrow unless the
// caller said "today".
func parseSchedule(s string, now time.Time) (schedule, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return schedule{}, fmt.Errorf("empty time expression")
	}

	out := schedule{}
	if dailyRe.MatchString(s) {
		out.recurrence = store.RecurrenceDaily
		s = strings.TrimSpace(dailyRe.ReplaceAllString(s, ""))
	}
	if strings.Contains(s, "every") && weekdayRe.MatchString(s) {
		out.recurrence = store.RecurrenceWeekly
		out.days = weekdayRe.FindAllString(s, -1)
		s = strings.TrimSpace(strings.ReplaceAll(s, "every", ""))
		s = strings.TrimSpace(weekdayRe.ReplaceAllString(s, ""))
	}

	target := now
	if m := clockRe.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		switch {
		case m[3] == "pm" && hour != 12:
			hour += 12
		case m[3] == "am" && hour == 12:
			hour = 0
		}
		if hour > 23 || minute > 59 {
			return schedule{}, fmt.Errorf("unparseable time of day %q", s)
		}
		target = time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	}

	if strings.Contains(s, "tomorrow") {
		target = target.AddDate(0, 0, 1)
	} else if !strings.Contains(s, "today") && target.Before(now) {
		target = target.AddDate(0, 0, 1)
	}

	out.at = target
	return out, nil
}

// formatAt renders a reminder time the way the assistant speaks it.
func formatAt(t time.Time) string {
	return t.Format("03:04 PM on January 02, 2006")
}

func formatAtShort(t time.Time) string {
	return t.Format("03:04 PM on January 02")
}

func recurrenceSuffix(rec store.Recurrence, days []string) string {
	switch rec {
	case store.RecurrenceDaily:
		return " every day"
	case store.RecurrenceWeekly:
		if len(days) > 0 {
			return " every " + strings.Join(days, ", ")
		}
		return " every week"
	}
	return ""
}
