package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/matedort/careline/internal/observability"
	"github.com/matedort/careline/internal/store"
	"github.com/matedort/careline/internal/telephony"
)

var tickTime = time.Date(2025, 11, 3, 9, 0, 1, 0, time.Local) // Monday

type fakePlacer struct {
	calls  []store.Reminder
	nextID string
	err    error
}

func (f *fakePlacer) PlaceReminderCall(_ context.Context, r store.Reminder) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, r)
	if f.nextID == "" {
		f.nextID = "CA1"
	}
	return f.nextID, nil
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("careline_test_sched_%d", time.Now().UnixNano()))
}

func newTestScheduler(t *testing.T, placer *fakePlacer) (*Scheduler, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	s := New(st, placer, newTestMetrics(), WithClock(func() time.Time { return tickTime }))
	return s, st
}

func addReminder(t *testing.T, st store.Store, r store.Reminder) store.Reminder {
	t.Helper()
	r.Active = true
	created, err := st.CreateReminder(context.Background(), r)
	if err != nil {
		t.Fatalf("CreateReminder() error = %v", err)
	}
	return created
}

func TestTickPlacesCallAndCompletesOnAnswer(t *testing.T) {
	placer := &fakePlacer{nextID: "CA42"}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	r := addReminder(t, st, store.Reminder{
		Title:       "take pill",
		ScheduledAt: tickTime.Add(-time.Second),
	})

	s.Tick(ctx)
	if len(placer.calls) != 1 || placer.calls[0].ID != r.ID {
		t.Fatalf("placed calls = %+v, want exactly one for %s", placer.calls, r.ID)
	}

	got, err := st.GetReminder(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReminder() error = %v", err)
	}
	if got.LastTriggered == nil {
		t.Fatalf("LastTriggered not stamped")
	}
	if !got.Active {
		t.Fatalf("reminder inactive before call outcome")
	}

	s.HandleCallStatus(ctx, "CA42", telephony.StatusInProgress, true, false)
	s.HandleCallStatus(ctx, "CA42", telephony.StatusCompleted, false, true)

	got, err = st.GetReminder(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReminder() error = %v", err)
	}
	if got.Active {
		t.Fatalf("non-recurring reminder still active after answered call")
	}
}

func TestTickReschedulesOnNoAnswer(t *testing.T) {
	placer := &fakePlacer{nextID: "CA7"}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	r := addReminder(t, st, store.Reminder{
		Title:       "take pill",
		ScheduledAt: tickTime.Add(-time.Second),
	})

	s.Tick(ctx)
	s.HandleCallStatus(ctx, "CA7", telephony.StatusNoAnswer, false, true)

	got, err := st.GetReminder(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReminder() error = %v", err)
	}
	if !got.Active {
		t.Fatalf("reminder must stay active after no answer")
	}
	want := tickTime.Add(5 * time.Minute)
	if !got.ScheduledAt.Equal(want) {
		t.Fatalf("ScheduledAt = %v, want %v", got.ScheduledAt, want)
	}

	// Resolution is consumed: a late duplicate status changes nothing.
	s.HandleCallStatus(ctx, "CA7", telephony.StatusCompleted, false, true)
	again, _ := st.GetReminder(ctx, r.ID)
	if !again.ScheduledAt.Equal(want) {
		t.Fatalf("duplicate terminal status moved ScheduledAt to %v", again.ScheduledAt)
	}
}

func TestTickDuringActiveCallCompletesWithoutPlacing(t *testing.T) {
	placer := &fakePlacer{}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	r := addReminder(t, st, store.Reminder{Title: "lunch", ScheduledAt: tickTime.Add(-time.Minute)})
	s.SetInCall(ctx, "CAlive", true)

	s.Tick(ctx)
	if len(placer.calls) != 0 {
		t.Fatalf("placed calls = %+v, want none while in a call", placer.calls)
	}

	got, err := st.GetReminder(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReminder() error = %v", err)
	}
	if got.Active {
		t.Fatalf("non-recurring reminder not completed during active call")
	}
}

func TestTickDuringActiveCallKeepsRecurring(t *testing.T) {
	placer := &fakePlacer{}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	r := addReminder(t, st, store.Reminder{
		Title:       "walk",
		ScheduledAt: tickTime.Add(-time.Minute),
		Recurrence:  store.RecurrenceDaily,
	})
	s.SetInCall(ctx, "CAlive", true)
	s.Tick(ctx)

	got, err := st.GetReminder(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReminder() error = %v", err)
	}
	if !got.Active {
		t.Fatalf("recurring reminder deactivated by in-call trigger")
	}
	if got.LastTriggered == nil {
		t.Fatalf("LastTriggered not stamped")
	}
}

func TestInCallTracksEachStreamSeparately(t *testing.T) {
	placer := &fakePlacer{}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	addReminder(t, st, store.Reminder{Title: "lunch", ScheduledAt: tickTime.Add(-time.Minute)})

	s.SetInCall(ctx, "CAone", true)
	s.SetInCall(ctx, "CAtwo", true)
	s.SetInCall(ctx, "CAone", false)

	if !s.InCall() {
		t.Fatalf("InCall() = false with one stream still active")
	}
	s.Tick(ctx)
	if len(placer.calls) != 0 {
		t.Fatalf("placed calls = %+v, want none while a call is still bridged", placer.calls)
	}

	s.SetInCall(ctx, "CAtwo", false)
	if s.InCall() {
		t.Fatalf("InCall() = true after every stream ended")
	}
}

func TestDailyAdvanceRollsToTomorrow(t *testing.T) {
	placer := &fakePlacer{}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	// Scheduled 8am daily, tick at 9:00:01: today's slot passed.
	r := addReminder(t, st, store.Reminder{
		Title:       "medication",
		ScheduledAt: time.Date(2025, 11, 3, 8, 0, 0, 0, time.Local),
		Recurrence:  store.RecurrenceDaily,
	})
	s.Tick(ctx)

	got, _ := st.GetReminder(ctx, r.ID)
	want := time.Date(2025, 11, 4, 8, 0, 0, 0, time.Local)
	if !got.ScheduledAt.Equal(want) {
		t.Fatalf("daily advance = %v, want %v", got.ScheduledAt, want)
	}
}

func TestDailyAdvanceReanchorsStaleDate(t *testing.T) {
	placer := &fakePlacer{}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	// Days behind; the next slot anchors to today, not the stale date.
	r := addReminder(t, st, store.Reminder{
		Title:       "medication",
		ScheduledAt: time.Date(2025, 10, 28, 15, 0, 0, 0, time.Local),
		Recurrence:  store.RecurrenceDaily,
	})
	s.Tick(ctx)

	got, _ := st.GetReminder(ctx, r.ID)
	want := time.Date(2025, 11, 3, 15, 0, 0, 0, time.Local)
	if !got.ScheduledAt.Equal(want) {
		t.Fatalf("daily advance = %v, want %v", got.ScheduledAt, want)
	}
}

func TestWeeklyAdvanceMovesExactlyOneDay(t *testing.T) {
	placer := &fakePlacer{}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	at := time.Date(2025, 11, 3, 8, 30, 0, 0, time.Local)
	r := addReminder(t, st, store.Reminder{
		Title:       "call family",
		ScheduledAt: at,
		Recurrence:  store.RecurrenceWeekly,
		DaysOfWeek:  []string{"monday"},
	})
	s.Tick(ctx)

	got, _ := st.GetReminder(ctx, r.ID)
	if !got.ScheduledAt.Equal(at.AddDate(0, 0, 1)) {
		t.Fatalf("weekly advance = %v, want one day forward", got.ScheduledAt)
	}
}

func TestPlacementFailureLeavesNoPending(t *testing.T) {
	placer := &fakePlacer{err: errors.New("carrier rejected")}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	r := addReminder(t, st, store.Reminder{Title: "pill", ScheduledAt: tickTime.Add(-time.Second)})
	s.Tick(ctx)

	// A stray terminal status for the never-recorded call must not
	// touch the reminder.
	before, _ := st.GetReminder(ctx, r.ID)
	s.HandleCallStatus(ctx, "CAghost", telephony.StatusNoAnswer, false, true)
	after, _ := st.GetReminder(ctx, r.ID)
	if !after.ScheduledAt.Equal(before.ScheduledAt) || after.Active != before.Active {
		t.Fatalf("ghost status changed reminder: %+v -> %+v", before, after)
	}
}

func TestStreamStopResolvesPending(t *testing.T) {
	placer := &fakePlacer{nextID: "CA9"}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	r := addReminder(t, st, store.Reminder{Title: "pill", ScheduledAt: tickTime.Add(-time.Second)})
	s.Tick(ctx)

	s.SetInCall(ctx, "CA9", true)
	s.SetCallAnswered("CA9")
	s.SetInCall(ctx, "CA9", false)

	got, _ := st.GetReminder(ctx, r.ID)
	if got.Active {
		t.Fatalf("reminder still active after answered stream ended")
	}
	if s.InCall() {
		t.Fatalf("InCall() = true after stream stop")
	}
}

func TestAnnouncement(t *testing.T) {
	s, st := newTestScheduler(t, &fakePlacer{})
	ctx := context.Background()

	if _, ok := s.Announcement(ctx); ok {
		t.Fatalf("Announcement() ok = true with nothing due")
	}

	addReminder(t, st, store.Reminder{Title: "take pill", ScheduledAt: tickTime.Add(-time.Minute)})
	msg, ok := s.Announcement(ctx)
	if !ok || msg != "You have a reminder: take pill" {
		t.Fatalf("Announcement() = %q, %v", msg, ok)
	}

	addReminder(t, st, store.Reminder{Title: "drink water", ScheduledAt: tickTime.Add(-30 * time.Second)})
	msg, ok = s.Announcement(ctx)
	if !ok || msg != "You have 2 reminders: take pill, drink water" {
		t.Fatalf("Announcement() = %q, %v", msg, ok)
	}
}

func TestPendingAnnouncement(t *testing.T) {
	placer := &fakePlacer{nextID: "CA5"}
	s, st := newTestScheduler(t, placer)
	ctx := context.Background()

	addReminder(t, st, store.Reminder{Title: "take pill", ScheduledAt: tickTime.Add(-time.Second)})
	s.Tick(ctx)

	msg, ok := s.PendingAnnouncement("CA5")
	if !ok || msg == "" {
		t.Fatalf("PendingAnnouncement() = %q, %v", msg, ok)
	}
	if _, ok := s.PendingAnnouncement("CAother"); ok {
		t.Fatalf("PendingAnnouncement(unknown) ok = true")
	}
}
