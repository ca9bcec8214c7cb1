// Package scheduler runs the reminder poll loop: it promotes due
// reminders, places outbound calls for them, and resolves each call's
// answered/no-answer outcome into completion or a reschedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/matedort/careline/internal/observability"
	"github.com/matedort/careline/internal/store"
)

const (
	// DefaultInterval is the poll cadence for due reminders.
	DefaultInterval = 60 * time.Second
	// noAnswerDelay pushes an undelivered reminder into the near future.
	noAnswerDelay = 5 * time.Minute
)

// CallPlacer starts the outbound call that delivers a reminder and
// returns the provider's call id.
type CallPlacer interface {
	PlaceReminderCall(ctx context.Context, r store.Reminder) (callID string, err error)
}

// pendingCall links an outbound call to the reminder it delivers.
// Answered flips when the callee picks up; resolution happens when the
// call reaches a terminal state.
type pendingCall struct {
	reminderID string
	title      string
	answered   bool
}

// Scheduler is the reminder poll loop plus its call-outcome state. One
// instance runs per process; pending calls are keyed by call id so
// overlapping calls cannot cross-talk.
type Scheduler struct {
	store    store.Store
	placer   CallPlacer
	metrics  *observability.Metrics
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	active  map[string]struct{}
	pending map[string]*pendingCall
}

// Option tweaks a Scheduler at construction.
type Option func(*Scheduler)

// WithInterval overrides the poll cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithClock overrides wall-clock reads, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(st store.Store, placer CallPlacer, metrics *observability.Metrics, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    st,
		placer:   placer,
		metrics:  metrics,
		interval: DefaultInterval,
		now:      time.Now,
		active:   map[string]struct{}{},
		pending:  map[string]*pendingCall{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls until ctx is cancelled. A failing tick logs and waits for
// the next interval; it never stops the loop.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("scheduler: started, interval %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one due-reminder sweep.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	due, err := s.store.DueReminders(ctx, now)
	if err != nil {
		log.Printf("scheduler: due query failed: %v", err)
		return
	}
	for _, r := range due {
		s.handleDue(ctx, r, now)
	}
}

func (s *Scheduler) handleDue(ctx context.Context, r store.Reminder, now time.Time) {
	log.Printf("scheduler: reminder due: %s (%s)", r.Title, r.ID)

	if err := s.store.MarkReminderTriggered(ctx, r.ID, now); err != nil {
		log.Printf("scheduler: mark triggered %s: %v", r.ID, err)
	}
	s.advanceRecurrence(ctx, r, now)

	if s.InCall() {
		// An active bridge announces due reminders itself; this branch
		// only records the trigger.
		s.metrics.ReminderTriggers.WithLabelValues("in_call").Inc()
		if r.Recurrence == store.RecurrenceNone {
			if err := s.store.MarkReminderComplete(ctx, r.ID); err != nil {
				log.Printf("scheduler: mark complete %s: %v", r.ID, err)
			}
		}
		return
	}

	callID, err := s.placer.PlaceReminderCall(ctx, r)
	if err != nil {
		// No pending association survives a failed placement.
		log.Printf("scheduler: place call for %s: %v", r.ID, err)
		s.metrics.CallPlacements.WithLabelValues("error").Inc()
		s.metrics.ReminderTriggers.WithLabelValues("placement_failed").Inc()
		return
	}
	s.metrics.CallPlacements.WithLabelValues("ok").Inc()
	s.metrics.ReminderTriggers.WithLabelValues("call_placed").Inc()

	s.mu.Lock()
	s.pending[callID] = &pendingCall{reminderID: r.ID, title: r.Title}
	s.mu.Unlock()
	log.Printf("scheduler: call %s placed for reminder %s", callID, r.ID)
}

// advanceRecurrence persists the next scheduled instant. Daily re-anchors
// to today's date and rolls to tomorrow when the slot has passed. Weekly
// moves exactly one day forward and lets weekday eligibility gate the
// next fire, so the stored instant drifts a day per cycle.
func (s *Scheduler) advanceRecurrence(ctx context.Context, r store.Reminder, now time.Time) {
	var next time.Time
	switch r.Recurrence {
	case store.RecurrenceDaily:
		at := r.ScheduledAt
		next = time.Date(now.Year(), now.Month(), now.Day(),
			at.Hour(), at.Minute(), at.Second(), 0, at.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
	case store.RecurrenceWeekly:
		next = r.ScheduledAt.AddDate(0, 0, 1)
	default:
		return
	}
	if err := s.store.RescheduleReminder(ctx, r.ID, next); err != nil {
		log.Printf("scheduler: advance %s: %v", r.ID, err)
	}
}

// InCall reports whether any bridged call is active right now.
func (s *Scheduler) InCall() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// SetInCall is flipped by the media bridge on stream start and stop.
// Active calls are tracked per call SID so one stream ending does not
// hide another still-bridged conversation. The callID of a dropping
// stream resolves its pending reminder, if any.
func (s *Scheduler) SetInCall(ctx context.Context, callID string, inCall bool) {
	s.mu.Lock()
	if inCall {
		s.active[callID] = struct{}{}
	} else {
		delete(s.active, callID)
	}
	remaining := len(s.active)
	s.mu.Unlock()
	log.Printf("scheduler: in-call = %v (%s), %d active", inCall, callID, remaining)

	if !inCall {
		s.resolve(ctx, callID)
	}
}

// SetCallAnswered marks a pending reminder call as delivered.
func (s *Scheduler) SetCallAnswered(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[callID]; ok {
		p.answered = true
	}
}

// HandleCallStatus folds a telephony status callback into pending-call
// state: pick-up marks the call answered, a terminal status resolves it.
func (s *Scheduler) HandleCallStatus(ctx context.Context, callID, status string, answered, terminal bool) {
	log.Printf("scheduler: call %s status %s", callID, status)
	if answered {
		s.SetCallAnswered(callID)
	}
	if terminal {
		s.resolve(ctx, callID)
	}
}

// resolve consumes the pending association for callID. Answered calls
// complete non-recurring reminders (recurring ones already advanced);
// unanswered calls retry in a few minutes whatever the recurrence.
// Idempotent: the first resolution wins.
func (s *Scheduler) resolve(ctx context.Context, callID string) {
	s.mu.Lock()
	p, ok := s.pending[callID]
	if ok {
		delete(s.pending, callID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if p.answered {
		s.metrics.ReminderTriggers.WithLabelValues("delivered").Inc()
		r, err := s.store.GetReminder(ctx, p.reminderID)
		if err != nil {
			log.Printf("scheduler: resolve %s: %v", p.reminderID, err)
			return
		}
		if r.Recurrence == store.RecurrenceNone {
			if err := s.store.MarkReminderComplete(ctx, r.ID); err != nil {
				log.Printf("scheduler: mark complete %s: %v", r.ID, err)
			}
		}
		return
	}

	s.metrics.ReminderTriggers.WithLabelValues("no_answer").Inc()
	retryAt := s.now().Add(noAnswerDelay)
	if err := s.store.RescheduleReminder(ctx, p.reminderID, retryAt); err != nil {
		log.Printf("scheduler: reschedule %s: %v", p.reminderID, err)
		return
	}
	log.Printf("scheduler: no answer for %q, retrying at %s", p.title, retryAt.Format(time.RFC3339))
}

// Announcement builds the spoken notice for reminders that are due while
// a call is already up. ok is false when nothing is due.
func (s *Scheduler) Announcement(ctx context.Context) (string, bool) {
	due, err := s.store.DueReminders(ctx, s.now())
	if err != nil {
		log.Printf("scheduler: announcement query failed: %v", err)
		return "", false
	}
	if len(due) == 0 {
		return "", false
	}
	if len(due) == 1 {
		return "You have a reminder: " + due[0].Title, true
	}
	titles := make([]string, 0, len(due))
	for _, r := range due {
		titles = append(titles, r.Title)
	}
	return fmt.Sprintf("You have %d reminders: %s", len(due), strings.Join(titles, ", ")), true
}

// PendingAnnouncement returns the announcement for a call that was
// placed to deliver a specific reminder.
func (s *Scheduler) PendingAnnouncement(callID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[callID]
	if !ok {
		return "", false
	}
	return "This is a reminder call. You have a reminder: " + p.title, true
}
