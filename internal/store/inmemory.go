package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu            sync.RWMutex
	reminders     map[string]Reminder
	contacts      map[string]Contact
	bio           map[string]string
	conversations []ConversationMessage
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		reminders: make(map[string]Reminder),
		contacts:  make(map[string]Contact),
		bio:       make(map[string]string),
	}
}

func (s *InMemoryStore) CreateReminder(_ context.Context, r Reminder) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.DaysOfWeek = NormalizeDays(r.DaysOfWeek)
	s.reminders[r.ID] = r
	return r, nil
}

func (s *InMemoryStore) ListReminders(_ context.Context, activeOnly bool) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *InMemoryStore) GetReminder(_ context.Context, id string) (Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	if !ok {
		return Reminder{}, ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) UpdateReminder(_ context.Context, id string, upd ReminderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Title != nil {
		r.Title = *upd.Title
	}
	if upd.ScheduledAt != nil {
		r.ScheduledAt = *upd.ScheduledAt
	}
	if upd.Recurrence != nil {
		r.Recurrence = *upd.Recurrence
	}
	if upd.DaysOfWeek != nil {
		r.DaysOfWeek = NormalizeDays(*upd.DaysOfWeek)
	}
	if upd.Active != nil {
		r.Active = *upd.Active
	}
	s.reminders[id] = r
	return nil
}

func (s *InMemoryStore) DeleteReminder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[id]; !ok {
		return ErrNotFound
	}
	delete(s.reminders, id)
	return nil
}

func (s *InMemoryStore) MarkReminderTriggered(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return ErrNotFound
	}
	r.LastTriggered = &at
	s.reminders[id] = r
	return nil
}

func (s *InMemoryStore) MarkReminderComplete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return ErrNotFound
	}
	r.Active = false
	s.reminders[id] = r
	return nil
}

func (s *InMemoryStore) RescheduleReminder(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return ErrNotFound
	}
	r.ScheduledAt = at
	s.reminders[id] = r
	return nil
}

func (s *InMemoryStore) DueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	active, err := s.ListReminders(ctx, true)
	if err != nil {
		return nil, err
	}
	return filterDue(active, now), nil
}

func (s *InMemoryStore) CreateContact(_ context.Context, c Contact) (Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.contacts[c.ID] = c
	return c, nil
}

func (s *InMemoryStore) ListContacts(_ context.Context) ([]Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryStore) SearchContact(_ context.Context, name string) (Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, c := range s.contacts {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			return c, nil
		}
	}
	return Contact{}, ErrNotFound
}

func (s *InMemoryStore) UpdateContact(_ context.Context, id string, upd ContactUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Relation != nil {
		c.Relation = *upd.Relation
	}
	if upd.Phone != nil {
		c.Phone = *upd.Phone
	}
	if upd.Birthday != nil {
		c.Birthday = *upd.Birthday
	}
	if upd.Notes != nil {
		c.Notes = *upd.Notes
	}
	s.contacts[id] = c
	return nil
}

func (s *InMemoryStore) DeleteContact(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[id]; !ok {
		return ErrNotFound
	}
	delete(s.contacts, id)
	return nil
}

func (s *InMemoryStore) SetBio(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bio[key] = value
	return nil
}

func (s *InMemoryStore) GetBio(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.bio[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) AllBio(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.bio))
	for k, v := range s.bio {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryStore) AddConversationMessage(_ context.Context, m ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.conversations = append(s.conversations, m)
	return nil
}

func (s *InMemoryStore) RecentConversations(_ context.Context, limit int) ([]ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.conversations) {
		limit = len(s.conversations)
	}
	out := make([]ConversationMessage, limit)
	copy(out, s.conversations[len(s.conversations)-limit:])
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
