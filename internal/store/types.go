package store

import (
	"context"
	"errors"
	"time"
)

// Recurrence describes how a reminder repeats.
type Recurrence string

const (
	RecurrenceNone   Recurrence = ""
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

var ErrNotFound = errors.New("store: not found")

// Reminder is a scheduled task tied to the user's phone reminders.
type Reminder struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	Recurrence    Recurrence `json:"recurrence"`
	DaysOfWeek    []string   `json:"days_of_week,omitempty"`
	Active        bool       `json:"active"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Contact is a person the user may ask about or be connected to.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Relation  string    `json:"relation,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Birthday  string    `json:"birthday,omitempty"` // YYYY-MM-DD
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationMessage is one logged transcript line from a call.
type ConversationMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"` // "user" or "assistant"
	Message   string    `json:"message"`
	Medium    string    `json:"medium"`
	CallSid   string    `json:"call_sid,omitempty"`
	Direction string    `json:"direction,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReminderUpdate carries the mutable reminder fields for Update. Nil
// pointers leave the stored value untouched.
type ReminderUpdate struct {
	Title       *string
	ScheduledAt *time.Time
	Recurrence  *Recurrence
	DaysOfWeek  *[]string
	Active      *bool
}

// ContactUpdate carries the mutable contact fields for Update. Nil
// pointers leave the stored value untouched.
type ContactUpdate struct {
	Name     *string
	Relation *string
	Phone    *string
	Birthday *string
	Notes    *string
}

// Store persists reminders, contacts, user bio and call transcripts. All
// writes are single statements; no operation spans a transaction across
// a blocking call.
type Store interface {
	CreateReminder(ctx context.Context, r Reminder) (Reminder, error)
	ListReminders(ctx context.Context, activeOnly bool) ([]Reminder, error)
	GetReminder(ctx context.Context, id string) (Reminder, error)
	UpdateReminder(ctx context.Context, id string, upd ReminderUpdate) error
	DeleteReminder(ctx context.Context, id string) error
	MarkReminderTriggered(ctx context.Context, id string, at time.Time) error
	MarkReminderComplete(ctx context.Context, id string) error
	RescheduleReminder(ctx context.Context, id string, at time.Time) error
	DueReminders(ctx context.Context, now time.Time) ([]Reminder, error)

	CreateContact(ctx context.Context, c Contact) (Contact, error)
	ListContacts(ctx context.Context) ([]Contact, error)
	SearchContact(ctx context.Context, name string) (Contact, error)
	UpdateContact(ctx context.Context, id string, upd ContactUpdate) error
	DeleteContact(ctx context.Context, id string) error

	SetBio(ctx context.Context, key, value string) error
	GetBio(ctx context.Context, key string) (string, error)
	AllBio(ctx context.Context) (map[string]string, error)

	AddConversationMessage(ctx context.Context, m ConversationMessage) error
	RecentConversations(ctx context.Context, limit int) ([]ConversationMessage, error)

	Close() error
}
