package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore backs the service with a shared Postgres database when
// DATABASE_URL is configured.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			recurrence TEXT NOT NULL DEFAULT '',
			days_of_week TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_triggered TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_active_scheduled ON reminders (active, scheduled_at);`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			relation TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			birthday TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_bio (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			message TEXT NOT NULL,
			medium TEXT NOT NULL,
			call_sid TEXT NOT NULL DEFAULT '',
			direction TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations (created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init postgres schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateReminder(ctx context.Context, r Reminder) (Reminder, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.DaysOfWeek = NormalizeDays(r.DaysOfWeek)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reminders (id, title, scheduled_at, recurrence, days_of_week, active, last_triggered, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULL, $7)`,
		r.ID, r.Title, r.ScheduledAt, string(r.Recurrence),
		strings.Join(r.DaysOfWeek, ","), r.Active, r.CreatedAt)
	if err != nil {
		return Reminder{}, fmt.Errorf("insert reminder: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListReminders(ctx context.Context, activeOnly bool) ([]Reminder, error) {
	q := `SELECT id, title, scheduled_at, recurrence, days_of_week, active, last_triggered, created_at FROM reminders`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY scheduled_at`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanPGReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetReminder(ctx context.Context, id string) (Reminder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, title, scheduled_at, recurrence, days_of_week, active, last_triggered, created_at
		 FROM reminders WHERE id = $1`, id)
	r, err := scanPGReminder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reminder{}, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) UpdateReminder(ctx context.Context, id string, upd ReminderUpdate) error {
	set := make([]string, 0, 5)
	args := make([]any, 0, 6)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if upd.Title != nil {
		set = append(set, "title = "+arg(*upd.Title))
	}
	if upd.ScheduledAt != nil {
		set = append(set, "scheduled_at = "+arg(*upd.ScheduledAt))
	}
	if upd.Recurrence != nil {
		set = append(set, "recurrence = "+arg(string(*upd.Recurrence)))
	}
	if upd.DaysOfWeek != nil {
		set = append(set, "days_of_week = "+arg(strings.Join(NormalizeDays(*upd.DaysOfWeek), ",")))
	}
	if upd.Active != nil {
		set = append(set, "active = "+arg(*upd.Active))
	}
	if len(set) == 0 {
		return nil
	}

	q := "UPDATE reminders SET " + strings.Join(set, ", ") + " WHERE id = " + arg(id)
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteReminder(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkReminderTriggered(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE reminders SET last_triggered = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("mark reminder triggered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkReminderComplete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE reminders SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark reminder complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RescheduleReminder(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE reminders SET scheduled_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("reschedule reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	active, err := s.ListReminders(ctx, true)
	if err != nil {
		return nil, err
	}
	return filterDue(active, now), nil
}

func (s *PostgresStore) CreateContact(ctx context.Context, c Contact) (Contact, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO contacts (id, name, relation, phone, birthday, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Relation, c.Phone, c.Birthday, c.Notes, c.CreatedAt)
	if err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, relation, phone, birthday, notes, created_at FROM contacts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Relation, &c.Phone, &c.Birthday, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SearchContact(ctx context.Context, name string) (Contact, error) {
	var c Contact
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, relation, phone, birthday, notes, created_at
		 FROM contacts WHERE name ILIKE $1 LIMIT 1`, "%"+name+"%").
		Scan(&c.ID, &c.Name, &c.Relation, &c.Phone, &c.Birthday, &c.Notes, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("search contact: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateContact(ctx context.Context, id string, upd ContactUpdate) error {
	set := make([]string, 0, 5)
	args := make([]any, 0, 6)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if upd.Name != nil {
		set = append(set, "name = "+arg(*upd.Name))
	}
	if upd.Relation != nil {
		set = append(set, "relation = "+arg(*upd.Relation))
	}
	if upd.Phone != nil {
		set = append(set, "phone = "+arg(*upd.Phone))
	}
	if upd.Birthday != nil {
		set = append(set, "birthday = "+arg(*upd.Birthday))
	}
	if upd.Notes != nil {
		set = append(set, "notes = "+arg(*upd.Notes))
	}
	if len(set) == 0 {
		return nil
	}

	q := "UPDATE contacts SET " + strings.Join(set, ", ") + " WHERE id = " + arg(id)
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteContact(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetBio(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_bio (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("set bio: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBio(ctx context.Context, key string) (string, error) {
	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM user_bio WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get bio: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) AllBio(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM user_bio`)
	if err != nil {
		return nil, fmt.Errorf("all bio: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddConversationMessage(ctx context.Context, m ConversationMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, sender, message, medium, call_sid, direction, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Sender, m.Message, m.Medium, m.CallSid, m.Direction, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation message: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentConversations(ctx context.Context, limit int) ([]ConversationMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, sender, message, medium, call_sid, direction, created_at
		 FROM conversations ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		if err := rows.Scan(&m.ID, &m.Sender, &m.Message, &m.Medium, &m.CallSid, &m.Direction, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPGReminder(row pgx.Row) (Reminder, error) {
	var r Reminder
	var recurrence, days string
	var triggered *time.Time
	if err := row.Scan(&r.ID, &r.Title, &r.ScheduledAt, &recurrence, &days, &r.Active, &triggered, &r.CreatedAt); err != nil {
		return Reminder{}, err
	}
	r.Recurrence = Recurrence(recurrence)
	if days != "" {
		r.DaysOfWeek = strings.Split(days, ",")
	}
	r.LastTriggered = triggered
	return r, nil
}
