package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the default local backend, a single-file database next to
// the process. It mirrors the reminder/contact/bio/conversation schema the
// service has always used.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			scheduled_at TEXT NOT NULL,
			recurrence TEXT NOT NULL DEFAULT '',
			days_of_week TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			last_triggered TEXT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_active_scheduled ON reminders (active, scheduled_at);`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			relation TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			birthday TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
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
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations (created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateReminder(ctx context.Context, r Reminder) (Reminder, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.DaysOfWeek = NormalizeDays(r.DaysOfWeek)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, title, scheduled_at, recurrence, days_of_week, active, last_triggered, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL, ?)`,
		r.ID, r.Title, encodeTime(r.ScheduledAt), string(r.Recurrence),
		strings.Join(r.DaysOfWeek, ","), boolToInt(r.Active), encodeTime(r.CreatedAt))
	if err != nil {
		return Reminder{}, fmt.Errorf("insert reminder: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ListReminders(ctx context.Context, activeOnly bool) ([]Reminder, error) {
	q := `SELECT id, title, scheduled_at, recurrence, days_of_week, active, last_triggered, created_at FROM reminders`
	if activeOnly {
		q += ` WHERE active = 1`
	}
	q += ` ORDER BY scheduled_at`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetReminder(ctx context.Context, id string) (Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, scheduled_at, recurrence, days_of_week, active, last_triggered, created_at
		 FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Reminder{}, ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) UpdateReminder(ctx context.Context, id string, upd ReminderUpdate) error {
	set := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if upd.Title != nil {
		set, args = append(set, "title = ?"), append(args, *upd.Title)
	}
	if upd.ScheduledAt != nil {
		set, args = append(set, "scheduled_at = ?"), append(args, encodeTime(*upd.ScheduledAt))
	}
	if upd.Recurrence != nil {
		set, args = append(set, "recurrence = ?"), append(args, string(*upd.Recurrence))
	}
	if upd.DaysOfWeek != nil {
		set, args = append(set, "days_of_week = ?"), append(args, strings.Join(NormalizeDays(*upd.DaysOfWeek), ","))
	}
	if upd.Active != nil {
		set, args = append(set, "active = ?"), append(args, boolToInt(*upd.Active))
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE reminders SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) DeleteReminder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) MarkReminderTriggered(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET last_triggered = ? WHERE id = ?`, encodeTime(at), id)
	if err != nil {
		return fmt.Errorf("mark reminder triggered: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) MarkReminderComplete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark reminder complete: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) RescheduleReminder(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET scheduled_at = ? WHERE id = ?`, encodeTime(at), id)
	if err != nil {
		return fmt.Errorf("reschedule reminder: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) DueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	active, err := s.ListReminders(ctx, true)
	if err != nil {
		return nil, err
	}
	return filterDue(active, now), nil
}

func (s *SQLiteStore) CreateContact(ctx context.Context, c Contact) (Contact, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, name, relation, phone, birthday, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Relation, c.Phone, c.Birthday, c.Notes, encodeTime(c.CreatedAt))
	if err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, relation, phone, birthday, notes, created_at FROM contacts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		var created string
		if err := rows.Scan(&c.ID, &c.Name, &c.Relation, &c.Phone, &c.Birthday, &c.Notes, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = decodeTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SearchContact(ctx context.Context, name string) (Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, relation, phone, birthday, notes, created_at
		 FROM contacts WHERE LOWER(name) LIKE LOWER(?) LIMIT 1`, "%"+name+"%")

	var c Contact
	var created string
	err := row.Scan(&c.ID, &c.Name, &c.Relation, &c.Phone, &c.Birthday, &c.Notes, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("search contact: %w", err)
	}
	c.CreatedAt = decodeTime(created)
	return c, nil
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, id string, upd ContactUpdate) error {
	set := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if upd.Name != nil {
		set, args = append(set, "name = ?"), append(args, *upd.Name)
	}
	if upd.Relation != nil {
		set, args = append(set, "relation = ?"), append(args, *upd.Relation)
	}
	if upd.Phone != nil {
		set, args = append(set, "phone = ?"), append(args, *upd.Phone)
	}
	if upd.Birthday != nil {
		set, args = append(set, "birthday = ?"), append(args, *upd.Birthday)
	}
	if upd.Notes != nil {
		set, args = append(set, "notes = ?"), append(args, *upd.Notes)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE contacts SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) DeleteContact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) SetBio(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_bio (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set bio: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetBio(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM user_bio WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get bio: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) AllBio(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM user_bio`)
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

func (s *SQLiteStore) AddConversationMessage(ctx context.Context, m ConversationMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, sender, message, medium, call_sid, direction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Sender, m.Message, m.Medium, m.CallSid, m.Direction, encodeTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert conversation message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentConversations(ctx context.Context, limit int) ([]ConversationMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, message, medium, call_sid, direction, created_at
		 FROM conversations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		var created string
		if err := rows.Scan(&m.ID, &m.Sender, &m.Message, &m.Medium, &m.CallSid, &m.Direction, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = decodeTime(created)
		out = append(out, m)
	}
	// Oldest first for callers building context windows.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (Reminder, error) {
	var r Reminder
	var scheduled, recurrence, days, created string
	var active int
	var triggered sql.NullString
	if err := row.Scan(&r.ID, &r.Title, &scheduled, &recurrence, &days, &active, &triggered, &created); err != nil {
		return Reminder{}, err
	}
	r.ScheduledAt = decodeTime(scheduled)
	r.Recurrence = Recurrence(recurrence)
	if days != "" {
		r.DaysOfWeek = strings.Split(days, ",")
	}
	r.Active = active != 0
	if triggered.Valid && triggered.String != "" {
		t := decodeTime(triggered.String)
		r.LastTriggered = &t
	}
	r.CreatedAt = decodeTime(created)
	return r, nil
}

func encodeTime(t time.Time) string { return t.Format(time.RFC3339Nano) }

func decodeTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
