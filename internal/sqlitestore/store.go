// Package sqlitestore is the single-file schedule store. Timestamps are kept
// as unix milliseconds so due checks compare integers.
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hray3182/gabay/internal/models"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

const reminderColumns = `id, owner_id, message, trigger_time, original_trigger, frequency, interval_seconds,
	remaining_count, recipient, status, action, payload, created_at`

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

type Store struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create sqlite directory")
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// One connection serialises writers, which also makes CompareAndSet atomic.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, log: log.With().Str("component", "sqlitestore").Logger(), now: time.Now}
	for _, pragma := range pragmas(cfg) {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			s.log.Warn().Err(err).Str("pragma", pragma).Msg("sqlite pragma failed")
		}
	}
	// SQLite keeps the old mode instead of failing when WAL is unavailable
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		s.log.Warn().Err(err).Msg("read sqlite journal mode")
	} else if !strings.EqualFold(mode, "wal") {
		s.log.Warn().Str("journal_mode", mode).Msg("sqlite is not in WAL mode")
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func pragmas(cfg Config) []string {
	var out []string
	if cfg.BusyTimeout > 0 {
		out = append(out, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	return append(out, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
}

func (s *Store) Migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return errors.Wrap(err, "read schema")
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, reminder *models.Reminder) error {
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	if reminder.Frequency == "" {
		reminder.Frequency = models.FrequencyOnce
	}
	reminder.Status = models.StatusPending
	// Stored precision
	reminder.TriggerTime = reminder.TriggerTime.UTC().Truncate(time.Millisecond)
	if err := reminder.Validate(); err != nil {
		return err
	}
	reminder.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (`+reminderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reminder.ID, reminder.OwnerID, reminder.Message, millis(reminder.TriggerTime), reminder.OriginalTrigger,
		string(reminder.Frequency), nullInt(reminder.IntervalSeconds), nullInt(reminder.RemainingCount),
		reminder.Recipient, string(reminder.Status), reminder.ActionTag, reminder.Payload, millis(reminder.CreatedAt),
	)
	return models.StoreError(err, "insert reminder")
}

func (s *Store) List(ctx context.Context, filter models.ReminderFilter) ([]models.Reminder, error) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := "SELECT " + reminderColumns + " FROM reminders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY trigger_time ASC, created_at ASC"

	reminders, err := s.query(ctx, query, args...)
	return reminders, models.StoreError(err, "list reminders")
}

func (s *Store) ListDue(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	reminders, err := s.query(ctx,
		"SELECT "+reminderColumns+` FROM reminders
		 WHERE status = 'pending' AND trigger_time <= ?
		 ORDER BY trigger_time ASC`,
		millis(now),
	)
	return reminders, models.StoreError(err, "list due reminders")
}

func (s *Store) CompareAndSet(ctx context.Context, id string, expected models.Expected, patch models.ReminderPatch) (bool, error) {
	if err := patch.Validate(); err != nil {
		return false, err
	}
	if patch.IsEmpty() {
		patch.Status = &expected.Status
	}
	sets, args := patch.Assignments(sqlitePlaceholder, sqliteTime)
	args = append(args, id, string(expected.Status))
	where := "id = ? AND status = ?"
	if !expected.TriggerTime.IsZero() {
		args = append(args, millis(expected.TriggerTime))
		where += " AND trigger_time = ?"
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE reminders SET "+strings.Join(sets, ", ")+" WHERE "+where,
		args...,
	)
	if err != nil {
		return false, models.StoreError(err, "compare and set reminder")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, models.StoreError(err, "compare and set reminder")
	}
	return n == 1, nil
}

func (s *Store) DeleteMatching(ctx context.Context, ownerID, substring string) (int, error) {
	if strings.TrimSpace(substring) == "" {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE owner_id = ? AND INSTR(LOWER(message), LOWER(?)) > 0`,
		ownerID, substring,
	)
	if err != nil {
		return 0, models.StoreError(err, "delete reminders")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, models.StoreError(err, "delete reminders")
	}
	return int(n), nil
}

func (s *Store) Update(ctx context.Context, id string, patch models.ReminderPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	sets, args := patch.Assignments(sqlitePlaceholder, sqliteTime)
	args = append(args, id)
	_, err := s.db.ExecContext(ctx, "UPDATE reminders SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	return models.StoreError(err, "update reminder")
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		var (
			rem                 models.Reminder
			trigger, created    int64
			frequency, status   string
			interval, remaining sql.NullInt64
		)
		if err := rows.Scan(&rem.ID, &rem.OwnerID, &rem.Message, &trigger, &rem.OriginalTrigger, &frequency,
			&interval, &remaining, &rem.Recipient, &status, &rem.ActionTag, &rem.Payload, &created); err != nil {
			return nil, err
		}
		rem.TriggerTime = time.UnixMilli(trigger).UTC()
		rem.CreatedAt = time.UnixMilli(created).UTC()
		rem.Frequency = models.Frequency(frequency)
		rem.Status = models.Status(status)
		rem.IntervalSeconds = intPtr(interval)
		rem.RemainingCount = intPtr(remaining)
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func sqlitePlaceholder(int) string {
	return "?"
}

func sqliteTime(t time.Time) any {
	return millis(t)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
