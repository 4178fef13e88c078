package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/gabay/internal/database"
	"github.com/hray3182/gabay/internal/models"
	"github.com/jackc/pgx/v5"
)

const reminderColumns = `id, owner_id, message, trigger_time, original_trigger, frequency, interval_seconds,
	remaining_count, recipient, status, action, payload, created_at`

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	if reminder.Frequency == "" {
		reminder.Frequency = models.FrequencyOnce
	}
	reminder.Status = models.StatusPending
	reminder.TriggerTime = reminder.TriggerTime.UTC().Truncate(time.Microsecond)
	if err := reminder.Validate(); err != nil {
		return err
	}

	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminders (id, owner_id, message, trigger_time, original_trigger, frequency, interval_seconds,
			remaining_count, recipient, status, action, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at`,
		reminder.ID, reminder.OwnerID, reminder.Message, reminder.TriggerTime, reminder.OriginalTrigger,
		string(reminder.Frequency), reminder.IntervalSeconds, reminder.RemainingCount, reminder.Recipient,
		string(reminder.Status), reminder.ActionTag, reminder.Payload,
	).Scan(&reminder.CreatedAt)
	return models.StoreError(err, "insert reminder")
}

func (r *ReminderRepository) List(ctx context.Context, filter models.ReminderFilter) ([]models.Reminder, error) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + reminderColumns + " FROM reminders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY trigger_time ASC, created_at ASC"

	reminders, err := r.query(ctx, query, args...)
	return reminders, models.StoreError(err, "list reminders")
}

// ListDue returns pending reminders whose trigger time is at or before now.
func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	reminders, err := r.query(ctx,
		"SELECT "+reminderColumns+` FROM reminders
		 WHERE status = 'pending' AND trigger_time <= $1
		 ORDER BY trigger_time ASC`,
		now.UTC(),
	)
	return reminders, models.StoreError(err, "list due reminders")
}

// CompareAndSet applies patch only while the reminder still matches expected.
// It reports whether this caller won.
func (r *ReminderRepository) CompareAndSet(ctx context.Context, id string, expected models.Expected, patch models.ReminderPatch) (bool, error) {
	if err := patch.Validate(); err != nil {
		return false, err
	}
	if patch.IsEmpty() {
		patch.Status = &expected.Status
	}
	sets, args := patch.Assignments(pgPlaceholder, pgTime)
	args = append(args, id, string(expected.Status))
	where := fmt.Sprintf("id = $%d AND status = $%d", len(args)-1, len(args))
	if !expected.TriggerTime.IsZero() {
		args = append(args, expected.TriggerTime.UTC())
		where += fmt.Sprintf(" AND trigger_time = $%d", len(args))
	}
	tag, err := r.db.Pool.Exec(ctx,
		fmt.Sprintf("UPDATE reminders SET %s WHERE %s", strings.Join(sets, ", "), where),
		args...,
	)
	if err != nil {
		return false, models.StoreError(err, "compare and set reminder")
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteMatching removes the owner's reminders whose message contains
// substring, ignoring case.
func (r *ReminderRepository) DeleteMatching(ctx context.Context, ownerID, substring string) (int, error) {
	if strings.TrimSpace(substring) == "" {
		return 0, nil
	}
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM reminders WHERE owner_id = $1 AND POSITION(LOWER($2) IN LOWER(message)) > 0`,
		ownerID, substring,
	)
	if err != nil {
		return 0, models.StoreError(err, "delete reminders")
	}
	return int(tag.RowsAffected()), nil
}

// Update applies patch unconditionally. Unknown ids are ignored.
func (r *ReminderRepository) Update(ctx context.Context, id string, patch models.ReminderPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	sets, args := patch.Assignments(pgPlaceholder, pgTime)
	args = append(args, id)
	_, err := r.db.Pool.Exec(ctx,
		fmt.Sprintf("UPDATE reminders SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)),
		args...,
	)
	return models.StoreError(err, "update reminder")
}

func (r *ReminderRepository) query(ctx context.Context, sql string, args ...any) ([]models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}

func scanReminder(row pgx.Row) (models.Reminder, error) {
	var (
		rem       models.Reminder
		frequency string
		status    string
	)
	err := row.Scan(&rem.ID, &rem.OwnerID, &rem.Message, &rem.TriggerTime, &rem.OriginalTrigger, &frequency,
		&rem.IntervalSeconds, &rem.RemainingCount, &rem.Recipient, &status, &rem.ActionTag, &rem.Payload, &rem.CreatedAt)
	if err != nil {
		return rem, err
	}
	rem.Frequency = models.Frequency(frequency)
	rem.Status = models.Status(status)
	rem.TriggerTime = rem.TriggerTime.UTC()
	rem.CreatedAt = rem.CreatedAt.UTC()
	return rem, nil
}

func pgPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func pgTime(t time.Time) any {
	return t
}
