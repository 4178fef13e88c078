package models

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReminder() Reminder {
	return Reminder{
		OwnerID:     "42",
		Message:     "water the plants",
		TriggerTime: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Frequency:   FrequencyOnce,
		Status:      StatusPending,
	}
}

func TestReminderValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Reminder)
		field  string
	}{
		{name: "valid", mutate: func(r *Reminder) {}},
		{name: "missing message", mutate: func(r *Reminder) { r.Message = "  " }, field: "message"},
		{name: "missing trigger", mutate: func(r *Reminder) { r.TriggerTime = time.Time{} }, field: "trigger_time"},
		{name: "missing owner", mutate: func(r *Reminder) { r.OwnerID = "" }, field: "owner_id"},
		{name: "bad frequency", mutate: func(r *Reminder) { r.Frequency = "hourly" }, field: "frequency"},
		{name: "zero interval", mutate: func(r *Reminder) { r.IntervalSeconds = Ptr(0) }, field: "interval_seconds"},
		{name: "negative count", mutate: func(r *Reminder) { r.RemainingCount = Ptr(-1) }, field: "remaining_count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReminder()
			tt.mutate(&r)
			err := r.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency("")
	require.NoError(t, err)
	assert.Equal(t, FrequencyOnce, f)

	f, err = ParseFrequency(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, FrequencyWeekly, f)

	_, err = ParseFrequency("monthly")
	assert.True(t, IsValidation(err))
}

func TestDecodeAction(t *testing.T) {
	r := validReminder()
	assert.Equal(t, Notify{Text: "water the plants"}, DecodeAction(r))

	r.ActionTag = "email"
	assert.Equal(t, Notify{Text: "water the plants"}, DecodeAction(r), "tag without payload is a notification")

	r.Payload = `{"to":"a@b.c"}`
	assert.Equal(t, Invoke{Tag: "email", Payload: `{"to":"a@b.c"}`}, DecodeAction(r))
}

func TestPatchAssignments(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))
	p := ReminderPatch{TriggerTime: &at, Status: Ptr(StatusCompleted), RemainingCount: Ptr(2)}

	sets, args := p.Assignments(func(n int) string { return "?" }, func(t time.Time) any { return t })
	assert.Equal(t, []string{"trigger_time = ?", "status = ?", "remaining_count = ?"}, sets)
	require.Len(t, args, 3)
	assert.Equal(t, at.UTC(), args[0])
	assert.Equal(t, "completed", args[1])
	assert.Equal(t, 2, args[2])

	assert.True(t, ReminderPatch{}.IsEmpty())
	assert.False(t, p.IsEmpty())
}

func TestStoreErrorMarks(t *testing.T) {
	err := StoreError(errors.New("connection refused"), "list due reminders")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "list due reminders")
	assert.Nil(t, StoreError(nil, "noop"))
}
