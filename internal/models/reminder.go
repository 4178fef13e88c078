package models

import (
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyOnce   Frequency = "once"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// ParseFrequency maps free-form input to a Frequency. Empty input means once.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FrequencyOnce, nil
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly:
		return f, nil
	default:
		return "", NewValidationError("frequency", "must be once, daily or weekly")
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

type Reminder struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Message         string    `json:"message"`
	TriggerTime     time.Time `json:"trigger_time"`          // Always UTC
	OriginalTrigger string    `json:"original_trigger_text"` // As the user phrased it, display only
	Frequency       Frequency `json:"frequency"`
	IntervalSeconds *int      `json:"interval_seconds,omitempty"` // Overrides Frequency when set
	RemainingCount  *int      `json:"remaining_count,omitempty"`  // Firings left after the current one
	Recipient       string    `json:"recipient,omitempty"`
	Status          Status    `json:"status"`
	ActionTag       string    `json:"action,omitempty"`
	Payload         string    `json:"payload,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Interval returns the fixed repeat interval, or zero when the reminder has none.
func (r *Reminder) Interval() time.Duration {
	if r.IntervalSeconds == nil {
		return 0
	}
	return time.Duration(*r.IntervalSeconds) * time.Second
}

// IsRecurring reports whether firing this reminder may schedule another occurrence.
func (r *Reminder) IsRecurring() bool {
	return r.IntervalSeconds != nil || r.Frequency == FrequencyDaily || r.Frequency == FrequencyWeekly
}

func (r *Reminder) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return NewValidationError("owner_id", "is required")
	}
	if strings.TrimSpace(r.Message) == "" {
		return NewValidationError("message", "is required")
	}
	if r.TriggerTime.IsZero() {
		return NewValidationError("trigger_time", "is required")
	}
	switch r.Frequency {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly:
	default:
		return NewValidationError("frequency", "must be once, daily or weekly")
	}
	if r.IntervalSeconds != nil && *r.IntervalSeconds <= 0 {
		return NewValidationError("interval_seconds", "must be positive")
	}
	if r.RemainingCount != nil && *r.RemainingCount < 0 {
		return NewValidationError("remaining_count", "must not be negative")
	}
	switch r.Status {
	case StatusPending, StatusCompleted:
	default:
		return NewValidationError("status", "must be pending or completed")
	}
	return nil
}

// ReminderFilter selects reminders for listing. Zero fields match everything.
type ReminderFilter struct {
	OwnerID string
	Status  Status
}

// Expected is the precondition of CompareAndSet. A zero TriggerTime matches
// any trigger; set it to pin the claim to one occurrence of a recurring reminder.
type Expected struct {
	Status      Status
	TriggerTime time.Time
}

func ExpectStatus(s Status) Expected {
	return Expected{Status: s}
}

// ReminderPatch is a partial update. Nil fields are left untouched.
type ReminderPatch struct {
	Message        *string
	TriggerTime    *time.Time
	Frequency      *Frequency
	Status         *Status
	RemainingCount *int
	Recipient      *string
}

func (p ReminderPatch) IsEmpty() bool {
	return p.Message == nil && p.TriggerTime == nil && p.Frequency == nil &&
		p.Status == nil && p.RemainingCount == nil && p.Recipient == nil
}

// Assignments renders the patch as SQL "column = placeholder" pairs. placeholder
// receives the 1-based argument position.
func (p ReminderPatch) Assignments(placeholder func(n int) string, encodeTime func(time.Time) any) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = "+placeholder(len(args)))
	}
	if p.Message != nil {
		add("message", *p.Message)
	}
	if p.TriggerTime != nil {
		add("trigger_time", encodeTime(p.TriggerTime.UTC()))
	}
	if p.Frequency != nil {
		add("frequency", string(*p.Frequency))
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.RemainingCount != nil {
		add("remaining_count", *p.RemainingCount)
	}
	if p.Recipient != nil {
		add("recipient", *p.Recipient)
	}
	return sets, args
}

func (p ReminderPatch) Validate() error {
	if p.Message != nil && strings.TrimSpace(*p.Message) == "" {
		return NewValidationError("message", "must not be empty")
	}
	if p.TriggerTime != nil && p.TriggerTime.IsZero() {
		return NewValidationError("trigger_time", "must not be zero")
	}
	if p.RemainingCount != nil && *p.RemainingCount < 0 {
		return NewValidationError("remaining_count", "must not be negative")
	}
	if p.Status != nil && *p.Status != StatusPending && *p.Status != StatusCompleted {
		return NewValidationError("status", "must be pending or completed")
	}
	if p.Frequency != nil {
		if _, err := ParseFrequency(string(*p.Frequency)); err != nil {
			return err
		}
	}
	return nil
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
