// Package recurrence decides what happens to a reminder after it fires.
package recurrence

import (
	"fmt"
	"time"

	"github.com/hray3182/gabay/internal/models"
	"github.com/teambition/rrule-go"
)

type Kind int

const (
	Retire Kind = iota
	Reschedule
)

func (k Kind) String() string {
	if k == Reschedule {
		return "reschedule"
	}
	return "retire"
}

// Outcome is the next state of a reminder that has just fired.
type Outcome struct {
	Kind      Kind
	Next      time.Time // Set for Reschedule
	Remaining *int      // Set for Reschedule of a counted interval
}

// Patch converts the outcome into the conditional update applied on claim.
func (o Outcome) Patch() models.ReminderPatch {
	if o.Kind == Retire {
		return models.ReminderPatch{Status: models.Ptr(models.StatusCompleted)}
	}
	next := o.Next.UTC()
	return models.ReminderPatch{TriggerTime: &next, RemainingCount: o.Remaining}
}

// Advance computes the outcome of firing rec once. Fixed intervals win over
// frequency and are measured from the scheduled trigger, not from now, so a
// late poller does not accumulate drift.
func Advance(rec models.Reminder) Outcome {
	if rec.IntervalSeconds != nil {
		next := rec.TriggerTime.Add(rec.Interval())
		if rec.RemainingCount == nil {
			return Outcome{Kind: Reschedule, Next: next}
		}
		left := *rec.RemainingCount - 1
		if left < 0 {
			return Outcome{Kind: Retire}
		}
		return Outcome{Kind: Reschedule, Next: next, Remaining: &left}
	}

	switch rec.Frequency {
	case models.FrequencyDaily:
		return calendarOutcome(rrule.DAILY, rec.TriggerTime)
	case models.FrequencyWeekly:
		return calendarOutcome(rrule.WEEKLY, rec.TriggerTime)
	default:
		return Outcome{Kind: Retire}
	}
}

func calendarOutcome(freq rrule.Frequency, from time.Time) Outcome {
	next, err := NextOccurrence(freq, from)
	if err != nil {
		return Outcome{Kind: Retire}
	}
	return Outcome{Kind: Reschedule, Next: next}
}

// NextOccurrence returns the occurrence of a DAILY or WEEKLY rule anchored at
// dtstart that follows dtstart. rrule works at second resolution, so the
// sub-second part of dtstart is carried over by hand.
func NextOccurrence(freq rrule.Frequency, dtstart time.Time) (time.Time, error) {
	dtstart = dtstart.UTC()
	whole := dtstart.Truncate(time.Second)
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Dtstart: whole,
		Count:   2,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to build rule: %w", err)
	}

	next := rule.After(whole, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("rule has no occurrence after %s", whole.Format(time.RFC3339))
	}
	return next.UTC().Add(dtstart.Sub(whole)), nil
}

// Describe returns a short English description of how rec repeats.
func Describe(rec models.Reminder) string {
	if rec.IntervalSeconds != nil {
		every := "every " + rec.Interval().String()
		if rec.RemainingCount != nil {
			return fmt.Sprintf("%s, %d more times", every, *rec.RemainingCount)
		}
		return every
	}
	switch rec.Frequency {
	case models.FrequencyDaily:
		return "repeating daily"
	case models.FrequencyWeekly:
		return "repeating weekly"
	default:
		return ""
	}
}
