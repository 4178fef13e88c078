package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hray3182/gabay/internal/models"
	"github.com/hray3182/gabay/internal/recurrence"
)

// Request is the argument object the assistant passes to the reminder skill.
type Request struct {
	Action          string `json:"action"`
	Message         string `json:"message,omitempty"`
	TriggerTime     string `json:"trigger_time,omitempty"`
	Frequency       string `json:"frequency,omitempty"`
	Recipient       string `json:"recipient,omitempty"`
	IntervalSeconds *int   `json:"interval_seconds,omitempty"`
	RemainingCount  *int   `json:"remaining_count,omitempty"`
	DeferredAction  string `json:"deferred_action,omitempty"`
	Payload         string `json:"payload,omitempty"`
}

// Skill renders reminder operations as chat replies.
type Skill struct {
	svc *Service
	loc *time.Location
}

func NewSkill(svc *Service, loc *time.Location) *Skill {
	if loc == nil {
		loc = time.UTC
	}
	return &Skill{svc: svc, loc: loc}
}

// HandleJSON decodes args and runs Handle. Malformed arguments get a reply,
// not an error.
func (s *Skill) HandleJSON(ctx context.Context, ownerID, args string) string {
	var req Request
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return "❌ I couldn't read those reminder details."
	}
	return s.Handle(ctx, ownerID, req)
}

func (s *Skill) Handle(ctx context.Context, ownerID string, req Request) string {
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "", "create":
		return s.create(ctx, ownerID, req)
	case "list":
		return s.list(ctx, ownerID)
	case "delete":
		return s.delete(ctx, ownerID, req.Message)
	default:
		return fmt.Sprintf("❌ Unknown reminder action: %s", req.Action)
	}
}

func (s *Skill) create(ctx context.Context, ownerID string, req Request) string {
	created, err := s.svc.Create(ctx, CreateInput{
		OwnerID:         ownerID,
		Message:         req.Message,
		TriggerText:     req.TriggerTime,
		Frequency:       req.Frequency,
		IntervalSeconds: req.IntervalSeconds,
		RemainingCount:  req.RemainingCount,
		Recipient:       req.Recipient,
		ActionTag:       req.DeferredAction,
		Payload:         req.Payload,
	})
	if err != nil {
		return failureReply("set that reminder", err)
	}
	rec := created.Reminder

	who := "for you"
	if rec.Recipient != "" {
		who = "to " + rec.Recipient
	}
	when := rec.TriggerTime.In(s.loc).Format("Jan 02 at 3:04 PM")
	repeat := ""
	if d := recurrence.Describe(rec); d != "" {
		repeat = ", " + d
	}
	return fmt.Sprintf("✅ **Got it!** I've set a reminder %s:\n📝 \"%s\"\n⏰ %s%s", who, rec.Message, when, repeat)
}

func (s *Skill) list(ctx context.Context, ownerID string) string {
	reminders, err := s.svc.Pending(ctx, ownerID)
	if err != nil {
		return failureReply("load your reminders", err)
	}
	if len(reminders) == 0 {
		return "You have no active reminders."
	}

	var b strings.Builder
	b.WriteString("🔔 **Your Scheduled Reminders:**\n")
	for _, r := range reminders {
		target := "Self"
		if r.Recipient != "" {
			target = "→ " + r.Recipient
		}
		trigger := r.OriginalTrigger
		if trigger == "" {
			trigger = r.TriggerTime.In(s.loc).Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", target, r.Message, trigger)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Skill) delete(ctx context.Context, ownerID, match string) string {
	n, err := s.svc.Delete(ctx, ownerID, match)
	if err != nil {
		return failureReply("delete reminders", err)
	}
	if n == 0 {
		return fmt.Sprintf("No reminders matched '%s'.", match)
	}
	return fmt.Sprintf("🗑 Deleted %d reminder(s) matching: '%s'", n, match)
}

func failureReply(what string, err error) string {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return fmt.Sprintf("❌ Couldn't %s: %s %s.", what, ve.Field, ve.Reason)
	}
	return fmt.Sprintf("❌ Couldn't %s right now, please try again later.", what)
}
