// Package dispatcher carries out a claimed reminder: it either delivers the
// message or runs the nested action. It never touches the schedule store.
package dispatcher

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hray3182/gabay/internal/models"
	"github.com/rs/zerolog"
)

//go:generate mockgen -source=dispatcher.go -destination=mocks/mock_dispatcher.go -package=mocks

// ReminderPrefix marks notifications an owner sends to themself.
const ReminderPrefix = "🔔 **Reminder:** "

type ContactResolver interface {
	ResolveRecipient(ctx context.Context, ownerID, name string) (string, bool, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, channelID, text string) error
}

type ActionExecutor interface {
	ExecuteAction(ctx context.Context, ownerID, tag, payload string) error
}

// Job is the pre-update snapshot of a claimed reminder with its decoded action.
type Job struct {
	Reminder  models.Reminder
	Action    models.Action
	ClaimedAt time.Time
}

func NewJob(rec models.Reminder, claimedAt time.Time) Job {
	return Job{Reminder: rec, Action: models.DecodeAction(rec), ClaimedAt: claimedAt}
}

type Dispatcher struct {
	contacts ContactResolver
	deliver  Deliverer
	actions  ActionExecutor
	log      zerolog.Logger
}

func New(contacts ContactResolver, deliver Deliverer, actions ActionExecutor, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		contacts: contacts,
		deliver:  deliver,
		actions:  actions,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, job Job) error {
	rec := job.Reminder

	switch a := job.Action.(type) {
	case models.Invoke:
		if d.actions == nil {
			return errors.Mark(errors.Newf("no executor for action %q", a.Tag), models.ErrActionExecution)
		}
		if err := d.actions.ExecuteAction(ctx, rec.OwnerID, a.Tag, a.Payload); err != nil {
			return errors.Mark(errors.Wrapf(err, "execute %s for reminder %s", a.Tag, rec.ID), models.ErrActionExecution)
		}
		d.log.Info().Str("reminder", rec.ID).Str("action", a.Tag).Msg("executed reminder action")
		return nil

	case models.Notify:
		target := d.resolveTarget(ctx, rec)
		text := a.Text
		if target == rec.OwnerID {
			text = ReminderPrefix + text
		}
		if err := d.deliver.Deliver(ctx, target, text); err != nil {
			return errors.Mark(errors.Wrapf(err, "deliver reminder %s to %s", rec.ID, target), models.ErrDelivery)
		}
		d.log.Info().Str("reminder", rec.ID).Str("target", target).Msg("delivered reminder")
		return nil

	default:
		return errors.Newf("unknown action %T for reminder %s", job.Action, rec.ID)
	}
}

// resolveTarget prefers the contact book, then the raw recipient, then the owner.
func (d *Dispatcher) resolveTarget(ctx context.Context, rec models.Reminder) string {
	if rec.Recipient == "" {
		return rec.OwnerID
	}
	if d.contacts != nil {
		channel, ok, err := d.contacts.ResolveRecipient(ctx, rec.OwnerID, rec.Recipient)
		if err != nil {
			d.log.Warn().Err(err).Str("recipient", rec.Recipient).Msg("contact lookup failed, using raw recipient")
		} else if ok && channel != "" {
			return channel
		}
	}
	return rec.Recipient
}
