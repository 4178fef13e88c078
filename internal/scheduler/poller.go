package scheduler

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hray3182/gabay/internal/dispatcher"
	"github.com/hray3182/gabay/internal/models"
	"github.com/hray3182/gabay/internal/recurrence"
	"github.com/hray3182/gabay/internal/worker"
	"github.com/rs/zerolog"
)

// Store is the part of the schedule store the poller needs.
type Store interface {
	ListDue(ctx context.Context, now time.Time) ([]models.Reminder, error)
	CompareAndSet(ctx context.Context, id string, expected models.Expected, patch models.ReminderPatch) (bool, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, job dispatcher.Job) error
}

// Submitter hands work to the bounded worker pool without blocking.
type Submitter interface {
	Submit(ctx context.Context, t worker.Task) error
}

// TickReport summarises one pass over the due reminders.
type TickReport struct {
	Due     int
	Claimed int
	Lost    int
	Dropped int
}

type Poller struct {
	store      Store
	dispatcher Dispatcher
	pool       Submitter
	log        zerolog.Logger

	interval     time.Duration
	initialDelay time.Duration
	clock        func() time.Time
	notifyCh     chan struct{}
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(p *Poller) { p.initialDelay = d }
}

func WithClock(clock func() time.Time) Option {
	return func(p *Poller) { p.clock = clock }
}

func NewPoller(store Store, d Dispatcher, pool Submitter, log zerolog.Logger, opts ...Option) *Poller {
	p := &Poller{
		store:        store,
		dispatcher:   d,
		pool:         pool,
		log:          log.With().Str("component", "poller").Logger(),
		interval:     time.Minute,
		initialDelay: 2 * time.Second,
		clock:        time.Now,
		notifyCh:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Notify triggers an immediate tick. Non-blocking if a tick is already pending.
func (p *Poller) Notify() {
	select {
	case p.notifyCh <- struct{}{}:
	default:
	}
}

func (p *Poller) Start(ctx context.Context) {
	p.log.Info().Dur("interval", p.interval).Msg("poller started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Give migrations and the bot a moment before the first pass
	select {
	case <-ctx.Done():
		return
	case <-time.After(p.initialDelay):
	}

	p.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("poller stopped")
			return
		case <-ticker.C:
			p.runTick(ctx)
		case <-p.notifyCh:
			p.log.Debug().Msg("poller woken by notification")
			p.runTick(ctx)
		}
	}
}

func (p *Poller) runTick(ctx context.Context) {
	report, err := p.Tick(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("poll tick aborted")
		return
	}
	if report.Due > 0 {
		p.log.Info().
			Int("due", report.Due).
			Int("claimed", report.Claimed).
			Int("lost", report.Lost).
			Int("dropped", report.Dropped).
			Msg("poll tick")
	}
}

// Tick claims every due reminder and hands the pre-update snapshot to the
// worker pool. The conditional update is the claim: whoever flips the record
// first fires it, everyone else skips. A store failure aborts the rest of
// the tick; the untouched reminders stay pending for the next one.
func (p *Poller) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport
	now := p.clock().UTC()

	due, err := p.store.ListDue(ctx, now)
	if err != nil {
		return report, errors.Wrap(err, "list due reminders")
	}
	report.Due = len(due)

	for _, rec := range due {
		outcome := recurrence.Advance(rec)
		expected := models.Expected{Status: models.StatusPending, TriggerTime: rec.TriggerTime}
		won, err := p.store.CompareAndSet(ctx, rec.ID, expected, outcome.Patch())
		if err != nil {
			return report, errors.Wrapf(err, "claim reminder %s", rec.ID)
		}
		if !won {
			report.Lost++
			p.log.Debug().Str("reminder", rec.ID).Msg("reminder claimed elsewhere")
			continue
		}
		report.Claimed++

		p.log.Debug().
			Str("reminder", rec.ID).
			Stringer("outcome", outcome.Kind).
			Time("next", outcome.Next).
			Msg("claimed reminder")

		job := dispatcher.NewJob(rec, now)
		if err := p.pool.Submit(ctx, worker.Task{
			Name: "reminder:" + rec.ID,
			Run: func(ctx context.Context) error {
				return p.dispatcher.Dispatch(ctx, job)
			},
		}); err != nil {
			report.Dropped++
		}
	}
	return report, nil
}
