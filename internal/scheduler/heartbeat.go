package scheduler

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hray3182/gabay/internal/worker"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultHeartbeatSpec runs the proactive scan every fifteen minutes.
const DefaultHeartbeatSpec = "@every 15m"

type OwnerLister interface {
	ListKnownOwners(ctx context.Context) ([]string, error)
}

// ProactiveRunner is one proactive skill run for a single owner.
type ProactiveRunner interface {
	Run(ctx context.Context, ownerID string) error
}

type ProactiveFunc func(ctx context.Context, ownerID string) error

func (f ProactiveFunc) Run(ctx context.Context, ownerID string) error {
	return f(ctx, ownerID)
}

// Heartbeat periodically runs triage and meeting briefing for every known owner.
type Heartbeat struct {
	owners   OwnerLister
	triage   ProactiveRunner
	briefing ProactiveRunner
	pool     Submitter
	spec     string
	log      zerolog.Logger
}

func NewHeartbeat(owners OwnerLister, triage, briefing ProactiveRunner, pool Submitter, spec string, log zerolog.Logger) *Heartbeat {
	if spec == "" {
		spec = DefaultHeartbeatSpec
	}
	return &Heartbeat{
		owners:   owners,
		triage:   triage,
		briefing: briefing,
		pool:     pool,
		spec:     spec,
		log:      log.With().Str("component", "heartbeat").Logger(),
	}
}

// Start schedules Scan on the cron spec and blocks until ctx is done.
func (h *Heartbeat) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(h.spec, func() { h.Scan(ctx) }); err != nil {
		return errors.Wrapf(err, "invalid heartbeat spec %q", h.spec)
	}
	c.Start()
	h.log.Info().Str("spec", h.spec).Msg("heartbeat started")

	<-ctx.Done()
	<-c.Stop().Done()
	h.log.Info().Msg("heartbeat stopped")
	return nil
}

// Scan submits one triage and one briefing task per owner. Each task runs on
// its own, so a failing owner or skill never holds up the others.
func (h *Heartbeat) Scan(ctx context.Context) int {
	owners, err := h.owners.ListKnownOwners(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list owners, skipping heartbeat")
		return 0
	}

	submitted := 0
	for _, owner := range owners {
		submitted += h.submit(ctx, "triage", h.triage, owner)
		submitted += h.submit(ctx, "briefing", h.briefing, owner)
	}
	h.log.Debug().Int("owners", len(owners)).Int("tasks", submitted).Msg("heartbeat scan")
	return submitted
}

func (h *Heartbeat) submit(ctx context.Context, kind string, runner ProactiveRunner, owner string) int {
	if runner == nil {
		return 0
	}
	err := h.pool.Submit(ctx, worker.Task{
		Name: kind + ":" + owner,
		Run: func(ctx context.Context) error {
			return runner.Run(ctx, owner)
		},
	})
	if err != nil {
		return 0
	}
	return 1
}
