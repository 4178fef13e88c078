// Package action runs the deferred actions attached to reminders.
package action

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hray3182/gabay/internal/models"
)

// Handler executes one kind of deferred action.
type Handler interface {
	Handle(ctx context.Context, ownerID, payload string) error
}

type HandlerFunc func(ctx context.Context, ownerID, payload string) error

func (f HandlerFunc) Handle(ctx context.Context, ownerID, payload string) error {
	return f(ctx, ownerID, payload)
}

// Registry routes action tags to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(tag string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[tag] = h
}

func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.handlers))
	for tag := range r.handlers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func (r *Registry) ExecuteAction(ctx context.Context, ownerID, tag, payload string) error {
	r.mu.RLock()
	h, ok := r.handlers[tag]
	r.mu.RUnlock()
	if !ok {
		return errors.Mark(errors.Newf("unknown action %q", tag), models.ErrActionExecution)
	}
	return h.Handle(ctx, ownerID, payload)
}
