package events

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/metrics"
	"github.com/jrsteele09/go-auth-gateway/sessions"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SessionDirectory is the part of sessions.Directory the invalidator drives
type SessionDirectory interface {
	ListByPrincipal(ctx context.Context, principal string) ([]sessions.Summary, error)
	DeleteAllByPrincipal(ctx context.Context, principal string) (int, error)
}

var _ SessionDirectory = (*sessions.Directory)(nil)

// Handler processes one decoded event
type Handler interface {
	Handle(ctx context.Context, evt *UserLifecycleEvent) error
}

// Invalidator removes sessions in reaction to user lifecycle events.
type Invalidator struct {
	directory SessionDirectory
	metrics   *metrics.Metrics
}

type InvalidatorOption func(*Invalidator)

func WithMetrics(m *metrics.Metrics) InvalidatorOption {
	return func(i *Invalidator) {
		i.metrics = m
	}
}

func NewInvalidator(directory SessionDirectory, options ...InvalidatorOption) (*Invalidator, error) {
	if directory == nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewInvalidator] session directory is required")
	}
	i := &Invalidator{directory: directory}
	for _, opt := range options {
		opt(i)
	}
	return i, nil
}

// Handle applies evt. Unknown types are ignored so that new event types never
// break the consumer.
func (i *Invalidator) Handle(ctx context.Context, evt *UserLifecycleEvent) error {
	if evt == nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "[Invalidator.Handle] nil event")
	}
	switch evt.Type {
	case TypeUserDeleted:
		return i.invalidate(ctx, evt, strings.TrimSpace(evt.Payload.Email))
	case TypeUserUpdated:
		if !evt.Payload.Invalidate {
			log.Debug().Str("event_id", evt.ID.String()).Str("email", evt.Payload.Email).Msg("user updated without invalidation")
			i.metrics.Event(evt.Type, metrics.OutcomeEventIgnored)
			return nil
		}
		return i.invalidate(ctx, evt, evt.Payload.SessionPrincipal())
	case TypeUserCreated:
		i.metrics.Event(evt.Type, metrics.OutcomeEventIgnored)
		return nil
	default:
		log.Debug().Str("event_id", evt.ID.String()).Str("type", evt.Type).Msg("ignoring unknown event type")
		i.metrics.Event("unknown", metrics.OutcomeEventIgnored)
		return nil
	}
}

func (i *Invalidator) invalidate(ctx context.Context, evt *UserLifecycleEvent, principal string) error {
	logger := log.With().
		Str("event_id", evt.ID.String()).
		Str("type", evt.Type).
		Str("email", evt.Payload.Email).
		Str("principal", principal).
		Logger()

	if principal == "" {
		i.metrics.Event(evt.Type, metrics.OutcomeEventFailed)
		return errors.Wrapf(errors.ErrInvalidRequest, "[Invalidator.invalidate] %s event %s has no email", evt.Type, evt.ID)
	}

	found, err := i.directory.ListByPrincipal(ctx, principal)
	if err != nil {
		i.metrics.Event(evt.Type, metrics.OutcomeEventFailed)
		return pkgerrors.Wrap(err, "[Invalidator.invalidate] ListByPrincipal")
	}
	logger.Info().Int("sessions", len(found)).Msg("found sessions to invalidate")

	deleted, err := i.directory.DeleteAllByPrincipal(ctx, principal)
	if err != nil {
		i.metrics.Event(evt.Type, metrics.OutcomeEventFailed)
		return pkgerrors.Wrap(err, "[Invalidator.invalidate] DeleteAllByPrincipal")
	}
	logger.Info().Int("deleted", deleted).Msg("invalidated sessions")
	i.metrics.Event(evt.Type, metrics.OutcomeEventProcessed)
	return nil
}
