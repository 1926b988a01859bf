package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/metrics"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultDeleteParallelism = 8

// Directory is the principal-indexed view over the session store.
type Directory struct {
	repo        IndexedRepo
	parallelism int
	metrics     *metrics.Metrics
	nowTime     func() time.Time
}

type DirectoryOption func(*Directory)

// WithDeleteParallelism bounds concurrent deletes in DeleteAllByPrincipal
func WithDeleteParallelism(n int) DirectoryOption {
	return func(d *Directory) {
		if n > 0 {
			d.parallelism = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) DirectoryOption {
	return func(d *Directory) {
		d.metrics = m
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) DirectoryOption {
	return func(d *Directory) {
		d.nowTime = nowFunc
	}
}

// NewDirectory wraps repo. A store without a principal index cannot serve the
// directory and is reported as errors.ErrConfiguration.
func NewDirectory(repo Repo, options ...DirectoryOption) (*Directory, error) {
	if repo == nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewDirectory] session repo is required")
	}
	indexed, ok := repo.(IndexedRepo)
	if !ok {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewDirectory] session repo %T has no principal index", repo)
	}
	d := &Directory{
		repo:        indexed,
		parallelism: defaultDeleteParallelism,
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// Repo returns the underlying store
func (d *Directory) Repo() IndexedRepo {
	return d.repo
}

// ListByPrincipal returns summaries of the principal's live sessions, most recently
// accessed first. Ties are broken by session id so the order is stable.
func (d *Directory) ListByPrincipal(ctx context.Context, principal string) ([]Summary, error) {
	found, err := d.repo.FindByPrincipalName(ctx, principal)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Directory.ListByPrincipal] FindByPrincipalName")
	}

	now := d.nowTime()
	summaries := make([]Summary, 0, len(found))
	for _, s := range found {
		if s.Expired(now) {
			continue
		}
		summaries = append(summaries, s.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].LastAccessedAt.Equal(summaries[j].LastAccessedAt) {
			return summaries[i].LastAccessedAt.After(summaries[j].LastAccessedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// DeleteAllByPrincipal deletes every session of the principal. Each delete is independent:
// a failure is logged and left out of the returned count, and never stops the others.
// An error is returned only when the sessions cannot be looked up.
func (d *Directory) DeleteAllByPrincipal(ctx context.Context, principal string) (int, error) {
	found, err := d.repo.FindByPrincipalName(ctx, principal)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "[Directory.DeleteAllByPrincipal] FindByPrincipalName")
	}
	if len(found) == 0 {
		return 0, nil
	}

	var (
		mu      sync.Mutex
		deleted int
		failed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	for id := range found {
		g.Go(func() error {
			if err := d.repo.DeleteByID(gctx, id); err != nil {
				log.Err(errors.Wrapf(errors.ErrInvalidation, "session %s: %v", id, err)).
					Str("principal", principal).
					Str("session_id", id).
					Msg("failed to delete session")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			deleted++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.metrics.SessionsInvalidated("principal", deleted, failed)
	log.Info().
		Str("principal", principal).
		Int("found", len(found)).
		Int("deleted", deleted).
		Int("failed", failed).
		Msg("deleted sessions by principal")
	return deleted, nil
}

// DeleteByID deletes a single session. Deleting a missing session succeeds.
func (d *Directory) DeleteByID(ctx context.Context, sessionID string) error {
	if err := d.repo.DeleteByID(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(err, "[Directory.DeleteByID] DeleteByID")
	}
	d.metrics.SessionsInvalidated("id", 1, 0)
	return nil
}
