// Package pipeline orchestrates contact imports and searches on top of a contact store.
//
// An import parses its input, normalizes every record, merges records of the same person within
// the import and finally merges each of them into the stored contact with the same key. Store
// failures are reported as apperr.ErrUnavailable so that callers can tell them apart from empty
// results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gitlab.com/dirk.krummacker/beetagged/internal/apperr"
	"gitlab.com/dirk.krummacker/beetagged/internal/linkedin"
	"gitlab.com/dirk.krummacker/beetagged/internal/merge"
	"gitlab.com/dirk.krummacker/beetagged/internal/search"
	"gitlab.com/dirk.krummacker/beetagged/internal/store"
	"gitlab.com/dirk.krummacker/beetagged/internal/tagging"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

// Defaults of the pipeline options.
const (
	DefaultStoreTimeout   = 5 * time.Second
	DefaultMaxUploadBytes = 5 << 20
	DefaultConcurrency    = 8
	MaxPageLimit          = 200
)

// ProfileSource provides profiles from an external identity provider.
type ProfileSource interface {
	// Friends returns id and name of the friends of the token's user.
	Friends(ctx context.Context, token string) ([]model.Profile, error)
	// Profile returns the full profile of one user.
	Profile(ctx context.Context, token, id string) (model.Profile, error)
}

// Pipeline is the import and search facade used by the HTTP handlers.
type Pipeline struct {
	store          store.Store
	engine         *search.Engine
	profiles       ProfileSource
	resolver       *linkedin.Resolver
	logger         *slog.Logger
	now            func() time.Time
	storeTimeout   time.Duration
	maxUploadBytes int64
	concurrency    int
}

// Option is a functional option for configuring the pipeline.
type Option func(*Pipeline)

// WithProfileSource sets the identity provider used by ImportFacebook.
func WithProfileSource(src ProfileSource) Option {
	return func(p *Pipeline) { p.profiles = src }
}

// WithResolver sets the header resolver used for CSV imports.
func WithResolver(r *linkedin.Resolver) Option {
	return func(p *Pipeline) { p.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock sets the source of creation and update timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithStoreTimeout bounds every single store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.storeTimeout = d }
}

// WithMaxUploadBytes sets the size limit of a single uploaded file.
func WithMaxUploadBytes(n int64) Option {
	return func(p *Pipeline) { p.maxUploadBytes = n }
}

// WithConcurrency sets how many profiles are fetched from the identity provider at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// New creates a pipeline.
func New(s store.Store, e *search.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:          s,
		engine:         e,
		resolver:       linkedin.NewResolver(nil),
		logger:         slog.Default(),
		now:            time.Now,
		storeTimeout:   DefaultStoreTimeout,
		maxUploadBytes: DefaultMaxUploadBytes,
		concurrency:    DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// MaxUploadBytes returns the size limit of a single uploaded file.
func (p *Pipeline) MaxUploadBytes() int64 {
	return p.maxUploadBytes
}

// withTimeout derives the context of a single store call.
func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.storeTimeout)
}

// storeError classifies an error returned by the store. Not-found and invalid-input errors are
// passed on, everything else means the store could not serve the request.
func storeError(op string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalid) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrUnavailable, err)
}

func (p *Pipeline) ping(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if err := p.store.Ping(ctx); err != nil {
		return storeError("ping store", err)
	}
	return nil
}

func (p *Pipeline) findByKey(ctx context.Context, key string) (model.Contact, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.store.FindByKey(ctx, key)
}

func (p *Pipeline) findByID(ctx context.Context, id string) (model.Contact, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	c, err := p.store.FindByID(ctx, id)
	if err != nil {
		return c, storeError("find contact", err)
	}
	return c, nil
}

func (p *Pipeline) upsert(ctx context.Context, c *model.Contact) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if err := p.store.Upsert(ctx, c); err != nil {
		return storeError("upsert contact", err)
	}
	return nil
}

func (p *Pipeline) count(ctx context.Context) (int, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	n, err := p.store.Count(ctx)
	if err != nil {
		return 0, storeError("count contacts", err)
	}
	return n, nil
}

// commitStats counts what happened to the entries of a committed batch.
type commitStats struct {
	inserted int
	updated  int
}

// commit merges every entry of the batch into the store. An entry whose key is already stored
// fills the empty attributes of the stored contact; stored values are never overwritten. Tags are
// derived from the merged contact. The committed contacts are returned in batch order.
func (p *Pipeline) commit(ctx context.Context, batch *merge.Batch) ([]model.Contact, commitStats, error) {
	var stats commitStats
	saved := make([]model.Contact, 0, batch.Len())
	now := p.now().UTC()
	for _, e := range batch.Entries() {
		c := e.Contact
		existing, err := p.findByKey(ctx, c.Key)
		switch {
		case err == nil:
			merge.Contact(&existing, c)
			c = existing
			c.UpdatedAt = now
			stats.updated++
		case errors.Is(err, apperr.ErrNotFound):
			c.ID = ""
			c.CreatedAt = now
			c.UpdatedAt = now
			stats.inserted++
		default:
			return saved, stats, storeError("find contact", err)
		}
		c.Tags = tagging.Union(c.Tags, tagging.Derive(c, e.School)...)
		if err := p.upsert(ctx, &c); err != nil {
			return saved, stats, err
		}
		saved = append(saved, c)
	}
	return saved, stats, nil
}
