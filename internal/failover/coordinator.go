// Package failover puts a primary and a secondary payment backend behind
// the single repository.PaymentStore contract.
//
// Writes go to both backends and succeed when at least one backend that
// supports the operation succeeds.  Reads go to the primary and fall back to
// the secondary.  A backend that reports a storage failure is marked
// Degraded; it only becomes Healthy again after a resync has replayed the
// full contents of the other backend into it.  Every public operation
// starts with a resync pass, so repair happens lazily on the next call
// after a backend recovers.
package failover

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/club-payments/internal/model"
	"github.com/iliyamo/club-payments/internal/repository"
)

// BackendName names the coordinator itself in combined StorageErrors.
const BackendName = "failover"

// Backend pairs a store with the name used in logs and status reports.
type Backend struct {
	Name  string
	Store repository.PaymentStore
}

// Notifier receives the resync-completed signal.
type Notifier interface {
	ResyncCompleted(ctx context.Context, r ResyncReport)
}

type member struct {
	Backend
	status Status // guarded by Coordinator.mu
}

// Coordinator implements repository.PaymentStore over two backends.
type Coordinator struct {
	primary   *member
	secondary *member
	log       zerolog.Logger
	notifier  Notifier
	now       func() time.Time

	mu       sync.Mutex // health flags
	resyncMu sync.Mutex // one resync pass at a time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l.With().Str("component", "failover").Logger() }
}

// WithNotifier sets the receiver of resync-completed signals.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// New returns a Coordinator with both backends Healthy.
func New(primary, secondary Backend, opts ...Option) *Coordinator {
	c := &Coordinator{
		primary:   &member{Backend: primary},
		secondary: &member{Backend: secondary},
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ repository.PaymentStore = (*Coordinator)(nil)

// Status returns a snapshot of every backend's availability keyed by name.
func (c *Coordinator) Status() map[string]Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]Status{
		c.primary.Name:   c.primary.status,
		c.secondary.Name: c.secondary.status,
	}
}

// Probe runs a resync pass, then lists each backend once so an unreachable
// one is marked Degraded, and returns the resulting status.
func (c *Coordinator) Probe(ctx context.Context) map[string]Status {
	c.resync(ctx)
	for _, m := range []*member{c.primary, c.secondary} {
		_, err := m.Store.FindAll(ctx)
		c.record(ctx, m, "probe", err)
	}
	return c.Status()
}

func (c *Coordinator) statusOf(m *member) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return m.status
}

// record downgrades m when err is an outage.  Success never upgrades a
// Degraded backend; only resync does.  Failures seen after the caller's
// context ended say nothing about the backend and are ignored.
func (c *Coordinator) record(ctx context.Context, m *member, op string, err error) {
	if !isOutage(err) {
		return
	}
	if ctx.Err() != nil {
		c.log.Debug().Str("backend", m.Name).Str("op", op).Err(err).Msg("operation abandoned by caller, status unchanged")
		return
	}
	c.mu.Lock()
	prev := m.status
	m.status = Degraded
	c.mu.Unlock()

	ev := c.log.Warn()
	if prev == Degraded {
		ev = c.log.Debug()
	}
	ev.Str("backend", m.Name).Str("op", op).Err(err).Msg("backend operation failed, marked degraded")
}

// isOutage separates availability failures from domain answers.
// ErrNotFound and ErrUnsupported say nothing about backend health.
func isOutage(err error) bool {
	return err != nil && !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrUnsupported)
}

// Save writes to both backends.  The primary runs first so the payment has
// its id before the secondary sees it.
func (c *Coordinator) Save(ctx context.Context, p *model.Payment) error {
	c.resync(ctx)
	return c.writeBoth(ctx, "save", func(s repository.PaymentStore) error { return s.Save(ctx, p) })
}

// Update writes to both backends.  A backend answering ErrUnsupported is
// skipped when deciding whether the update failed.
func (c *Coordinator) Update(ctx context.Context, p *model.Payment) error {
	c.resync(ctx)
	return c.writeBoth(ctx, "update", func(s repository.PaymentStore) error { return s.Update(ctx, p) })
}

// Delete removes the id from both backends.
func (c *Coordinator) Delete(ctx context.Context, id int64) error {
	c.resync(ctx)
	return c.writeBoth(ctx, "delete", func(s repository.PaymentStore) error { return s.Delete(ctx, id) })
}

// writeBoth invokes fn on each backend regardless of its current status and
// combines the outcomes: nil when any supporting backend succeeded,
// ErrNotFound when none succeeded and one reported the id absent, a
// StorageError joining every failure otherwise.
func (c *Coordinator) writeBoth(ctx context.Context, op string, fn func(repository.PaymentStore) error) error {
	var (
		failures  []error
		supported int
		succeeded bool
		notFound  error
	)
	for _, m := range []*member{c.primary, c.secondary} {
		err := fn(m.Store)
		c.record(ctx, m, op, err)
		switch {
		case err == nil:
			supported++
			succeeded = true
		case errors.Is(err, repository.ErrUnsupported):
			c.log.Debug().Str("backend", m.Name).Str("op", op).Msg("operation not supported, skipped")
		case errors.Is(err, repository.ErrNotFound):
			supported++
			notFound = err
		default:
			supported++
			failures = append(failures, err)
		}
	}
	switch {
	case succeeded:
		return nil
	case supported == 0:
		return repository.ErrUnsupported
	case notFound != nil:
		return notFound
	case ctx.Err() != nil:
		return &repository.StorageError{Backend: BackendName, Op: op, Err: errors.Join(ctx.Err(), errors.Join(failures...))}
	}
	c.log.Error().Str("op", op).Errs("causes", failures).Msg("operation failed on every backend")
	return &repository.StorageError{Backend: BackendName, Op: op, Err: errors.Join(failures...)}
}

// FindByID reads from the primary and falls back to the secondary on an
// outage.  An ErrNotFound from the primary is an answer and is returned
// as-is.
func (c *Coordinator) FindByID(ctx context.Context, id int64) (*model.Payment, error) {
	c.resync(ctx)

	p, errP := c.primary.Store.FindByID(ctx, id)
	if !isOutage(errP) {
		return p, errP
	}
	c.record(ctx, c.primary, "find", errP)

	p, errS := c.secondary.Store.FindByID(ctx, id)
	if errS == nil {
		return p, nil
	}
	c.record(ctx, c.secondary, "find", errS)
	c.log.Error().Int64("id", id).Err(errS).Msg("payment not readable from any backend")
	return nil, &repository.StorageError{
		Backend: BackendName,
		Op:      "find",
		Err:     errors.Join(errors.New("not found in any backend"), errP, errS),
	}
}

// FindAll reads from the primary and falls back to the secondary.  When
// both fail it returns an empty list and no error.
func (c *Coordinator) FindAll(ctx context.Context) ([]*model.Payment, error) {
	c.resync(ctx)

	all, err := c.primary.Store.FindAll(ctx)
	if err == nil {
		return all, nil
	}
	c.record(ctx, c.primary, "find_all", err)

	all, err = c.secondary.Store.FindAll(ctx)
	if err == nil {
		return all, nil
	}
	c.record(ctx, c.secondary, "find_all", err)
	c.log.Error().Err(err).Msg("listing failed on every backend, returning empty result")
	return []*model.Payment{}, nil
}
