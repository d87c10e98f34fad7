// Package markersync reconciles the local marker store with the remote
// authoritative marker source.
//
// At most one fetch is in flight at any time: concurrent Refresh calls join
// the running fetch and share its result. A fetch result is merged into the
// store only by a caller that is still waiting for it, so a refresh abandoned
// by every caller leaves the store untouched.
package markersync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pkordes/markerwatch/internal/domain"
	"github.com/pkordes/markerwatch/internal/location"
	"github.com/pkordes/markerwatch/internal/store"
)

// Source is the remote authoritative marker source.
type Source interface {
	// FetchActiveMarkers returns the remote active-marker set.
	FetchActiveMarkers(ctx context.Context) ([]domain.Marker, error)

	// SubmitMarker persists a new marker remotely and returns the canonical
	// record, whose id and timestamps may be assigned server-side.
	SubmitMarker(ctx context.Context, d domain.Draft) (domain.Marker, error)
}

// Snapshotter persists the last-known-good active set across restarts.
type Snapshotter interface {
	Save(ctx context.Context, ms []domain.Marker) error
	Load(ctx context.Context) ([]domain.Marker, error)
}

const refreshKey = "refresh"

// ErrClosed is returned by Refresh once Close has been called, including by
// a refresh whose fetch was cut short by Close.
var ErrClosed = errors.New("markersync: service closed")

// Service owns the refresh guard for one Store.
// Construct it once per process with New and call Close on shutdown.
type Service struct {
	store  *store.Store
	source Source
	snap   Snapshotter
	log    *slog.Logger
	now    func() time.Time

	fetchTimeout time.Duration
	retention    time.Duration

	group   singleflight.Group
	gen     atomic.Uint64
	waiting atomic.Int64

	applyMu sync.Mutex
	applied uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for background refresh failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the clock used to evaluate the active set.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFetchTimeout bounds a single remote fetch. Defaults to 15s.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) { s.fetchTimeout = d }
}

// WithRetention sets how long expired markers are kept in the store before
// Run prunes them. Defaults to 24h.
func WithRetention(d time.Duration) Option {
	return func(s *Service) { s.retention = d }
}

// WithSnapshotter persists the active set after every successful refresh.
func WithSnapshotter(sn Snapshotter) Option {
	return func(s *Service) { s.snap = sn }
}

// New constructs a Service that merges remote results into st.
func New(st *store.Store, src Source, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:        st,
		source:       src,
		log:          slog.Default(),
		now:          time.Now,
		fetchTimeout: 15 * time.Second,
		retention:    24 * time.Hour,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops any in-flight fetch. Results arriving afterwards are dropped.
func (s *Service) Close() {
	s.cancel()
}

// Waiting returns how many Refresh calls are blocked on the in-flight fetch.
// Zero means no refresh is running.
func (s *Service) Waiting() int {
	return int(s.waiting.Load())
}

// Refresh fetches the remote active set, merges it into the store by id
// (latest CreatedAt wins) and returns the resulting active set.
//
// On failure the store is untouched and a *domain.SyncFailedError is
// returned. If ctx ends before the fetch completes Refresh returns ctx.Err()
// and does not apply the result. After Close it returns ErrClosed.
func (s *Service) Refresh(ctx context.Context) ([]domain.Marker, error) {
	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}
	ch := s.group.DoChan(refreshKey, s.fetch)
	s.waiting.Add(1)
	defer s.waiting.Add(-1)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("markersync.Service.Refresh: %w", res.Err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.apply(res.Val.(fetchResult))
		return s.store.ListActive(s.now()), nil
	}
}

type fetchResult struct {
	gen     uint64
	markers []domain.Marker
}

// fetch runs under the singleflight guard against the service lifetime
// context, so one caller giving up does not fail the others.
func (s *Service) fetch() (any, error) {
	gen := s.gen.Add(1)

	ctx, cancel := context.WithTimeout(s.ctx, s.fetchTimeout)
	defer cancel()

	ms, err := s.source.FetchActiveMarkers(ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return nil, ErrClosed
		}
		return nil, asSyncFailed(err)
	}
	return fetchResult{gen: gen, markers: ms}, nil
}

// apply merges fr once; results older than the last applied generation are
// dropped so a slow fetch never overwrites a newer one.
func (s *Service) apply(fr fetchResult) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if fr.gen <= s.applied || s.ctx.Err() != nil {
		return
	}
	s.applied = fr.gen
	changed := s.store.Merge(fr.markers)
	s.log.Debug("markers refreshed", "generation", fr.gen, "received", len(fr.markers), "changed", changed)

	if s.snap != nil {
		if err := s.snap.Save(s.ctx, s.store.ListActive(s.now())); err != nil {
			s.log.Warn("snapshot save failed", "error", err)
		}
	}
}

// Create validates d locally, submits it to the remote source and adds the
// canonical marker to the store before returning.
// Validation errors are returned without contacting the remote source.
func (s *Service) Create(ctx context.Context, d domain.Draft) (domain.Marker, error) {
	if err := d.Validate(); err != nil {
		return domain.Marker{}, fmt.Errorf("markersync.Service.Create: %w", err)
	}

	m, err := s.source.SubmitMarker(ctx, d)
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			err = asSyncFailed(err)
		}
		return domain.Marker{}, fmt.Errorf("markersync.Service.Create: %w", err)
	}

	s.store.Add(m)
	return m, nil
}

// CreateHere creates a marker at the provider's current location.
// d.Location is ignored. A provider failure (permission denied or location
// unavailable) is returned unchanged in the chain and nothing is created.
func (s *Service) CreateHere(ctx context.Context, p location.Provider, d domain.Draft) (domain.Marker, error) {
	loc, err := p.Current(ctx)
	if err != nil {
		return domain.Marker{}, fmt.Errorf("markersync.Service.CreateHere: %w", err)
	}
	d.Location = loc
	return s.Create(ctx, d)
}

// Restore seeds the store from the snapshot, if one is configured.
// Returns the number of markers loaded.
func (s *Service) Restore(ctx context.Context) (int, error) {
	if s.snap == nil {
		return 0, nil
	}
	ms, err := s.snap.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("markersync.Service.Restore: %w", err)
	}
	return s.store.Merge(ms), nil
}

// Run refreshes immediately and then every interval until ctx ends or the
// service is closed. Failures are logged and do not stop the loop.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	active, err := s.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, ErrClosed) {
			s.log.Warn("marker refresh failed", "error", err)
		}
		return
	}
	pruned := s.store.Prune(s.now(), s.retention)
	s.log.Info("marker refresh", "active", len(active), "pruned", pruned)
}

// asSyncFailed classifies err as a SyncFailedError unless it already is one.
func asSyncFailed(err error) error {
	var sf *domain.SyncFailedError
	if errors.As(err, &sf) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewSyncFailed(domain.SyncTimeout, err)
	}
	return domain.NewSyncFailed(domain.SyncNetwork, err)
}
