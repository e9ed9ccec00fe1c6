// Package session owns the interaction snapshot of one runtime instance. A
// Manager hydrates the snapshot from the durable store once, applies tracking
// calls to it in order and persists the full snapshot in the background.
package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/benvon/smart-health/internal/logger"
	"github.com/benvon/smart-health/internal/metrics"
	"github.com/benvon/smart-health/internal/models"
	"github.com/benvon/smart-health/internal/queue"
	"github.com/benvon/smart-health/internal/storage"
)

const (
	// DefaultKey is the durable slot owned by the engine
	DefaultKey = "smart-health:user-interactions"

	defaultWriteTimeout   = 5 * time.Second
	defaultPublishTimeout = 3 * time.Second
)

// State is the lifecycle state of a Manager
type State int

const (
	StateUninitialized State = iota
	StateHydrating
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHydrating:
		return "hydrating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrAlreadyInitialized = errors.New("session already initialized")
	ErrClosed             = errors.New("session closed")
)

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithDebounce coalesces writes made within d of the first pending change.
// Zero writes after every tracking call.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		m.debounce = max(d, 0)
	}
}

// WithPublisher forwards every applied tracking event to p
func WithPublisher(p queue.Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithKey overrides the durable slot name
func WithKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.key = key
		}
	}
}

// mutation is a tracking call captured so it can be replayed on top of the
// hydrated snapshot when it arrives before Init completes
type mutation struct {
	at    time.Time
	apply func(models.InteractionSnapshot, time.Time) models.InteractionSnapshot
}

// Manager is the explicitly owned session object. All methods are safe for
// concurrent use; tracking calls are applied in the order they acquire the lock.
type Manager struct {
	store      storage.Store
	key        string
	logger     *zap.Logger
	metrics    *metrics.Metrics
	publisher  queue.Publisher
	tracer     trace.Tracer
	now        func() time.Time
	debounce   time.Duration
	instanceID uuid.UUID

	mu        sync.Mutex
	state     State
	snapshot  models.InteractionSnapshot
	pending   []mutation
	startedAt time.Time
	version   uint64 // bumped on every applied change
	persisted uint64 // version last written successfully

	writeMu    sync.Mutex // serializes store writes
	signal     chan struct{}
	stop       chan struct{}
	done       chan struct{}
	publishing sync.WaitGroup // in-flight event publishes
}

// NewManager creates a manager for store. The manager starts Uninitialized
// holding the default snapshot; call Init to hydrate it.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		key:        DefaultKey,
		logger:     zap.NewNop(),
		now:        time.Now,
		tracer:     otel.Tracer("github.com/benvon/smart-health/internal/session"),
		instanceID: uuid.New(),
		signal:     make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.Nop()
	}
	m.snapshot = models.NewDefaultSnapshot(m.now().UTC())
	return m
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InstanceID identifies this runtime instance in published events
func (m *Manager) InstanceID() uuid.UUID {
	return m.instanceID
}

// Init hydrates the snapshot from the durable store and starts the background
// writer. A missing, unreadable or corrupt record leaves the defaults in place;
// Init only fails when called twice or after Teardown.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateUninitialized:
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	default:
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.state = StateHydrating
	m.mu.Unlock()

	now := m.now().UTC()
	loaded := m.hydrate(ctx, models.NewDefaultSnapshot(now))
	loaded.SessionCount++
	loaded.LastVisit = now

	m.mu.Lock()
	if m.state == StateClosed {
		m.pending = nil
		m.mu.Unlock()
		return ErrClosed
	}
	for _, p := range m.pending {
		loaded = p.apply(loaded, p.at)
	}
	m.pending = nil
	m.snapshot = loaded
	m.startedAt = now
	m.state = StateReady
	m.version++
	m.mu.Unlock()

	go m.runWriter()
	m.schedule()

	m.logger.Info("Interaction session ready",
		zap.String("key", logger.SanitizeKey(m.key)),
		zap.Int("session_count", loaded.SessionCount),
		zap.Duration("debounce", m.debounce))
	return nil
}

// hydrate reads and decodes the durable record. Every failure is absorbed.
func (m *Manager) hydrate(ctx context.Context, defaults models.InteractionSnapshot) models.InteractionSnapshot {
	ctx, span := m.tracer.Start(ctx, "session.hydrate", trace.WithAttributes(attribute.String("session.key", m.key)))
	defer span.End()

	raw, found, err := m.store.Get(ctx, m.key)
	if err != nil {
		m.logger.Warn("Failed to read interaction record, using defaults",
			zap.String("key", logger.SanitizeKey(m.key)),
			zap.Error(err))
		m.metrics.Hydrations.WithLabelValues(metrics.HydrationError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "store read failed")
		return defaults
	}
	if !found {
		m.logger.Debug("No interaction record found, using defaults", zap.String("key", logger.SanitizeKey(m.key)))
		m.metrics.Hydrations.WithLabelValues(metrics.HydrationAbsent).Inc()
		span.SetAttributes(attribute.String("session.hydration", metrics.HydrationAbsent))
		return defaults
	}

	snapshot, err := Decode(raw, defaults)
	switch {
	case errors.Is(err, ErrCorruptRecord):
		m.logger.Warn("Interaction record is corrupt, using defaults",
			zap.String("key", logger.SanitizeKey(m.key)),
			zap.String("error", logger.SanitizeError(err)))
		m.metrics.Hydrations.WithLabelValues(metrics.HydrationCorrupt).Inc()
		span.SetAttributes(attribute.String("session.hydration", metrics.HydrationCorrupt))
		return defaults
	case errors.Is(err, ErrPartialRecord):
		m.logger.Warn("Interaction record partially decoded, defaulting mismatched fields",
			zap.String("key", logger.SanitizeKey(m.key)),
			zap.String("error", logger.SanitizeError(err)))
		m.metrics.Hydrations.WithLabelValues(metrics.HydrationPartial).Inc()
		span.SetAttributes(attribute.String("session.hydration", metrics.HydrationPartial))
	default:
		m.metrics.Hydrations.WithLabelValues(metrics.HydrationLoaded).Inc()
		span.SetAttributes(attribute.String("session.hydration", metrics.HydrationLoaded))
	}
	return snapshot
}

// mutate applies fn to the current snapshot. Calls made before the session is
// ready are also queued for replay over the hydrated snapshot.
func (m *Manager) mutate(eventType queue.EventType, payload map[string]any, fn func(models.InteractionSnapshot, time.Time) models.InteractionSnapshot) models.InteractionSnapshot {
	return m.mutateAs(func(_, _ models.InteractionSnapshot) queue.EventType { return eventType }, payload, fn)
}

// mutateAs is mutate for calls whose event type depends on the applied
// change. classify sees the snapshots before and after fn under the lock.
func (m *Manager) mutateAs(classify func(prev, next models.InteractionSnapshot) queue.EventType, payload map[string]any, fn func(models.InteractionSnapshot, time.Time) models.InteractionSnapshot) models.InteractionSnapshot {
	at := m.now().UTC()

	m.mu.Lock()
	if m.state == StateClosed {
		current := m.snapshot.Clone()
		m.mu.Unlock()
		m.logger.Debug("Dropping tracking call after teardown")
		return current
	}
	prev := m.snapshot
	next := fn(prev, at)
	if reflect.DeepEqual(prev, next) {
		m.mu.Unlock()
		return next.Clone()
	}
	eventType := classify(prev, next)
	m.snapshot = next
	ready := m.state == StateReady
	if !ready {
		m.pending = append(m.pending, mutation{at: at, apply: fn})
	}
	m.version++
	// Teardown waits for in-flight publishes only after it has seen Closed
	// under the same lock
	publishing := m.publisher != nil
	if publishing {
		m.publishing.Add(1)
	}
	out := next.Clone()
	m.mu.Unlock()

	m.metrics.TrackedEvents.WithLabelValues(string(eventType)).Inc()
	if ready {
		m.schedule()
	}
	if publishing {
		m.publish(eventType, payload, at)
	}
	return out
}

// schedule wakes the writer without blocking
func (m *Manager) schedule() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// runWriter persists the snapshot after each signal, or once per debounce
// window when a debounce is configured
func (m *Manager) runWriter() {
	defer close(m.done)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-m.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-m.signal:
			if m.debounce == 0 {
				m.persistInBackground()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(m.debounce)
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			m.persistInBackground()
		}
	}
}

func (m *Manager) persistInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()
	if err := m.persist(ctx); err != nil {
		m.logger.Warn("Failed to persist interaction snapshot", zap.String("key", logger.SanitizeKey(m.key)), zap.Error(err))
	}
}

// persist writes the latest snapshot if it changed since the last good write
func (m *Manager) persist(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	if m.version == m.persisted {
		m.mu.Unlock()
		return nil
	}
	version := m.version
	snapshot := m.snapshot.Clone()
	m.mu.Unlock()

	ctx, span := m.tracer.Start(ctx, "session.persist", trace.WithAttributes(attribute.String("session.key", m.key)))
	defer span.End()

	raw, err := Encode(snapshot)
	if err == nil {
		err = m.store.Set(ctx, m.key, raw)
	}
	if err != nil {
		m.metrics.Persists.WithLabelValues(metrics.PersistFailure).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return fmt.Errorf("failed to persist interaction snapshot: %w", err)
	}

	m.metrics.Persists.WithLabelValues(metrics.PersistSuccess).Inc()
	m.mu.Lock()
	if version > m.persisted {
		m.persisted = version
	}
	m.mu.Unlock()
	return nil
}

// Flush writes the current snapshot synchronously. Before hydration has
// completed there is nothing to write.
func (m *Manager) Flush(ctx context.Context) error {
	if st := m.State(); st != StateReady && st != StateClosed {
		return nil
	}
	return m.persist(ctx)
}

// Teardown adds the elapsed session time to the snapshot, stops the writer
// and performs a final write. It is safe to call more than once.
func (m *Manager) Teardown(ctx context.Context) error {
	m.mu.Lock()
	prev := m.state
	if prev == StateClosed {
		m.mu.Unlock()
		return nil
	}
	if prev == StateReady {
		elapsed := m.now().UTC().Sub(m.startedAt)
		if secs := int64(elapsed / time.Second); secs > 0 {
			m.snapshot.TotalTimeSpent += secs
			m.version++
		}
	}
	m.state = StateClosed
	m.mu.Unlock()

	if prev != StateReady {
		m.publishing.Wait()
		return nil
	}

	close(m.stop)
	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.publishing.Wait()

	err := m.persist(ctx)
	m.logger.Info("Interaction session closed", zap.String("key", logger.SanitizeKey(m.key)), zap.Error(err))
	return err
}

// publish sends the event in the background. The caller has already added
// it to m.publishing.
func (m *Manager) publish(eventType queue.EventType, payload map[string]any, at time.Time) {
	event := queue.NewEvent(eventType, m.instanceID, payload, at)

	go func() {
		defer m.publishing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
		defer cancel()
		if err := m.publisher.Publish(ctx, event); err != nil {
			m.metrics.PublishFailures.Inc()
			m.logger.Warn("Failed to publish interaction event",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}()
}
