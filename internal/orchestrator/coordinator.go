package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/squad/internal/audit"
	"github.com/ShayCichocki/squad/internal/events"
	"github.com/ShayCichocki/squad/internal/retry"
	"github.com/ShayCichocki/squad/internal/state"
)

// AuditorRole is the role audit review tasks are addressed to.
const AuditorRole = "auditor"

// Coordinator drives the mission lifecycle: plan intake, dispatch,
// completion bookkeeping, and the retry/audit/escalation pipeline.
// All state lives in the store; the Coordinator holds no caches.
type Coordinator struct {
	store   state.Store
	broker  *events.Broker
	logger  *DebugLogger
	retries *retry.Manager
	auditor *audit.Processor

	now   func() time.Time
	newID func() string
}

// Option configures a Coordinator. Use With* functions to create Options.
type Option func(*Coordinator)

// WithBroker sets the event broker. Without one, events are not published.
func WithBroker(b *events.Broker) Option {
	return func(c *Coordinator) { c.broker = b }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDFunc overrides ID generation. Used by tests.
func WithIDFunc(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// NewCoordinator creates a Coordinator backed by the given store.
func NewCoordinator(store state.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		logger: NopLogger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retries = retry.NewManagerWithClock(c.now)
	c.auditor = audit.NewProcessor(store, audit.NewStoreScorer(store)).
		WithClock(c.now).
		WithIDFunc(c.newID)
	return c
}

// publish sends an event when a broker is configured.
func (c *Coordinator) publish(topic string, ev events.Event) {
	if c.broker != nil {
		c.broker.Publish(topic, ev)
	}
}
