// Package messaging delivers progression events to subscribers.
// It provides an in-memory bus for single instances and a Redis pub/sub bus
// that fans events out across instances.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
	rediscache "github.com/alem-hub/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/progression-engine/pkg/logger"
)

// ErrEventBusClosed is returned when publishing to or subscribing on a closed bus.
var ErrEventBusClosed = errors.New("messaging: event bus is closed")

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus is a simple in-memory implementation of shared.EventBus.
// Suitable for single-instance deployments and testing.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	log         *logger.Logger
	metrics     *EventBusMetrics
	closed      bool
	closeCh     chan struct{}
	wg          sync.WaitGroup
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on a bounded worker pool instead of inline.
	AsyncMode bool

	// WorkerPoolSize is the number of concurrent handler executions.
	WorkerPoolSize int

	Logger *logger.Logger
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	return &InMemoryEventBus{
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		asyncMode:  config.AsyncMode,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		log:        config.Logger.With(logger.Component("eventbus")),
		metrics:    &EventBusMetrics{},
		closeCh:    make(chan struct{}),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish sends an event to all subscribed handlers.
// Handler errors are logged and counted, never returned.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}

	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	if b.asyncMode {
		// Registered under the read lock so Close cannot miss it.
		b.wg.Add(len(handlers))
	}
	b.mu.RUnlock()

	b.metrics.published.Add(1)

	for _, handler := range handlers {
		if b.asyncMode {
			go b.executeAsync(event, handler)
			continue
		}
		b.execute(event, handler)
	}

	return nil
}

func (b *InMemoryEventBus) executeAsync(event shared.Event, handler shared.EventHandler) {
	defer b.wg.Done()

	select {
	case b.workerPool <- struct{}{}:
		defer func() { <-b.workerPool }()
	case <-b.closeCh:
		b.metrics.dropped.Add(1)
		return
	}

	b.execute(event, handler)
}

func (b *InMemoryEventBus) execute(event shared.Event, handler shared.EventHandler) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.metrics.failed.Add(1)
			b.log.Error("event handler panicked",
				logger.EventType(string(event.EventType())),
				logger.Any("panic", r),
			)
		}
	}()

	if err := handler(event); err != nil {
		b.metrics.failed.Add(1)
		b.log.Error("event handler failed",
			logger.EventType(string(event.EventType())),
			logger.Latency(time.Since(start)),
			logger.Err(err),
		)
		return
	}
	b.metrics.handled.Add(1)
}

// Close waits for in-flight handlers and rejects further use.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Metrics returns the bus counters.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// RedisEventBus publishes events on Redis pub/sub, one channel per event
// type, and delivers events from other instances to local handlers.
type RedisEventBus struct {
	cache      *rediscache.Cache
	localBus   *InMemoryEventBus
	instanceID string
	log        *logger.Logger
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	Cache *rediscache.Cache

	// InstanceID identifies this process so it can skip its own messages.
	InstanceID string

	// PublishTimeout bounds a single Redis PUBLISH.
	PublishTimeout time.Duration

	LocalBusConfig InMemoryEventBusConfig
	Logger         *logger.Logger
}

// NewRedisEventBus creates the bus and starts its subscriber.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Cache == nil {
		return nil, errors.New("redis cache is required")
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = time.Second
	}
	if config.LocalBusConfig.Logger == nil {
		config.LocalBusConfig.Logger = config.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &RedisEventBus{
		cache:      config.Cache,
		localBus:   NewInMemoryEventBus(config.LocalBusConfig),
		instanceID: config.InstanceID,
		log:        config.Logger.With(logger.Component("redis-eventbus")),
		timeout:    config.PublishTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}

	pubsub := config.Cache.PSubscribe(ctx, rediscache.PubSubChannel("*"))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("start subscriber: %w", err)
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		defer pubsub.Close()
		bus.subscriptionLoop(pubsub.Channel())
	}()

	return bus, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.localBus.SubscribeAll(handler)
}

// Publish sends an event to Redis and to local handlers.
// A Redis failure is logged; local delivery still happens.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	envelope, err := NewEnvelope(event, b.instanceID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()
	if err := b.cache.Publish(ctx, rediscache.PubSubChannel(string(event.EventType())), data); err != nil {
		b.log.Warn("failed to publish to redis",
			logger.EventType(string(event.EventType())),
			logger.Err(err),
		)
	}

	return b.localBus.Publish(event)
}

func (b *RedisEventBus) subscriptionLoop(messages <-chan *goredis.Message) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.handleMessage([]byte(msg.Payload))
		}
	}
}

func (b *RedisEventBus) handleMessage(payload []byte) {
	var envelope shared.EventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.log.Warn("failed to decode event envelope", logger.Err(err))
		return
	}

	if envelope.Source == b.instanceID {
		return
	}

	if err := b.localBus.Publish(envelopeEvent{env: envelope}); err != nil {
		b.log.Warn("failed to deliver remote event", logger.Err(err))
	}
}

// Close stops the subscriber and drains local handlers.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.localBus.Close()
}

// Metrics returns the local bus counters.
func (b *RedisEventBus) Metrics() *EventBusMetrics {
	return b.localBus.Metrics()
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// NewEnvelope wraps an event for transport.
func NewEnvelope(event shared.Event, source string) (shared.EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return shared.EventEnvelope{}, fmt.Errorf("marshal payload: %w", err)
	}

	envelope := shared.EventEnvelope{
		ID:          uuid.NewString(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Source:      source,
		Payload:     payload,
	}
	if v, ok := event.(shared.Versioned); ok {
		envelope.Version = v.AggregateVersion()
	}
	return envelope, nil
}

// envelopeEvent adapts a received envelope back to shared.Event.
type envelopeEvent struct {
	env shared.EventEnvelope
}

func (e envelopeEvent) EventType() shared.EventType { return e.env.Type }
func (e envelopeEvent) AggregateID() string          { return e.env.AggregateID }
func (e envelopeEvent) OccurredAt() time.Time        { return e.env.Timestamp }
func (e envelopeEvent) AggregateVersion() int64      { return e.env.Version }

func (e envelopeEvent) Payload() map[string]interface{} {
	out := map[string]interface{}{}
	_ = json.Unmarshal(e.env.Payload, &out)
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts bus activity.
type EventBusMetrics struct {
	published atomic.Int64
	handled   atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// EventBusMetricsSnapshot is a point-in-time copy of EventBusMetrics.
type EventBusMetricsSnapshot struct {
	Published int64 `json:"published"`
	Handled   int64 `json:"handled"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Snapshot returns the current counters.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	return EventBusMetricsSnapshot{
		Published: m.published.Load(),
		Handled:   m.handled.Load(),
		Failed:    m.failed.Load(),
		Dropped:   m.dropped.Load(),
	}
}
