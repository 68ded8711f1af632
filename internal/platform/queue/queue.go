package queue

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/alarm-agent/internal/logger"
	"github.com/oshokin/alarm-agent/internal/platform"
	"github.com/oshokin/alarm-agent/internal/repository/kv"
)

const (
	// StoreKey is where the pending requests are persisted.
	StoreKey = "@platform_pending"
	// DefaultLimit mirrors the iOS cap on pending local notifications.
	DefaultLimit = 64
)

var (
	// ErrQuotaExceeded is returned when the pending limit is reached.
	ErrQuotaExceeded = errors.New("pending notification limit reached")
	// ErrFireTimeInPast is returned for requests that would fire immediately.
	ErrFireTimeInPast = errors.New("fire time is not in the future")
	// errEmptyIdentifier is returned for requests without an identifier.
	errEmptyIdentifier = errors.New("identifier must be provided")
)

// pendingItem is an armed request.
type pendingItem struct {
	// request is what was scheduled.
	request platform.Request
	// timer fires the delivery.
	timer *time.Timer
}

// Queue schedules notifications on in-process timers.
type Queue struct {
	// store persists the pending requests.
	store kv.Store
	// handler receives deliveries.
	handler platform.DeliveryHandler
	// limit is the maximum number of pending requests.
	limit int

	// mu protects the fields below.
	mu sync.Mutex
	// pending holds armed requests by identifier.
	pending map[string]*pendingItem
	// deliveryCtx is passed to the handler; set by Start.
	deliveryCtx context.Context //nolint:containedctx // Deliveries happen outside any caller's context.
}

// Option configures a Queue.
type Option func(*Queue)

// WithLimit overrides the pending limit.
func WithLimit(limit int) Option {
	return func(q *Queue) {
		if limit > 0 {
			q.limit = limit
		}
	}
}

// New creates a queue persisting into store and reporting to handler.
func New(store kv.Store, handler platform.DeliveryHandler, opts ...Option) *Queue {
	q := &Queue{
		store:       store,
		handler:     handler,
		limit:       DefaultLimit,
		pending:     make(map[string]*pendingItem),
		deliveryCtx: context.Background(),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Start restores persisted requests and arms their timers. Requests whose
// fire time passed while the agent was down are dropped. Timers are stopped
// when ctx is done; ctx is also what the delivery handler receives.
func (q *Queue) Start(ctx context.Context) error {
	requests, err := q.restore(ctx)
	if err != nil {
		return err
	}

	now := time.Now()

	q.mu.Lock()

	q.deliveryCtx = ctx

	var dropped int

	for _, request := range requests {
		if !request.FireAt.After(now) {
			dropped++
			continue
		}

		q.armLocked(request)
	}

	persistErr := q.persistLocked(ctx)
	restored := len(q.pending)

	q.mu.Unlock()

	logger.InfoKV(ctx, "Notification queue started", "restored", restored, "dropped", dropped)

	go func() {
		<-ctx.Done()
		q.Stop()
	}()

	return persistErr
}

// Stop disarms every timer. Persisted requests are kept.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.pending {
		item.timer.Stop()
	}
}

// Schedule arms request, replacing any pending request with the same identifier.
func (q *Queue) Schedule(ctx context.Context, request platform.Request) error {
	if request.Identifier == "" {
		return errEmptyIdentifier
	}

	if !request.FireAt.After(time.Now()) {
		return fmt.Errorf("schedule %s at %s: %w", request.Identifier, request.FireAt, ErrFireTimeInPast)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	previous, replacing := q.pending[request.Identifier]
	if !replacing && len(q.pending) >= q.limit {
		return fmt.Errorf("schedule %s: %w", request.Identifier, ErrQuotaExceeded)
	}

	if replacing {
		previous.timer.Stop()
	}

	q.armLocked(request)

	if err := q.persistLocked(ctx); err != nil {
		q.pending[request.Identifier].timer.Stop()

		if replacing {
			q.armLocked(previous.request)
		} else {
			delete(q.pending, request.Identifier)
		}

		return err
	}

	return nil
}

// Cancel disarms the request with identifier. Unknown identifiers are ignored.
func (q *Queue) Cancel(ctx context.Context, identifier string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.pending[identifier]
	if !ok {
		return nil
	}

	item.timer.Stop()
	delete(q.pending, identifier)

	return q.persistLocked(ctx)
}

// Pending returns the armed requests ordered by fire time.
func (q *Queue) Pending() []platform.Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.snapshotLocked()
}

// armLocked starts the timer for request.
func (q *Queue) armLocked(request platform.Request) {
	item := &pendingItem{request: request}
	item.timer = time.AfterFunc(time.Until(request.FireAt), func() {
		q.fire(item)
	})

	q.pending[request.Identifier] = item
}

// fire removes item and reports it to the handler.
func (q *Queue) fire(item *pendingItem) {
	q.mu.Lock()

	current, ok := q.pending[item.request.Identifier]
	if !ok || current != item {
		q.mu.Unlock()
		return
	}

	delete(q.pending, item.request.Identifier)

	ctx := q.deliveryCtx
	if err := q.persistLocked(ctx); err != nil {
		logger.WarnKV(ctx, "Failed to persist notification queue", "error", err)
	}

	q.mu.Unlock()

	if q.handler == nil {
		return
	}

	q.handler(ctx, platform.Delivery{
		Identifier: item.request.Identifier,
		AlarmID:    item.request.AlarmID,
		Title:      item.request.Title,
		Body:       item.request.Body,
		FiredAt:    time.Now(),
	})
}

// snapshotLocked copies the pending requests sorted by fire time, then identifier.
func (q *Queue) snapshotLocked() []platform.Request {
	requests := make([]platform.Request, 0, len(q.pending))
	for _, item := range q.pending {
		requests = append(requests, item.request)
	}

	slices.SortFunc(requests, func(a, b platform.Request) int {
		if c := a.FireAt.Compare(b.FireAt); c != 0 {
			return c
		}

		return cmp.Compare(a.Identifier, b.Identifier)
	})

	return requests
}

// persistLocked writes the pending requests to the store.
func (q *Queue) persistLocked(ctx context.Context) error {
	data, err := yaml.Marshal(q.snapshotLocked())
	if err != nil {
		return fmt.Errorf("encode pending notifications: %w", err)
	}

	if err = q.store.Set(ctx, StoreKey, string(data)); err != nil {
		return fmt.Errorf("persist pending notifications: %w", err)
	}

	return nil
}

// restore reads the persisted requests.
func (q *Queue) restore(ctx context.Context) ([]platform.Request, error) {
	raw, ok, err := q.store.Get(ctx, StoreKey)
	if err != nil {
		return nil, fmt.Errorf("read pending notifications: %w", err)
	}

	if !ok || raw == "" {
		return nil, nil
	}

	var requests []platform.Request
	if err = yaml.Unmarshal([]byte(raw), &requests); err != nil {
		logger.WarnKV(ctx, "Discarding unreadable notification queue", "error", err)
		return nil, nil
	}

	return requests, nil
}
