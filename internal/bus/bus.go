// Package bus provides in-process pub/sub of job and workflow progress
// events, fanned out to subscribers keyed by tenant.
//
// Delivery is best-effort and lossy under back-pressure: each subscriber has
// a bounded mailbox, and a publish that would overflow discards the oldest
// undelivered event for that subscriber instead of blocking or tearing the
// subscriber down. Events to a single subscriber are delivered in publish
// order; no global order across subscribers is promised.
package bus

import (
	"sync"
	"time"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/metrics"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

// Kind discriminates event payloads on the wire.
type Kind string

const (
	KindJobProgress      Kind = "job_progress"
	KindJobStatus        Kind = "job_status"
	KindWorkflowProgress Kind = "workflow_progress"
	KindWorkflowStatus   Kind = "workflow_status"
)

// Event is a self-delimited progress notification. TenantID routes the
// event to subscribers and is not part of the wire envelope.
type Event struct {
	Kind       Kind   `json:"type"`
	TenantID   string `json:"-"`
	WorkflowID string `json:"workflow_id"`
	JobID      string `json:"job_id,omitempty"`

	Status         workflow.Status `json:"status,omitempty"`
	Progress       *float64        `json:"progress,omitempty"`
	TilesProcessed *int            `json:"tiles_processed,omitempty"`
	TilesTotal     *int            `json:"tiles_total,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Bus fans events out to per-tenant subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
	mailboxSize int
	logger      *logger.Logger
}

// New creates a Bus whose subscribers buffer up to mailboxSize events.
func New(mailboxSize int, log *logger.Logger) *Bus {
	if mailboxSize < 1 {
		mailboxSize = 1
	}
	return &Bus{
		subscribers: make(map[string]map[*Subscription]struct{}),
		mailboxSize: mailboxSize,
		logger:      log,
	}
}

// Subscribe attaches a new subscriber for a tenant's events. The caller owns
// the subscription and must Close it when done; dropping the stream without
// draining never blocks publishers.
func (b *Bus) Subscribe(tenantID string) *Subscription {
	s := &Subscription{
		bus:      b,
		tenantID: tenantID,
		ch:       make(chan Event, b.mailboxSize),
	}

	b.mu.Lock()
	set, ok := b.subscribers[tenantID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subscribers[tenantID] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()

	metrics.Subscribers.Inc()
	return s
}

// Publish delivers an event to every live subscriber of its tenant.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Kind)).Inc()

	b.mu.RLock()
	set := b.subscribers[ev.TenantID]
	subs := make([]*Subscription, 0, len(set))
	for s := range set {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.deliver(ev)
	}
}

// SubscriberCount returns the number of attached subscribers for a tenant.
func (b *Bus) SubscriberCount(tenantID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[tenantID])
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	if set, ok := b.subscribers[s.tenantID]; ok {
		if _, present := set[s]; present {
			delete(set, s)
			metrics.Subscribers.Dec()
		}
		if len(set) == 0 {
			delete(b.subscribers, s.tenantID)
		}
	}
	b.mu.Unlock()
}

// Subscription is one subscriber's bounded event mailbox.
type Subscription struct {
	bus      *Bus
	tenantID string
	ch       chan Event

	mu     sync.Mutex
	closed bool
}

// C returns the receive channel. The channel is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// TenantID returns the tenant this subscription is keyed on.
func (s *Subscription) TenantID() string {
	return s.tenantID
}

// Close detaches the subscription from the bus and closes the channel.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.bus.remove(s)
	close(s.ch)
	s.mu.Unlock()
}

// deliver enqueues the event, evicting the oldest buffered event when the
// mailbox is full. The subscriber is not torn down on overflow.
func (s *Subscription) deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
			metrics.EventsDropped.WithLabelValues(string(ev.Kind)).Inc()
			s.bus.logger.Debug("subscriber mailbox full, dropping oldest event",
				"tenant_id", s.tenantID,
				"kind", ev.Kind,
			)
		default:
		}
	}
}
