package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
)

const (
	defaultBufferSize        = 64
	defaultHeartbeatInterval = 30 * time.Second
)

// Conn is one attached consumer of an event stream
type Conn struct {
	id string
	ch chan model.Event
}

// ID returns the consumer identifier
func (c *Conn) ID() string { return c.id }

// Events returns the channel the consumer reads from. The channel is
// closed when the consumer is detached or the broker shuts down.
func (c *Conn) Events() <-chan model.Event { return c.ch }

// Broker fans response events out to every attached consumer. Consumers
// that fall behind have events dropped rather than blocking the
// publishing pipeline.
type Broker struct {
	mu     sync.Mutex
	conns  map[string]*Conn
	closed bool

	bufSize   int
	heartbeat time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

type BrokerOption func(*Broker)

// WithBufferSize sets the per-consumer channel capacity
func WithBufferSize(n int) BrokerOption {
	return func(b *Broker) {
		b.bufSize = n
	}
}

// WithHeartbeat sets the keep-alive interval. Zero disables heartbeats.
func WithHeartbeat(interval time.Duration) BrokerOption {
	return func(b *Broker) {
		b.heartbeat = interval
	}
}

// NewBroker creates a broker and starts its heartbeat loop
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		conns:     make(map[string]*Conn),
		bufSize:   defaultBufferSize,
		heartbeat: defaultHeartbeatInterval,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.heartbeat > 0 {
		go b.heartbeatLoop()
	}

	return b
}

// Attach registers a new consumer and acknowledges the connection as the
// first event on its channel
func (b *Broker) Attach() *Conn {
	conn := &Conn{
		id: uuid.NewString(),
		ch: make(chan model.Event, b.bufSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(conn.ch)
		return conn
	}

	b.conns[conn.id] = conn
	conn.ch <- model.NewConnectedEvent()
	return conn
}

// Detach removes a consumer and closes its channel. Detaching an unknown
// or already-detached consumer is a no-op.
func (b *Broker) Detach(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, ok := b.conns[id]
	if !ok {
		return
	}
	delete(b.conns, id)
	close(conn.ch)
}

// Publish delivers the event to every attached consumer. A consumer with
// a full buffer misses the event.
func (b *Broker) Publish(ev model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, conn := range b.conns {
		select {
		case conn.ch <- ev:
		default:
		}
	}
}

// Clients returns the IDs of the attached consumers
func (b *Broker) Clients() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]string, 0, len(b.conns))
	for id := range b.conns {
		ids = append(ids, id)
	}
	return ids
}

// Close detaches all consumers and stops the heartbeat loop. Safe to call
// more than once.
func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		defer b.mu.Unlock()

		b.closed = true
		for id, conn := range b.conns {
			delete(b.conns, id)
			close(conn.ch)
		}
	})
}

func (b *Broker) heartbeatLoop() {
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Publish(model.NewHeartbeatEvent())
		case <-b.done:
			return
		}
	}
}
