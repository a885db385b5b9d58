package stream_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/stream"
)

func drain(conn *stream.Conn, n int) []model.Event {
	events := make([]model.Event, 0, n)
	timeout := time.After(time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

func TestAttachReceivesConnectedAck(t *testing.T) {
	broker := stream.NewBroker(stream.WithHeartbeat(0))
	defer broker.Close()

	conn := broker.Attach()
	events := drain(conn, 1)
	gt.A(t, events).Length(1)
	gt.V(t, events[0].Type).Equal(model.EventConnected)
}

func TestFanOutIdenticalSequence(t *testing.T) {
	broker := stream.NewBroker(stream.WithHeartbeat(0))
	defer broker.Close()

	a := broker.Attach()
	b := broker.Attach()

	broker.Publish(model.NewTokenEvent("turn-1", "Hello"))
	broker.Publish(model.NewTokenEvent("turn-1", " world"))
	broker.Publish(model.NewCompleteEvent("turn-1", "Hello world", 12, 3))

	for _, conn := range []*stream.Conn{a, b} {
		events := drain(conn, 4)
		gt.A(t, events).Length(4)
		gt.V(t, events[0].Type).Equal(model.EventConnected)
		gt.V(t, events[1].Text).Equal("Hello")
		gt.V(t, events[2].Text).Equal(" world")
		gt.V(t, events[3].Type).Equal(model.EventComplete)
	}
}

func TestDetachMidStream(t *testing.T) {
	broker := stream.NewBroker(stream.WithHeartbeat(0))
	defer broker.Close()

	stays := broker.Attach()
	leaves := broker.Attach()
	gt.A(t, broker.Clients()).Length(2)

	broker.Publish(model.NewTokenEvent("turn-1", "one"))
	broker.Detach(leaves.ID())
	broker.Publish(model.NewTokenEvent("turn-1", "two"))

	gt.A(t, broker.Clients()).Length(1)

	// The detached consumer's channel is closed after its buffered events
	got := drain(leaves, 10)
	gt.A(t, got).Length(2)

	// The remaining consumer sees the full sequence
	got = drain(stays, 3)
	gt.A(t, got).Length(3)
	gt.V(t, got[2].Text).Equal("two")

	// Double detach is harmless
	broker.Detach(leaves.ID())
}

func TestSlowConsumerDropsEvents(t *testing.T) {
	broker := stream.NewBroker(stream.WithHeartbeat(0), stream.WithBufferSize(2))
	defer broker.Close()

	conn := broker.Attach() // buffer holds the ack plus one more event

	for i := 0; i < 10; i++ {
		broker.Publish(model.NewTokenEvent("turn-1", "x"))
	}

	events := drain(conn, 2)
	gt.A(t, events).Length(2)

	// Publishing never blocked; later events were dropped for this consumer
	select {
	case _, ok := <-conn.Events():
		gt.False(t, ok)
	default:
	}
}

func TestHeartbeat(t *testing.T) {
	broker := stream.NewBroker(stream.WithHeartbeat(10 * time.Millisecond))
	defer broker.Close()

	conn := broker.Attach()
	events := drain(conn, 2)
	gt.A(t, events).Length(2)
	gt.V(t, events[1].Type).Equal(model.EventHeartbeat)
}

func TestCloseDetachesAll(t *testing.T) {
	broker := stream.NewBroker(stream.WithHeartbeat(0))
	conn := broker.Attach()

	broker.Close()
	broker.Close() // idempotent

	gt.A(t, broker.Clients()).Length(0)

	// Channel is closed once buffered events are drained
	events := drain(conn, 10)
	gt.A(t, events).Length(1)

	// Publishing after close is a no-op
	broker.Publish(model.NewTokenEvent("turn-1", "late"))

	// Attaching after close yields a closed connection
	late := broker.Attach()
	_, ok := <-late.Events()
	gt.False(t, ok)
}
