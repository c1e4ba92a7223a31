package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
)

func TestStreamDeliverAndAck(t *testing.T) {
	//1.- Arrange a stream and subscribe a test client.
	stream := NewStream(Config{Retain: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := stream.Subscribe(ctx, "alpha", 4)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	//2.- Publish three tick events for coverage.
	stream.Publish(1, "macro", simevent.MacroStateUpdated{Tick: 1, BaseRate: 0.05})
	stream.Publish(1, "customer", simevent.CustomerOnboarded{Tick: 1, CustomerID: "cust-0001", Segment: "mass"})
	stream.Publish(1, "engine", simevent.TickCompleted{Tick: 1})

	for expected := uint64(1); expected <= 3; expected++ {
		select {
		case env := <-sub.Events():
			if env.Sequence != expected {
				t.Fatalf("expected sequence %d, got %d", expected, env.Sequence)
			}
			if err := sub.Ack(env.Sequence); err != nil {
				t.Fatalf("ack failed: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", expected)
		}
	}
}

func TestStreamResendsUnackedEventsOnResubscribe(t *testing.T) {
	//1.- Establish the stream and initial subscription.
	stream := NewStream(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := stream.Subscribe(ctx, "bravo", 2)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	//2.- Publish two events and ack only the first.
	stream.Publish(1, "engine", simevent.TickStarted{Tick: 1})
	stream.Publish(2, "engine", simevent.TickStarted{Tick: 2})

	env := <-sub.Events()
	if env.Tick != 1 {
		t.Fatalf("expected first event tick 1, got %d", env.Tick)
	}
	if err := sub.Ack(env.Sequence); err != nil {
		t.Fatalf("ack first failed: %v", err)
	}

	//3.- Drop the second event to simulate packet loss and close the subscription.
	<-sub.Events() // intentionally read without acking
	sub.Close()

	//4.- Re-subscribe and ensure the unacked event is replayed.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	replay, err := stream.Subscribe(ctx2, "bravo", 2)
	if err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}

	select {
	case env := <-replay.Events():
		if env.Tick != 2 {
			t.Fatalf("expected replay of tick 2, got %d", env.Tick)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for replayed event")
	}
}

func TestStreamRejectsOutOfOrderAck(t *testing.T) {
	//1.- Create the stream and publish a pair of events.
	stream := NewStream(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := stream.Subscribe(ctx, "charlie", 2)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	stream.Publish(1, "engine", simevent.TickStarted{Tick: 1})
	stream.Publish(1, "engine", simevent.TickCompleted{Tick: 1})

	first := <-sub.Events()
	second := <-sub.Events()

	//2.- Attempt to ack the second sequence before the first and expect an error.
	if err := sub.Ack(second.Sequence); !errors.Is(err, ErrOutOfOrderAck) {
		t.Fatalf("expected out of order error, got %v", err)
	}

	//3.- Ack in the correct order to ensure recovery remains possible.
	if err := sub.Ack(first.Sequence); err != nil {
		t.Fatalf("ack first failed: %v", err)
	}
	if err := sub.Ack(second.Sequence); err != nil {
		t.Fatalf("ack second failed: %v", err)
	}
}

func TestStreamRetentionPrunesAckedHistory(t *testing.T) {
	//1.- Use a small retention window so pruning is observable within the test.
	stream := NewStream(Config{Retain: 2})
	for i := uint64(1); i <= 5; i++ {
		stream.Publish(i, "engine", simevent.TickStarted{Tick: i})
	}
	if got := len(stream.logOrder); got > 2 {
		t.Fatalf("expected retention to prune unsubscribed history to <=2 entries, got %d", got)
	}
}
