package events

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

// startTestNATS starts an embedded NATS server and returns it with its
// client URL.
func startTestNATS(t *testing.T) (*natsserver.Server, string) {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv, srv.ClientURL()
}

func newTestPair(t *testing.T, url string) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return pub, sub
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestNATS_PublishDecodeRoundTrip(t *testing.T) {
	_, url := startTestNATS(t)
	pub, sub := newTestPair(t, url)

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	turn := &model.TurnRecord{ID: "turn-1", SessionID: "s1", Input: "4*2", LevelBefore: model.LevelFeeStructureMenu, Outcome: model.OutcomeDetail, Terminal: true}
	if err := pub.Publish(context.Background(), TopicTurnCompleted, TurnCompleted{Turn: turn}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg := receive(t, ch)
	if msg.Topic != TopicTurnCompleted {
		t.Errorf("topic = %q, want %q", msg.Topic, TopicTurnCompleted)
	}
	evt, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tc, ok := evt.(*TurnCompleted)
	if !ok {
		t.Fatalf("Decode returned %T, want *TurnCompleted", evt)
	}
	if tc.Turn.ID != "turn-1" || tc.Turn.LevelBefore != model.LevelFeeStructureMenu || !tc.Turn.Terminal {
		t.Errorf("turn = %+v", tc.Turn)
	}
}

func TestNATSSubscriber_TopicFilter(t *testing.T) {
	_, url := startTestNATS(t)
	pub, sub := newTestPair(t, url)

	ch, cancel, err := sub.Subscribe("ussd.caller.*")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	ctx := context.Background()
	_ = pub.Publish(ctx, TopicTurnCompleted, TurnCompleted{})
	_ = pub.Publish(ctx, TopicSessionStarted, SessionStarted{SessionID: "s1"})
	_ = pub.Publish(ctx, TopicCallerUnregistered, CallerUnregistered{SessionID: "s2", PhoneNumber: "+254700000000"})

	msg := receive(t, ch)
	if msg.Topic != TopicCallerUnregistered {
		t.Fatalf("topic = %q, want only %q", msg.Topic, TopicCallerUnregistered)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected message on %q", extra.Topic)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNATSSubscriber_Cancel(t *testing.T) {
	_, url := startTestNATS(t)
	pub, sub := newTestPair(t, url)

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	// Cancel while messages are in flight; a second cancel is a no-op.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			_ = pub.Publish(context.Background(), TopicTurnCompleted, TurnCompleted{})
		}
	}()
	cancel()
	cancel()
	<-done

	for range ch {
	}
}

func TestNATSPublisher_Ping(t *testing.T) {
	srv, url := startTestNATS(t)
	pub, _ := newTestPair(t, url)

	if err := pub.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	srv.Shutdown()
	deadline := time.Now().Add(2 * time.Second)
	for pub.Ping(context.Background()) == nil {
		if time.Now().After(deadline) {
			t.Fatal("Ping still ok after server shutdown")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
