package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Publish(context.Background(), TopicTurnCompleted, TurnCompleted{})
	if err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestPublishersImplementPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	_, url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicTurnCompleted, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := TurnCompleted{Turn: &model.TurnRecord{ID: "turn-abc", Outcome: model.OutcomeMenu, LevelAfter: model.LevelMainMenu}}
	if err := pub.Publish(context.Background(), TopicTurnCompleted, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got TurnCompleted
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Turn.ID != "turn-abc" || got.Turn.LevelAfter != model.LevelMainMenu {
			t.Errorf("got turn %+v", got.Turn)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	_, url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicTurnCompleted, TurnCompleted{}); err == nil {
		t.Fatal("expected error publishing with a canceled context")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	_, url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	err = pub.Publish(context.Background(), TopicTurnCompleted, TurnCompleted{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		topic   string
		data    string
		check   func(t *testing.T, v any)
		wantErr bool
	}{
		{
			topic: TopicSessionStarted,
			data:  `{"session_id":"s1","organization":"Sigalame"}`,
			check: func(t *testing.T, v any) {
				e, ok := v.(*SessionStarted)
				if !ok || e.SessionID != "s1" || e.Organization != "Sigalame" {
					t.Errorf("got %#v", v)
				}
			},
		},
		{
			topic: TopicCollaboratorFailed,
			data:  `{"feature":"Fee Balance","level":1}`,
			check: func(t *testing.T, v any) {
				e, ok := v.(*CollaboratorFailed)
				if !ok || e.Feature != "Fee Balance" || e.Level != model.LevelMainMenu {
					t.Errorf("got %#v", v)
				}
			},
		},
		{
			topic: TopicCallerUnregistered,
			data:  `{"phone_number":"+254700000000"}`,
			check: func(t *testing.T, v any) {
				if e, ok := v.(*CallerUnregistered); !ok || e.PhoneNumber != "+254700000000" {
					t.Errorf("got %#v", v)
				}
			},
		},
		{topic: "ussd.other", data: `{}`, wantErr: true},
		{topic: TopicTurnCompleted, data: `not json`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			v, err := Decode(Message{Topic: tt.topic, Data: []byte(tt.data)})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			tt.check(t, v)
		})
	}
}
