package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngocmanh2004/demo-security/internal/auth"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/influxdb"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/mqtt"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	topic string
	msg   eventMessage
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) PublishJSON(topic string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, _ := v.(eventMessage)
	p.msgs = append(p.msgs, published{topic: topic, msg: msg})
	return p.err
}

func (p *fakePublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

func TestMQTTSink_PublishesPerKindTopic(t *testing.T) {
	pub := &fakePublisher{}
	topics := mqtt.NewTopics("demosec")
	sink := NewMQTTSink(pub, topics.AuthEvent, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink.HandleEvent(auth.Event{Kind: auth.EventLoginSucceeded, Subject: "admin", UserID: "usr-1", At: at})
	sink.HandleEvent(auth.Event{Kind: auth.EventRenewalRejected, Reason: "expired", At: at})

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)

	msgs := pub.snapshot()
	assert.Equal(t, "demosec/auth/events/login_succeeded", msgs[0].topic)
	assert.Equal(t, "admin", msgs[0].msg.Subject)
	assert.Equal(t, "usr-1", msgs[0].msg.UserID)
	assert.True(t, msgs[0].msg.Timestamp.Equal(at))

	assert.Equal(t, "demosec/auth/events/renewal_rejected", msgs[1].topic)
	assert.Equal(t, "expired", msgs[1].msg.Reason)
}

func TestMQTTSink_PublishErrorDoesNotStop(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	sink := NewMQTTSink(pub, mqtt.NewTopics("").AuthEvent, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	sink.HandleEvent(auth.Event{Kind: auth.EventLoggedOut})
	sink.HandleEvent(auth.Event{Kind: auth.EventLoggedOut})

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestMQTTSink_DropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, mqtt.NewTopics("").AuthEvent, quietLogger())

	// No Run goroutine: the queue fills and further events are dropped
	// without blocking.
	done := make(chan struct{})
	go func() {
		for range mqttChanSize + 5 {
			sink.HandleEvent(auth.Event{Kind: auth.EventRenewed})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleEvent blocked on a full queue")
	}
	assert.Len(t, sink.ch, mqttChanSize)
}

type fakeWriter struct {
	points []influxdb.AuthEventPoint
}

func (w *fakeWriter) WriteAuthEvent(p influxdb.AuthEventPoint) {
	w.points = append(w.points, p)
}

func TestInfluxSink_Outcome(t *testing.T) {
	w := &fakeWriter{}
	sink := NewInfluxSink(w)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		kind    auth.EventKind
		outcome string
	}{
		{auth.EventLoginSucceeded, OutcomeSuccess},
		{auth.EventLoginFailed, OutcomeFailure},
		{auth.EventRenewed, OutcomeSuccess},
		{auth.EventRenewalRejected, OutcomeFailure},
		{auth.EventLoggedOut, OutcomeSuccess},
	}
	for _, tt := range tests {
		sink.HandleEvent(auth.Event{Kind: tt.kind, Subject: "user1", Reason: "r", At: at})
	}

	require.Len(t, w.points, len(tests))
	for i, tt := range tests {
		p := w.points[i]
		assert.Equal(t, string(tt.kind), p.Kind)
		assert.Equal(t, tt.outcome, p.Outcome, "kind %s", tt.kind)
		assert.Equal(t, "user1", p.Subject)
		assert.True(t, p.Time.Equal(at))
	}
}

func TestSinksComposeWithMultiSink(t *testing.T) {
	w := &fakeWriter{}
	pub := &fakePublisher{}
	mq := NewMQTTSink(pub, mqtt.NewTopics("x").AuthEvent, quietLogger())

	var sink auth.EventSink = auth.MultiSink{NewInfluxSink(w), mq, nil}
	sink.HandleEvent(auth.Event{Kind: auth.EventRegistered, Subject: "carol"})

	assert.Len(t, w.points, 1)
	assert.Len(t, mq.ch, 1)
}
