package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/ngocmanh2004/demo-security/internal/auth"
)

// mqttChanSize bounds events waiting for the broker.
const mqttChanSize = 128

// Publisher is the subset of the MQTT client used by MQTTSink.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// TopicFunc maps an event kind to its topic.
type TopicFunc func(kind string) string

// eventMessage is the JSON payload published for each event.
type eventMessage struct {
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTSink publishes every event to <prefix>/auth/events/<kind>.
// Publishing waits for the broker, so it happens on the Run goroutine.
type MQTTSink struct {
	pub    Publisher
	topic  TopicFunc
	ch     chan auth.Event
	logger *slog.Logger
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub Publisher, topic TopicFunc, logger *slog.Logger) *MQTTSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTSink{
		pub:    pub,
		topic:  topic,
		ch:     make(chan auth.Event, mqttChanSize),
		logger: logger,
	}
}

// HandleEvent implements auth.EventSink.
func (s *MQTTSink) HandleEvent(e auth.Event) {
	select {
	case s.ch <- e:
	default:
		s.logger.Warn("mqtt event queue full, dropping event", "event", string(e.Kind))
	}
}

// Run publishes queued events until ctx is cancelled. Events still queued
// at cancellation are discarded: the broker may be the reason for
// shutting down.
func (s *MQTTSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.ch:
			s.publish(e)
		}
	}
}

func (s *MQTTSink) publish(e auth.Event) {
	msg := eventMessage{
		Kind:      string(e.Kind),
		Subject:   e.Subject,
		UserID:    e.UserID,
		Reason:    e.Reason,
		Timestamp: e.At,
	}
	if err := s.pub.PublishJSON(s.topic(string(e.Kind)), msg); err != nil {
		s.logger.Debug("publishing auth event failed", "event", msg.Kind, "error", err)
	}
}
