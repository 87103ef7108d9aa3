package telemetry

import (
	"github.com/ngocmanh2004/demo-security/internal/auth"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/influxdb"
)

// Outcome tag values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PointWriter is the subset of the InfluxDB client used by InfluxSink.
type PointWriter interface {
	WriteAuthEvent(p influxdb.AuthEventPoint)
}

// InfluxSink writes one auth_events point per event. The InfluxDB client
// batches writes itself, so HandleEvent returns immediately.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// HandleEvent implements auth.EventSink.
func (s *InfluxSink) HandleEvent(e auth.Event) {
	outcome := OutcomeSuccess
	if e.Kind.Failed() {
		outcome = OutcomeFailure
	}

	s.w.WriteAuthEvent(influxdb.AuthEventPoint{
		Kind:    string(e.Kind),
		Outcome: outcome,
		Subject: e.Subject,
		Reason:  e.Reason,
		Time:    e.At,
	})
}
