package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAuthEvents is the measurement holding one point per auth event.
const MeasurementAuthEvents = "auth_events"

// AuthEventPoint describes one authentication event for the time series.
type AuthEventPoint struct {
	Kind    string // e.g. login_succeeded, renewal_rejected
	Outcome string // success or failure
	Subject string // may be empty for anonymous failures
	Reason  string // failure kind, empty on success
	Time    time.Time
}

// WriteAuthEvent queues an auth_events point. Non-blocking; a disconnected
// client drops the point.
func (c *Client) WriteAuthEvent(p AuthEventPoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newAuthEventPoint(p))
}

func newAuthEventPoint(p AuthEventPoint) *write.Point {
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := map[string]any{"count": 1}
	if p.Subject != "" {
		fields["subject"] = p.Subject
	}
	if p.Reason != "" {
		fields["reason"] = p.Reason
	}

	return write.NewPoint(
		MeasurementAuthEvents,
		map[string]string{
			"kind":    p.Kind,
			"outcome": p.Outcome,
		},
		fields,
		ts,
	)
}

// WritePointWithTime writes a custom point at the given timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
