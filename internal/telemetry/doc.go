// Package telemetry forwards auth lifecycle events to the optional
// observability backends: an MQTT topic per event kind, and an InfluxDB
// auth_events measurement.
//
// Both sinks implement auth.EventSink and never block the caller.
package telemetry
