// Package influxdb records authentication activity as time series in
// InfluxDB v2.
//
// Writes are non-blocking and batched by the client library; failures are
// reported asynchronously through SetOnError. When InfluxDB is disabled in
// configuration, Connect returns ErrDisabled and callers simply skip
// metrics.
//
// # Measurements
//
//	auth_events  tags: kind, outcome  fields: count, subject
//
// Subjects are stored as a field rather than a tag to keep series
// cardinality bounded by the number of event kinds.
package influxdb
