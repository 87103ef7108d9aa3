// Package audit records credential lifecycle events in the audit_logs
// table and serves them back, newest first, to administrators.
package audit
