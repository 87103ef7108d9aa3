package audit

import (
	"context"
	"log/slog"

	"github.com/ngocmanh2004/demo-security/internal/auth"
)

// SourceAuth marks entries recorded from credential lifecycle events.
const SourceAuth = "auth"

// recorderChanSize is the buffer size for the async audit channel.
// Entries beyond this are dropped (best-effort) to avoid back-pressure on requests.
const recorderChanSize = 256

// Recorder turns auth events into audit log rows. HandleEvent only
// enqueues; Run performs the writes serially, which suits SQLite's single
// writer.
type Recorder struct {
	repo   Repository
	ch     chan *AuditLog
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to repo. Call Run to start
// draining.
func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		repo:   repo,
		ch:     make(chan *AuditLog, recorderChanSize),
		logger: logger,
	}
}

// HandleEvent implements auth.EventSink. It never blocks: if the buffer is
// full the entry is dropped and a warning is logged.
func (r *Recorder) HandleEvent(e auth.Event) {
	entry := &AuditLog{
		Action:    string(e.Kind),
		Subject:   e.Subject,
		UserID:    e.UserID,
		Source:    SourceAuth,
		CreatedAt: e.At,
	}
	if e.Reason != "" {
		entry.Details = map[string]any{"reason": e.Reason}
	}

	select {
	case r.ch <- entry:
	default:
		r.logger.Warn("audit channel full, dropping entry", "action", entry.Action)
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *AuditLog) {
	// Writes outlive the request and the shutdown signal.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"error", err,
		)
	}
}
