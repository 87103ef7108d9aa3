package audit

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
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder_WritesEvents(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	rec := NewRecorder(repo, quietLogger())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	rec.HandleEvent(auth.Event{Kind: auth.EventLoginSucceeded, Subject: "admin", UserID: "usr-1", At: at})
	rec.HandleEvent(auth.Event{Kind: auth.EventLoginFailed, Subject: "admin", Reason: "bad password", At: at.Add(time.Second)})

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	result, err := repo.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)

	failed := result.Logs[0]
	assert.Equal(t, "login_failed", failed.Action)
	assert.Equal(t, SourceAuth, failed.Source)
	assert.Equal(t, "bad password", failed.Details["reason"])

	ok := result.Logs[1]
	assert.Equal(t, "login_succeeded", ok.Action)
	assert.Equal(t, "usr-1", ok.UserID)
	assert.Nil(t, ok.Details)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	repo := &countingRepo{}
	rec := NewRecorder(repo, quietLogger())

	// Nothing drains yet, so everything past the buffer is dropped.
	for range recorderChanSize + 10 {
		rec.HandleEvent(auth.Event{Kind: auth.EventRenewed})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	assert.Equal(t, recorderChanSize, repo.created())
}

func TestRecorder_WriteErrorIsLogged(t *testing.T) {
	repo := &countingRepo{err: errors.New("disk full")}
	rec := NewRecorder(repo, quietLogger())

	rec.HandleEvent(auth.Event{Kind: auth.EventLoggedOut})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	assert.Equal(t, 1, repo.created())
}

type countingRepo struct {
	mu  sync.Mutex
	n   int
	err error
}

func (r *countingRepo) Create(context.Context, *AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return r.err
}

func (r *countingRepo) List(context.Context, Filter) (*ListResult, error) {
	return &ListResult{}, nil
}

func (r *countingRepo) created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
