package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ngocmanh2004/demo-security/internal/auth"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ttl.
type ticketStore struct {
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
	tickets  map[string]ticketEntry
	mu       sync.Mutex
}

// ticketEntry remembers who a ticket was issued to.
type ticketEntry struct {
	identity  *auth.Identity
	expiresAt time.Time
}

func newTicketStore(ttl time.Duration) *ticketStore {
	return &ticketStore{
		ttl:      ttl,
		now:      time.Now,
		generate: generateTicket,
		tickets:  make(map[string]ticketEntry),
	}
}

// issue creates a ticket bound to id.
func (ts *ticketStore) issue(id *auth.Identity) (string, error) {
	ticket, err := ts.generate()
	if err != nil {
		return "", err
	}

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{
		identity:  id,
		expiresAt: ts.now().Add(ts.ttl),
	}
	ts.mu.Unlock()

	return ticket, nil
}

// consume checks if a ticket is valid and removes it (single-use).
func (ts *ticketStore) consume(ticket string) (ticketEntry, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(ts.tickets, ticket)

	if !ts.now().Before(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// cleanExpired removes expired tickets from the store.
func (ts *ticketStore) cleanExpired() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	removed := 0
	for ticket, entry := range ts.tickets {
		if !now.Before(entry.expiresAt) {
			delete(ts.tickets, ticket)
			removed++
		}
	}
	return removed
}

func (ts *ticketStore) len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tickets)
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() (string, error) {
	b := make([]byte, ticketBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// cleanTicketsLoop runs cleanExpired periodically until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.cleanExpired()
		}
	}
}

// handleEventTicket issues a single-use ticket for the admin event stream.
// Browsers cannot set headers on a WebSocket upgrade, so the client trades
// its bearer token for a short-lived ticket passed as a query parameter.
func (s *Server) handleEventTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	ticket, err := s.tickets.issue(id)
	if err != nil {
		s.logger.Error("issuing event ticket", "error", err)
		writeInternalError(w, "failed to issue ticket")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(s.tickets.ttl.Seconds()),
	})
}
