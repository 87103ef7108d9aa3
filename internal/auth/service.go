package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// PrincipalStore is the read/write view of user accounts the service needs.
type PrincipalStore interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	List(ctx context.Context) ([]User, error)
}

// RenewalTokenStore keeps at most one live renewal token per principal.
type RenewalTokenStore interface {
	Put(ctx context.Context, userID string, createdAt, expiresAt time.Time) (string, error)
	Get(ctx context.Context, raw string) (*RenewalToken, error)
	Delete(ctx context.Context, raw string) error
	DeleteAllFor(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service drives the credential lifecycle: login, request authentication,
// renewal and logout. It keeps no per-session state of its own.
type Service struct {
	users      PrincipalStore
	renewals   RenewalTokenStore
	codec      *TokenCodec
	renewalTTL time.Duration

	now    func() time.Time
	sink   EventSink
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for every TTL decision.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEventSink routes lifecycle events to sink.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates the lifecycle manager.
func NewService(users PrincipalStore, renewals RenewalTokenStore, codec *TokenCodec, renewalTTL time.Duration, opts ...Option) (*Service, error) {
	if users == nil || renewals == nil || codec == nil {
		return nil, fmt.Errorf("%w: user store, renewal store and codec are required", ErrInvalidInput)
	}
	if renewalTTL <= 0 {
		return nil, fmt.Errorf("%w: renewal token ttl must be positive", ErrInvalidInput)
	}

	s := &Service{
		users:      users,
		renewals:   renewals,
		codec:      codec,
		renewalTTL: renewalTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login verifies username and password and issues a new session. Any
// renewal token the principal held before is superseded.
//
// Unknown users, wrong passwords and disabled accounts all return
// ErrInvalidCredentials; a disabled account additionally wraps
// ErrUserInactive for logging.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			burnPasswordCheck(password)
			s.emit(Event{Kind: EventLoginFailed, Subject: username, Reason: "unknown user"})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", "username", username, "error", err)
	}
	if !ok {
		s.emit(Event{Kind: EventLoginFailed, Subject: username, UserID: user.ID, Reason: "bad password"})
		return nil, ErrInvalidCredentials
	}

	if !user.Enabled {
		s.emit(Event{Kind: EventLoginFailed, Subject: username, UserID: user.ID, Reason: "account disabled"})
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrUserInactive)
	}

	if NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	now := s.now()
	expiresAt := now.Add(s.renewalTTL).UTC().Truncate(time.Second)
	raw, err := s.renewals.Put(ctx, user.ID, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("storing renewal token: %w", err)
	}

	session, err := s.newSession(user, raw, expiresAt, now)
	if err != nil {
		return nil, err
	}

	s.emit(Event{Kind: EventLoginSucceeded, Subject: user.Username, UserID: user.ID})
	return session, nil
}

func (s *Service) rehash(ctx context.Context, user *User, password string) {
	hash, err := HashPassword(password)
	if err != nil {
		s.logger.Warn("rehashing password failed", "username", user.Username, "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.logger.Warn("storing rehashed password failed", "username", user.Username, "error", err)
	}
}

// Authenticate verifies an access token and returns the identity it
// carries. It never touches storage.
func (s *Service) Authenticate(token string) (*Identity, error) {
	claims, err := s.codec.Verify(token, s.now())
	if err != nil {
		return nil, err
	}

	id := &Identity{
		Subject: claims.Subject,
		Roles:   claims.Roles,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Renew exchanges a renewal token for a fresh access token. The renewal
// token itself is returned unchanged with its original expiry. Roles are
// re-read so the new access token reflects current grants.
//
// Errors:
//   - ErrRenewalNotFound: token unknown (never issued, logged out or superseded)
//   - ErrRenewalExpired: token past its expiry; the record is removed
//   - ErrUserNotFound / ErrUserInactive: principal gone or disabled; the record is removed
func (s *Service) Renew(ctx context.Context, raw string) (*Session, error) {
	now := s.now()

	rec, err := s.renewals.Get(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrRenewalNotFound) {
			s.emit(Event{Kind: EventRenewalRejected, Reason: "unknown token"})
			return nil, ErrRenewalNotFound
		}
		return nil, fmt.Errorf("looking up renewal token: %w", err)
	}

	if rec.IsExpired(now) {
		s.revoke(ctx, raw)
		s.emit(Event{Kind: EventRenewalRejected, UserID: rec.UserID, Reason: "expired"})
		return nil, ErrRenewalExpired
	}

	user, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.revoke(ctx, raw)
			s.emit(Event{Kind: EventRenewalRejected, UserID: rec.UserID, Reason: "principal removed"})
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !user.Enabled {
		s.revoke(ctx, raw)
		s.emit(Event{Kind: EventRenewalRejected, Subject: user.Username, UserID: user.ID, Reason: "account disabled"})
		return nil, ErrUserInactive
	}

	session, err := s.newSession(user, raw, rec.ExpiresAt, now)
	if err != nil {
		return nil, err
	}

	s.emit(Event{Kind: EventRenewed, Subject: user.Username, UserID: user.ID})
	return session, nil
}

func (s *Service) revoke(ctx context.Context, raw string) {
	if err := s.renewals.Delete(ctx, raw); err != nil {
		s.logger.Warn("deleting rejected renewal token failed", "error", err)
	}
}

// Logout revokes the renewal token. Unknown tokens succeed silently.
func (s *Service) Logout(ctx context.Context, raw string) error {
	rec, err := s.renewals.Get(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrRenewalNotFound) {
			return nil
		}
		return fmt.Errorf("looking up renewal token: %w", err)
	}

	if err := s.renewals.Delete(ctx, raw); err != nil {
		return fmt.Errorf("deleting renewal token: %w", err)
	}

	ev := Event{Kind: EventLoggedOut, UserID: rec.UserID}
	if user, err := s.users.GetByID(ctx, rec.UserID); err == nil {
		ev.Subject = user.Username
	}
	s.emit(ev)
	return nil
}

// LogoutEverywhere revokes every renewal token held by username. Access
// tokens already issued stay valid until they expire.
func (s *Service) LogoutEverywhere(ctx context.Context, username string) error {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if err := s.renewals.DeleteAllFor(ctx, user.ID); err != nil {
		return fmt.Errorf("revoking sessions: %w", err)
	}

	s.emit(Event{Kind: EventSessionsRevoked, Subject: user.Username, UserID: user.ID, Reason: "logout everywhere"})
	return nil
}

// SetEnabled enables or disables an account. Disabling also revokes its
// renewal token so no further access tokens can be minted.
func (s *Service) SetEnabled(ctx context.Context, username string, enabled bool) (*User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetEnabled(ctx, user.ID, enabled); err != nil {
		return nil, fmt.Errorf("updating account: %w", err)
	}
	user.Enabled = enabled

	if !enabled {
		if err := s.renewals.DeleteAllFor(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("revoking sessions: %w", err)
		}
		s.emit(Event{Kind: EventSessionsRevoked, Subject: user.Username, UserID: user.ID, Reason: "account disabled"})
	}
	return user, nil
}

// Register creates an enabled account holding RoleUser.
//
// Errors:
//   - ErrInvalidInput: bad username, email or too-short password
//   - ErrPasswordMismatch: confirmation differs
//   - ErrUsernameExists / ErrEmailExists: already taken
func (s *Service) Register(ctx context.Context, reg Registration) (*User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	reg.FullName = strings.TrimSpace(reg.FullName)

	if err := validateRegistration(reg); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, reg.Username); err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if _, err := s.users.GetByEmail(ctx, reg.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     reg.Username,
		FullName:     reg.FullName,
		Email:        reg.Email,
		PasswordHash: hash,
		Enabled:      true,
		Roles:        []Role{RoleUser},
	}
	// The unique constraints still decide a race between two sign-ups.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.emit(Event{Kind: EventRegistered, Subject: user.Username, UserID: user.ID})
	return user, nil
}

func validateRegistration(reg Registration) error {
	if !IsValidUsername(reg.Username) {
		return fmt.Errorf("%w: username must be 1-64 characters of letters, digits, '.', '_' or '-'", ErrInvalidInput)
	}
	if reg.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(reg.Email); err != nil || addr.Address != reg.Email {
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	}
	if len(reg.Password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if reg.Password != reg.ConfirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// User returns the account for username.
func (s *Service) User(ctx context.Context, username string) (*User, error) {
	return s.users.GetByUsername(ctx, username)
}

// Users lists every account.
func (s *Service) Users(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

// SweepExpired removes renewal tokens that expired before now.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.renewals.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired renewal tokens removed", "count", n)
	}
	return n, nil
}

// RunSweeper calls SweepExpired every interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("renewal token sweep failed", "error", err)
			}
		}
	}
}

func (s *Service) newSession(user *User, raw string, renewalExpiresAt, now time.Time) (*Session, error) {
	token, claims, err := s.codec.Issue(user.Username, user.Roles, now)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}

	return &Session{
		AccessToken:      token,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		AccessTTL:        s.codec.TTL(),
		RenewalToken:     raw,
		RenewalExpiresAt: renewalExpiresAt,
		RenewalTTL:       s.renewalTTL,
		Username:         user.Username,
		Roles:            append([]Role(nil), user.Roles...),
	}, nil
}

func (s *Service) emit(e Event) {
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}

	attrs := []any{"event", string(e.Kind)}
	if e.Subject != "" {
		attrs = append(attrs, "subject", e.Subject)
	}
	if e.Reason != "" {
		attrs = append(attrs, "reason", e.Reason)
	}
	if e.Kind.Failed() {
		s.logger.Warn("auth event", attrs...)
	} else {
		s.logger.Info("auth event", attrs...)
	}

	if s.sink != nil {
		s.sink.HandleEvent(e)
	}
}
