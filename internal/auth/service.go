package auth

import (
	"context"
	"strings"
	"time"

	"sitevisor.org/internal/ids"
	"sitevisor.org/internal/model"
)

const defaultSessionTTL = 24 * time.Hour

// UserStore describes the persistence the auth subsystem needs. Both the
// in-memory and Postgres stores implement it.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
}

// Session is the result of a successful sign-in or sign-up.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Principal model.Principal `json:"principal"`
}

// Service owns account registration, credential checks and session token
// issuance. State changes are announced on the event broadcaster.
type Service struct {
	users      UserStore
	events     *Broadcaster
	sessionTTL time.Duration
	now        func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithSessionTTL overrides session token lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service publishing on the given broadcaster.
func NewService(users UserStore, events *Broadcaster, opts ...Option) *Service {
	svc := &Service{
		users:      users,
		events:     events,
		sessionTTL: defaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Events exposes the auth event broadcaster.
func (s *Service) Events() *Broadcaster {
	return s.events
}

// SignUp registers an account. Name falls back to the local part of the
// email and role falls back to client; the backend attaches both to the
// session it returns.
func (s *Service) SignUp(ctx context.Context, email, secret, name string, role model.Role) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, ErrInvalidInput
	}
	if existing, err := s.users.UserByEmail(ctx, email); err == nil && existing != nil {
		return Session{}, ErrEmailTaken
	}
	hash, err := HashSecret(secret)
	if err != nil {
		return Session{}, ErrInvalidInput
	}
	if name = strings.TrimSpace(name); name == "" {
		name = email[:strings.Index(email, "@")]
	}
	if role == "" {
		role = model.RoleClient
	}
	if !role.Valid() {
		return Session{}, ErrInvalidInput
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return Session{}, err
	}
	return s.openSession(*user)
}

// SignIn checks credentials and opens a session. Credential failures all
// map to ErrInvalidCredentials so callers cannot probe for accounts.
func (s *Service) SignIn(ctx context.Context, email, secret string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || secret == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.users.UserByEmail(ctx, email)
	if err != nil || user == nil {
		return Session{}, ErrInvalidCredentials
	}
	if err := VerifySecret(user.PasswordHash, secret); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.openSession(*user)
}

// SignOut announces the end of the principal's session. Tokens are
// stateless, so there is nothing to revoke server-side.
func (s *Service) SignOut(ctx context.Context, principal model.Principal) error {
	if s.events != nil {
		s.events.Publish(Event{Kind: EventSignedOut, Principal: principal, At: s.now().UTC()})
	}
	return nil
}

// Authenticate validates a session token and resolves its principal.
func (s *Service) Authenticate(ctx context.Context, token string) (model.Principal, error) {
	claims, err := ParseAndValidate(token)
	if err != nil {
		return model.Principal{}, ErrInvalidToken
	}
	user, err := s.users.UserByID(ctx, claims.Subject)
	if err != nil || user == nil {
		return model.Principal{}, ErrInvalidToken
	}
	return user.Principal(), nil
}

func (s *Service) openSession(user model.User) (Session, error) {
	token, err := GenerateToken(user.ID, user.Role, s.sessionTTL)
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.sessionTTL),
		Principal: user.Principal(),
	}
	if s.events != nil {
		s.events.Publish(Event{Kind: EventSignedIn, Principal: sess.Principal, At: s.now().UTC()})
	}
	return sess, nil
}
