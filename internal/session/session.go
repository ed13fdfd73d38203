// Package session tracks the current authenticated principal for an
// embedded dashboard client. The store is explicitly constructed and
// injectable; there is no package-level singleton, so tests and multiple
// clients can hold isolated instances.
package session

import (
	"context"
	"strings"
	"sync"

	"sitevisor.org/internal/auth"
	"sitevisor.org/internal/model"
	"sitevisor.org/internal/obs"
)

// State describes what Current knows about the principal.
type State int

const (
	// StateLoading holds until the first auth resolution completes.
	StateLoading State = iota
	StateAnonymous
	StateAuthenticated
)

// Authenticator is the backend surface the store forwards credentials to.
type Authenticator interface {
	SignIn(ctx context.Context, email, secret string) (auth.Session, error)
	SignUp(ctx context.Context, email, secret, name string, role model.Role) (auth.Session, error)
	SignOut(ctx context.Context, principal model.Principal) error
}

// Store holds the last known principal. The auth event stream is the sole
// writer: SignIn and SignUp never mutate the principal themselves, and
// SignOut funnels its local clear through OnAuthEvent.
type Store struct {
	authn Authenticator

	mu        sync.RWMutex
	state     State
	principal model.Principal
	token     string
}

// New constructs a store in the loading state.
func New(authn Authenticator) *Store {
	return &Store{authn: authn, state: StateLoading}
}

// Run pumps auth events into the store until the context ends.
func (s *Store) Run(ctx context.Context, events <-chan auth.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.OnAuthEvent(evt)
		}
	}
}

// OnAuthEvent folds one auth event into the store. On sign-in the raw
// session principal is normalized: a missing display name falls back to
// the local part of the email, a missing role falls back to client.
func (s *Store) OnAuthEvent(evt auth.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch evt.Kind {
	case auth.EventSignedIn:
		s.principal = normalize(evt.Principal)
		s.state = StateAuthenticated
	case auth.EventSignedOut:
		s.principal = model.Principal{}
		s.token = ""
		s.state = StateAnonymous
	}
}

// Current returns the last known principal synchronously from memory.
func (s *Store) Current() (model.Principal, State) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal, s.state
}

// Token returns the session token captured by the last SignIn or SignUp.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SignIn forwards credentials to the backend. The principal itself is
// updated by the subsequent auth event, not here.
func (s *Store) SignIn(ctx context.Context, email, secret string) error {
	sess, err := s.authn.SignIn(ctx, email, secret)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.token = sess.Token
	s.mu.Unlock()
	return nil
}

// SignUp forwards registration data including profile metadata the backend
// attaches to the session. Same contract as SignIn.
func (s *Store) SignUp(ctx context.Context, email, secret, name string, role model.Role) error {
	sess, err := s.authn.SignUp(ctx, email, secret, name, role)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.token = sess.Token
	s.mu.Unlock()
	return nil
}

// SignOut requests backend invalidation, then clears the local principal
// unconditionally. A backend failure is non-fatal: whether the local
// session exists is what must change, so the clear happens regardless and
// the error is only logged.
func (s *Store) SignOut(ctx context.Context) error {
	principal, _ := s.Current()
	if err := s.authn.SignOut(ctx, principal); err != nil {
		obs.Error("session: backend sign-out failed", err)
	}
	s.OnAuthEvent(auth.Event{Kind: auth.EventSignedOut})
	return nil
}

func normalize(p model.Principal) model.Principal {
	if p.Name == "" {
		if at := strings.Index(p.Email, "@"); at > 0 {
			p.Name = p.Email[:at]
		}
	}
	if p.Role == "" {
		p.Role = model.RoleClient
	}
	return p
}
