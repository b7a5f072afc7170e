package wizard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Session is the authenticated view the wizard needs: who the user is
// and the bearer token to hand to the generation service.
type Session struct {
	UserID      uint64
	Email       string
	AccessToken string
}

// SessionEvent names an auth-state transition reported by the identity
// provider.
type SessionEvent string

const (
	EventSignedIn  SessionEvent = "signed_in"
	EventSignedOut SessionEvent = "signed_out"
)

// SessionChange is pushed to subscribers whenever the identity
// provider's auth state moves.  Session is nil for EventSignedOut.
type SessionChange struct {
	Event   SessionEvent
	Session *Session
}

// Identity is the identity provider the session client sits on top of.
// CurrentSession returns (nil, nil) when nobody is signed in; the
// provider refreshes expired access tokens transparently.
type Identity interface {
	CurrentSession(ctx context.Context) (*Session, error)
	SubscribeSessionChanges(fn func(SessionChange)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// BalanceQuerier answers the authoritative token balance for the
// signed-in user.
type BalanceQuerier interface {
	TokenBalance(ctx context.Context) (int, error)
}

// hydrateTimeout bounds the background balance fetch that follows a
// sign-in event, which runs outside any caller-supplied context.
const hydrateTimeout = 10 * time.Second

// SessionClient tracks whether a user is signed in and mirrors their
// token balance.  A fresh client reports signed-out with balance zero
// and is usable immediately; Start hydrates real state.  The cached
// balance is a display value only: the server ledger decides every
// actual spend, and the cache reconciles to it on the next refresh.
type SessionClient struct {
	identity Identity
	balances BalanceQuerier
	log      *slog.Logger

	mu            sync.Mutex
	authenticated bool
	session       *Session
	balance       int
	unsub         func()
}

func NewSessionClient(identity Identity, balances BalanceQuerier, log *slog.Logger) *SessionClient {
	if identity == nil || balances == nil {
		panic("nil dependency passed to NewSessionClient")
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionClient{identity: identity, balances: balances, log: log}
}

// Start subscribes to session changes and hydrates the current state
// from the provider.  A failed session query or balance fetch leaves
// the client in its signed-out / stale defaults rather than erroring:
// the wizard keeps working and the auth check at generation time is
// the gate that matters.
func (c *SessionClient) Start(ctx context.Context) {
	unsub := c.identity.SubscribeSessionChanges(c.handleChange)
	c.mu.Lock()
	c.unsub = unsub
	c.mu.Unlock()

	sess, err := c.identity.CurrentSession(ctx)
	if err != nil {
		c.log.Warn("session hydration failed", "error", err)
		return
	}
	c.applySession(sess)
	if sess == nil {
		return
	}
	if _, err := c.RefreshBalance(ctx); err != nil {
		// A failed balance fetch never revokes authentication.
		c.log.Warn("balance hydration failed", "error", err)
	}
}

// Close drops the session-change subscription.  Safe to call more than
// once.
func (c *SessionClient) Close() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Authenticated reports the cached auth state.
func (c *SessionClient) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Session returns a copy of the cached session, or nil when signed out.
func (c *SessionClient) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Balance returns the cached token balance.
func (c *SessionClient) Balance() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance
}

// CurrentSession asks the provider directly and folds the answer into
// the cached state.  The pipeline's auth stage uses this rather than
// the cache so a revoked session is caught before any work happens.
func (c *SessionClient) CurrentSession(ctx context.Context) (*Session, error) {
	sess, err := c.identity.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	c.applySession(sess)
	return sess, nil
}

// RefreshBalance queries the server ledger and replaces the cached
// balance.  On error the cache keeps its previous value.  Concurrent
// refreshes race benignly: the last one to complete wins, and each
// write is a full server-authoritative value, never an increment.
func (c *SessionClient) RefreshBalance(ctx context.Context) (int, error) {
	bal, err := c.balances.TokenBalance(ctx)
	if err != nil {
		return 0, err
	}
	if bal < 0 {
		bal = 0
	}
	c.mu.Lock()
	c.balance = bal
	c.mu.Unlock()
	return bal, nil
}

// CreditLocally bumps the cached balance after a purchase so the UI
// updates without waiting for a server round trip.  Non-positive
// amounts are ignored.
func (c *SessionClient) CreditLocally(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.balance += n
	c.mu.Unlock()
}

// DebitLocally decrements the cached balance by one and reports whether
// it did.  At zero it is a no-op returning false; the cache can never
// go negative.
func (c *SessionClient) DebitLocally() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balance <= 0 {
		return false
	}
	c.balance--
	return true
}

// SignOut tells the provider to end the session.  On success the cached
// state is cleared (the provider's signed-out event clears it too, but
// not every provider delivers events synchronously).  On failure the
// cache is left untouched and the error returned.
func (c *SessionClient) SignOut(ctx context.Context) error {
	if err := c.identity.SignOut(ctx); err != nil {
		return err
	}
	c.applySession(nil)
	return nil
}

func (c *SessionClient) handleChange(ch SessionChange) {
	switch ch.Event {
	case EventSignedIn:
		c.applySession(ch.Session)
		ctx, cancel := context.WithTimeout(context.Background(), hydrateTimeout)
		defer cancel()
		if _, err := c.RefreshBalance(ctx); err != nil {
			c.log.Warn("balance refresh after sign-in failed", "error", err)
		}
	case EventSignedOut:
		c.applySession(nil)
	}
}

// applySession swaps the cached session; a nil session means signed
// out, which also zeroes the balance so no stale figure survives into
// the next account.
func (c *SessionClient) applySession(sess *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess == nil {
		c.authenticated = false
		c.session = nil
		c.balance = 0
		return
	}
	s := *sess
	c.authenticated = true
	c.session = &s
}
