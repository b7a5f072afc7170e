package wizard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type fakeIdentity struct {
	sess       *Session
	sessErr    error
	signOutErr error
	subscriber func(SessionChange)
	unsubbed   bool
	signOuts   int
}

func (f *fakeIdentity) CurrentSession(ctx context.Context) (*Session, error) {
	return f.sess, f.sessErr
}

func (f *fakeIdentity) SubscribeSessionChanges(fn func(SessionChange)) func() {
	f.subscriber = fn
	return func() { f.unsubbed = true }
}

func (f *fakeIdentity) SignOut(ctx context.Context) error {
	f.signOuts++
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.sess = nil
	return nil
}

func (f *fakeIdentity) push(ch SessionChange) { f.subscriber(ch) }

type fakeBalance struct {
	balance int
	err     error
	calls   int
}

func (f *fakeBalance) TokenBalance(ctx context.Context) (int, error) {
	f.calls++
	return f.balance, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionClientDefaults(t *testing.T) {
	c := NewSessionClient(&fakeIdentity{}, &fakeBalance{}, quietLogger())
	if c.Authenticated() {
		t.Fatal("fresh client should be signed out")
	}
	if c.Balance() != 0 {
		t.Fatalf("fresh balance = %d, want 0", c.Balance())
	}
	if c.Session() != nil {
		t.Fatal("fresh client should have no session")
	}
}

func TestSessionClientStartHydrates(t *testing.T) {
	id := &fakeIdentity{sess: &Session{UserID: 7, Email: "a@b.c", AccessToken: "tok"}}
	bal := &fakeBalance{balance: 5}
	c := NewSessionClient(id, bal, quietLogger())

	c.Start(context.Background())

	if !c.Authenticated() {
		t.Fatal("client should be authenticated after hydration")
	}
	if got := c.Balance(); got != 5 {
		t.Fatalf("balance = %d, want 5", got)
	}
	if s := c.Session(); s == nil || s.UserID != 7 || s.AccessToken != "tok" {
		t.Fatalf("session = %+v", s)
	}
}

func TestSessionClientBalanceFailureKeepsAuth(t *testing.T) {
	id := &fakeIdentity{sess: &Session{UserID: 1, AccessToken: "tok"}}
	bal := &fakeBalance{err: errors.New("ledger down")}
	c := NewSessionClient(id, bal, quietLogger())

	c.Start(context.Background())

	if !c.Authenticated() {
		t.Fatal("a failed balance fetch must not revoke authentication")
	}
	if c.Balance() != 0 {
		t.Fatalf("balance = %d, want stale default 0", c.Balance())
	}
}

func TestSessionClientSignedInEvent(t *testing.T) {
	id := &fakeIdentity{}
	bal := &fakeBalance{balance: 3}
	c := NewSessionClient(id, bal, quietLogger())
	c.Start(context.Background())

	id.push(SessionChange{Event: EventSignedIn, Session: &Session{UserID: 2, AccessToken: "t2"}})

	if !c.Authenticated() {
		t.Fatal("signed_in event should authenticate the client")
	}
	if c.Balance() != 3 {
		t.Fatalf("balance = %d, want 3 after event-driven refresh", c.Balance())
	}
}

func TestSessionClientSignedOutEventZeroesState(t *testing.T) {
	id := &fakeIdentity{sess: &Session{UserID: 2, AccessToken: "t"}}
	bal := &fakeBalance{balance: 9}
	c := NewSessionClient(id, bal, quietLogger())
	c.Start(context.Background())

	id.push(SessionChange{Event: EventSignedOut})

	if c.Authenticated() || c.Session() != nil {
		t.Fatal("signed_out event should clear the session")
	}
	if c.Balance() != 0 {
		t.Fatalf("balance = %d, want 0 after sign-out", c.Balance())
	}
}

func TestSessionClientRefreshBalance(t *testing.T) {
	id := &fakeIdentity{sess: &Session{UserID: 1, AccessToken: "t"}}
	bal := &fakeBalance{balance: 4}
	c := NewSessionClient(id, bal, quietLogger())
	c.Start(context.Background())

	bal.balance = 11
	got, err := c.RefreshBalance(context.Background())
	if err != nil || got != 11 {
		t.Fatalf("RefreshBalance = (%d, %v), want (11, nil)", got, err)
	}
	if c.Balance() != 11 {
		t.Fatalf("cached balance = %d, want 11", c.Balance())
	}

	// An error leaves the cache at its previous value.
	bal.err = errors.New("timeout")
	if _, err := c.RefreshBalance(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if c.Balance() != 11 {
		t.Fatalf("cached balance = %d, want unchanged 11", c.Balance())
	}
}

func TestSessionClientLocalAdjustments(t *testing.T) {
	c := NewSessionClient(&fakeIdentity{}, &fakeBalance{}, quietLogger())

	if c.DebitLocally() {
		t.Fatal("debit at zero must refuse")
	}
	if c.Balance() != 0 {
		t.Fatalf("balance = %d, cache may never go negative", c.Balance())
	}

	c.CreditLocally(2)
	c.CreditLocally(0)
	c.CreditLocally(-5)
	if c.Balance() != 2 {
		t.Fatalf("balance = %d, want 2 (non-positive credits ignored)", c.Balance())
	}

	if !c.DebitLocally() {
		t.Fatal("debit with a positive balance should succeed")
	}
	if c.Balance() != 1 {
		t.Fatalf("balance = %d, want 1", c.Balance())
	}
}

func TestSessionClientSignOut(t *testing.T) {
	id := &fakeIdentity{sess: &Session{UserID: 3, AccessToken: "t"}}
	bal := &fakeBalance{balance: 6}
	c := NewSessionClient(id, bal, quietLogger())
	c.Start(context.Background())

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if c.Authenticated() || c.Balance() != 0 {
		t.Fatal("SignOut should clear auth and zero the balance")
	}
	if id.signOuts != 1 {
		t.Fatalf("provider sign-outs = %d, want 1", id.signOuts)
	}
}

func TestSessionClientSignOutFailureKeepsState(t *testing.T) {
	id := &fakeIdentity{sess: &Session{UserID: 3, AccessToken: "t"}, signOutErr: errors.New("network down")}
	bal := &fakeBalance{balance: 6}
	c := NewSessionClient(id, bal, quietLogger())
	c.Start(context.Background())

	if err := c.SignOut(context.Background()); err == nil {
		t.Fatal("expected sign-out error")
	}
	if !c.Authenticated() || c.Balance() != 6 {
		t.Fatal("a failed sign-out must leave the cached state untouched")
	}
}

func TestSessionClientClose(t *testing.T) {
	id := &fakeIdentity{}
	c := NewSessionClient(id, &fakeBalance{}, quietLogger())
	c.Start(context.Background())

	c.Close()
	c.Close() // idempotent
	if !id.unsubbed {
		t.Fatal("Close should unsubscribe from session changes")
	}
}
