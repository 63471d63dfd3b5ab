package service

import (
	"context"

	"github.com/saccosphere/memberclient/internal/domain/session"
)

// DefaultLoginPath is where unauthenticated members are sent.
const DefaultLoginPath = "/login"

// GuardAction is what a protected page should do for a snapshot.
type GuardAction int

const (
	// GuardWait blocks rendering until bootstrap has decided.
	GuardWait GuardAction = iota
	// GuardAdmit renders the protected content.
	GuardAdmit
	// GuardRedirect sends the member to the login entry point.
	GuardRedirect
)

// String returns the action name.
func (a GuardAction) String() string {
	switch a {
	case GuardWait:
		return "wait"
	case GuardAdmit:
		return "admit"
	case GuardRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// GuardDecision is the outcome for one snapshot.
type GuardDecision struct {
	Action GuardAction
	// RedirectTo is set when Action is GuardRedirect.
	RedirectTo string
	// Identity is set when Action is GuardAdmit.
	Identity *session.Identity
}

// RouteGuard admits or redirects based on the session store.
type RouteGuard struct {
	store     *session.Store
	loginPath string
}

// NewRouteGuard creates a guard redirecting to loginPath (default /login).
func NewRouteGuard(store *session.Store, loginPath string) *RouteGuard {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return &RouteGuard{store: store, loginPath: loginPath}
}

// Decide maps a snapshot to a decision.
func (g *RouteGuard) Decide(s session.Snapshot) GuardDecision {
	switch {
	case !s.Initialized:
		return GuardDecision{Action: GuardWait}
	case s.Identity == nil:
		return GuardDecision{Action: GuardRedirect, RedirectTo: g.loginPath}
	default:
		return GuardDecision{Action: GuardAdmit, Identity: s.Identity}
	}
}

// Current decides on the store's current snapshot.
func (g *RouteGuard) Current() GuardDecision {
	return g.Decide(g.store.Snapshot())
}

// Await blocks until the decision is no longer GuardWait or ctx ends.
func (g *RouteGuard) Await(ctx context.Context) (GuardDecision, error) {
	decided := make(chan GuardDecision, 1)
	unsubscribe := g.store.Subscribe(func(s session.Snapshot) {
		if d := g.Decide(s); d.Action != GuardWait {
			select {
			case decided <- d:
			default:
			}
		}
	})
	defer unsubscribe()

	// Subscribe first so a write between the check and the wait is not lost.
	if d := g.Current(); d.Action != GuardWait {
		return d, nil
	}

	select {
	case d := <-decided:
		return d, nil
	case <-ctx.Done():
		return GuardDecision{Action: GuardWait}, ctx.Err()
	}
}
