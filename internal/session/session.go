// Package session holds the process-wide state shared by the network layer.
//
// A Session is constructed once at process start and passed to every component
// that needs it. It owns exactly two pieces of mutable state:
//   - the credential store (written only when the backend rejects the token)
//   - the "backend reachable" flag (written only by the request client)
package session

import (
	"sync/atomic"
	"time"

	"github.com/musher-dev/lookout/internal/auth"
)

// Session carries credential access and backend reachability.
type Session struct {
	credentials auth.Store
	reauth      *ReauthGuard

	// reachability: 0 unknown, 1 reachable, 2 unreachable
	reachability atomic.Int32
	observedAt   atomic.Int64
}

const (
	reachabilityUnknown int32 = iota
	reachabilityUp
	reachabilityDown
)

// New creates a session over the given credential store.
func New(credentials auth.Store, reauth *ReauthGuard) *Session {
	if reauth == nil {
		reauth = NewReauthGuard("")
	}

	return &Session{
		credentials: credentials,
		reauth:      reauth,
	}
}

// Credentials returns the credential store.
func (s *Session) Credentials() auth.Store {
	return s.credentials
}

// Reauth returns the re-authentication guard.
func (s *Session) Reauth() *ReauthGuard {
	return s.reauth
}

// BearerToken returns the token to attach to outbound requests.
// ok is false when no token is stored or authentication is disabled.
func (s *Session) BearerToken() (token string, ok bool) {
	if s.credentials == nil {
		return "", false
	}

	token = s.credentials.Token()
	if token == "" || auth.IsNoAuth(token) {
		return "", false
	}

	return token, true
}

// AuthDisabled reports whether the stored credential is the no-auth sentinel.
func (s *Session) AuthDisabled() bool {
	return s.credentials != nil && auth.IsNoAuth(s.credentials.Token())
}

// InvalidateCredential clears the stored credential after the backend rejected it.
// The no-auth sentinel is never cleared; invalidated is false in that case.
func (s *Session) InvalidateCredential() (invalidated bool, err error) {
	if s.credentials == nil || s.AuthDisabled() {
		return false, nil
	}

	if err := s.credentials.Invalidate(); err != nil {
		return true, err
	}

	return true, nil
}

// MarkReachable records the outcome of the latest completed request.
func (s *Session) MarkReachable(reachable bool) {
	value := reachabilityDown
	if reachable {
		value = reachabilityUp
	}

	s.reachability.Store(value)
	s.observedAt.Store(time.Now().UnixNano())
}

// Reachable reports the last observed backend reachability. known is false
// until the first request completes.
func (s *Session) Reachable() (reachable, known bool) {
	switch s.reachability.Load() {
	case reachabilityUp:
		return true, true
	case reachabilityDown:
		return false, true
	default:
		return false, false
	}
}

// ReachabilityObservedAt returns when reachability was last updated.
func (s *Session) ReachabilityObservedAt() time.Time {
	ns := s.observedAt.Load()
	if ns == 0 {
		return time.Time{}
	}

	return time.Unix(0, ns)
}
