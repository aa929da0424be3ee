package session

import (
	"strings"
	"sync/atomic"
)

// ReauthGuard allows a single redirect to re-authentication per process and
// refuses to redirect when the caller already is the authentication entry point.
type ReauthGuard struct {
	entryPoint string
	fired      atomic.Bool
}

// NewReauthGuard returns a guard for the given entry point (for example "lookout auth login").
func NewReauthGuard(entryPoint string) *ReauthGuard {
	return &ReauthGuard{entryPoint: strings.TrimSpace(entryPoint)}
}

// EntryPoint returns the authentication entry point.
func (g *ReauthGuard) EntryPoint() string {
	return g.entryPoint
}

// ShouldRedirect reports whether the caller at location current should be sent to
// re-authenticate. It returns true at most once.
func (g *ReauthGuard) ShouldRedirect(current string) bool {
	current = strings.TrimSpace(current)
	if g.entryPoint != "" && (current == g.entryPoint || strings.HasPrefix(current, g.entryPoint+" ")) {
		return false
	}

	return g.fired.CompareAndSwap(false, true)
}
