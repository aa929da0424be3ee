package session

import (
	"testing"

	"github.com/musher-dev/lookout/internal/auth"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		wantToken string
		wantOK    bool
	}{
		{name: "token", token: "abc", wantToken: "abc", wantOK: true},
		{name: "empty", token: "", wantOK: false},
		{name: "no-auth sentinel", token: auth.NoAuthToken, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(auth.NewStaticStore(tt.token), nil)

			got, ok := s.BearerToken()
			if ok != tt.wantOK || got != tt.wantToken {
				t.Fatalf("BearerToken() = (%q, %v), want (%q, %v)", got, ok, tt.wantToken, tt.wantOK)
			}
		})
	}
}

func TestInvalidateCredential_LeavesSentinel(t *testing.T) {
	store := auth.NewStaticStore(auth.NoAuthToken)
	s := New(store, nil)

	invalidated, err := s.InvalidateCredential()
	if err != nil {
		t.Fatalf("InvalidateCredential() error = %v", err)
	}

	if invalidated {
		t.Fatal("sentinel credential must not be invalidated")
	}

	if store.Token() != auth.NoAuthToken {
		t.Fatalf("Token() = %q, want sentinel", store.Token())
	}
}

func TestInvalidateCredential_ClearsToken(t *testing.T) {
	store := auth.NewStaticStore("expired")
	s := New(store, nil)

	invalidated, err := s.InvalidateCredential()
	if err != nil {
		t.Fatalf("InvalidateCredential() error = %v", err)
	}

	if !invalidated || store.Token() != "" {
		t.Fatalf("invalidated = %v, token = %q; want true and empty", invalidated, store.Token())
	}
}

func TestReachability(t *testing.T) {
	s := New(auth.NewStaticStore(""), nil)

	if _, known := s.Reachable(); known {
		t.Fatal("reachability should be unknown before any request")
	}

	s.MarkReachable(false)

	if reachable, known := s.Reachable(); reachable || !known {
		t.Fatalf("Reachable() = (%v, %v), want (false, true)", reachable, known)
	}

	s.MarkReachable(true)

	if reachable, _ := s.Reachable(); !reachable {
		t.Fatal("Reachable() = false after MarkReachable(true)")
	}

	if s.ReachabilityObservedAt().IsZero() {
		t.Fatal("ReachabilityObservedAt() should be set")
	}
}

func TestReauthGuard(t *testing.T) {
	g := NewReauthGuard("lookout auth login")

	if g.ShouldRedirect("lookout auth login") {
		t.Fatal("must not redirect from the entry point")
	}

	if g.ShouldRedirect("lookout auth login --token x") {
		t.Fatal("must not redirect from the entry point with args")
	}

	if !g.ShouldRedirect("lookout predict") {
		t.Fatal("first redirect should be allowed")
	}

	if g.ShouldRedirect("lookout status") {
		t.Fatal("second redirect must be suppressed")
	}
}
