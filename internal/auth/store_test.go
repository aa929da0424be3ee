package auth

import "testing"

func TestPersistentStore_EnvTokenInvalidatedInMemoryOnly(t *testing.T) {
	t.Setenv(EnvVarName, "env-token")

	store := NewPersistentStore()

	if got := store.Token(); got != "env-token" {
		t.Fatalf("Token() = %q, want env-token", got)
	}

	if got := store.Source(); got != SourceEnv {
		t.Fatalf("Source() = %q, want %q", got, SourceEnv)
	}

	if err := store.Invalidate(); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	if got := store.Token(); got != "" {
		t.Fatalf("Token() after Invalidate = %q, want empty", got)
	}
}

func TestPersistentStore_ReloadRereadsSources(t *testing.T) {
	t.Setenv(EnvVarName, "first")

	store := NewPersistentStore()
	_ = store.Token()

	if err := store.Invalidate(); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	t.Setenv(EnvVarName, "second")
	store.Reload()

	if got := store.Token(); got != "second" {
		t.Fatalf("Token() after Reload = %q, want second", got)
	}
}

func TestStaticStore(t *testing.T) {
	store := NewStaticStore("abc")

	if got := store.Token(); got != "abc" {
		t.Fatalf("Token() = %q, want abc", got)
	}

	if err := store.Invalidate(); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	if got := store.Token(); got != "" {
		t.Fatalf("Token() after Invalidate = %q, want empty", got)
	}
}
