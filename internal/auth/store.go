package auth

import (
	"sync"
)

// Store is the credential store read before every outbound call.
type Store interface {
	// Token returns the current bearer token, NoAuthToken, or "" when none is stored.
	Token() string
	// Invalidate discards the current token after the backend rejected it.
	Invalidate() error
}

// PersistentStore is a Store backed by GetCredentials, StoreToken and DeleteToken.
// The token is loaded lazily and cached until invalidated.
type PersistentStore struct {
	mu     sync.RWMutex
	loaded bool
	token  string
	source CredentialSource
}

// NewPersistentStore creates a store over the environment, keyring and file fallback.
func NewPersistentStore() *PersistentStore {
	return &PersistentStore{}
}

// Token implements Store.
func (s *PersistentStore) Token() string {
	s.mu.RLock()
	if s.loaded {
		token := s.token
		s.mu.RUnlock()

		return token
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.source, s.token = GetCredentials()
		s.loaded = true
	}

	return s.token
}

// Source returns where the cached token came from.
func (s *PersistentStore) Source() CredentialSource {
	_ = s.Token()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.source
}

// Invalidate implements Store. Environment tokens cannot be removed, so they are
// only dropped from memory for the rest of the process.
func (s *PersistentStore) Invalidate() error {
	s.mu.Lock()
	source := s.source
	s.token = ""
	s.source = SourceNone
	s.loaded = true
	s.mu.Unlock()

	if source == SourceKeyring || source == SourceFile {
		return DeleteToken()
	}

	return nil
}

// Reload drops the cached token so the next Token call reads the credential
// sources again.
func (s *PersistentStore) Reload() {
	s.mu.Lock()
	s.loaded = false
	s.token = ""
	s.source = SourceNone
	s.mu.Unlock()
}

// StaticStore is an in-memory Store, used for --token overrides and tests.
type StaticStore struct {
	mu    sync.RWMutex
	token string
}

// NewStaticStore returns a Store holding token.
func NewStaticStore(token string) *StaticStore {
	return &StaticStore{token: token}
}

// Token implements Store.
func (s *StaticStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Invalidate implements Store.
func (s *StaticStore) Invalidate() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	return nil
}
