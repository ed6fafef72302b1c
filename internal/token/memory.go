package token

import (
	"context"
	"sync"
	"time"

	"github.com/zombor/bill-ingest/internal/billing"
)

// MemoryStore keeps tokens in a map guarded by a single mutex. It suits a
// single-instance deployment; tokens do not survive a restart.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*QRToken
	opts   options
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]*QRToken),
		opts:   buildOptions(opts),
	}
}

// Issue creates a new valid token
func (m *MemoryStore) Issue(_ context.Context, documentType billing.DocumentType) (*QRToken, error) {
	tok := &QRToken{
		ID:           m.opts.ids.Generate(),
		DocumentType: documentType,
		CreatedAt:    m.opts.clock.Now(),
		State:        StateValid,
	}

	m.mu.Lock()
	m.tokens[tok.ID] = tok
	m.mu.Unlock()

	cp := *tok
	return &cp, nil
}

// Validate reports whether id can be used
func (m *MemoryStore) Validate(_ context.Context, id string) (Validation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return validate(m.tokens[id], m.opts.clock.Now(), m.opts.ttl), nil
}

// Reserve moves id from valid to reserved under the store lock
func (m *MemoryStore) Reserve(_ context.Context, id string) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.clock.Now()
	tok := m.tokens[id]
	v := validate(tok, now, m.opts.ttl)
	if !v.Valid {
		return Reservation{DocumentType: v.DocumentType, Reason: v.Reason}, nil
	}

	tok.State = StateReserved
	tok.UsedAt = &now
	return Reservation{OK: true, DocumentType: tok.DocumentType}, nil
}

// Release moves a reserved id back to valid
func (m *MemoryStore) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[id]
	if !ok {
		return nil
	}
	if tok.Expired(m.opts.clock.Now(), m.opts.ttl) {
		delete(m.tokens, id)
		return nil
	}
	tok.State = StateValid
	tok.UsedAt = nil
	return nil
}

// Consume deletes id
func (m *MemoryStore) Consume(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.tokens, id)
	m.mu.Unlock()
	return nil
}

// Sweep deletes expired tokens
func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.clock.Now()
	removed := 0
	for id, tok := range m.tokens {
		if tok.Expired(now, m.opts.ttl) {
			delete(m.tokens, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored tokens
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// TTL returns the lifetime of issued tokens
func (m *MemoryStore) TTL() time.Duration {
	return m.opts.ttl
}
