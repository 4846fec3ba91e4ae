package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// MemoryStore is an in-process Store with the same TTL semantics as the
// Redis store. Intended for embedding and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration

	// now is replaceable so expiry can be tested without sleeping.
	now func() time.Time
}

type memoryEntry struct {
	doc       Session
	expiresAt time.Time
}

type MemoryOption func(*MemoryStore)

// WithMemoryTTL sets the expiry applied on every write. Default is
// DefaultTTL.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	store := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// live returns the entry if it exists and has not expired. Expired entries
// are dropped on access, mirroring store-side expiry.
func (s *MemoryStore) live(callID string) *memoryEntry {
	entry, ok := s.entries[callID]
	if !ok {
		return nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, callID)
		return nil
	}
	return entry
}

func (s *MemoryStore) Create(_ context.Context, callID, tenantID, aiProfileID string) error {
	if callID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(callID) != nil {
		return ErrAlreadyExists
	}

	s.entries[callID] = &memoryEntry{
		doc: Session{
			CallID:      callID,
			TenantID:    tenantID,
			AIProfileID: aiProfileID,
			StartedAt:   s.now().UTC(),
			State:       LifecycleActive,
		},
		expiresAt: s.now().Add(s.ttl),
	}

	return nil
}

func (s *MemoryStore) Read(_ context.Context, callID string) (*Session, error) {
	if callID == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(callID)
	if entry == nil {
		return nil, ErrNotFound
	}

	var doc Session
	if err := copier.CopyWithOption(&doc, &entry.doc, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (s *MemoryStore) update(callID string, mutate func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(callID)
	if entry == nil {
		return ErrNotFound
	}

	mutate(&entry.doc)
	entry.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, callID string, role Role, content string) error {
	return s.update(callID, func(doc *Session) {
		doc.History = append(doc.History, Turn{
			ID:        uuid.NewString(),
			Role:      role,
			Content:   content,
			Timestamp: s.now().UTC(),
		})
		if role == RoleUser {
			doc.TurnCount++
		}
	})
}

func (s *MemoryStore) IncrementSilence(_ context.Context, callID string) (int, error) {
	count := 0
	err := s.update(callID, func(doc *Session) {
		doc.SilenceCount++
		count = doc.SilenceCount
	})
	return count, err
}

func (s *MemoryStore) ResetSilence(_ context.Context, callID string) error {
	return s.update(callID, func(doc *Session) {
		doc.SilenceCount = 0
	})
}

func (s *MemoryStore) SetExitReason(_ context.Context, callID string, reason ExitReason) error {
	return s.update(callID, func(doc *Session) {
		if doc.ExitReason == ExitReasonNone {
			doc.ExitReason = reason
		}
	})
}

func (s *MemoryStore) MarkEnding(_ context.Context, callID string) error {
	return s.update(callID, func(doc *Session) {
		if doc.State == LifecycleActive {
			doc.State = LifecycleEnding
		}
	})
}

func (s *MemoryStore) MarkEnded(_ context.Context, callID string) error {
	return s.update(callID, func(doc *Session) {
		doc.State = LifecycleEnded
	})
}

func (s *MemoryStore) Delete(_ context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(callID) == nil {
		return ErrNotFound
	}

	delete(s.entries, callID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
