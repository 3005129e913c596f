// Package session keeps pending disambiguations between chat turns.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/salesbot/internal/extractor"
)

// DefaultTTL is how long a pending question stays answerable.
const DefaultTTL = 30 * time.Minute

// Pending is an extraction waiting for the user to pick an option.
type Pending struct {
	Extraction extractor.Result `json:"extraction"`
	Field      extractor.Field  `json:"field"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Store holds at most one pending disambiguation per conversation key.
// Load returns nil without error when nothing is pending.
type Store interface {
	Save(ctx context.Context, key string, p Pending) error
	Load(ctx context.Context, key string) (*Pending, error)
	Clear(ctx context.Context, key string) error
}

// Key builds the conversation key for a user in a channel.
func Key(platform, channel, user string) string {
	return strings.Join([]string{platform, channel, user}, ":")
}

type memoryEntry struct {
	pending Pending
	expires time.Time
}

// Memory is a process-local Store used when no Redis is configured.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// Save stores p under key and drops every other expired entry.
func (m *Memory) Save(_ context.Context, key string, p Pending) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{pending: p, expires: now.Add(m.ttl)}
	return nil
}

func (m *Memory) Load(_ context.Context, key string) (*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, nil
	}
	p := e.pending
	return &p, nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
