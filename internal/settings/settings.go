package settings

import (
	"context"
	"sync"
)

// MaskToken is what a stored credential is reported as.
const MaskToken = "***"

// Settings is the runtime LLM configuration edited from the dashboard.
type Settings struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// Patch is a partial update. Nil fields are left alone.
type Patch struct {
	APIKey      *string  `json:"api_key"`
	BaseURL     *string  `json:"base_url"`
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature"`
}

// Store holds the current settings.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, p Patch) error
}

// Masked returns a copy safe to send to the browser.
func (s Settings) Masked() Settings {
	if s.APIKey != "" {
		s.APIKey = MaskToken
	}
	return s
}

// Configured reports whether a credential is set.
func (s Settings) Configured() bool {
	return s.APIKey != ""
}

// Apply merges p into s. The credential changes only when a real value is
// sent back; base URL and model ignore empty strings.
func (s Settings) Apply(p Patch) Settings {
	if p.APIKey != nil && *p.APIKey != "" && *p.APIKey != MaskToken {
		s.APIKey = *p.APIKey
	}
	if p.BaseURL != nil && *p.BaseURL != "" {
		s.BaseURL = *p.BaseURL
	}
	if p.Model != nil && *p.Model != "" {
		s.Model = *p.Model
	}
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	return s
}

type MemoryStore struct {
	mu  sync.RWMutex
	cur Settings
}

func NewMemoryStore(initial Settings) *MemoryStore {
	return &MemoryStore{cur: initial}
}

func (m *MemoryStore) Get(_ context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur, nil
}

func (m *MemoryStore) Update(_ context.Context, p Patch) error {
	m.mu.Lock()
	m.cur = m.cur.Apply(p)
	m.mu.Unlock()
	return nil
}
