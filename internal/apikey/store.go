// Package apikey manages the server's issued API keys, persisted to a JSON
// file so keys survive restarts.
package apikey

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	keyPrefix   = "rfsk_"
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	keyLength   = 48
)

// ErrNotFound is returned for operations on an unknown key id.
var ErrNotFound = errors.New("apikey: not found")

// Key is a stored API key. The Key field holds the full secret and is only
// exposed once, at creation.
type Key struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt"`
	UsageCount  int        `json:"usageCount"`
	Active      bool       `json:"active"`
}

// Masked is the read view of a key: the secret is truncated.
type Masked struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Key         string     `json:"key"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt"`
	UsageCount  int        `json:"usageCount"`
	Active      bool       `json:"active"`
}

func (k *Key) masked() Masked {
	m := Masked{
		ID:          k.ID,
		Name:        k.Name,
		Description: k.Description,
		CreatedAt:   k.CreatedAt,
		LastUsedAt:  k.LastUsedAt,
		UsageCount:  k.UsageCount,
		Active:      k.Active,
	}
	if len(k.Key) > 19 {
		m.Key = k.Key[:15] + "..." + k.Key[len(k.Key)-4:]
	} else {
		m.Key = k.Key
	}
	return m
}

// Store is a mutex-guarded key table written through to its backing file on
// every mutation.
type Store struct {
	mu     sync.Mutex
	path   string
	keys   []*Key
	logger *slog.Logger
}

// Open loads the store from path, creating the data directory and an empty
// store when the file does not exist yet.
func Open(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.With(slog.String("component", "apikey_store")),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("apikey: create data directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, s.save()
	}
	if err != nil {
		return nil, fmt.Errorf("apikey: read store: %w", err)
	}
	if err := json.Unmarshal(data, &s.keys); err != nil {
		return nil, fmt.Errorf("apikey: parse store: %w", err)
	}
	s.logger.Info("API key store loaded", slog.Int("keys", len(s.keys)))
	return s, nil
}

// Create issues a new key and persists it. The returned Key carries the full
// secret; callers must not retain it beyond the creation response.
func (s *Store) Create(name, description string) (*Key, error) {
	secret, err := generateKey()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := &Key{
		ID:          uuid.NewString(),
		Key:         secret,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		Active:      true,
	}
	s.keys = append(s.keys, k)
	if err := s.save(); err != nil {
		s.keys = s.keys[:len(s.keys)-1]
		return nil, err
	}
	s.logger.Info("API key created", slog.String("id", k.ID), slog.String("name", name))
	copied := *k
	return &copied, nil
}

// List returns every key, masked, in creation order.
func (s *Store) List() []Masked {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Masked, len(s.keys))
	for i, k := range s.keys {
		out[i] = k.masked()
	}
	return out
}

// Get returns one masked key by id.
func (s *Store) Get(id string) (Masked, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id {
			return k.masked(), true
		}
	}
	return Masked{}, false
}

// Revoke deactivates a key.
func (s *Store) Revoke(id string) error {
	return s.setActive(id, false)
}

// Reactivate re-enables a revoked key.
func (s *Store) Reactivate(id string) error {
	return s.setActive(id, true)
}

func (s *Store) setActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id {
			k.Active = active
			return s.save()
		}
	}
	return ErrNotFound
}

// Delete removes a key entirely.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, k := range s.keys {
		if k.ID == id {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			return s.save()
		}
	}
	return ErrNotFound
}

// Validate reports whether the presented secret matches an active key,
// bumping its usage stats on a match.
func (s *Store) Validate(secret string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.Active && k.Key == secret {
			now := time.Now().UTC()
			k.LastUsedAt = &now
			k.UsageCount++
			if err := s.save(); err != nil {
				s.logger.Error("Failed to persist key usage", slog.Any("error", err))
			}
			return true
		}
	}
	return false
}

// save writes the table to disk. Caller holds s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.keys, "", "  ")
	if err != nil {
		return fmt.Errorf("apikey: encode store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("apikey: write store: %w", err)
	}
	return nil
}

func generateKey() (string, error) {
	buf := make([]byte, 0, len(keyPrefix)+keyLength)
	buf = append(buf, keyPrefix...)
	max := big.NewInt(int64(len(keyAlphabet)))
	for i := 0; i < keyLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("apikey: generate key: %w", err)
		}
		buf = append(buf, keyAlphabet[n.Int64()])
	}
	return string(buf), nil
}
