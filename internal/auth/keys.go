// Package auth provides API-key issuance and request authentication.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Key is a stored API key record. Only the SHA-256 hash of the secret is
// persisted; the plaintext is shown once at creation.
type Key struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Hash       string `json:"key_hash"`
	Enabled    bool   `json:"enabled"`
	CreatedAt  string `json:"created_at"`
	LastUsedAt string `json:"last_used_at,omitempty"`
}

// Keystore holds API keys in a JSON file.
type Keystore struct {
	mu   sync.Mutex
	path string
	keys map[string]*Key
}

// NewKeystore loads (or initializes) the key file at path.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	ks := &Keystore{path: path, keys: make(map[string]*Key)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ks, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if err := json.Unmarshal(data, &ks.keys); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	return ks, nil
}

func (ks *Keystore) save() error {
	data, err := json.MarshalIndent(ks.keys, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keys: %w", err)
	}
	if err := os.WriteFile(ks.path, data, 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Generate creates a new enabled key and returns the plaintext secret
// alongside the stored record.
func (ks *Keystore) Generate(name string) (string, *Key, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate key material: %w", err)
	}
	secret := "sk-" + base64.RawURLEncoding.EncodeToString(buf)

	key := &Key{
		ID:        uuid.NewString()[:8],
		Name:      name,
		Hash:      hashSecret(secret),
		Enabled:   true,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.keys[key.ID] = key
	if err := ks.save(); err != nil {
		delete(ks.keys, key.ID)
		return "", nil, err
	}

	cp := *key
	return secret, &cp, nil
}

// List returns all key records, hashes included (they are not secrets).
func (ks *Keystore) List() []*Key {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	out := make([]*Key, 0, len(ks.keys))
	for _, key := range ks.keys {
		cp := *key
		out = append(out, &cp)
	}
	return out
}

// Delete removes a key. Returns false when it did not exist.
func (ks *Keystore) Delete(id string) (bool, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, ok := ks.keys[id]; !ok {
		return false, nil
	}
	delete(ks.keys, id)
	return true, ks.save()
}

// Toggle flips a key's enabled flag. Returns the new state and whether the
// key exists.
func (ks *Keystore) Toggle(id string) (enabled, ok bool, err error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	key, exists := ks.keys[id]
	if !exists {
		return false, false, nil
	}
	key.Enabled = !key.Enabled
	return key.Enabled, true, ks.save()
}

// Verify checks a presented secret against the stored hashes. On success the
// key's last-used timestamp is refreshed (best-effort persisted) and a copy
// of the record is returned; otherwise nil.
func (ks *Keystore) Verify(secret string) *Key {
	if secret == "" {
		return nil
	}
	presented := hashSecret(secret)

	ks.mu.Lock()
	defer ks.mu.Unlock()

	for _, key := range ks.keys {
		if !key.Enabled {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(key.Hash), []byte(presented)) == 1 {
			key.LastUsedAt = time.Now().UTC().Format(time.RFC3339)
			_ = ks.save()
			cp := *key
			return &cp
		}
	}
	return nil
}

// Count returns the number of stored keys.
func (ks *Keystore) Count() int {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return len(ks.keys)
}
