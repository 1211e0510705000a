package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const signingKeyBits = 2048

type signingKey struct {
	id  string
	key *rsa.PrivateKey
}

// keyMaterial is an immutable snapshot. KeySet swaps whole snapshots so
// readers never see a half-rotated set.
type keyMaterial struct {
	current  *signingKey
	previous *signingKey
	jwks     jose.JSONWebKeySet
}

// KeySet holds the token signing key and the public keys accepted for
// verification. Readers always observe the latest installed material.
//
// After a rotation the previous public key stays valid for verification until
// the next rotation, so tokens issued just before a rotation keep working.
type KeySet struct {
	path string

	material atomic.Pointer[keyMaterial]
	mu       sync.Mutex // serialises Rotate and Refresh
}

// NewKeySet creates a key set around an existing key.
func NewKeySet(key *rsa.PrivateKey, keyID string) *KeySet {
	ks := &KeySet{}
	ks.install(&signingKey{id: keyID, key: key}, nil)
	return ks
}

// GenerateKeySet creates an in-memory key set with a fresh RSA key.
func GenerateKeySet() (*KeySet, error) {
	key, err := rsa.GenerateKey(rand.Reader, signingKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return NewKeySet(key, uuid.NewString()), nil
}

// LoadOrGenerateKeySet loads the signing key stored at path (PEM, with its key
// ID in path+".kid"), generating and saving one if it does not exist yet. An
// empty path yields an ephemeral in-memory key.
func LoadOrGenerateKeySet(path string) (*KeySet, error) {
	if path == "" {
		return GenerateKeySet()
	}

	sk, err := readSigningKey(path)
	if errors.Is(err, os.ErrNotExist) {
		sk, err = newSigningKey()
		if err != nil {
			return nil, err
		}
		if err := writeSigningKey(path, sk); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	ks := &KeySet{path: path}
	ks.install(sk, nil)
	return ks, nil
}

// SigningKey returns the active key ID and private key.
func (k *KeySet) SigningKey() (string, *rsa.PrivateKey) {
	m := k.material.Load()
	return m.current.id, m.current.key
}

// PublicKey returns the verification key for keyID.
func (k *KeySet) PublicKey(keyID string) (*rsa.PublicKey, bool) {
	m := k.material.Load()
	for _, sk := range []*signingKey{m.current, m.previous} {
		if sk != nil && sk.id == keyID {
			return &sk.key.PublicKey, true
		}
	}
	return nil, false
}

// JWKS returns the public keys currently accepted for verification.
func (k *KeySet) JWKS() jose.JSONWebKeySet {
	return k.material.Load().jwks
}

// Rotate replaces the signing key with a freshly generated one. When the set
// is file-backed the new key is persisted so other processes pick it up on
// their next Refresh.
func (k *KeySet) Rotate() (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	sk, err := newSigningKey()
	if err != nil {
		return "", err
	}
	if k.path != "" {
		if err := writeSigningKey(k.path, sk); err != nil {
			return "", err
		}
	}

	k.install(sk, k.material.Load().current)
	return sk.id, nil
}

// Refresh reloads the signing key from disk and installs it if its key ID
// changed. It reports whether new material was installed.
func (k *KeySet) Refresh(ctx context.Context) (bool, error) {
	if k.path == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	sk, err := readSigningKey(k.path)
	if err != nil {
		return false, err
	}

	current := k.material.Load().current
	if sk.id == current.id {
		return false, nil
	}

	k.install(sk, current)
	return true, nil
}

// RefreshEvery calls Refresh on every tick until ctx is cancelled.
func (k *KeySet) RefreshEvery(ctx context.Context, interval time.Duration, logger *logrus.Logger) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if interval <= 0 || k.path == "" {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := k.Refresh(ctx)
			if err != nil {
				logger.WithError(err).Warn("signing key refresh failed")
				continue
			}
			if changed {
				kid, _ := k.SigningKey()
				logger.WithField("kid", kid).Info("signing key rotated")
			}
		}
	}
}

func (k *KeySet) install(current, previous *signingKey) {
	m := &keyMaterial{current: current, previous: previous}
	for _, sk := range []*signingKey{current, previous} {
		if sk == nil {
			continue
		}
		m.jwks.Keys = append(m.jwks.Keys, jose.JSONWebKey{
			Key:       &sk.key.PublicKey,
			KeyID:     sk.id,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		})
	}
	k.material.Store(m)
}

func newSigningKey() (*signingKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, signingKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &signingKey{id: uuid.NewString(), key: key}, nil
}

func readSigningKey(path string) (*signingKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key file: %w", err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, fmt.Errorf("invalid PEM block in signing key")
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	keyIDData, err := os.ReadFile(path + ".kid")
	if err != nil {
		return nil, fmt.Errorf("read key ID file: %w", err)
	}
	keyID := strings.TrimSpace(string(keyIDData))
	if keyID == "" {
		return nil, fmt.Errorf("key ID file is empty")
	}

	return &signingKey{id: keyID, key: privateKey}, nil
}

// writeSigningKey writes the key before its ID so a concurrent reader that
// sees the new ID also sees the new key.
func writeSigningKey(path string, sk *signingKey) error {
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(sk.key),
	})
	if err := os.WriteFile(path, keyPEM, 0600); err != nil {
		return fmt.Errorf("save signing key to disk: %w", err)
	}
	if err := os.WriteFile(path+".kid", []byte(sk.id), 0600); err != nil {
		return fmt.Errorf("save key ID to disk: %w", err)
	}
	return nil
}
