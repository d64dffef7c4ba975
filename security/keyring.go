package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"sort"

	"github.com/cavendo/go-dispatch/core"
)

// KeyVersion is one entry in the keyring: a secret plus the salt the
// AES-256 key is derived with.
type KeyVersion struct {
	Version int
	Secret  []byte
	Salt    []byte
}

// Keyring holds every key version the engine has ever encrypted with. New
// values are sealed under the highest version, old values decrypt under
// whatever version their record carries.
type Keyring struct {
	keys    map[int][]byte
	current int
}

// NewKeyring derives one AES-256-GCM key per version. At least one version
// is required and versions must be positive and unique.
func NewKeyring(versions ...KeyVersion) (*Keyring, error) {
	if len(versions) == 0 {
		return nil, fmt.Errorf("security: at least one key version is required")
	}
	ring := &Keyring{keys: make(map[int][]byte, len(versions))}
	for _, v := range versions {
		if v.Version <= 0 {
			return nil, fmt.Errorf("security: key version must be positive, got %d", v.Version)
		}
		if len(bytes.TrimSpace(v.Secret)) == 0 {
			return nil, fmt.Errorf("security: key version %d has no secret", v.Version)
		}
		if _, exists := ring.keys[v.Version]; exists {
			return nil, fmt.Errorf("security: duplicate key version %d", v.Version)
		}
		ring.keys[v.Version] = deriveKey(v.Secret, v.Salt)
		if v.Version > ring.current {
			ring.current = v.Version
		}
	}
	return ring, nil
}

// NewKeyringFromSecret builds a single-version keyring, the common case
// before any rotation has happened.
func NewKeyringFromSecret(secret string, salt string) (*Keyring, error) {
	return NewKeyring(KeyVersion{Version: 1, Secret: []byte(secret), Salt: []byte(salt)})
}

func (k *Keyring) CurrentVersion() int {
	if k == nil {
		return 0
	}
	return k.current
}

// Versions lists the known key versions in ascending order.
func (k *Keyring) Versions() []int {
	if k == nil {
		return nil
	}
	versions := make([]int, 0, len(k.keys))
	for version := range k.keys {
		versions = append(versions, version)
	}
	sort.Ints(versions)
	return versions
}

// Encrypt seals the plaintext under the current key version. Empty input
// produces an empty value rather than a ciphertext of nothing.
func (k *Keyring) Encrypt(plaintext string) (core.EncryptedValue, error) {
	if k == nil {
		return core.EncryptedValue{}, fmt.Errorf("security: keyring is not configured")
	}
	if plaintext == "" {
		return core.EncryptedValue{}, nil
	}
	gcm, err := k.cipherFor(k.current)
	if err != nil {
		return core.EncryptedValue{}, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return core.EncryptedValue{}, fmt.Errorf("security: nonce generation failed: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return core.EncryptedValue{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		KeyVersion: k.current,
	}, nil
}

// Decrypt opens a stored value. It never returns an error: any failure,
// unknown version, bad base64, truncated nonce or a failed GCM open, yields
// nil so a corrupt column cannot break a read path. A zero key version is
// treated as version 1, values written before versioning landed carry none.
func (k *Keyring) Decrypt(value core.EncryptedValue) []byte {
	if k == nil || value.Ciphertext == "" {
		return nil
	}
	version := value.KeyVersion
	if version == 0 {
		version = 1
	}
	gcm, err := k.cipherFor(version)
	if err != nil {
		return nil
	}

	nonce, err := base64.StdEncoding.DecodeString(value.IV)
	if err != nil || len(nonce) != gcm.NonceSize() {
		return nil
	}
	sealed, err := base64.StdEncoding.DecodeString(value.Ciphertext)
	if err != nil {
		return nil
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil
	}
	return plaintext
}

func (k *Keyring) cipherFor(version int) (cipher.AEAD, error) {
	key, ok := k.keys[version]
	if !ok {
		return nil, fmt.Errorf("security: unknown key version %d", version)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey stretches the secret and salt into 32 bytes of key material.
func deriveKey(secret, salt []byte) []byte {
	material := make([]byte, 0, len(secret)+len(salt))
	material = append(material, secret...)
	material = append(material, salt...)
	sum := sha256.Sum256(material)
	key := make([]byte, len(sum))
	copy(key, sum[:])
	return key
}

var _ core.Keyring = (*Keyring)(nil)
