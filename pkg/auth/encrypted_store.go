package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// EnvPassphrase overrides the generated passphrase of the encrypted store
const EnvPassphrase = "FLICKRHARVEST_PASSPHRASE"

const (
	saltSize        = 32
	keySize         = 32
	iterations      = 100000
	envelopeVersion = 2
)

// envelope is the on-disk form of the encrypted store. Payload is the
// AES-GCM sealed JSON of every profile, nonce first.
type envelope struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Payload  []byte    `json:"payload"`
	Modified time.Time `json:"modified"`
}

// EncryptedFileStore keeps every profile in one AES-GCM encrypted file.
// The key is derived with PBKDF2 from a passphrase taken from
// FLICKRHARVEST_PASSPHRASE or generated once into a .passphrase file next
// to the store.
type EncryptedFileStore struct {
	path       string
	passphrase []byte
	mu         sync.RWMutex
}

// NewEncryptedFileStore opens (without reading) the store at path
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	passphrase, err := loadPassphrase(filepath.Join(filepath.Dir(path), ".passphrase"))
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Store(profile *Profile) error {
	if profile == nil || profile.Name == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(profiles map[string]Profile) error {
		profiles[profile.Name] = *profile
		return nil
	})
}

func (e *EncryptedFileStore) Retrieve(name string) (*Profile, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}
	profiles, err := e.read()
	if err != nil {
		return nil, err
	}
	p, ok := profiles[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &p, nil
}

// List returns every stored profile ordered by name
func (e *EncryptedFileStore) List() ([]*Profile, error) {
	profiles, err := e.read()
	if err != nil {
		return nil, err
	}
	out := make([]*Profile, 0, len(profiles))
	for _, p := range profiles {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a profile. The file goes with the last profile.
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(profiles map[string]Profile) error {
		if _, ok := profiles[name]; !ok {
			return ErrCredentialsNotFound
		}
		delete(profiles, name)
		return nil
	})
}

func (e *EncryptedFileStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

// read decrypts the store. A missing file is an empty store.
func (e *EncryptedFileStore) read() (map[string]Profile, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	profiles, _, err := e.open()
	return profiles, err
}

// update applies fn to the decrypted profiles and writes the result back
func (e *EncryptedFileStore) update(fn func(map[string]Profile) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	profiles, salt, err := e.open()
	if err != nil {
		return err
	}
	if err := fn(profiles); err != nil {
		return err
	}

	if len(profiles) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return e.seal(profiles, salt)
}

func (e *EncryptedFileStore) open() (map[string]Profile, []byte, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return make(map[string]Profile), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to parse credential file: %w", err)
	}

	plain, err := decrypt(env.Payload, e.derive(env.Salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt credential file: %w", err)
	}

	profiles := make(map[string]Profile)
	if err := json.Unmarshal(plain, &profiles); err != nil {
		return nil, nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	return profiles, env.Salt, nil
}

// seal encrypts profiles under salt, drawing a new salt for a new file,
// and replaces the store atomically.
func (e *EncryptedFileStore) seal(profiles map[string]Profile, salt []byte) error {
	if len(salt) == 0 {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	payload, err := encrypt(plain, e.derive(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt profiles: %w", err)
	}

	content, err := json.MarshalIndent(envelope{
		Version:  envelopeVersion,
		Salt:     salt,
		Payload:  payload,
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

func (e *EncryptedFileStore) derive(salt []byte) []byte {
	return pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)
}

// loadPassphrase returns the env override, the saved passphrase at path,
// or a freshly generated one written to path.
func loadPassphrase(path string) ([]byte, error) {
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		return []byte(pass), nil
	}
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return content, nil
	}

	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := []byte(base64.RawURLEncoding.EncodeToString(raw))
	if err := os.WriteFile(path, pass, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}
