package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// SessionStore keeps the unlock token between invocations. With Identity
// set the file holds the token age-encrypted to that identity's recipient.
type SessionStore struct {
	Path     string
	Identity string
}

// Save writes token to the store, owner-readable only.
func (s SessionStore) Save(token string) error {
	data := []byte(strings.TrimSpace(token))
	if s.Identity != "" {
		identity, err := s.loadIdentity()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		w, err := age.Encrypt(&buf, identity.Recipient())
		if err != nil {
			return fmt.Errorf("creating age encryptor: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("encrypting session token: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("finalizing session encryption: %w", err)
		}
		data = buf.Bytes()
	}

	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("error creating session directory: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("error writing session file %s: %w", s.Path, err)
	}
	return nil
}

// Load returns the stored token. A missing or empty file is ErrNoSession.
func (s SessionStore) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s does not exist, run `dun vault login`", ErrNoSession, s.Path)
	}
	if err != nil {
		return "", fmt.Errorf("error reading session file %s: %w", s.Path, err)
	}

	if s.Identity != "" {
		identity, err := s.loadIdentity()
		if err != nil {
			return "", err
		}
		r, err := age.Decrypt(bytes.NewReader(data), identity)
		if err != nil {
			return "", fmt.Errorf("decrypting session file %s: %w", s.Path, err)
		}
		if data, err = io.ReadAll(r); err != nil {
			return "", fmt.Errorf("reading decrypted session: %w", err)
		}
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoSession, s.Path)
	}
	return token, nil
}

func (s SessionStore) loadIdentity() (*age.X25519Identity, error) {
	f, err := os.Open(s.Identity)
	if err != nil {
		return nil, fmt.Errorf("error opening session identity: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parsing session identity %s: %w", s.Identity, err)
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("session identity %s holds no X25519 key", s.Identity)
}

// GenerateIdentity writes a new age identity to path. An existing file is
// left alone.
func GenerateIdentity(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("identity file %s already exists", path)
	}
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating age keypair: %w", err)
	}
	content := fmt.Sprintf("# public key: %s\n%s\n", identity.Recipient(), identity)
	return os.WriteFile(path, []byte(content), 0o600)
}
