// Package encryption wraps mirror payloads with age. The local archive tree
// always holds plaintext originals; only bytes leaving for the mirror pass
// through here.
package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"mediakeep/internal/config"
	"mediakeep/internal/media"
)

// AgeEncryptor implements media.Encryptor using filippo.io/age with X25519
// keys. The recipient file is needed to upload; the identity file only to
// fetch back.
type AgeEncryptor struct {
	recipientPath string
	identityPath  string
}

var _ media.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an encryptor from configuration.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		recipientPath: cfg.RecipientPath,
		identityPath:  cfg.IdentityPath,
	}
}

// NewFromConfig returns nil when no encryption is configured.
func NewFromConfig(cfg config.EncryptionConfig) media.Encryptor {
	if !cfg.Enabled() {
		return nil
	}
	return NewAgeEncryptor(cfg)
}

// Setup generates a new X25519 key pair and writes both halves. The
// recipient is public; the identity file is written mode 0600.
func (e *AgeEncryptor) Setup() error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{e.recipientPath, e.identityPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}
	if err := os.WriteFile(e.recipientPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing recipient: %w", err)
	}
	if err := os.WriteFile(e.identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("writing identity: %w", err)
	}
	return nil
}

// Encrypt returns a writer that age-encrypts everything written to it into
// dst. The writer must be closed to flush the final chunk.
func (e *AgeEncryptor) Encrypt(dst io.Writer) (io.WriteCloser, error) {
	recipient, err := e.loadRecipient()
	if err != nil {
		return nil, fmt.Errorf("loading recipient: %w", err)
	}

	w, err := age.Encrypt(dst, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	return w, nil
}

// Decrypt returns a reader yielding the plaintext of the age stream in src.
func (e *AgeEncryptor) Decrypt(src io.Reader) (io.Reader, error) {
	identity, err := e.loadIdentity()
	if err != nil {
		return nil, fmt.Errorf("loading identity: %w", err)
	}

	r, err := age.Decrypt(src, identity)
	if err != nil {
		return nil, fmt.Errorf("creating decrypted reader: %w", err)
	}
	return r, nil
}

// IsConfigured returns true if the recipient file exists.
func (e *AgeEncryptor) IsConfigured() bool {
	_, err := os.Stat(e.recipientPath)
	return err == nil
}

func (e *AgeEncryptor) loadRecipient() (age.Recipient, error) {
	data, err := os.ReadFile(e.recipientPath)
	if err != nil {
		return nil, fmt.Errorf("reading recipient file: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing recipient file: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in %s", e.recipientPath)
	}
	return recipients[0], nil
}

func (e *AgeEncryptor) loadIdentity() (age.Identity, error) {
	data, err := os.ReadFile(e.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing identity file: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in %s", e.identityPath)
	}
	return identities[0], nil
}
