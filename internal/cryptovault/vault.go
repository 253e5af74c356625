/*
Package cryptovault - Symmetric encryption for SII portal credentials.

==============================================================================
FILE: internal/cryptovault/vault.go
==============================================================================

DESCRIPTION:
    Encrypts/decrypts TaxpayerSiiCredentials.Ciphertext with AES-256-GCM, an
    authenticated cipher: tampering with stored ciphertext is detected at
    decrypt time rather than silently producing garbage plaintext. Key
    material comes from MASTER_SECRET: if it decodes to exactly 32 raw
    bytes it is used directly, otherwise it is stretched with SHA-256.

DEVELOPER GUIDELINES:
    DO NOT modify: the AEAD scheme without a migration path for existing
    ciphertexts — this is a one-way door for every stored credential.

==============================================================================
*/
package cryptovault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	fizkoerrors "fizko/internal/errors"
)

// Vault seals and opens credential ciphertext with a single master key.
type Vault struct {
	key [32]byte
}

// New derives a Vault from the configured master secret.
func New(masterSecret string) *Vault {
	v := &Vault{}
	raw := []byte(masterSecret)
	if len(raw) == 32 {
		copy(v.key[:], raw)
	} else {
		v.key = sha256.Sum256(raw)
	}
	return v
}

// Seal encrypts plaintext and returns URL-safe base64 ciphertext suitable
// for storage in TaxpayerSiiCredentials.Ciphertext.
func (v *Vault) Seal(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return "", fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts ciphertext produced by Seal. A DecryptionFailed error is
// fatal per the error taxonomy: it means the master secret changed or the
// stored value was corrupted/tampered, and the run must abort rather than
// retry.
func (v *Vault) Open(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fizkoerrors.Wrap(err, fizkoerrors.ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return "", fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fizkoerrors.ErrDecryptionFailed.WithMessage("ciphertext too short")
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fizkoerrors.Wrap(err, fizkoerrors.ErrDecryptionFailed)
	}
	return string(plaintext), nil
}
