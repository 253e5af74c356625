/*
Package credentials - SII credential storage and retrieval (C3)

Wraps the crypto vault around TaxpayerSiiCredentials so callers always work
with plaintext passwords in memory only, never touching the encrypted
column directly.
*/
package credentials

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fizko/internal/cryptovault"
	fizkoerrors "fizko/internal/errors"
	"fizko/internal/models"
)

// Store reads and writes encrypted SII credentials.
type Store struct {
	db    *gorm.DB
	vault *cryptovault.Vault
}

// New returns a Store backed by db and vault.
func New(db *gorm.DB, vault *cryptovault.Vault) *Store {
	return &Store{db: db, vault: vault}
}

// Resolved is a decrypted credential pair ready to pass to portal.Adapter.Login.
type Resolved struct {
	Username string
	Password string
}

// Get loads and decrypts the credentials for taxpayerID.
//
// Returns ErrNoCredentials if none are on file, ErrCredentialsDisabled if
// they are present but disabled, and ErrDecryptionFailed (fatal) if the
// stored ciphertext cannot be opened with the configured master secret.
func (s *Store) Get(ctx context.Context, taxpayerID uuid.UUID) (Resolved, error) {
	var creds models.TaxpayerSiiCredentials
	err := s.db.WithContext(ctx).Where("taxpayer_id = ?", taxpayerID).First(&creds).Error
	if err == gorm.ErrRecordNotFound {
		return Resolved{}, fizkoerrors.ErrNoCredentials
	}
	if err != nil {
		return Resolved{}, fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}
	if creds.Disabled {
		return Resolved{}, fizkoerrors.ErrCredentialsDisabled
	}

	plaintext, err := s.vault.Open(creds.Ciphertext)
	if err != nil {
		return Resolved{}, err // already an ErrDecryptionFailed AppError
	}

	return Resolved{Username: creds.Username, Password: plaintext}, nil
}

// Set encrypts and upserts credentials for taxpayerID.
func (s *Store) Set(ctx context.Context, taxpayerID uuid.UUID, username, password string) error {
	ciphertext, err := s.vault.Seal(password)
	if err != nil {
		return err
	}

	var existing models.TaxpayerSiiCredentials
	err = s.db.WithContext(ctx).Where("taxpayer_id = ?", taxpayerID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return s.db.WithContext(ctx).Create(&models.TaxpayerSiiCredentials{
			TaxpayerID: taxpayerID,
			Username:   username,
			Ciphertext: ciphertext,
		}).Error
	}
	if err != nil {
		return fizkoerrors.Wrap(err, fizkoerrors.ErrInternal)
	}

	existing.Username = username
	existing.Ciphertext = ciphertext
	existing.Disabled = false
	return s.db.WithContext(ctx).Save(&existing).Error
}

// Disable marks credentials disabled without deleting them, e.g. after a
// sustained AuthError from the portal.
func (s *Store) Disable(ctx context.Context, taxpayerID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.TaxpayerSiiCredentials{}).
		Where("taxpayer_id = ?", taxpayerID).
		Update("disabled", true).Error
}
