package token

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/pysugar/photo-slideshow/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLBackend keeps credentials as rows of models.Credential.
type SQLBackend struct {
	db *gorm.DB
}

// NewSQLBackend expects db to be migrated already (see db.InitDB).
func NewSQLBackend(db *gorm.DB) *SQLBackend {
	return &SQLBackend{db: db}
}

func (b *SQLBackend) Load(accountID string) (Credential, error) {
	var row models.Credential
	err := b.db.Where("account_id = ?", accountID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Credential{}, ErrRecordNotFound
	}
	if err != nil {
		return Credential{}, &RecordCorruptError{AccountID: accountID, Err: err}
	}
	return credentialFromRow(row)
}

// Store upserts by account id. created_at survives the overwrite.
func (b *SQLBackend) Store(cred Credential) error {
	if err := cred.validate(); err != nil {
		return fmt.Errorf("refusing to store credential: %w", err)
	}
	row := models.Credential{
		AccountID:    cred.AccountID,
		Email:        cred.Email,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Scopes:       strings.Join(cred.Scopes, " "),
		Expiry:       cred.Expiry.UTC(),
	}
	err := b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (b *SQLBackend) List() ([]Credential, error) {
	var rows []models.Credential
	if err := b.db.Order("account_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	creds := make([]Credential, 0, len(rows))
	for _, row := range rows {
		cred, err := credentialFromRow(row)
		if err != nil {
			log.Printf("⚠️ [Store] Skipping row %s: %v", row.AccountID, err)
			continue
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

func (b *SQLBackend) Delete(accountID string) (bool, error) {
	res := b.db.Where("account_id = ?", accountID).Delete(&models.Credential{})
	if res.Error != nil {
		return false, fmt.Errorf("delete credential: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func credentialFromRow(row models.Credential) (Credential, error) {
	cred := Credential{
		AccountID:    row.AccountID,
		Email:        row.Email,
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		Scopes:       strings.Fields(row.Scopes),
		Expiry:       row.Expiry.UTC(),
	}
	if err := cred.validate(); err != nil {
		return Credential{}, &RecordCorruptError{AccountID: row.AccountID, Err: err}
	}
	return cred, nil
}
