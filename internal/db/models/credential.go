package models

import "time"

// Credential is the SQL row for one authenticated Google account.
type Credential struct {
	AccountID    string `gorm:"primaryKey"` // Google account id ("sub")
	Email        string `gorm:"index"`
	AccessToken  string `gorm:"not null"`
	RefreshToken string
	Scopes       string // space separated, in grant order
	Expiry       time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
