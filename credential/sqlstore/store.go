package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/scribe/encryption"
	"github.com/kbukum/scribe/logger"
)

// Credential is one stored provider secret. Secret holds ciphertext.
type Credential struct {
	Provider  string `gorm:"primaryKey;size:64"`
	Secret    string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name.
func (Credential) TableName() string { return "credentials" }

// Store keeps encrypted credentials in SQLite.
type Store struct {
	db  *gorm.DB
	enc encryption.Encryptor
	log *logger.Logger
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, enc encryption.Encryptor, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.WithComponent("credential-store")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newGormLogger(log)})
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return New(db, enc, log)
}

// New wraps an open database and migrates the credentials table.
func New(db *gorm.DB, enc encryption.Encryptor, log *logger.Logger) (*Store, error) {
	if enc == nil {
		return nil, errors.New("credential store needs an encryptor")
	}
	if log == nil {
		log = logger.WithComponent("credential-store")
	}
	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, fmt.Errorf("migrate credentials: %w", err)
	}
	return &Store{db: db, enc: enc, log: log}, nil
}

// Lookup implements credential.Store.
func (s *Store) Lookup(ctx context.Context, provider string) (string, bool, error) {
	var c Credential
	err := s.db.WithContext(ctx).First(&c, "provider = ?", provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %s: %w", provider, err)
	}
	secret, err := s.enc.Decrypt(c.Secret)
	if err != nil {
		return "", false, fmt.Errorf("decrypt %s credential: %w", provider, err)
	}
	return secret, true, nil
}

// Set stores or replaces a secret.
func (s *Store) Set(ctx context.Context, provider, secret string) error {
	if provider == "" || secret == "" {
		return errors.New("provider and secret are required")
	}
	sealed, err := s.enc.Encrypt(secret)
	if err != nil {
		return err
	}
	c := Credential{Provider: provider, Secret: sealed}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"secret", "updated_at"}),
	}).Create(&c).Error
	if err != nil {
		return fmt.Errorf("store %s credential: %w", provider, err)
	}
	s.log.Info("credential stored", logger.Fields("provider", provider))
	return nil
}

// Delete removes a secret. Deleting an absent secret is not an error.
func (s *Store) Delete(ctx context.Context, provider string) error {
	if err := s.db.WithContext(ctx).Delete(&Credential{}, "provider = ?", provider).Error; err != nil {
		return fmt.Errorf("delete %s credential: %w", provider, err)
	}
	return nil
}

// List returns stored provider names, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&Credential{}).Order("provider").Pluck("provider", &names).Error
	return names, err
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
