// Package sqlstore persists provider credentials in SQLite through gorm,
// sealing each secret with an encryption.Encryptor.
package sqlstore
