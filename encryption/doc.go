// Package encryption seals stored provider credentials with an AEAD keyed
// from a passphrase.
//
//	enc, err := encryption.New(passphrase)
//	sealed, err := enc.Encrypt(apiKey)
package encryption
