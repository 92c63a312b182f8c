package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Encryptor encrypts short secrets to printable strings.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Algorithm names a supported AEAD.
type Algorithm string

const (
	AlgorithmAESGCM   Algorithm = "aes-256-gcm"
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

// ErrCiphertextTooShort is returned for input shorter than a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Option configures New.
type Option func(*options)

type options struct {
	algorithm Algorithm
	info      string
}

// WithAlgorithm selects the AEAD. The default is ChaCha20-Poly1305.
func WithAlgorithm(alg Algorithm) Option {
	return func(o *options) { o.algorithm = alg }
}

// WithInfo binds derived keys to a purpose, so the same passphrase yields
// unrelated keys for different uses.
func WithInfo(info string) Option {
	return func(o *options) { o.info = info }
}

// New derives a 256-bit key from passphrase with HKDF-SHA256 and returns
// an Encryptor for the selected algorithm.
func New(passphrase string, opts ...Option) (Encryptor, error) {
	if passphrase == "" {
		return nil, errors.New("encryption: empty passphrase")
	}
	o := &options{algorithm: AlgorithmChaCha20, info: "scribe"}
	for _, opt := range opts {
		opt(o)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(passphrase), nil, []byte(o.info)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch o.algorithm {
	case AlgorithmChaCha20:
		aead, err = chacha20poly1305.New(key)
	case AlgorithmAESGCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key); err == nil {
			aead, err = cipher.NewGCM(block)
		}
	default:
		return nil, fmt.Errorf("encryption: unsupported algorithm %q", o.algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", o.algorithm, err)
	}
	return &aeadEncryptor{aead: aead}, nil
}

type aeadEncryptor struct {
	aead cipher.AEAD
}

// Encrypt seals plaintext under a random nonce and returns
// base64(nonce || ciphertext).
func (e *aeadEncryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(e.aead.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

// Decrypt reverses Encrypt.
func (e *aeadEncryptor) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	n := e.aead.NonceSize()
	if len(data) < n {
		return "", ErrCiphertextTooShort
	}
	plaintext, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
