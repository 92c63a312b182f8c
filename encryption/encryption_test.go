package encryption

import (
	"errors"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmChaCha20, AlgorithmAESGCM} {
		t.Run(string(alg), func(t *testing.T) {
			enc, err := New("passphrase", WithAlgorithm(alg))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			for _, secret := range []string{"sk-test-123", "", "こんにちは"} {
				sealed, err := enc.Encrypt(secret)
				if err != nil {
					t.Fatalf("Encrypt: %v", err)
				}
				if secret != "" && sealed == secret {
					t.Error("ciphertext equals plaintext")
				}
				got, err := enc.Decrypt(sealed)
				if err != nil {
					t.Fatalf("Decrypt: %v", err)
				}
				if got != secret {
					t.Errorf("got %q, want %q", got, secret)
				}
			}
		})
	}
}

func TestEncrypt_RandomNonce(t *testing.T) {
	enc, _ := New("k")
	a, _ := enc.Encrypt("same")
	b, _ := enc.Encrypt("same")
	if a == b {
		t.Error("expected different ciphertexts")
	}
}

func TestDecrypt_Failures(t *testing.T) {
	enc, _ := New("key-one")
	other, _ := New("key-two")
	sameKeyOtherPurpose, _ := New("key-one", WithInfo("other"))

	sealed, _ := enc.Encrypt("secret")
	if _, err := other.Decrypt(sealed); err == nil {
		t.Error("decrypted with wrong key")
	}
	if _, err := sameKeyOtherPurpose.Decrypt(sealed); err == nil {
		t.Error("decrypted with key for a different purpose")
	}
	if _, err := enc.Decrypt("not base64!!"); err == nil {
		t.Error("expected base64 error")
	}
	if _, err := enc.Decrypt("YQ=="); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("err = %v", err)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty passphrase")
	}
	if _, err := New("k", WithAlgorithm("rot13")); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}
