package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	ErrInvalidKeySize       = errors.New("invalid AES key size (must be 16, 24, or 32 bytes)")
	ErrInvalidCiphertext    = errors.New("ciphertext too short to contain nonce")
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")
)

// NewAESGCM creates a new AES-GCM cipher block based on the key size.
func NewAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		// aes.NewCipher rejects keys that are not 16, 24 or 32 bytes
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aead, nil
}

// Encrypt encrypts plaintext using AES-GCM.
// It generates a random nonce and prepends it to the returned ciphertext.
func Encrypt(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	// Never use more than 2^32 random nonces with a given key because of the risk of repeat.
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the ciphertext and authentication tag to its first argument,
	// so passing the nonce there stores it in front of the ciphertext.
	return aead.Seal(nonce, nonce, plaintext, nil), nil // no additional authenticated data
}

// Decrypt decrypts ciphertextWithNonce (which includes the prepended nonce) using AES-GCM.
func Decrypt(aead cipher.AEAD, ciphertextWithNonce []byte) ([]byte, error) {
	nonceSize := aead.NonceSize()
	if len(ciphertextWithNonce) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	// Split off the nonce written by Encrypt
	nonce := ciphertextWithNonce[:nonceSize]
	ciphertext := ciphertextWithNonce[nonceSize:]

	// Open verifies the authentication tag before returning the plaintext.
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// Usually "cipher: message authentication failed": wrong key or tampered data
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	return plaintext, nil
}

// envelope is the JSONB shape stored in the backend for encrypted blobs.
type envelope struct {
	Encrypted string `json:"encrypted"`
}

// SealJSON marshals v, encrypts it and wraps the ciphertext as {"encrypted":"<base64>"}.
func SealJSON(aead cipher.AEAD, v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal plaintext: %w", err)
	}
	ciphertext, err := Encrypt(aead, plaintext)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Encrypted: base64.StdEncoding.EncodeToString(ciphertext)})
}

// OpenJSON reverses SealJSON into v. An empty or null payload leaves v untouched.
func OpenJSON(aead cipher.AEAD, wrapped []byte, v any) error {
	if len(wrapped) == 0 || string(wrapped) == "null" {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(wrapped, &env); err != nil {
		return fmt.Errorf("%w: malformed envelope: %v", ErrInvalidCiphertext, err)
	}
	if env.Encrypted == "" {
		return nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Encrypted)
	if err != nil {
		return fmt.Errorf("%w: bad base64: %v", ErrInvalidCiphertext, err)
	}
	plaintext, err := Decrypt(aead, ciphertext)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("unmarshal plaintext: %w", err)
	}
	return nil
}
