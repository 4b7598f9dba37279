// Package cipher provides authenticated symmetric encryption for document
// and thumbnail bytes at rest.
package cipher

import (
	"crypto/rand"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// Reader decrypts ciphertext produced by a matching Writer.
type Reader interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Writer encrypts plaintext.
type Writer interface {
	Encrypt(plaintext []byte) ([]byte, error)
}

// ReadWriter is the combined capability most callers need.
type ReadWriter interface {
	Reader
	Writer
}

// Cipher implements ReadWriter with XChaCha20-Poly1305. The key and nonce
// are process-global and generated lazily on first use: this matches the
// reference implementation's documented limitation that ciphertext does not
// survive a process restart (see SPEC_FULL.md §9 for the redesign note).
type Cipher struct {
	once  sync.Once
	aead  interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
	nonce []byte
	err   error
}

// New returns a Cipher. Key/nonce generation is deferred to the first
// Encrypt/Decrypt call.
func New() *Cipher {
	return &Cipher{}
}

func (c *Cipher) init() {
	c.once.Do(func() {
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			c.err = fmt.Errorf("cipher: generate key: %w", err)
			return
		}
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			c.err = fmt.Errorf("cipher: build aead: %w", err)
			return
		}
		nonce := make([]byte, aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			c.err = fmt.Errorf("cipher: generate nonce: %w", err)
			return
		}
		c.aead = aead
		c.nonce = nonce
	})
}

// Encrypt seals plaintext under the process-wide key/nonce.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	c.init()
	if c.err != nil {
		return nil, c.err
	}
	return c.aead.Seal(nil, c.nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext sealed by Encrypt on this same process.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	c.init()
	if c.err != nil {
		return nil, c.err
	}
	plaintext, err := c.aead.Open(nil, c.nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cipher: decrypt: %w", err)
	}
	return plaintext, nil
}
