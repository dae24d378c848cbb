// Encryption is an AES-256-CBC Root with an explicit IV prepended to the
// ciphertext. Keys are either supplied directly or derived via
// PBKDF2-SHA256 from a password and a per-Root salt, so two Encryption
// roots with different salts never collide even when given the same
// password.
package roots

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/cuemby/acorndb/pkg/pipeline"
)

const (
	pbkdf2Iterations = 10000
	aes256KeyLen      = 32
)

// Encryption is a Root that encrypts record bytes with AES-256-CBC on write
// and decrypts on read. The IV is generated fresh per write and prepended
// to the ciphertext.
type Encryption struct {
	name     string
	sequence int
	key      []byte
}

// NewEncryptionFromPassword derives a 32-byte AES key from password and salt
// via PBKDF2-HMAC-SHA256 (10000 iterations).
func NewEncryptionFromPassword(name string, sequence int, password string, salt []byte) (*Encryption, error) {
	if password == "" {
		return nil, fmt.Errorf("roots: encryption password must not be empty")
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("roots: encryption salt must not be empty")
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aes256KeyLen, sha256.New)
	return NewEncryptionFromKey(name, sequence, key)
}

// NewEncryptionFromKey builds an Encryption Root from an explicit 32-byte key.
func NewEncryptionFromKey(name string, sequence int, key []byte) (*Encryption, error) {
	if len(key) != aes256KeyLen {
		return nil, fmt.Errorf("roots: encryption key must be %d bytes, got %d", aes256KeyLen, len(key))
	}
	return &Encryption{name: name, sequence: sequence, key: key}, nil
}

func (e *Encryption) Name() string  { return e.name }
func (e *Encryption) Sequence() int { return e.sequence }

func (e *Encryption) OnWrite(ctx *pipeline.Context, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("roots: new cipher: %w", err)
	}

	padded := pkcs7Pad(data, aes.BlockSize)

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("roots: generate iv: %w", err)
	}

	ciphertext := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, padded)

	ctx.AppendSignature(e.name)
	return append(iv, ciphertext...), nil
}

func (e *Encryption) OnRead(ctx *pipeline.Context, data []byte) ([]byte, error) {
	if len(data) < aes.BlockSize {
		return nil, fmt.Errorf("roots: ciphertext shorter than iv")
	}
	iv, ciphertext := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("roots: ciphertext not block-aligned")
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("roots: new cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("roots: cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("roots: invalid padding")
	}
	return data[:len(data)-padLen], nil
}
