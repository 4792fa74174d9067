// Package keys implements the wallet's crypto engine and key
// derivation service: PIN-based encryption of secret material and
// deterministic multi-chain keypair derivation from one seed.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// Encryption constants.
const (
	// SaltSize is the PBKDF2 salt length in bytes.
	SaltSize = 32

	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12

	// KeySize is the derived AES-256 key length in bytes.
	KeySize = 32

	// DefaultIterations is the default PBKDF2 iteration count.
	DefaultIterations = 300_000

	// MinIterations is the lowest iteration count Validate accepts.
	MinIterations = 200_000
)

// Params holds PBKDF2 parameters. Tests pass low-cost params
// explicitly; production code uses DefaultParams.
type Params struct {
	Iterations int
}

// DefaultParams returns the recommended PBKDF2 parameters.
func DefaultParams() Params {
	return Params{Iterations: DefaultIterations}
}

// Blob is an encrypted secret: PBKDF2 salt, AES-GCM nonce, and
// ciphertext. The iteration count is recorded per blob so existing
// vaults survive changes to the default.
type Blob struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
	Iterations int    `json:"iterations"`
}

// IsZero reports whether the blob is empty (no ciphertext).
func (b Blob) IsZero() bool {
	return len(b.Ciphertext) == 0
}

// DeriveKey derives a 32-byte AES key from a PIN and salt using
// PBKDF2-HMAC-SHA256. Callers must zero the returned key after use.
func DeriveKey(pin string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(pin), salt, iterations, KeySize, sha256.New)
}

// Encrypt encrypts plaintext under a key derived from the PIN.
// A fresh random salt and nonce are generated on every call; nonces
// are never reused across encryptions.
func Encrypt(plaintext []byte, pin string, params Params) (Blob, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return Blob{}, fmt.Errorf("generate salt: %w", err)
	}

	key := DeriveKey(pin, salt, params.Iterations)
	defer Zero(key)

	aead, err := newGCM(key)
	if err != nil {
		return Blob{}, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Blob{}, fmt.Errorf("generate nonce: %w", err)
	}

	return Blob{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
		Iterations: params.Iterations,
	}, nil
}

// Decrypt decrypts a blob with a key derived from the PIN. A wrong
// PIN and a tampered ciphertext both fail the GCM authentication tag
// and return werr.ErrDecryptionFailed; the two cases are intentionally
// indistinguishable.
func Decrypt(blob Blob, pin string) ([]byte, error) {
	if len(blob.Salt) != SaltSize || len(blob.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: malformed blob", werr.ErrDecryptionFailed)
	}
	iterations := blob.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	key := DeriveKey(pin, blob.Salt, iterations)
	defer Zero(key)

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, werr.ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptWithKey encrypts plaintext directly under a 32-byte key,
// skipping the PBKDF2 step. Used for the remembered-PIN blob, which
// is bound to the random installation secret rather than a user PIN.
func EncryptWithKey(plaintext, key []byte) (Blob, error) {
	aead, err := newGCM(key)
	if err != nil {
		return Blob{}, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Blob{}, fmt.Errorf("generate nonce: %w", err)
	}
	return Blob{
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// DecryptWithKey decrypts a blob produced by EncryptWithKey.
func DecryptWithKey(blob Blob, key []byte) ([]byte, error) {
	if len(blob.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: malformed blob", werr.ErrDecryptionFailed)
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, werr.ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return aead, nil
}

// Zero overwrites b with zeros. Used on derived keys and decrypted
// secrets as soon as they are no longer needed.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
