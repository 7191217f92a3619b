package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrCiphertext = errors.New("malformed ciphertext")

// AccountCipher seals bank account numbers at rest with XChaCha20-Poly1305.
// Ciphertext layout is nonce || sealed.
type AccountCipher struct {
	key []byte
}

func NewAccountCipher(key []byte) (*AccountCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("account cipher key must be %d bytes", chacha20poly1305.KeySize)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &AccountCipher{key: k}, nil
}

func (c *AccountCipher) Seal(plain string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, []byte(plain), nil), nil
}

func (c *AccountCipher) Open(sealed []byte) (string, error) {
	if len(sealed) == 0 {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertext
	}
	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", ErrCiphertext
	}
	return string(plain), nil
}

// SealString is Seal with base64 output, for text columns.
func (c *AccountCipher) SealString(plain string) (string, error) {
	b, err := c.Seal(plain)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (c *AccountCipher) OpenString(sealed string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrCiphertext
	}
	return c.Open(b)
}

// LastDigits returns up to the last n characters of an account number.
func LastDigits(account string, n int) string {
	account = strings.TrimSpace(account)
	if len(account) <= n {
		return account
	}
	return account[len(account)-n:]
}

// MaskAccount renders an account number as "****1234". Empty stays empty.
func MaskAccount(account string) string {
	if account == "" {
		return ""
	}
	return "****" + LastDigits(account, 4)
}
