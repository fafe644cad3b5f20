package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/ports/adapter"
)

var _ adapter.Cipher = (*EncryptionService)(nil)

// EncryptionService seals PII (mobile-money MSISDNs) before it reaches the database.
// AES-GCM with a random nonce per message; output is base64(nonce || ciphertext).
type EncryptionService struct {
	gcm cipher.AEAD
	ad  []byte
}

// NewEncryptionService builds an AES-GCM cipher. Key must be 16, 24 or 32 bytes.
// purpose is bound as additional data so a value sealed for one column cannot be
// replayed into another.
func NewEncryptionService(key, purpose string) (*EncryptionService, error) {
	k := []byte(key)
	n := len(k)
	if n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm, ad: []byte(purpose)}, nil
}

func (e *EncryptionService) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, []byte(plaintext), e.ad)
	return base64.StdEncoding.EncodeToString(ct), nil
}

func (e *EncryptionService) Decrypt(b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns {
		return "", errors.New("ciphertext too short")
	}
	nonce, ct := data[:ns], data[ns:]
	pt, err := e.gcm.Open(nil, nonce, ct, e.ad)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

var msisdnRe = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// NormalizePhone strips spaces and dashes and checks E.164 shape.
func NormalizePhone(raw string) (string, error) {
	s := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	if !msisdnRe.MatchString(s) {
		return "", domain.ErrInvalidPhone
	}
	return s, nil
}

// MaskPhone keeps the country prefix and last two digits, e.g. +2547******78.
func MaskPhone(msisdn string) string {
	if len(msisdn) < 7 {
		return "***"
	}
	return msisdn[:5] + strings.Repeat("*", len(msisdn)-7) + msisdn[len(msisdn)-2:]
}
