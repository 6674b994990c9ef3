package cryptox

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SiteSecret is sha256(material + ":" + salt), the secret the host
// application derives from its private key and hash salt.
func SiteSecret(material, salt []byte) ([]byte, error) {
	if len(material) == 0 {
		return nil, errors.New("key material is empty")
	}
	h := sha256.New()
	h.Write(material)
	h.Write([]byte{':'})
	h.Write(salt)
	return h.Sum(nil), nil
}

// DeriveKey expands key material and a salt into a size-byte key with
// HKDF-SHA256. The info label separates keys derived for different uses
// from the same material.
func DeriveKey(material, salt []byte, info string, size int) ([]byte, error) {
	if len(material) == 0 {
		return nil, errors.New("key material is empty")
	}
	if size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d", size)
	}

	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, salt, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
