package iiiftoken

import (
	"fmt"
	"sync"

	"github.com/wdb/iiifgate/pkg/cryptox"
)

// Derivation selects how the signing secret is derived from key material
// and salt.
type Derivation string

const (
	// DerivationSite is sha256(key + ":" + salt), shared with the host
	// application so tokens it mints verify here and vice versa.
	DerivationSite Derivation = "site"

	// DerivationHKDF derives a purpose-bound key with HKDF-SHA256. Use it
	// when the gate is the only issuer.
	DerivationHKDF Derivation = "hkdf"
)

// ParseDerivation maps a configured name to a Derivation. Empty means
// DerivationSite.
func ParseDerivation(name string) (Derivation, error) {
	switch d := Derivation(name); d {
	case "":
		return DerivationSite, nil
	case DerivationSite, DerivationHKDF:
		return d, nil
	default:
		return "", fmt.Errorf("unknown secret derivation %q", name)
	}
}

// hkdfInfo separates the token signing key from anything else derived
// from the same site key material.
const hkdfInfo = "iiifgate/token-signing/v1"

// SecretSource derives the signing secret from private key material and a
// site-wide salt the first time it is needed, then keeps it for the life of
// the process. The secret is never exposed outside this package.
type SecretSource struct {
	load       func() ([]byte, error)
	salt       []byte
	derivation Derivation

	once   sync.Once
	secret []byte
	err    error
}

type SecretOption func(*SecretSource)

// WithDerivation overrides the default DerivationSite.
func WithDerivation(d Derivation) SecretOption {
	return func(s *SecretSource) { s.derivation = d }
}

// NewSecretSource returns a SecretSource that calls load for the key
// material on first use.
func NewSecretSource(load func() ([]byte, error), salt string, opts ...SecretOption) *SecretSource {
	s := &SecretSource{load: load, salt: []byte(salt), derivation: DerivationSite}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StaticSecret is a SecretSource over fixed key material.
func StaticSecret(material []byte, salt string, opts ...SecretOption) *SecretSource {
	return NewSecretSource(func() ([]byte, error) { return material, nil }, salt, opts...)
}

func (s *SecretSource) get() ([]byte, error) {
	s.once.Do(func() {
		material, err := s.load()
		if err != nil {
			s.err = fmt.Errorf("load key material: %w", err)
			return
		}
		switch s.derivation {
		case DerivationHKDF:
			s.secret, s.err = cryptox.DeriveKey(material, s.salt, hkdfInfo, 32)
		case DerivationSite:
			s.secret, s.err = cryptox.SiteSecret(material, s.salt)
		default:
			s.err = fmt.Errorf("unknown secret derivation %q", s.derivation)
		}
	})
	return s.secret, s.err
}

// Ready derives the secret if needed and reports whether it is usable.
func (s *SecretSource) Ready() error {
	_, err := s.get()
	return err
}
