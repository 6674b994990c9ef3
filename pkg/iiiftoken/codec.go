package iiiftoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wdb/iiifgate/pkg/clock"
)

// Version is written into every payload.
const Version = 1

// ErrInvalidToken is returned for every verification failure. The wrapped
// detail is meant for logs only.
var ErrInvalidToken = errors.New("iiiftoken: invalid or expired token")

var segmentEncoding = base64.RawURLEncoding.Strict()

// Payload is the signed body of a token.
type Payload struct {
	Subsystem  string `json:"s"`
	Identifier string `json:"i"`
	Principal  int64  `json:"u"`
	ExpiresAt  int64  `json:"exp"`
	Version    int    `json:"ver"`
	Nonce      string `json:"nonce"`
}

// Expired reports whether the payload is no longer valid at now. Expiry is
// exclusive: a token expiring at t is already invalid at t.
func (p Payload) Expired(now time.Time) bool {
	return p.ExpiresAt <= now.Unix()
}

// Codec signs and verifies tokens with the secret of a SecretSource.
type Codec struct {
	secret *SecretSource
	clock  clock.Clock
}

// NewCodec returns a Codec. A nil clock means the real clock.
func NewCodec(secret *SecretSource, clk clock.Clock) *Codec {
	if clk == nil {
		clk = clock.Real()
	}
	return &Codec{secret: secret, clock: clk}
}

// Sign serializes p and returns the signed token.
func (c *Codec) Sign(p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	encoded := segmentEncoding.EncodeToString(body)
	mac, err := c.mac(encoded)
	if err != nil {
		return "", err
	}

	return encoded + "." + segmentEncoding.EncodeToString(mac), nil
}

// Verify checks token against the current time.
func (c *Codec) Verify(token string) (Payload, error) {
	return c.VerifyAt(token, c.clock.Now())
}

// VerifyAt checks the structure, signature and expiry of token at now. On
// any failure it returns a zero Payload and an error wrapping
// ErrInvalidToken.
func (c *Codec) VerifyAt(token string, now time.Time) (Payload, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Payload{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Payload{}, fmt.Errorf("%w: expected 2 segments, got %d", ErrInvalidToken, len(parts))
	}

	body, err := segmentEncoding.DecodeString(parts[0])
	if err != nil {
		return Payload{}, fmt.Errorf("%w: payload encoding: %v", ErrInvalidToken, err)
	}
	signature, err := segmentEncoding.DecodeString(parts[1])
	if err != nil {
		return Payload{}, fmt.Errorf("%w: signature encoding: %v", ErrInvalidToken, err)
	}

	expected, err := c.mac(parts[0])
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !hmac.Equal(expected, signature) {
		return Payload{}, fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: payload: %v", ErrInvalidToken, err)
	}
	if p.Expired(now) {
		return Payload{}, fmt.Errorf("%w: expired at %d", ErrInvalidToken, p.ExpiresAt)
	}

	return p, nil
}

// Ready reports whether the signing secret can be derived.
func (c *Codec) Ready() error {
	return c.secret.Ready()
}

// mac signs the encoded payload segment, not the JSON it decodes to.
func (c *Codec) mac(segment string) ([]byte, error) {
	secret, err := c.secret.get()
	if err != nil {
		return nil, err
	}
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(segment))
	return h.Sum(nil), nil
}
