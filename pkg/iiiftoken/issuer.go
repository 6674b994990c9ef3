package iiiftoken

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wdb/iiifgate/pkg/cryptox"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 600 * time.Second

// ErrInvalidInput is returned when the subsystem or identifier is blank.
var ErrInvalidInput = errors.New("iiiftoken: subsystem and identifier are required")

// Issuer mints tokens for a single issuing context, typically one HTTP
// request. Repeated requests for the same subsystem, identifier and
// principal return the first result instead of signing again. Issuers must
// not be shared between requests.
type Issuer struct {
	codec *Codec
	ttl   time.Duration

	mu   sync.Mutex
	memo map[issueKey]issueResult
}

type issueKey struct {
	subsystem  string
	identifier string
	principal  int64
}

type issueResult struct {
	token string
	err   error
}

// NewIssuer returns an Issuer whose tokens live for ttl, rounded down to
// whole seconds. A ttl under one second falls back to DefaultTTL.
func (c *Codec) NewIssuer(ttl time.Duration) *Issuer {
	if ttl < time.Second {
		ttl = DefaultTTL
	}
	return &Issuer{
		codec: c,
		ttl:   ttl.Truncate(time.Second),
		memo:  make(map[issueKey]issueResult),
	}
}

// TTL returns the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue returns a token scoped to subsystem, identifier and principal. A
// principal of 0 is anonymous.
func (i *Issuer) Issue(subsystem, identifier string, principal int64) (string, error) {
	subsystem = strings.TrimSpace(subsystem)
	identifier = strings.TrimSpace(identifier)
	if subsystem == "" || identifier == "" {
		return "", ErrInvalidInput
	}

	key := issueKey{
		subsystem:  strings.ToLower(subsystem),
		identifier: identifier,
		principal:  principal,
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if res, ok := i.memo[key]; ok {
		return res.token, res.err
	}

	token, err := i.issue(subsystem, identifier, principal)
	i.memo[key] = issueResult{token: token, err: err}
	return token, err
}

func (i *Issuer) issue(subsystem, identifier string, principal int64) (string, error) {
	nonce, err := cryptox.GenerateNonce(cryptox.NonceSize)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	return i.codec.Sign(Payload{
		Subsystem:  subsystem,
		Identifier: identifier,
		Principal:  principal,
		ExpiresAt:  i.codec.clock.Now().Unix() + int64(i.ttl/time.Second),
		Version:    Version,
		Nonce:      nonce,
	})
}
