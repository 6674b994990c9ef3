package iiiftoken_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wdb/iiifgate/pkg/clock"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
)

var issuedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newCodec(t *testing.T) (*iiiftoken.Codec, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(issuedAt)
	secret := iiiftoken.StaticSecret([]byte("site-private-key"), "hash-salt")
	return iiiftoken.NewCodec(secret, clk), clk
}

func samplePayload() iiiftoken.Payload {
	return iiiftoken.Payload{
		Subsystem:  "hdb",
		Identifier: "wdb/hdb/doc1/1.ptif",
		Principal:  42,
		ExpiresAt:  issuedAt.Add(10 * time.Minute).Unix(),
		Version:    iiiftoken.Version,
		Nonce:      "0123456789abcdef",
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()
	codec, _ := newCodec(t)

	token, err := codec.Sign(samplePayload())
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(token, "."))
	require.NotContains(t, token, "=")

	got, err := codec.Verify(token)
	require.NoError(t, err)
	require.Equal(t, samplePayload(), got)
}

func TestCodec_WireFormat(t *testing.T) {
	t.Parallel()
	codec, _ := newCodec(t)

	token, err := codec.Sign(samplePayload())
	require.NoError(t, err)

	body, err := base64.RawURLEncoding.DecodeString(strings.SplitN(token, ".", 2)[0])
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	require.Equal(t, "hdb", raw["s"])
	require.Equal(t, "wdb/hdb/doc1/1.ptif", raw["i"])
	require.EqualValues(t, 42, raw["u"])
	require.EqualValues(t, 1, raw["ver"])
	require.Equal(t, "0123456789abcdef", raw["nonce"])
	require.Contains(t, raw, "exp")
}

func TestCodec_RejectsSignatureBitFlips(t *testing.T) {
	t.Parallel()
	codec, _ := newCodec(t)

	token, err := codec.Sign(samplePayload())
	require.NoError(t, err)

	parts := strings.SplitN(token, ".", 2)
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	for i := range len(sig) * 8 {
		flipped := append([]byte(nil), sig...)
		flipped[i/8] ^= 1 << (i % 8)
		forged := parts[0] + "." + base64.RawURLEncoding.EncodeToString(flipped)

		_, err := codec.Verify(forged)
		require.ErrorIs(t, err, iiiftoken.ErrInvalidToken, "bit %d", i)
	}
}

func TestCodec_RejectsTamperedPayload(t *testing.T) {
	t.Parallel()
	codec, _ := newCodec(t)

	token, err := codec.Sign(samplePayload())
	require.NoError(t, err)

	tampered := samplePayload()
	tampered.Principal = 1
	body, err := json.Marshal(tampered)
	require.NoError(t, err)

	forged := base64.RawURLEncoding.EncodeToString(body) + "." + strings.SplitN(token, ".", 2)[1]
	_, err = codec.Verify(forged)
	require.ErrorIs(t, err, iiiftoken.ErrInvalidToken)
}

func TestCodec_RejectsOtherSecret(t *testing.T) {
	t.Parallel()
	codec, _ := newCodec(t)

	other := iiiftoken.NewCodec(iiiftoken.StaticSecret([]byte("site-private-key"), "other-salt"), clock.Fake(issuedAt))
	token, err := other.Sign(samplePayload())
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, iiiftoken.ErrInvalidToken)
}

func TestCodec_ExpiryIsExclusive(t *testing.T) {
	t.Parallel()
	codec, _ := newCodec(t)

	p := samplePayload()
	token, err := codec.Sign(p)
	require.NoError(t, err)

	expiry := time.Unix(p.ExpiresAt, 0)

	_, err = codec.VerifyAt(token, expiry.Add(-time.Second))
	require.NoError(t, err)

	_, err = codec.VerifyAt(token, expiry)
	require.ErrorIs(t, err, iiiftoken.ErrInvalidToken)

	_, err = codec.VerifyAt(token, expiry.Add(time.Hour))
	require.ErrorIs(t, err, iiiftoken.ErrInvalidToken)
}

func TestCodec_RejectsMalformed(t *testing.T) {
	t.Parallel()
	codec, _ := newCodec(t)

	token, err := codec.Sign(samplePayload())
	require.NoError(t, err)
	parts := strings.SplitN(token, ".", 2)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"single segment", parts[0]},
		{"three segments", token + ".extra"},
		{"padded payload", parts[0] + "=." + parts[1]},
		{"padded signature", parts[0] + "." + parts[1] + "="},
		{"standard alphabet", strings.NewReplacer("-", "+", "_", "/").Replace(token) + "+/"},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("nope")) + "." + parts[1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := codec.Verify(tt.token)
			require.ErrorIs(t, err, iiiftoken.ErrInvalidToken)
			require.Equal(t, iiiftoken.Payload{}, p)
		})
	}
}

func TestCodec_SecretLoadFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	secret := iiiftoken.NewSecretSource(func() ([]byte, error) { return nil, boom }, "salt")
	codec := iiiftoken.NewCodec(secret, clock.Fake(issuedAt))

	require.ErrorIs(t, codec.Ready(), boom)

	_, err := codec.Sign(samplePayload())
	require.ErrorIs(t, err, boom)
}

func TestSecretSource_LoadsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	secret := iiiftoken.NewSecretSource(func() ([]byte, error) {
		calls++
		return []byte("material"), nil
	}, "salt")
	codec := iiiftoken.NewCodec(secret, clock.Fake(issuedAt))

	for range 5 {
		_, err := codec.Sign(samplePayload())
		require.NoError(t, err)
	}
	require.Equal(t, 1, calls)
}

// hostToken signs body the way the host application does: HMAC-SHA256 over
// the encoded payload segment, keyed with sha256(key + ":" + salt).
func hostToken(key, salt, body string) string {
	secret := sha256.Sum256([]byte(key + ":" + salt))
	segment := base64.RawURLEncoding.EncodeToString([]byte(body))
	h := hmac.New(sha256.New, secret[:])
	h.Write([]byte(segment))
	return segment + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func TestCodec_HostInterop(t *testing.T) {
	t.Parallel()
	codec, _ := newCodec(t)

	body := `{"s":"hdb","i":"wdb/hdb/doc1/1.ptif","u":42,"exp":` +
		strconv.FormatInt(issuedAt.Add(time.Minute).Unix(), 10) +
		`,"ver":1,"nonce":"a1b2c3d4e5f60718"}`

	t.Run("host token verifies", func(t *testing.T) {
		got, err := codec.Verify(hostToken("site-private-key", "hash-salt", body))
		require.NoError(t, err)
		require.Equal(t, "hdb", got.Subsystem)
		require.EqualValues(t, 42, got.Principal)
		require.Equal(t, "a1b2c3d4e5f60718", got.Nonce)
	})

	t.Run("issued token matches host signing", func(t *testing.T) {
		token, err := codec.Sign(samplePayload())
		require.NoError(t, err)

		body, err := base64.RawURLEncoding.DecodeString(strings.SplitN(token, ".", 2)[0])
		require.NoError(t, err)
		require.Equal(t, hostToken("site-private-key", "hash-salt", string(body)), token)
	})
}

func TestCodec_Derivations(t *testing.T) {
	t.Parallel()

	site := iiiftoken.NewCodec(iiiftoken.StaticSecret([]byte("k"), "s"), clock.Fake(issuedAt))
	hkdf := iiiftoken.NewCodec(iiiftoken.StaticSecret([]byte("k"), "s",
		iiiftoken.WithDerivation(iiiftoken.DerivationHKDF)), clock.Fake(issuedAt))

	token, err := hkdf.Sign(samplePayload())
	require.NoError(t, err)

	_, err = hkdf.Verify(token)
	require.NoError(t, err)
	_, err = site.Verify(token)
	require.ErrorIs(t, err, iiiftoken.ErrInvalidToken)

	bogus := iiiftoken.NewCodec(iiiftoken.StaticSecret([]byte("k"), "s",
		iiiftoken.WithDerivation("rot13")), clock.Fake(issuedAt))
	require.Error(t, bogus.Ready())
}

func TestParseDerivation(t *testing.T) {
	t.Parallel()

	d, err := iiiftoken.ParseDerivation("")
	require.NoError(t, err)
	require.Equal(t, iiiftoken.DerivationSite, d)

	d, err = iiiftoken.ParseDerivation("hkdf")
	require.NoError(t, err)
	require.Equal(t, iiiftoken.DerivationHKDF, d)

	_, err = iiiftoken.ParseDerivation("md5")
	require.Error(t, err)
}
