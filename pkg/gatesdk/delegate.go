package gatesdk

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strings"
)

// TokenHeaderCandidates are the forwarded headers scanned for a token, in
// order, when the request URI carries none.
var TokenHeaderCandidates = []string{
	"X-Wdb-Token",
	"X-Original-URI",
	"X-Original-URL",
	"X-Forwarded-URI",
	"X-Forwarded-URL",
}

// RequestContext is what the image server knows about a tile request.
type RequestContext struct {
	Identifier     string
	RequestURI     string
	LocalURI       string
	ClientIP       string
	RequestHeaders map[string]string
	Cookies        map[string]string
}

// ExtractToken scans the query string of value for param. value may be a
// full URI or a bare query string; pairs may be separated by "&" or ";".
// The first pair named param wins. ok is false when the parameter is absent.
func ExtractToken(value, param string) (token string, ok bool) {
	var query string
	switch {
	case strings.Contains(value, "?"):
		_, query, _ = strings.Cut(value, "?")
	case strings.Contains(value, "="):
		query = value
	}
	if query == "" {
		return "", false
	}

	for pair := range strings.FieldsFuncSeq(query, func(r rune) bool { return r == '&' || r == ';' }) {
		key, raw, _ := strings.Cut(pair, "=")
		if key == "" || key != param {
			continue
		}
		decoded, err := url.QueryUnescape(raw)
		if err != nil {
			return raw, true
		}
		return decoded, true
	}
	return "", false
}

// ResolveToken looks for a non-empty token in the request URI, then the
// forwarded headers (names compared without case), then the local URI.
func ResolveToken(rc RequestContext, param string) string {
	if t, _ := ExtractToken(rc.RequestURI, param); t != "" {
		return t
	}

	for _, name := range TokenHeaderCandidates {
		if t, _ := ExtractToken(headerValue(rc.RequestHeaders, name), param); t != "" {
			return t
		}
	}

	t, _ := ExtractToken(rc.LocalURI, param)
	return t
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// IsExempt reports whether a request is allowed without asking the gate:
// info.json requests and requests from the image server host itself.
func IsExempt(rc RequestContext) bool {
	if strings.HasSuffix(rc.RequestURI, "info.json") {
		return true
	}
	ip := net.ParseIP(strings.TrimSpace(rc.ClientIP))
	return ip != nil && ip.IsLoopback()
}

// PreAuthorize decides whether the image server may serve rc. Transport
// failures, non-2xx responses and malformed bodies all deny.
func (c *Client) PreAuthorize(ctx context.Context, rc RequestContext) (allowed bool) {
	l := c.log(ctx)

	defer func() {
		if r := recover(); r != nil {
			l.Warn("delegate pre-authorize panicked", slog.Any("panic", r))
			allowed = false
		}
	}()

	if IsExempt(rc) {
		return true
	}

	req := DecisionRequest{
		Identifier: rc.Identifier,
		RequestURI: rc.RequestURI,
		ClientIP:   rc.ClientIP,
		Token:      ResolveToken(rc, c.TokenParam),
	}
	if !c.TokenOnly {
		req.Cookies = cookiePairs(rc.Cookies)
	}

	resp, err := c.Decide(ctx, req)
	if err != nil {
		l.Warn("delegate pre-authorize failed",
			slog.String("identifier", rc.Identifier),
			slog.Any("err", err),
		)
		return false
	}
	return resp.Authorized
}

// cookiePairs renders cookies as "name=value" strings sorted by name.
func cookiePairs(cookies map[string]string) []string {
	if len(cookies) == 0 {
		return nil
	}
	out := make([]string, 0, len(cookies))
	for k, v := range cookies {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}
