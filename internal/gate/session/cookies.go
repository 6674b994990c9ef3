package session

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultCookieName is the canonical session cookie consulted before any
// SESS*/SSESS* cookie.
const DefaultCookieName = "PHPSESSID"

var (
	pairSeparator   = regexp.MustCompile(`;\s*`)
	sessionCookieRe = regexp.MustCompile(`(?i)^S?SESS[0-9a-f]+$`)
)

type cookie struct {
	name  string
	value string
}

// parseCookies flattens raw Cookie header values into name/value pairs in
// the order they were sent. When a name repeats the first value wins.
func parseCookies(headers []string) []cookie {
	var (
		out  []cookie
		seen = map[string]struct{}{}
	)
	for _, header := range headers {
		for _, pair := range pairSeparator.Split(header, -1) {
			name, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, cookie{name: name, value: value})
		}
	}
	return out
}

// Candidates returns the session ids worth trying for the given Cookie
// header values: the canonical cookie first, then every cookie whose name
// looks like a host-application session cookie. Values are URL-decoded,
// trimmed and de-duplicated; empty values are dropped.
func Candidates(headers []string, canonical string) []string {
	if canonical == "" {
		canonical = DefaultCookieName
	}

	cookies := parseCookies(headers)

	var sids []string
	add := func(raw string) {
		sid := strings.TrimSpace(decodeValue(raw))
		if sid == "" {
			return
		}
		for _, existing := range sids {
			if existing == sid {
				return
			}
		}
		sids = append(sids, sid)
	}

	for _, c := range cookies {
		if c.name == canonical {
			add(c.value)
			break
		}
	}
	for _, c := range cookies {
		if sessionCookieRe.MatchString(c.name) {
			add(c.value)
		}
	}
	return sids
}

func decodeValue(raw string) string {
	v, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return v
}
