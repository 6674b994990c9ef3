package iiiftoken

import (
	"net/url"
	"strings"
)

// DefaultParam is the query parameter carrying the token when none is
// configured.
const DefaultParam = "wdb_token"

// ParamName returns the trimmed configured parameter name, or DefaultParam
// when it is blank.
func ParamName(configured string) string {
	if p := strings.TrimSpace(configured); p != "" {
		return p
	}
	return DefaultParam
}

// AppendToQuery sets param to token in the query of rawURL, replacing any
// existing value. Scheme, host, path and fragment are kept. The URL is
// returned unchanged when it or the token is empty, or when it does not
// parse. Applying it twice with the same token is the same as applying it
// once.
func AppendToQuery(rawURL, param, token string) string {
	if rawURL == "" || token == "" {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	q.Set(ParamName(param), token)
	u.RawQuery = q.Encode()
	return u.String()
}
