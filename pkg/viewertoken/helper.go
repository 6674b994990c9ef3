package viewertoken

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/wdb/iiifgate/pkg/clock"
	"github.com/wdb/iiifgate/pkg/gatesdk"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
)

// DefaultRequestTimeout bounds a single refresh request when the helper
// builds its own HTTP client.
const DefaultRequestTimeout = 30 * time.Second

// Config is the token context handed to the viewer by the host page.
type Config struct {
	Token string `json:"token"`

	// Param names the query parameter carrying the token. Parameter is an
	// accepted alternate spelling; Param wins when both are set.
	Param     string `json:"param"`
	Parameter string `json:"parameter"`

	RefreshURL string `json:"refreshUrl"`

	// TTL is the token lifetime in seconds.
	TTL int64 `json:"ttl"`
}

// ConfigFromAuthContext builds a Config from the gate's token endpoint
// response.
func ConfigFromAuthContext(ac gatesdk.AuthContextResponse) Config {
	return Config{
		Token:      ac.Token,
		Param:      ac.Param,
		RefreshURL: ac.RefreshURL,
		TTL:        ac.TTL,
	}
}

func (c Config) paramName() string {
	if c.Param != "" {
		return c.Param
	}
	return iiiftoken.ParamName(c.Parameter)
}

// Helper holds the viewer's token state. It is safe for concurrent use.
type Helper struct {
	clock      clock.Clock
	http       *http.Client
	logger     *slog.Logger
	refreshURL string
	ttl        time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	token      string
	encoded    string
	param      string
	pattern    *regexp.Regexp
	timer      clock.Timer
	generation uint64
	refreshing bool
	stopped    bool
}

type Option func(*Helper)

// WithClock replaces the time source used for refresh scheduling.
func WithClock(c clock.Clock) Option {
	return func(h *Helper) { h.clock = c }
}

// WithHTTPClient sets the client used for refresh requests. It should carry
// the viewer's session cookies, typically through a cookie jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(h *Helper) { h.http = hc }
}

// WithLogger sets the logger for refresh failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Helper) { h.logger = l }
}

// New returns a helper for cfg.
func New(cfg Config, opts ...Option) *Helper {
	h := &Helper{
		clock:      clock.Real(),
		logger:     slog.Default(),
		refreshURL: strings.TrimSpace(cfg.RefreshURL),
	}
	if cfg.TTL > 0 {
		h.ttl = time.Duration(cfg.TTL) * time.Second
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.http == nil {
		h.http = cleanhttp.DefaultPooledClient()
		h.http.Timeout = DefaultRequestTimeout
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	if cfg.Token != "" {
		h.setToken(cfg.Token, cfg.paramName())
	}
	return h
}

// HasToken reports whether the helper rewrites URLs at all.
func (h *Helper) HasToken() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token != ""
}

// Token returns the current token.
func (h *Helper) Token() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

// Param returns the current token query parameter name.
func (h *Helper) Param() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.param
}

// setToken stores token and, when param differs from the current name,
// repoints future rewrites at it. Callers hold mu or own h exclusively.
func (h *Helper) setToken(token, param string) {
	h.token = token
	h.encoded = url.QueryEscape(token)
	if param != "" && (param != h.param || h.pattern == nil) {
		h.param = param
		h.pattern = regexp.MustCompile(`([?&])` + regexp.QuoteMeta(param) + `=([^&#]*)`)
	}
}

// AppendToken sets the token parameter on rawURL. An existing occurrence is
// replaced in place; otherwise the parameter is appended with "?" or "&".
// The fragment is left untouched.
func (h *Helper) AppendToken(rawURL string) string {
	if rawURL == "" {
		return rawURL
	}

	h.mu.Lock()
	param, encoded, pattern := h.param, h.encoded, h.pattern
	h.mu.Unlock()

	if encoded == "" {
		return rawURL
	}

	base, fragment, hasFragment := strings.Cut(rawURL, "#")

	if loc := pattern.FindStringSubmatchIndex(base); loc != nil {
		// loc[2:4] is the leading separator.
		base = base[:loc[3]] + param + "=" + encoded + base[loc[1]:]
	} else {
		sep := "?"
		if strings.Contains(base, "?") {
			sep = "&"
		}
		base = base + sep + param + "=" + encoded
	}

	if hasFragment && fragment != "" {
		return base + "#" + fragment
	}
	return base
}
