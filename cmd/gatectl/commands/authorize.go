package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wdb/iiifgate/pkg/gatesdk"
)

// ErrDenied is returned by authorize when the gate denies the request. The
// command has already reported the verdict.
var ErrDenied = errors.New("denied")

type authorizeOpts struct {
	gateURL    string
	identifier string
	cookies    string
	clientIP   string
	requestURI string
	localURI   string
	headers    []string
	tokenParam string
	tokenOnly  bool
	timeout    time.Duration
}

func newAuthorizeCmd() *cobra.Command {
	var o authorizeOpts

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Ask the gate whether a tile request would be served",
		Long: `
Usage: gatectl authorize --identifier <id> [options]

  Runs the delegate hook's pre-authorization for one request and prints
  ALLOW or DENY. Exits 0 when allowed and 1 otherwise.

  Anonymous request:

      $ gatectl authorize --identifier wdb/hdb/doc1/1.ptif

  With a browser session:

      $ gatectl authorize --identifier wdb/hdb/doc1/1.ptif \
          --cookies "SSESSabc=xyz; _ga=1" --client-ip 203.0.113.5

  With a token forwarded by the proxy:

      $ gatectl authorize --identifier wdb/hdb/doc1/1.ptif \
          --header "X-Original-URI: /viewer?wdb_token=..."
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuthorize(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.gateURL, "gate", envOr("GATE_URL", "http://localhost:8080"), "Gate base URL (GATE_URL)")
	f.StringVar(&o.identifier, "identifier", "", "Image identifier, e.g. wdb/hdb/doc1/1.ptif")
	f.StringVar(&o.cookies, "cookies", "", `Cookie header string, e.g. "SSESSxxx=abc; _ga=1"`)
	f.StringVar(&o.clientIP, "client-ip", "203.0.113.10", "Client address seen by the image server")
	f.StringVar(&o.requestURI, "request-uri", "", "Request URI seen by the image server")
	f.StringVar(&o.localURI, "local-uri", "", "Local URI seen by the image server")
	f.StringArrayVar(&o.headers, "header", nil, `Forwarded request header "Name: value" (repeatable)`)
	f.StringVar(&o.tokenParam, "token-param", envOr("GATE_TOKEN_PARAM", ""), "Token query parameter (GATE_TOKEN_PARAM)")
	f.BoolVar(&o.tokenOnly, "token-only", false, "Do not forward cookies")
	f.DurationVar(&o.timeout, "timeout", gatesdk.DefaultTimeout, "Per-attempt timeout")
	_ = cmd.MarkFlagRequired("identifier")

	return cmd
}

func runAuthorize(cmd *cobra.Command, o authorizeOpts) error {
	headers, err := parseHeaders(o.headers)
	if err != nil {
		return err
	}

	rc := gatesdk.RequestContext{
		Identifier:     o.identifier,
		RequestURI:     o.requestURI,
		LocalURI:       o.localURI,
		ClientIP:       o.clientIP,
		RequestHeaders: headers,
		Cookies:        parseCookieString(o.cookies),
	}
	if rc.RequestURI == "" {
		rc.RequestURI = "/iiif/3/" + strings.ReplaceAll(o.identifier, "/", "%2F") + "/full/max/0/default.jpg"
	}

	client := gatesdk.NewClient(o.gateURL,
		gatesdk.WithTokenParam(o.tokenParam),
		gatesdk.WithTokenOnly(o.tokenOnly),
		gatesdk.WithTimeout(o.timeout),
	)

	out := cmd.OutOrStdout()
	if token := gatesdk.ResolveToken(rc, client.TokenParam); token != "" {
		fmt.Fprintf(out, "token:  %s\n", token)
	}

	if client.PreAuthorize(cmd.Context(), rc) {
		fmt.Fprintln(out, "ALLOW")
		return nil
	}
	fmt.Fprintln(out, "DENY")
	return ErrDenied
}

// parseCookieString splits a Cookie header into a name to value map. The
// first occurrence of a name wins.
func parseCookieString(s string) map[string]string {
	cookies := make(map[string]string)
	for pair := range strings.SplitSeq(s, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		if _, seen := cookies[name]; !seen {
			cookies[name] = value
		}
	}
	return cookies
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
