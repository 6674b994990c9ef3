package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/wdb/iiifgate/internal/gate/access"
	"github.com/wdb/iiifgate/internal/gate/domain"
	"github.com/wdb/iiifgate/internal/gate/session"
	"github.com/wdb/iiifgate/internal/gate/store"
	"github.com/wdb/iiifgate/pkg/cryptox"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
	"github.com/wdb/iiifgate/pkg/slogx"
)

// Reasons returned to the delegate hook.
const (
	ReasonExempt              = "System or info request exempt."
	ReasonSubsystemUnknown    = "Subsystem not identified."
	ReasonConfigNotFound      = "Subsystem configuration not found."
	ReasonAnonymous           = "Subsystem allows anonymous access."
	ReasonTokenInvalid        = "Invalid or expired token."
	ReasonTokenSubsystem      = "Token subsystem mismatch."
	ReasonTokenIdentifier     = "Token identifier mismatch."
	ReasonTokenNoPrincipal    = "Token missing user context."
	ReasonTokenValidated      = "Token validated."
	ReasonLacksPermission     = "User lacks permission."
	ReasonNoSessionCookie     = "No session cookie found."
	ReasonAnonymousSession    = "Anonymous user session."
	ReasonHasPermission       = "User has permission."
	ReasonAuthorizationFailed = "Authorization check failed."
)

// DecisionPath names the step of the pipeline that produced a Decision.
type DecisionPath string

const (
	PathExempt    DecisionPath = "exempt"
	PathConfig    DecisionPath = "config"
	PathAnonymous DecisionPath = "anonymous"
	PathToken     DecisionPath = "token"
	PathSession   DecisionPath = "session"
	PathError     DecisionPath = "error"
)

// DecisionRequest describes one image request forwarded by the delegate hook.
type DecisionRequest struct {
	Identifier string
	RequestURI string
	ClientIP   string
	Headers    map[string]string
	Cookies    []string
	Token      string
}

type Decision struct {
	Authorized bool
	Reason     string
	Path       DecisionPath

	// Err classifies a denial. It is nil when Authorized is true.
	Err error
}

func allow(path DecisionPath, reason string) Decision {
	return Decision{Authorized: true, Reason: reason, Path: path}
}

func deny(path DecisionPath, reason string, err error) Decision {
	return Decision{Reason: reason, Path: path, Err: err}
}

// DecisionService decides whether an image request may be served.
type DecisionService struct {
	Store         store.Store
	Codec         *iiiftoken.Codec
	Sessions      *session.Resolver
	SessionCookie string // Canonical session cookie name
	Metrics       *Metrics

	// NewPolicy builds the access policy for one request. Defaults to
	// access.New over Store.
	NewPolicy func() access.Checker
}

// Decide runs the authorization pipeline for req. It never returns an
// error: internal failures and panics become a denial.
func (s *DecisionService) Decide(ctx context.Context, req DecisionRequest) (d Decision) {
	l := slogx.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			l.Error("authorization check panicked",
				slog.String("identifier", req.Identifier),
				slog.Any("panic", r),
			)
			d = deny(PathError, ReasonAuthorizationFailed, fmt.Errorf("%w: panic: %v", ErrInternal, r))
		}
		s.Metrics.observeDecision(d)
	}()

	if isExempt(req.RequestURI, req.ClientIP) {
		return allow(PathExempt, ReasonExempt)
	}

	subsystem, ok := SubsystemFromIdentifier(req.Identifier)
	if !ok {
		l.Warn("subsystem not identified in identifier", slog.String("identifier", req.Identifier))
		return deny(PathConfig, ReasonSubsystemUnknown,
			fmt.Errorf("%w: identifier %q has no subsystem segment", ErrConfigurationMissing, req.Identifier))
	}

	policy := s.policy()

	if _, err := policy.SubsystemConfig(ctx, subsystem); err != nil {
		if errors.Is(err, access.ErrUnknownSubsystem) {
			return deny(PathConfig, ReasonConfigNotFound, fmt.Errorf("%w: %s", ErrSubsystemNotFound, subsystem))
		}
		l.Error("failed to load subsystem configuration",
			slog.String("subsystem", subsystem),
			slog.Any("err", err),
		)
		return deny(PathError, ReasonAuthorizationFailed, fmt.Errorf("%w: %w", ErrInternal, err))
	}

	if policy.AllowsAnonymous(ctx, subsystem) {
		return allow(PathAnonymous, ReasonAnonymous)
	}

	if token := strings.TrimSpace(req.Token); token != "" {
		return s.decideByToken(ctx, policy, req.Identifier, subsystem, token)
	}

	return s.decideBySession(ctx, policy, req.Identifier, subsystem, req.Cookies)
}

func (s *DecisionService) decideByToken(
	ctx context.Context,
	policy access.Checker,
	identifier, subsystem, token string,
) Decision {
	l := slogx.FromContext(ctx)

	payload, err := s.Codec.Verify(token)
	if err != nil {
		l.Debug("token rejected",
			slog.String("identifier", identifier),
			slog.String("token_fp", cryptox.FingerprintToken(token)),
			slog.Any("err", err),
		)
		return deny(PathToken, ReasonTokenInvalid, fmt.Errorf("%w: %w", ErrTokenInvalid, err))
	}

	mismatch := func(reason, detail string) Decision {
		l.Warn("authorization denied via token",
			slog.String("reason", reason),
			slog.String("identifier", identifier),
			slog.String("subsystem", subsystem),
			slog.Int64("principal", payload.Principal),
		)
		return deny(PathToken, reason, fmt.Errorf("%w: %s", ErrTokenMismatch, detail))
	}

	if !strings.EqualFold(payload.Subsystem, subsystem) {
		return mismatch(ReasonTokenSubsystem, "subsystem")
	}
	if payload.Identifier != identifier {
		return mismatch(ReasonTokenIdentifier, "identifier")
	}
	if payload.Principal <= domain.AnonymousID {
		return mismatch(ReasonTokenNoPrincipal, "principal")
	}

	return s.checkPermission(ctx, policy, PathToken, identifier, subsystem, payload.Principal, ReasonTokenValidated)
}

func (s *DecisionService) decideBySession(
	ctx context.Context,
	policy access.Checker,
	identifier, subsystem string,
	cookies []string,
) Decision {
	sids := session.Candidates(cookies, s.SessionCookie)
	if len(sids) == 0 {
		return deny(PathSession, ReasonNoSessionCookie, fmt.Errorf("%w: no session cookie", ErrSessionUnresolvable))
	}

	if s.Sessions == nil {
		return deny(PathSession, ReasonAnonymousSession, fmt.Errorf("%w: no session resolver", ErrSessionUnresolvable))
	}

	principalID, ok := s.Sessions.ResolveFirst(ctx, sids)
	if !ok {
		return deny(PathSession, ReasonAnonymousSession, fmt.Errorf("%w: no principal for session", ErrSessionUnresolvable))
	}

	return s.checkPermission(ctx, policy, PathSession, identifier, subsystem, principalID, ReasonHasPermission)
}

func (s *DecisionService) checkPermission(
	ctx context.Context,
	policy access.Checker,
	path DecisionPath,
	identifier, subsystem string,
	principalID int64,
	allowReason string,
) Decision {
	l := slogx.FromContext(ctx)

	principal, err := s.Store.Principals().GetPrincipalByID(ctx, principalID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Unknown principals hold no permissions.
		principal = domain.Principal{ID: principalID}
	case err != nil:
		l.Error("failed to load principal", slog.Int64("principal", principalID), slog.Any("err", err))
		return deny(PathError, ReasonAuthorizationFailed, fmt.Errorf("%w: %w", ErrInternal, err))
	}

	if !policy.UserHasAccess(ctx, subsystem, principal, "") {
		l.Warn("authorization denied, user lacks permission",
			slog.String("identifier", identifier),
			slog.String("subsystem", subsystem),
			slog.Int64("principal", principalID),
			slog.String("path", string(path)),
		)
		return deny(path, ReasonLacksPermission, ErrPermissionDenied)
	}

	return allow(path, allowReason)
}

func (s *DecisionService) policy() access.Checker {
	if s.NewPolicy != nil {
		return s.NewPolicy()
	}
	return access.New(s.Store.Subsystems())
}

// SubsystemFromIdentifier returns the second "/"-separated segment of an
// image identifier, e.g. "hdb" for "wdb/hdb/doc1/1.ptif".
func SubsystemFromIdentifier(identifier string) (string, bool) {
	parts := strings.Split(identifier, "/")
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], parts[1] != ""
}

// isExempt reports whether a request skips authorization: metadata
// (info.json) requests and calls from the image server host itself.
func isExempt(requestURI, clientIP string) bool {
	if strings.HasSuffix(requestURI, "info.json") {
		return true
	}
	ip := net.ParseIP(strings.TrimSpace(clientIP))
	return ip != nil && ip.IsLoopback()
}
