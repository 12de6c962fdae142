// Package resolver determines which tenant an inbound HTTP request belongs to.
package resolver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "tenantgate/pkg/domain-errors"
)

// Source names the rule that produced the resolved tenant.
type Source string

const (
	SourceHeader    Source = "header"
	SourceWellKnown Source = "well_known"
	SourcePrefix    Source = "path_prefix"
	SourceEndpoint  Source = "endpoint"
	SourcePath      Source = "path"
	SourceParam     Source = "param"
	SourceBearer    Source = "bearer"
	SourceDefault   Source = "default"
)

// Directory is the subset of the tenant registry the resolver validates against.
type Directory interface {
	Exists(tenantID string) bool
	MultitenancyEnabled() bool
	DefaultTenantID() string
}

// Error is a resolution failure. It matches ErrTenantNotFoundInRequest or
// ErrInvalidTenant under errors.Is depending on Code.
type Error struct {
	Code     dErrors.Code
	TenantID string
	Path     string
}

func (e *Error) Error() string {
	switch e.Code {
	case dErrors.CodeTenantNotFoundInRequest:
		return "no tenant could be determined from the request"
	case dErrors.CodeTenantResolutionFailed:
		return fmt.Sprintf("tenant %q is not configured", e.TenantID)
	default:
		return string(e.Code)
	}
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Params returns the attempted tenant and request path for the error body.
func (e *Error) Params() map[string]string {
	params := map[string]string{"path": e.Path}
	if e.TenantID != "" {
		params["tenantId"] = e.TenantID
	}
	return params
}

var (
	ErrTenantNotFoundInRequest = &Error{Code: dErrors.CodeTenantNotFoundInRequest}
	ErrInvalidTenant           = &Error{Code: dErrors.CodeTenantResolutionFailed}
)

// Resolution is a validated tenant and the rule that found it.
type Resolution struct {
	TenantID string
	Source   Source
}

// Resolver applies the ordered resolution rules. It is safe for concurrent use.
type Resolver struct {
	cfg       Config
	directory Directory
	endpoints map[string]struct{}
	reserved  map[string]struct{}
	parser    *jwt.Parser
}

// New returns a Resolver validating candidates against directory.
func New(directory Directory, cfg Config) *Resolver {
	cfg = cfg.withDefaults()
	r := &Resolver{
		cfg:       cfg,
		directory: directory,
		endpoints: toSet(cfg.TenantAwareEndpoints),
		reserved:  toSet(cfg.ReservedSegments),
		parser:    jwt.NewParser(),
	}
	// Endpoint names are reserved as first segments too.
	for name := range r.endpoints {
		r.reserved[name] = struct{}{}
	}
	return r
}

// IsStatic reports whether path bypasses resolution.
func (r *Resolver) IsStatic(path string) bool {
	for _, p := range r.cfg.StaticPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range r.cfg.StaticPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Resolve returns the validated tenant for req.
func (r *Resolver) Resolve(req *http.Request) (Resolution, error) {
	path := req.URL.Path

	if err := r.checkWellKnown(path); err != nil {
		return Resolution{}, err
	}

	candidate, source := r.candidate(req)
	if candidate == "" {
		if r.directory.MultitenancyEnabled() {
			return Resolution{}, &Error{Code: dErrors.CodeTenantNotFoundInRequest, Path: path}
		}
		candidate, source = r.directory.DefaultTenantID(), SourceDefault
	}

	if !r.directory.Exists(candidate) {
		return Resolution{}, &Error{Code: dErrors.CodeTenantResolutionFailed, TenantID: candidate, Path: path}
	}
	return Resolution{TenantID: candidate, Source: source}, nil
}

// checkWellKnown restricts the tenant postfix of discovery requests. In
// single-tenant mode only the default tenant is accepted there.
func (r *Resolver) checkWellKnown(path string) error {
	postfix, found := r.wellKnownPostfix(path)
	if !found || postfix == "" {
		return nil
	}
	if r.directory.MultitenancyEnabled() {
		if !r.directory.Exists(postfix) {
			return &Error{Code: dErrors.CodeTenantResolutionFailed, TenantID: postfix, Path: path}
		}
		return nil
	}
	if postfix != r.directory.DefaultTenantID() {
		return &Error{Code: dErrors.CodeTenantResolutionFailed, TenantID: postfix, Path: path}
	}
	return nil
}

func (r *Resolver) candidate(req *http.Request) (string, Source) {
	if v := req.Header.Get(r.cfg.HeaderName); strings.TrimSpace(v) != "" {
		return v, SourceHeader
	}

	path := req.URL.Path
	if postfix, _ := r.wellKnownPostfix(path); postfix != "" {
		return postfix, SourceWellKnown
	}

	segments := splitPath(path)
	if len(segments) >= 2 && segments[0] == r.cfg.PrefixMarker {
		return segments[1], SourcePrefix
	}
	if len(segments) >= 2 && r.isEndpoint(segments[1]) && !r.isReserved(segments[0]) {
		return segments[0], SourceEndpoint
	}
	if len(segments) >= 1 && !r.isReserved(segments[0]) {
		return segments[0], SourcePath
	}

	if v := strings.TrimSpace(req.FormValue(r.cfg.ParamName)); v != "" {
		return v, SourceParam
	}

	if v := r.bearerTenant(req.Header.Get("Authorization")); v != "" {
		return v, SourceBearer
	}
	return "", ""
}

// wellKnownPostfix returns the segment following the discovery marker.
func (r *Resolver) wellKnownPostfix(path string) (string, bool) {
	idx := strings.Index(path, r.cfg.WellKnownMarker)
	if idx < 0 {
		return "", false
	}
	rest := path[idx+len(r.cfg.WellKnownMarker):]
	if !strings.HasPrefix(rest, "/") {
		return "", true
	}
	segments := splitPath(rest)
	if len(segments) == 0 {
		return "", true
	}
	return segments[0], true
}

// bearerTenant reads the tenantId claim without verifying the token. The value
// is a routing hint only: it is validated against the registry like every other
// candidate and must never be used for authorization.
func (r *Resolver) bearerTenant(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil {
		return ""
	}
	v, _ := claims[r.cfg.BearerClaim].(string)
	return strings.TrimSpace(v)
}

func (r *Resolver) isEndpoint(segment string) bool {
	_, ok := r.endpoints[segment]
	return ok
}

func (r *Resolver) isReserved(segment string) bool {
	_, ok := r.reserved[segment]
	return ok
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
