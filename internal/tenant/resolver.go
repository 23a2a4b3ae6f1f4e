package tenant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/database/models"
)

const (
	HeaderTenant      = "X-Tenant"
	HeaderWorkspaceID = "X-Workspace-ID"
	PathParam         = "tenant"
)

var ErrFallbackInProduction = errors.New("development tenant fallback cannot be enabled in production")

// Subdomains that never name a tenant.
var reservedSubdomains = map[string]bool{
	"www":       true,
	"api":       true,
	"localhost": true,
}

type Options struct {
	// BaseDomain enables subdomain resolution: acme.<BaseDomain> is tenant "acme".
	BaseDomain string
	// DevFallbackSlug is used when a request carries no tenant at all.
	DevFallbackSlug string
	Production      bool
}

// Request holds everything a resolver may look at.
type Request struct {
	// PrincipalTenantID is the tenant embedded in a validated token, uuid.Nil
	// for anonymous requests.
	PrincipalTenantID uuid.UUID
	Header            string
	PathToken         string
	Host              string
}

// RequestFromHTTP reads the tenant hints of r.
func RequestFromHTTP(r *http.Request, principalTenantID uuid.UUID) Request {
	header := strings.TrimSpace(r.Header.Get(HeaderTenant))
	if header == "" {
		header = strings.TrimSpace(r.Header.Get(HeaderWorkspaceID))
	}
	return Request{
		PrincipalTenantID: principalTenantID,
		Header:            header,
		PathToken:         strings.TrimSpace(chi.URLParam(r, PathParam)),
		Host:              r.Host,
	}
}

type hint struct {
	source string
	value  string
}

type Resolver struct {
	lookup Lookup
	opts   Options
}

func NewResolver(lookup Lookup, opts Options) (*Resolver, error) {
	if opts.Production && opts.DevFallbackSlug != "" {
		return nil, ErrFallbackInProduction
	}
	opts.BaseDomain = strings.ToLower(strings.Trim(opts.BaseDomain, ". "))
	return &Resolver{lookup: lookup, opts: opts}, nil
}

// Resolve determines the tenant of req.
//
// A principal's tenant is authoritative: every hint must name that same
// tenant or the request fails with ErrTenantMismatch. Anonymous requests use
// the first hint (header, path, subdomain) and all other hints must agree.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Context, error) {
	hints := r.hints(req)

	var (
		t   *models.Tenant
		err error
	)
	switch {
	case req.PrincipalTenantID != uuid.Nil:
		t, err = r.lookup.ByID(ctx, req.PrincipalTenantID)
	case len(hints) > 0:
		t, err = r.byHint(ctx, hints[0].value)
		hints = hints[1:]
	case r.opts.DevFallbackSlug != "" && !r.opts.Production:
		t, err = r.lookup.BySlug(ctx, r.opts.DevFallbackSlug)
	default:
		return nil, ErrNoTenantContext
	}
	if err != nil {
		return nil, err
	}

	for _, h := range hints {
		if !names(t, h.value) {
			return nil, fmt.Errorf("%w: %s %q does not match tenant %s", ErrTenantMismatch, h.source, h.value, t.Slug)
		}
	}

	if !t.IsActive {
		return nil, ErrTenantInactive
	}
	return newContext(t), nil
}

func (r *Resolver) byHint(ctx context.Context, value string) (*models.Tenant, error) {
	if id, err := uuid.Parse(value); err == nil {
		return r.lookup.ByID(ctx, id)
	}
	return r.lookup.BySlug(ctx, strings.ToLower(value))
}

func (r *Resolver) hints(req Request) []hint {
	var out []hint
	if req.Header != "" {
		out = append(out, hint{source: "header", value: req.Header})
	}
	if req.PathToken != "" {
		out = append(out, hint{source: "path", value: req.PathToken})
	}
	if sub := r.subdomain(req.Host); sub != "" {
		out = append(out, hint{source: "subdomain", value: sub})
	}
	return out
}

// subdomain extracts a single-label tenant slug from host, "" when host is
// not directly under the base domain.
func (r *Resolver) subdomain(host string) string {
	if r.opts.BaseDomain == "" || host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	label, ok := strings.CutSuffix(host, "."+r.opts.BaseDomain)
	if !ok || label == "" || strings.Contains(label, ".") || reservedSubdomains[label] {
		return ""
	}
	return label
}

// names reports whether value is the id or the slug of t.
func names(t *models.Tenant, value string) bool {
	if id, err := uuid.Parse(value); err == nil {
		return id == t.ID
	}
	return strings.EqualFold(value, t.Slug)
}
