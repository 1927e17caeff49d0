package tenancy

import (
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Resolution is the outcome of hostname-based tenant resolution. In
// subdomain mode Subdomain carries the institution label still to be looked
// up; the other modes leave it empty.
type Resolution struct {
	Mode      shared.TenantMode
	Subdomain string
}

// ResolverConfig carries the static inputs of resolution.
type ResolverConfig struct {
	BaseDomain   string
	CentralHosts []string
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// reservedLabels can never identify an institution.
var reservedLabels = map[string]struct{}{
	"www":   {},
	"app":   {},
	"admin": {},
}

// ErrInvalidSubdomain is rendered as a 403: the label is syntactically
// unusable rather than merely unknown.
var ErrInvalidSubdomain = shared.NewForbidden(shared.ReasonForbidden,
	"invalid access, use your institution's domain or the main portal")

// Resolve derives the tenant mode from the request host. It is a pure
// function of its inputs and performs no lookups; callers resolve the
// returned subdomain label to a tenant themselves.
//
// The origin header takes precedence over the host when present, covering
// deployments where the API and the frontend live on different hosts.
func Resolve(host, origin string, cfg ResolverConfig) (Resolution, error) {
	candidate := hostFromOrigin(origin)
	if candidate == "" {
		candidate = host
	}
	candidate = normalizeHost(candidate)
	if candidate == "" {
		return Resolution{}, ErrInvalidSubdomain
	}

	if isLoopback(candidate) {
		return Resolution{Mode: shared.TenantModeIgnored}, nil
	}
	for _, central := range cfg.CentralHosts {
		if candidate == normalizeHost(central) {
			return Resolution{Mode: shared.TenantModeCentral}, nil
		}
	}

	base := normalizeHost(cfg.BaseDomain)
	if candidate == base {
		return Resolution{Mode: shared.TenantModeCentral}, nil
	}
	if !strings.HasSuffix(candidate, "."+base) {
		// Externally hosted deployments run without subdomain enforcement.
		return Resolution{Mode: shared.TenantModeCentral}, nil
	}

	label := strings.Split(strings.TrimSuffix(candidate, "."+base), ".")[0]
	if _, reserved := reservedLabels[label]; reserved {
		return Resolution{}, ErrInvalidSubdomain
	}
	if !subdomainPattern.MatchString(label) {
		return Resolution{}, ErrInvalidSubdomain
	}
	return Resolution{Mode: shared.TenantModeSubdomain, Subdomain: label}, nil
}

// ResolveRequest applies Resolve to an incoming request, preferring the
// Origin header and falling back to Referer, matching browser behaviour on
// cross-origin API calls.
func ResolveRequest(r *http.Request, cfg ResolverConfig) (Resolution, error) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	return Resolve(r.Host, origin, cfg)
}

func hostFromOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}

func isLoopback(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
