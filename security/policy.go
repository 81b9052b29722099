package security

import (
	"net/http"
	"strings"
)

// PolicyKind identifies how a route is protected
type PolicyKind int

const (
	// KindPublic routes are reachable without a principal
	KindPublic PolicyKind = iota
	// KindAuthenticated routes need any principal
	KindAuthenticated
	// KindRole routes need a principal holding a specific role
	KindRole
)

// String returns the policy kind name used in logs
func (k PolicyKind) String() string {
	switch k {
	case KindPublic:
		return "public"
	case KindAuthenticated:
		return "authenticated"
	case KindRole:
		return "role"
	default:
		return "unknown"
	}
}

// Policy is the access requirement declared for a route
type Policy struct {
	Kind PolicyKind
	Role string
}

// Public allows every request
func Public() Policy { return Policy{Kind: KindPublic} }

// Authenticated allows any request carrying a principal
func Authenticated() Policy { return Policy{Kind: KindAuthenticated} }

// RequireRole allows requests whose principal holds role
func RequireRole(role string) Policy { return Policy{Kind: KindRole, Role: role} }

// String renders the policy for logging
func (p Policy) String() string {
	if p.Kind == KindRole {
		return "role:" + p.Role
	}
	return p.Kind.String()
}

// Decision is the outcome of evaluating a policy
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyForbidden
)

// String returns the decision name used in logs
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyForbidden:
		return "deny_forbidden"
	default:
		return "unknown"
	}
}

// Decide evaluates policy against the principal attached to the request (nil when anonymous)
func Decide(policy Policy, principal *Principal) Decision {
	switch policy.Kind {
	case KindPublic:
		return Allow
	case KindAuthenticated:
		if principal == nil {
			return DenyUnauthenticated
		}
		return Allow
	case KindRole:
		if principal == nil {
			return DenyUnauthenticated
		}
		if !principal.HasRole(policy.Role) {
			return DenyForbidden
		}
		return Allow
	default:
		// Unknown kinds never grant access
		if principal == nil {
			return DenyUnauthenticated
		}
		return DenyForbidden
	}
}

// RouteRule binds a method and path pattern to a policy.
// An empty Method matches any method. A Pattern ending in "/**" matches the
// prefix itself and everything below it; any other pattern must match exactly.
type RouteRule struct {
	Method  string
	Pattern string
	Policy  Policy
}

// Matches reports whether the rule applies to the request line
func (r RouteRule) Matches(method, path string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	if prefix, ok := strings.CutSuffix(r.Pattern, "/**"); ok {
		return prefix == "" || path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == r.Pattern
}

// RouteTable is the static, ordered route-to-policy binding declared at startup.
// The first matching rule wins; unmatched requests get the fallback policy.
type RouteTable struct {
	rules    []RouteRule
	fallback Policy
}

// NewRouteTable creates a table; the rules slice is copied
func NewRouteTable(fallback Policy, rules ...RouteRule) *RouteTable {
	return &RouteTable{
		rules:    append([]RouteRule(nil), rules...),
		fallback: fallback,
	}
}

// Resolve returns the policy for the request line
func (t *RouteTable) Resolve(method, path string) Policy {
	for _, rule := range t.rules {
		if rule.Matches(method, path) {
			return rule.Policy
		}
	}
	return t.fallback
}

// Rules returns a copy of the declared rules
func (t *RouteTable) Rules() []RouteRule {
	return append([]RouteRule(nil), t.rules...)
}

// PermitPreflight is a rule that keeps CORS preflight requests public
var PermitPreflight = RouteRule{Method: http.MethodOptions, Pattern: "/**", Policy: Public()}
