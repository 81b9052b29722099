package security

import (
	"context"
	"sort"
	"strings"
)

// Authority names used by route policies and account seeding
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

// SystemAuditor is reported as the acting user when no principal is attached
const SystemAuditor = "system"

// principalKey is the context key for the authenticated principal
type principalKey struct{}

// Principal is the authenticated identity derived from a validated token.
// It lives for one request and is never persisted.
type Principal struct {
	Subject string   `json:"login"`
	Roles   []string `json:"authorities"`
}

// NewPrincipal builds a principal with a normalized role set:
// whitespace trimmed, empty entries dropped, duplicates removed, sorted.
func NewPrincipal(subject string, roles ...string) Principal {
	seen := make(map[string]struct{}, len(roles))
	set := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		set = append(set, role)
	}
	sort.Strings(set)
	return Principal{Subject: subject, Roles: set}
}

// HasRole reports whether the principal holds the given authority
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Equal compares subject and role set
func (p Principal) Equal(other Principal) bool {
	if p.Subject != other.Subject || len(p.Roles) != len(other.Roles) {
		return false
	}
	for i := range p.Roles {
		if p.Roles[i] != other.Roles[i] {
			return false
		}
	}
	return true
}

// WithPrincipal returns a copy of ctx carrying the principal
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, &p)
}

// CurrentPrincipal returns the principal attached to ctx, if any
func CurrentPrincipal(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	if !ok || p == nil {
		return nil, false
	}
	return p, true
}

// CurrentAuditor returns the login recorded in created_by/updated_by columns
func CurrentAuditor(ctx context.Context) string {
	if p, ok := CurrentPrincipal(ctx); ok && p.Subject != "" {
		return p.Subject
	}
	return SystemAuditor
}
