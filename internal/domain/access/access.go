// Package access models who is asking and which listings they may see.
package access

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/realtorbot/internal/domain"
)

// Role is the caller's role inside a tenant.
type Role int

const (
	// RoleVisitor is an anonymous website visitor.
	RoleVisitor Role = iota
	// RoleAgent is a sales agent limited to assigned listings.
	RoleAgent
	// RoleManager sees every listing of the tenant.
	RoleManager
	// RoleAdmin sees every listing of the tenant.
	RoleAdmin
)

// ParseRole maps a header value to a Role. Empty means visitor.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "visitor":
		return RoleVisitor, nil
	case "agent":
		return RoleAgent, nil
	case "manager":
		return RoleManager, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("role %q: %w", s, domain.ErrInvalidRole)
	}
}

func (r Role) String() string {
	switch r {
	case RoleAgent:
		return "agent"
	case RoleManager:
		return "manager"
	case RoleAdmin:
		return "admin"
	default:
		return "visitor"
	}
}

// Restricted reports whether the role only sees an allow-list of listings.
func (r Role) Restricted() bool { return r == RoleAgent }

// Scope is the resolved visibility of one request.
type Scope struct {
	userID    string
	role      Role
	allowList []string
	resolved  bool
}

// NewScope creates an unresolved scope for a user and role.
func NewScope(userID string, role Role) Scope {
	return Scope{userID: strings.TrimSpace(userID), role: role}
}

// WithAllowList returns a copy of the scope with a resolved allow-list.
// Blank ids are dropped.
func (s Scope) WithAllowList(ids []string) Scope {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	s.allowList = out
	s.resolved = true
	return s
}

// UserID returns the caller id.
func (s Scope) UserID() string { return s.userID }

// Role returns the caller role.
func (s Scope) Role() Role { return s.role }

// Restricted reports whether results must be limited to the allow-list.
func (s Scope) Restricted() bool { return s.role.Restricted() }

// AllowList returns the listing ids a restricted caller may see.
func (s Scope) AllowList() []string { return s.allowList }

// Resolved reports whether the allow-list has been set.
func (s Scope) Resolved() bool { return s.resolved }
