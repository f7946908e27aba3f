package auth

import (
	apperrors "github.com/utafrali/contactbook/pkg/errors"
)

// Guard permits a fixed set of roles. It satisfies middleware.RoleChecker.
type Guard struct {
	allowed map[string]struct{}
}

// NewGuard creates a guard allowing the given roles.
func NewGuard(roles ...string) *Guard {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return &Guard{allowed: allowed}
}

// Allow returns a 403 error unless role is in the allow-list.
func (g *Guard) Allow(role string) error {
	if _, ok := g.allowed[role]; !ok {
		return apperrors.Forbidden("FORBIDDEN")
	}
	return nil
}
