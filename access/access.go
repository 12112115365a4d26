// Package access is the authorization side of the access gate: a resolved Caller and the
// single role check every mutating entry point goes through.
package access

import (
	"alforge/apperr"
	"alforge/models"
)

// Caller is what the gate knows about whoever issued the request.
type Caller struct {
	Authenticated bool        `json:"authenticated"`
	UserID        string      `json:"userId"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	Role          models.Role `json:"role"`
	Active        bool        `json:"active"`
}

// System is the caller used by CLI jobs that run with operator privileges.
func System() Caller {
	return Caller{Authenticated: true, UserID: "system", Name: "system", Role: models.RoleAdmin, Active: true}
}

func rank(r models.Role) int {
	switch r {
	case models.RoleAdmin:
		return 3
	case models.RoleGestor:
		return 2
	case models.RoleUser:
		return 1
	}
	return 0
}

// IsManager is true for GESTOR and ADMIN.
func (c Caller) IsManager() bool { return rank(c.Role) >= rank(models.RoleGestor) }

// Require checks that the caller is authenticated, active and holds at least min.
func Require(c Caller, min models.Role) error {
	if !c.Authenticated || c.UserID == "" {
		return apperr.PermissionDenied("authentication required")
	}
	if !c.Active {
		return apperr.PermissionDenied("account is suspended")
	}
	if rank(c.Role) < rank(min) {
		return apperr.PermissionDenied("requires role %s", min)
	}
	return nil
}

// RequireReader only needs an authenticated caller; suspended accounts may still read.
func RequireReader(c Caller) error {
	if !c.Authenticated || c.UserID == "" {
		return apperr.PermissionDenied("authentication required")
	}
	return nil
}
