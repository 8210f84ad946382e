package auth

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

const (
	RoleSuperAdmin    = "super_admin"
	RoleHospitalAdmin = "hospital_admin"
	RoleDoctor        = "doctor"
	RoleNurse         = "nurse"
	RoleReceptionist  = "receptionist"
	RolePharmacist    = "pharmacist"
)

// Principal is the authenticated caller of one request. Handlers read it from
// the request context and pass it to services explicitly.
type Principal struct {
	UserID     string
	Roles      []string
	HospitalID uuid.UUID
}

func (p Principal) IsSuperAdmin() bool {
	return slices.Contains(p.Roles, RoleSuperAdmin)
}

// HasRole reports whether p holds any of roles. Both admin roles hold every role.
func (p Principal) HasRole(roles ...string) bool {
	for _, has := range p.Roles {
		if has == RoleSuperAdmin || has == RoleHospitalAdmin {
			return true
		}
		if slices.Contains(roles, has) {
			return true
		}
	}
	return false
}

// CanAccessHospital reports whether p may read or write data of hospital id.
func (p Principal) CanAccessHospital(id uuid.UUID) bool {
	if p.IsSuperAdmin() {
		return true
	}
	return p.HospitalID != uuid.Nil && p.HospitalID == id
}

// Actor is the identifier recorded in addedBy, soldBy and similar fields.
func (p Principal) Actor() string {
	if p.UserID == "" {
		return "system"
	}
	return p.UserID
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok
}
