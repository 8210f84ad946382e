package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestPrincipal_CanAccessHospital(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	tests := []struct {
		name string
		p    Principal
		id   uuid.UUID
		want bool
	}{
		{"own hospital", Principal{Roles: []string{RoleDoctor}, HospitalID: own}, own, true},
		{"other hospital", Principal{Roles: []string{RoleDoctor}, HospitalID: own}, other, false},
		{"hospital admin elsewhere", Principal{Roles: []string{RoleHospitalAdmin}, HospitalID: own}, other, false},
		{"super admin anywhere", Principal{Roles: []string{RoleSuperAdmin}}, other, true},
		{"unscoped non-admin", Principal{Roles: []string{RoleNurse}}, uuid.Nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.CanAccessHospital(tt.id); got != tt.want {
				t.Errorf("CanAccessHospital() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrincipal_Actor(t *testing.T) {
	if got := (Principal{}).Actor(); got != "system" {
		t.Errorf("expected system, got %s", got)
	}
	if got := (Principal{UserID: "pharm-1"}).Actor(); got != "pharm-1" {
		t.Errorf("expected pharm-1, got %s", got)
	}
}

func TestPrincipal_HasRole(t *testing.T) {
	p := Principal{Roles: []string{RoleNurse}}
	if !p.HasRole(RoleDoctor, RoleNurse) {
		t.Error("expected nurse to match")
	}
	if p.HasRole(RolePharmacist) {
		t.Error("did not expect pharmacist to match")
	}
	if (Principal{}).HasRole(RoleNurse) {
		t.Error("expected empty principal to hold no role")
	}
}
