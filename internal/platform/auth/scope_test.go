package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/opdcare/opd/internal/platform/db"
)

func TestHospitalFor(t *testing.T) {
	own := uuid.New()
	other := uuid.New()
	doctor := Principal{UserID: "u1", Roles: []string{RoleDoctor}, HospitalID: own}
	super := Principal{UserID: "root", Roles: []string{RoleSuperAdmin}}

	tests := []struct {
		name     string
		ctx      context.Context
		p        Principal
		explicit uuid.UUID
		want     uuid.UUID
		wantErr  error
	}{
		{"explicit own", context.Background(), doctor, own, own, nil},
		{"explicit other", context.Background(), doctor, other, uuid.Nil, ErrForbidden},
		{"from principal", context.Background(), doctor, uuid.Nil, own, nil},
		{"from scope", db.WithHospital(context.Background(), own), doctor, uuid.Nil, own, nil},
		{"super admin other", context.Background(), super, other, other, nil},
		{"super admin scope", db.WithHospital(context.Background(), other), super, uuid.Nil, other, nil},
		{"super admin none", context.Background(), super, uuid.Nil, uuid.Nil, ErrNoHospital},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HospitalFor(tt.ctx, tt.p, tt.explicit)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HospitalFor() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("HospitalFor() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestScopeError(t *testing.T) {
	if he := ScopeError(ErrNoHospital); he == nil || he.Code != http.StatusBadRequest {
		t.Errorf("ErrNoHospital -> %v", he)
	}
	if he := ScopeError(ErrForbidden); he == nil || he.Code != http.StatusForbidden {
		t.Errorf("ErrForbidden -> %v", he)
	}
	if he := ScopeError(errors.New("other")); he != nil {
		t.Errorf("expected nil, got %v", he)
	}
}
