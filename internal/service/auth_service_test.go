package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yourorg/rentledger/internal/domain"
)

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Register
	r, err := h.auth.Register(ctx, domain.RoleLandlord, RegisterInput{
		Name: "Wanjiru", Phone: "0712 345 678", Email: "Wanjiru@Example.com", Password: "Password123",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if r.AccountID == "" || r.Token == "" {
		t.Fatalf("expected account id and token")
	}
	if r.TokenType != "Bearer" || r.ExpiresIn != 3600 {
		t.Fatalf("unexpected token metadata: %+v", r)
	}

	// Duplicate phone in another format
	if _, err := h.auth.Register(ctx, domain.RoleLandlord, RegisterInput{
		Name: "Other", Phone: "+254712345678", Password: "Password123",
	}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected duplicate phone conflict, got %v", err)
	}

	// Login by phone and by email
	lr, err := h.auth.Login(ctx, domain.RoleLandlord, "0712345678", "Password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if lr.AccountID != r.AccountID {
		t.Fatalf("login returned account %s, want %s", lr.AccountID, r.AccountID)
	}
	if _, err := h.auth.Login(ctx, domain.RoleLandlord, "wanjiru@example.com", "Password123"); err != nil {
		t.Fatalf("login by email failed: %v", err)
	}

	// Claims carry the role
	claims, err := h.auth.tokens.ValidateToken(lr.Token)
	if err != nil {
		t.Fatalf("token did not validate: %v", err)
	}
	if got := claims.Identity(); got.SubjectID != r.AccountID || got.Role != domain.RoleLandlord {
		t.Fatalf("unexpected identity %+v", got)
	}

	// Wrong password
	if _, err := h.auth.Login(ctx, domain.RoleLandlord, "0712345678", "Wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	// Right password, wrong role
	if _, err := h.auth.Login(ctx, domain.RoleManager, "0712345678", "Password123"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected invalid credentials for manager login, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := map[string]RegisterInput{
		"short password": {Name: "A", Phone: "0712345678", Password: "short"},
		"bad phone":      {Name: "A", Phone: "12345", Password: "Password123"},
		"bad email":      {Name: "A", Phone: "0712345678", Email: "nope", Password: "Password123"},
		"missing name":   {Phone: "0712345678", Password: "Password123"},
	}
	for name, in := range cases {
		if _, err := h.auth.Register(ctx, domain.RoleLandlord, in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if _, err := h.auth.Register(ctx, domain.RoleTenant, RegisterInput{Name: "A", Phone: "0712345678", Password: "Password123"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("tenant must register with a property code, got %v", err)
	}
}

func TestRegisterTenantCreatesLease(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.landlord(t, "Wanjiru")
	prop := h.property(t, owner, "Riverside")
	unit := h.unit(t, owner, prop, "A1", 12000)

	res, err := h.auth.RegisterTenant(ctx, RegisterTenantInput{
		RegisterInput: RegisterInput{Name: "Otieno", Phone: "0722000111", Password: "Password123"},
		PropertyCode:  prop.PropertyCode,
		UnitNumber:    "A1",
	})
	if err != nil {
		t.Fatalf("tenant registration failed: %v", err)
	}
	if res.LeaseID == "" || res.Role != domain.RoleTenant {
		t.Fatalf("unexpected result %+v", res)
	}

	lease, err := h.store.Leases().GetByID(ctx, res.LeaseID)
	if err != nil {
		t.Fatalf("lease lookup failed: %v", err)
	}
	if !lease.Active || !lease.RentAmount.Equal(unit.RentAmount) || lease.TenantID != res.AccountID {
		t.Fatalf("unexpected lease %+v", lease)
	}
	h.requireOccupancyConsistent(t, unit)

	// Second tenant on the same unit is rejected and leaves no account behind
	_, err = h.auth.RegisterTenant(ctx, RegisterTenantInput{
		RegisterInput: RegisterInput{Name: "Akinyi", Phone: "0722000222", Password: "Password123"},
		PropertyCode:  prop.PropertyCode,
		UnitNumber:    "A1",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected occupied unit conflict, got %v", err)
	}
	if _, err := h.store.Accounts().FindByLogin(ctx, domain.RoleTenant, "254722000222"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected rolled back tenant, got %v", err)
	}

	// Unknown code and unit
	_, err = h.auth.RegisterTenant(ctx, RegisterTenantInput{
		RegisterInput: RegisterInput{Name: "Mutua", Phone: "0722000333", Password: "Password123"},
		PropertyCode:  "NOPE0000",
		UnitNumber:    "A1",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unknown property code, got %v", err)
	}
	_, err = h.auth.RegisterTenant(ctx, RegisterTenantInput{
		RegisterInput: RegisterInput{Name: "Mutua", Phone: "0722000333", Password: "Password123"},
		PropertyCode:  prop.PropertyCode,
		UnitNumber:    "Z9",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unknown unit, got %v", err)
	}

	if _, err := h.auth.Login(ctx, domain.RoleTenant, "0722000111", "Password123"); err != nil {
		t.Fatalf("tenant login failed: %v", err)
	}
}

func TestCreateAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.auth.CreateAdmin(ctx, RegisterInput{Name: "Root", Phone: "0799000000", Password: "Password123"})
	if err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	if _, err := h.auth.Login(ctx, domain.RoleAdmin, "0799000000", "Password123"); err != nil {
		t.Fatalf("admin login failed: %v", err)
	}
	if a.PasswordHash == "Password123" {
		t.Fatalf("password stored in clear")
	}
}
