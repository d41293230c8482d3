package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/security/auth"
)

const minPasswordLength = 8

// AuthService handles registration and login for every account type
type AuthService struct {
	Deps
	tokens *auth.TokenManager
	leases *LeaseService
}

// NewAuthService creates a new authentication service
func NewAuthService(deps Deps, tokens *auth.TokenManager, leases *LeaseService) *AuthService {
	deps = deps.withDefaults()
	if leases == nil {
		leases = NewLeaseService(deps)
	}
	return &AuthService{Deps: deps, tokens: tokens, leases: leases}
}

// RegisterInput carries the fields common to every registration.
type RegisterInput struct {
	Name     string
	Phone    string
	Email    string
	Password string
}

// RegisterTenantInput is a tenant self-registration against a property code.
type RegisterTenantInput struct {
	RegisterInput
	PropertyCode string
	UnitNumber   string
}

// AuthResult represents a successful registration or login
type AuthResult struct {
	AccountID string      `json:"account_id"`
	Role      domain.Role `json:"role"`
	Name      string      `json:"name"`
	Token     string      `json:"token"`
	ExpiresIn int         `json:"expires_in"` // seconds
	TokenType string      `json:"token_type"`
	LeaseID   string      `json:"lease_id,omitempty"`
}

// Register creates a landlord or manager account
func (s *AuthService) Register(ctx context.Context, role domain.Role, in RegisterInput) (*AuthResult, error) {
	creds, err := newCredentials(in.Name, in.Phone, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	var id string
	switch role {
	case domain.RoleLandlord:
		l := &domain.Landlord{Credentials: creds}
		err = s.Store.Accounts().CreateLandlord(ctx, l)
		id = l.ID
	case domain.RoleManager:
		m := &domain.Manager{Credentials: creds}
		err = s.Store.Accounts().CreateManager(ctx, m)
		id = m.ID
	default:
		return nil, domain.Validationf("self-registration is only open to landlords and managers")
	}
	if err != nil {
		return nil, registrationError(err)
	}

	s.Logger.Info("account registered",
		slog.String("account_id", id),
		slog.String("role", string(role)),
	)
	return s.issue(domain.Identity{SubjectID: id, Role: role}, creds.Name)
}

// RegisterTenant creates a tenant account and its lease on the named unit in
// one transaction. The lease takes the unit's current rent.
func (s *AuthService) RegisterTenant(ctx context.Context, in RegisterTenantInput) (*AuthResult, error) {
	creds, err := newCredentials(in.Name, in.Phone, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.PropertyCode)
	number := strings.TrimSpace(in.UnitNumber)
	if code == "" || number == "" {
		return nil, domain.Validationf("property_code and unit_number are required")
	}

	var tenant *domain.Tenant
	var lease *domain.Lease
	err = s.Store.WithinTx(ctx, func(tx domain.Store) error {
		prop, err := tx.Properties().GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NotFoundf("no property with code %s", strings.ToUpper(code))
			}
			return err
		}
		unit, err := tx.Units().GetByNumber(ctx, prop.ID, number)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NotFoundf("unit %s not found in this property", number)
			}
			return err
		}

		tenant = &domain.Tenant{Credentials: creds, PropertyID: &prop.ID}
		if err := tx.Accounts().CreateTenant(ctx, tenant); err != nil {
			return registrationError(err)
		}
		lease, err = s.leases.createLeaseTx(ctx, tx, unit, CreateLeaseInput{
			TenantID:   tenant.ID,
			UnitID:     unit.ID,
			RentAmount: unit.RentAmount,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	id := domain.Identity{SubjectID: tenant.ID, Role: domain.RoleTenant}
	s.leases.afterCreate(ctx, id, lease)
	s.Logger.Info("tenant self-registered",
		slog.String("account_id", tenant.ID),
		slog.String("lease_id", lease.ID),
	)

	res, err := s.issue(id, creds.Name)
	if err != nil {
		return nil, err
	}
	res.LeaseID = lease.ID
	return res, nil
}

// CreateAdmin creates an administrator. It is only reachable from the CLI.
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (*domain.Admin, error) {
	creds, err := newCredentials(in.Name, in.Phone, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	a := &domain.Admin{Credentials: creds}
	if err := s.Store.Accounts().CreateAdmin(ctx, a); err != nil {
		return nil, registrationError(err)
	}
	return a, nil
}

// Login authenticates an account of the given role by phone or email
func (s *AuthService) Login(ctx context.Context, role domain.Role, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, domain.Validationf("login and password are required")
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, err
	}
	if p, err := domain.NormalizeMSISDN(login); err == nil {
		login = p
	}

	acc, err := s.Store.Accounts().FindByLogin(ctx, role, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.Logger.Info("login attempt with unknown account", slog.String("role", string(role)))
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		s.Logger.Info("login failed with wrong password", slog.String("account_id", acc.ID))
		return nil, errInvalidCredentials
	}

	s.Logger.Info("account logged in",
		slog.String("account_id", acc.ID),
		slog.String("role", string(role)),
	)
	return s.issue(domain.Identity{SubjectID: acc.ID, Role: role}, acc.Name)
}

var errInvalidCredentials = &domain.Error{Kind: domain.KindUnauthorized, Message: "invalid credentials"}

func (s *AuthService) issue(id domain.Identity, name string) (*AuthResult, error) {
	token, _, err := s.tokens.GenerateToken(id)
	if err != nil {
		s.Logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, err
	}
	return &AuthResult{
		AccountID: id.SubjectID,
		Role:      id.Role,
		Name:      name,
		Token:     token,
		ExpiresIn: int(s.tokens.TTL().Seconds()),
		TokenType: "Bearer",
	}, nil
}

// newCredentials validates registration fields and hashes the password.
func newCredentials(name, phone, email, password string) (domain.Credentials, error) {
	name = strings.TrimSpace(name)
	if name == "" || phone == "" || password == "" {
		return domain.Credentials{}, domain.Validationf("name, phone and password are required")
	}
	if len(password) < minPasswordLength {
		return domain.Credentials{}, domain.Validationf("password must be at least %d characters", minPasswordLength)
	}
	msisdn, err := domain.NormalizeMSISDN(phone)
	if err != nil {
		return domain.Credentials{}, err
	}

	creds := domain.Credentials{Name: name, Phone: msisdn}
	if email = strings.TrimSpace(email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return domain.Credentials{}, domain.Validationf("email %q is invalid", email)
		}
		email = strings.ToLower(email)
		creds.Email = &email
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Credentials{}, err
	}
	creds.PasswordHash = string(hash)
	return creds, nil
}

func registrationError(err error) error {
	if errors.Is(err, domain.ErrConflict) {
		return domain.Conflictf("phone or email already registered")
	}
	return err
}
