package security

import (
	"log/slog"

	"github.com/yourorg/rentledger/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermPropertyWrite    Permission = "property:write"
	PermPropertyRead     Permission = "property:read"
	PermUnitWrite        Permission = "unit:write"
	PermTenantWrite      Permission = "tenant:write"
	PermTenantRead       Permission = "tenant:read"
	PermLeaseRead        Permission = "lease:read"
	PermLeaseWrite       Permission = "lease:write"
	PermPaymentRead      Permission = "payment:read"
	PermPaymentWrite     Permission = "payment:write"
	PermPaymentInitiate  Permission = "payment:initiate"
	PermReportRead       Permission = "report:read"
	PermNotificationRead Permission = "notification:read"
	PermRunJobs          Permission = "jobs:run"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermPropertyWrite,
		PermPropertyRead,
		PermUnitWrite,
		PermTenantWrite,
		PermTenantRead,
		PermLeaseRead,
		PermLeaseWrite,
		PermPaymentRead,
		PermPaymentWrite,
		PermPaymentInitiate,
		PermReportRead,
		PermNotificationRead,
		PermRunJobs,
	},
	domain.RoleLandlord: {
		PermPropertyWrite,
		PermPropertyRead,
		PermUnitWrite,
		PermTenantWrite,
		PermTenantRead,
		PermLeaseRead,
		PermLeaseWrite,
		PermPaymentRead,
		PermPaymentWrite,
		PermPaymentInitiate,
		PermReportRead,
		PermNotificationRead,
	},
	domain.RoleManager: {
		PermPropertyRead,
		PermUnitWrite,
		PermTenantWrite,
		PermTenantRead,
		PermLeaseRead,
		PermLeaseWrite,
		PermPaymentRead,
		PermPaymentWrite,
		PermPaymentInitiate,
		PermReportRead,
		PermNotificationRead,
	},
	domain.RoleTenant: {
		PermLeaseRead,
		PermPaymentRead,
		PermPaymentInitiate,
		PermNotificationRead,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return domain.Forbiddenf("%s role cannot %s", role, permission)
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}

// ValidatePropertyAccess checks that the identity owns or manages the property.
// Admins bypass the check.
func (as *AuthorizationService) ValidatePropertyAccess(id domain.Identity, property *domain.Property) error {
	if property.ManagedBy(id) {
		return nil
	}
	as.logger.Warn("property access denied",
		slog.String("subject_id", id.SubjectID),
		slog.String("role", string(id.Role)),
		slog.String("property_id", property.ID),
	)
	return domain.Forbiddenf("access denied: property %s is not yours", property.ID)
}

// ValidateTenantSelf checks that a tenant identity is acting on its own record.
// Non-tenant roles pass; their access is decided by property ownership.
func (as *AuthorizationService) ValidateTenantSelf(id domain.Identity, tenantID string) error {
	if id.Role != domain.RoleTenant || id.SubjectID == tenantID {
		return nil
	}
	as.logger.Warn("tenant access denied",
		slog.String("subject_id", id.SubjectID),
		slog.String("requested_tenant", tenantID),
	)
	return domain.Forbiddenf("access denied: not your record")
}
