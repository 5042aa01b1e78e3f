package rbac

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Service performs grant/revoke administration. Every mutation that can
// change a package's effective catalog invalidates the corresponding
// cache key before returning, so a subsequent Authorization never reads
// a grant that no longer exists.
type Service struct {
	admin AdminStore
	cache *Cache
	log   *zap.Logger
}

// NewService builds the administration service.
func NewService(admin AdminStore, cache *Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{admin: admin, cache: cache, log: log}
}

// SetRoleMenus replaces the menu grants of a role.
func (s *Service) SetRoleMenus(ctx context.Context, roleID string, menuIDs []string) error {
	if roleID == "" {
		return fmt.Errorf("%w: role id is required", ErrNotFound)
	}
	if err := s.admin.SetRoleMenus(ctx, roleID, dedupeStrings(menuIDs)); err != nil {
		return err
	}
	return s.invalidateForRole(ctx, roleID)
}

// SetRolePermissions replaces the permission grants of a role.
func (s *Service) SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if roleID == "" {
		return fmt.Errorf("%w: role id is required", ErrNotFound)
	}
	if err := s.admin.SetRolePermissions(ctx, roleID, dedupeStrings(permissionIDs)); err != nil {
		return err
	}
	return s.invalidateForRole(ctx, roleID)
}

// SetPackageMenus replaces the menu set of a package.
func (s *Service) SetPackageMenus(ctx context.Context, packageID string, menuIDs []string) error {
	if packageID == "" {
		return fmt.Errorf("%w: package id is required", ErrNotFound)
	}
	if err := s.admin.SetPackageMenus(ctx, packageID, dedupeStrings(menuIDs)); err != nil {
		return err
	}
	return s.cache.InvalidatePackage(ctx, packageID)
}

// SetPackagePermissions replaces the permission set of a package.
func (s *Service) SetPackagePermissions(ctx context.Context, packageID string, permissionIDs []string) error {
	if packageID == "" {
		return fmt.Errorf("%w: package id is required", ErrNotFound)
	}
	if err := s.admin.SetPackagePermissions(ctx, packageID, dedupeStrings(permissionIDs)); err != nil {
		return err
	}
	return s.cache.InvalidatePackage(ctx, packageID)
}

// AssignRole grants a role to a user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string) error {
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user id and role id are required", ErrNotFound)
	}
	return s.admin.AssignRole(ctx, userID, roleID)
}

// RemoveRole revokes a role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID string) error {
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user id and role id are required", ErrNotFound)
	}
	return s.admin.RemoveRole(ctx, userID, roleID)
}

func (s *Service) invalidateForRole(ctx context.Context, roleID string) error {
	packageID, assigned, err := s.admin.PackageForRole(ctx, roleID)
	if err != nil {
		return err
	}
	if !assigned {
		return nil
	}
	return s.cache.InvalidatePackage(ctx, packageID)
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
