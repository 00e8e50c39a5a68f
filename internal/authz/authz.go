// Package authz implements role-based data scoping for report listings.
// Roles form a closed world: sales see themselves, managers see direct
// reports, admins see everything, and anything else is denied.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/nippolabs/nippo/internal/user"
)

// ErrForbidden is returned when the caller's role does not grant access to
// the requested scope.
var ErrForbidden = errors.New("forbidden")

// SubordinateDirectory answers manager-subordinate relation queries.
// Implemented by user.Store.
type SubordinateDirectory interface {
	IsSubordinate(ctx context.Context, userID, managerID int64) (bool, error)
	ListSubordinateIDs(ctx context.Context, managerID int64) ([]int64, error)
}

// Identity is the authenticated caller, as established by the session layer.
type Identity struct {
	UserID int64
	Role   user.Role
}

// Scope is the set of user ids the caller may query. A nil UserIDs means
// unrestricted; a non-nil empty slice permits nothing.
type Scope struct {
	UserIDs []int64
}

// Unrestricted reports whether the scope places no user filter at all.
func (s Scope) Unrestricted() bool {
	return s.UserIDs == nil
}

// ResolveScope computes the visible user scope for a report listing.
// targetUserID is the optional ?userId= filter from the request; nil means
// "everything I can see".
//
//   - sales may only target themselves
//   - managers may target a direct report, or default to all direct reports
//     (the relation is not transitive)
//   - admins are unrestricted, with the target as a plain narrowing filter
//   - any other role is denied outright
func ResolveScope(ctx context.Context, dir SubordinateDirectory, id Identity, targetUserID *int64) (Scope, error) {
	switch id.Role {
	case user.RoleSales:
		if targetUserID != nil && *targetUserID != id.UserID {
			return Scope{}, ErrForbidden
		}
		return Scope{UserIDs: []int64{id.UserID}}, nil

	case user.RoleManager:
		if targetUserID != nil {
			ok, err := dir.IsSubordinate(ctx, *targetUserID, id.UserID)
			if err != nil {
				return Scope{}, fmt.Errorf("checking subordinate: %w", err)
			}
			if !ok {
				return Scope{}, ErrForbidden
			}
			return Scope{UserIDs: []int64{*targetUserID}}, nil
		}
		ids, err := dir.ListSubordinateIDs(ctx, id.UserID)
		if err != nil {
			return Scope{}, fmt.Errorf("listing subordinates: %w", err)
		}
		if ids == nil {
			ids = []int64{}
		}
		return Scope{UserIDs: ids}, nil

	case user.RoleAdmin:
		if targetUserID != nil {
			return Scope{UserIDs: []int64{*targetUserID}}, nil
		}
		return Scope{}, nil

	default:
		return Scope{}, ErrForbidden
	}
}
