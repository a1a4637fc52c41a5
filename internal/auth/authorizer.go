package auth

import (
	"errors"
	"fmt"

	"github.com/evently/apiserver/types"
)

// ErrPermissionDenied is returned when a role lacks a permission.
var ErrPermissionDenied = errors.New("permission denied")

// Authorizer answers role/permission questions from a fixed table.
type Authorizer struct {
	grants map[types.Role]map[types.Permission]struct{}
}

// NewAuthorizer copies table so later changes to it have no effect.
func NewAuthorizer(table types.PermissionTable) *Authorizer {
	grants := make(map[types.Role]map[types.Permission]struct{}, len(table))
	for role, perms := range table {
		set := make(map[types.Permission]struct{}, len(perms))
		for _, perm := range perms {
			set[perm] = struct{}{}
		}
		grants[role] = set
	}
	return &Authorizer{grants: grants}
}

func (a *Authorizer) Allowed(role types.Role, perm types.Permission) bool {
	_, ok := a.grants[role][perm]
	return ok
}

// Check returns ErrPermissionDenied unless role holds perm.
func (a *Authorizer) Check(role types.Role, perm types.Permission) error {
	if !a.Allowed(role, perm) {
		return fmt.Errorf("%w: role %q lacks %q", ErrPermissionDenied, role, perm)
	}
	return nil
}
