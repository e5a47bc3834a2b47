package models

import "fmt"

type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleUser    UserRole = "user"
)

// Roles lists the closed set of roles in display order.
var Roles = []UserRole{UserRoleAdmin, UserRoleManager, UserRoleUser}

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleManager, UserRoleUser:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (UserRole, error) {
	r := UserRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == UserStatusActive || s == UserStatusInactive
}

// Toggled flips active and inactive.
func (s UserStatus) Toggled() UserStatus {
	if s == UserStatusActive {
		return UserStatusInactive
	}
	return UserStatusActive
}

type PermissionFlag string

const (
	PermissionAdd    PermissionFlag = "add"
	PermissionDelete PermissionFlag = "delete"
	PermissionUpdate PermissionFlag = "update"
)

var PermissionFlags = []PermissionFlag{PermissionAdd, PermissionDelete, PermissionUpdate}

func ParsePermissionFlag(s string) (PermissionFlag, error) {
	switch f := PermissionFlag(s); f {
	case PermissionAdd, PermissionDelete, PermissionUpdate:
		return f, nil
	default:
		return "", fmt.Errorf("unknown permission %q", s)
	}
}

type Permissions struct {
	Add    bool `json:"add"`
	Delete bool `json:"delete"`
	Update bool `json:"update"`
}

func (p Permissions) Has(flag PermissionFlag) bool {
	switch flag {
	case PermissionAdd:
		return p.Add
	case PermissionDelete:
		return p.Delete
	case PermissionUpdate:
		return p.Update
	default:
		return false
	}
}

// With returns a copy of p with flag set to value.
func (p Permissions) With(flag PermissionFlag, value bool) Permissions {
	switch flag {
	case PermissionAdd:
		p.Add = value
	case PermissionDelete:
		p.Delete = value
	case PermissionUpdate:
		p.Update = value
	}
	return p
}

type User struct {
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Password    string       `json:"password,omitempty"`
	Role        UserRole     `json:"role"`
	Status      UserStatus   `json:"status"`
	Permissions *Permissions `json:"permissions,omitempty"`
}

// Grants reports whether the user's permission set allows flag. A missing
// permission set grants nothing.
func (u User) Grants(flag PermissionFlag) bool {
	if u.Permissions == nil {
		return false
	}
	return u.Permissions.Has(flag)
}

// EffectivePermissions returns the permission set, all false when absent.
func (u User) EffectivePermissions() Permissions {
	if u.Permissions == nil {
		return Permissions{}
	}
	return *u.Permissions
}

// Public strips the password before the record leaves the trust boundary.
func (u User) Public() User {
	u.Password = ""
	return u
}

// UserPatch is a partial update; nil fields are left untouched.
type UserPatch struct {
	Status      *UserStatus  `json:"status,omitempty"`
	Role        *UserRole    `json:"role,omitempty"`
	Permissions *Permissions `json:"permissions,omitempty"`
}

func (p UserPatch) Empty() bool {
	return p.Status == nil && p.Role == nil && p.Permissions == nil
}
