// Package access decides who may see which panel view.
package access

import (
	"errors"
	"fmt"
	"slices"

	"taskpanel/internal/models"
	"taskpanel/internal/session"
)

type View string

const (
	ViewLogin        View = "login"
	ViewRegister     View = "register"
	ViewUnauthorized View = "unauthorized"
	ViewDashboard    View = "dashboard"
	ViewTasks        View = "tasks"
	ViewManage       View = "manage"
	ViewPermission   View = "permission"
)

type Route struct {
	View  View   `json:"view"`
	Path  string `json:"path"`
	Title string `json:"title"`
}

var routes = map[View]Route{
	ViewLogin:        {ViewLogin, "/login", "Login"},
	ViewRegister:     {ViewRegister, "/register", "Register"},
	ViewUnauthorized: {ViewUnauthorized, "/unauthorized", "Unauthorized"},
	ViewDashboard:    {ViewDashboard, "/dashboard", "Dashboard"},
	ViewTasks:        {ViewTasks, "/dashboard/tasks", "Tasks"},
	ViewManage:       {ViewManage, "/dashboard/manage", "Manage"},
	ViewPermission:   {ViewPermission, "/dashboard/permission", "Permissions"},
}

var publicViews = []View{ViewLogin, ViewRegister, ViewUnauthorized}

// RoleProfile is everything a role is entitled to. Navigation doubles as
// the set of protected views the role may open.
type RoleProfile struct {
	Role       models.UserRole
	Navigation []View
}

var profiles = map[models.UserRole]RoleProfile{
	models.UserRoleAdmin:   {Role: models.UserRoleAdmin, Navigation: []View{ViewDashboard, ViewManage}},
	models.UserRoleManager: {Role: models.UserRoleManager, Navigation: []View{ViewDashboard, ViewPermission}},
	models.UserRoleUser:    {Role: models.UserRoleUser, Navigation: []View{ViewDashboard, ViewTasks}},
}

var ErrUnknownRole = errors.New("unknown role")

func ProfileFor(role models.UserRole) (RoleProfile, error) {
	p, ok := profiles[role]
	if !ok {
		return RoleProfile{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return p, nil
}

func RouteFor(view View) (Route, bool) {
	r, ok := routes[view]
	return r, ok
}

// Navigation lists the sidebar entries for role.
func Navigation(role models.UserRole) ([]Route, error) {
	p, err := ProfileFor(role)
	if err != nil {
		return nil, err
	}
	out := make([]Route, 0, len(p.Navigation))
	for _, v := range p.Navigation {
		out = append(out, routes[v])
	}
	return out, nil
}

func IsPublic(view View) bool {
	return slices.Contains(publicViews, view)
}

// AllowedRoles lists the roles that may open a protected view.
func AllowedRoles(view View) []models.UserRole {
	var out []models.UserRole
	for _, role := range models.Roles {
		if slices.Contains(profiles[role].Navigation, view) {
			out = append(out, role)
		}
	}
	return out
}

type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Location is the redirect target, empty for Allow.
func (d Decision) Location() string {
	switch d {
	case RedirectLogin:
		return routes[ViewLogin].Path
	case RedirectUnauthorized:
		return routes[ViewUnauthorized].Path
	default:
		return ""
	}
}

// Check evaluates s against view. It has no side effects.
func Check(s *session.Session, view View) Decision {
	if IsPublic(view) {
		return Allow
	}
	role, ok := s.Role()
	if !ok {
		return RedirectLogin
	}
	if !slices.Contains(AllowedRoles(view), role) {
		return RedirectUnauthorized
	}
	return Allow
}
