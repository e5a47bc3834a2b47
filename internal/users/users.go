// Package users holds the admin user table and the manager permission matrix.
// Both read the record API on every call and keep no copy of their own.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"taskpanel/internal/activity"
	"taskpanel/internal/apiclient"
	"taskpanel/internal/common"
	"taskpanel/internal/models"
)

type API interface {
	ListUsers(ctx context.Context, filter apiclient.UserFilter) ([]models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	PatchUser(ctx context.Context, id string, patch models.UserPatch) (models.User, error)
}

var (
	ErrInvalidRole  = common.NewError(common.ErrValidation, "Role must be user or manager.")
	ErrAdminTarget  = common.NewError(common.ErrForbidden, "Administrators cannot be changed here.")
	ErrNotRoleUser  = common.NewError(common.ErrValidation, "Permissions apply to users with the user role only.")
	ErrUnknownFlag  = common.NewError(common.ErrValidation, "Unknown permission.")
	ErrUserNotFound = common.NewError(common.ErrNotFound, "User not found.")
)

type Service struct {
	api      API
	recorder activity.Recorder
	log      zerolog.Logger
}

func NewService(api API, recorder activity.Recorder, log zerolog.Logger) *Service {
	if recorder == nil {
		recorder = activity.Nop{}
	}
	return &Service{api: api, recorder: recorder, log: log}
}

// Managed lists every non-admin user.
func (s *Service) Managed(ctx context.Context) ([]models.User, error) {
	all, err := s.api.ListUsers(ctx, apiclient.UserFilter{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]models.User, 0, len(all))
	for _, u := range all {
		if u.Role != models.UserRoleAdmin {
			out = append(out, u.Public())
		}
	}
	return out, nil
}

// ToggleStatus flips the target between active and inactive and returns the
// row as the record API now holds it.
func (s *Service) ToggleStatus(ctx context.Context, actorID, id string) (models.User, error) {
	target, err := s.target(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	next := target.Status.Toggled()
	updated, err := s.patch(ctx, target, models.UserPatch{Status: &next})
	if err != nil {
		return models.User{}, err
	}

	s.record(ctx, activity.EventUserStatus, actorID, id, map[string]models.UserStatus{
		"from": target.Status,
		"to":   next,
	})
	return updated, nil
}

// ChangeRole moves the target between the user and manager roles.
func (s *Service) ChangeRole(ctx context.Context, actorID, id string, role models.UserRole) (models.User, error) {
	if role != models.UserRoleUser && role != models.UserRoleManager {
		return models.User{}, ErrInvalidRole
	}
	target, err := s.target(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	updated, err := s.patch(ctx, target, models.UserPatch{Role: &role})
	if err != nil {
		return models.User{}, err
	}

	s.record(ctx, activity.EventUserRole, actorID, id, map[string]models.UserRole{
		"from": target.Role,
		"to":   role,
	})
	return updated, nil
}

// PermissionRow is one line of the permission matrix.
type PermissionRow struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Permissions models.Permissions `json:"permissions"`
}

// Matrix lists users with the user role. A missing permission set reads as
// all false.
func (s *Service) Matrix(ctx context.Context) ([]PermissionRow, error) {
	list, err := s.api.ListUsers(ctx, apiclient.UserFilter{Role: models.UserRoleUser})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	rows := make([]PermissionRow, 0, len(list))
	for _, u := range list {
		// the record API may ignore the filter
		if u.Role != models.UserRoleUser {
			continue
		}
		rows = append(rows, PermissionRow{
			ID:          u.ID,
			Name:        u.Name,
			Email:       u.Email,
			Permissions: u.EffectivePermissions(),
		})
	}
	return rows, nil
}

// TogglePermission sends the whole permission set with flag negated, then
// returns the refreshed matrix.
func (s *Service) TogglePermission(ctx context.Context, actorID, id string, flag models.PermissionFlag) ([]PermissionRow, error) {
	if _, err := models.ParsePermissionFlag(string(flag)); err != nil {
		return nil, ErrUnknownFlag
	}
	target, err := s.target(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Role != models.UserRoleUser {
		return nil, ErrNotRoleUser
	}

	current := target.EffectivePermissions()
	next := current.With(flag, !current.Has(flag))
	if _, err := s.patch(ctx, target, models.UserPatch{Permissions: &next}); err != nil {
		return nil, err
	}

	s.record(ctx, activity.EventUserPermissions, actorID, id, map[string]models.Permissions{
		"from": current,
		"to":   next,
	})
	return s.Matrix(ctx)
}

// target loads a user that may be changed from the panel.
func (s *Service) target(ctx context.Context, id string) (models.User, error) {
	u, err := s.api.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	if u.Role == models.UserRoleAdmin {
		return models.User{}, ErrAdminTarget
	}
	return u, nil
}

func (s *Service) patch(ctx context.Context, target models.User, patch models.UserPatch) (models.User, error) {
	updated, err := s.api.PatchUser(ctx, target.ID, patch)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", target.ID).Msg("user update failed")
		return models.User{}, fmt.Errorf("update user %s: %w", target.ID, err)
	}
	if updated.ID == "" {
		// some record APIs answer PATCH with an empty body
		updated = target
		if patch.Status != nil {
			updated.Status = *patch.Status
		}
		if patch.Role != nil {
			updated.Role = *patch.Role
		}
		if patch.Permissions != nil {
			p := *patch.Permissions
			updated.Permissions = &p
		}
	}
	return updated.Public(), nil
}

func (s *Service) record(ctx context.Context, typ activity.EventType, actorID, subjectID string, payload any) {
	e, err := activity.NewEvent(typ, actorID, subjectID, payload)
	if err != nil {
		s.log.Warn().Err(err).Msg("build activity event")
		return
	}
	_ = s.recorder.Record(ctx, e)
}
