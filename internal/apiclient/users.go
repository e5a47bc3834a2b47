package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"taskpanel/internal/models"
)

// UserFilter narrows GET /users. Empty fields are not sent.
type UserFilter struct {
	Email    string
	Password string
	Role     models.UserRole
	Status   models.UserStatus
}

func (f UserFilter) values() url.Values {
	q := url.Values{}
	if f.Email != "" {
		q.Set("email", f.Email)
	}
	if f.Password != "" {
		q.Set("password", f.Password)
	}
	if f.Role != "" {
		q.Set("role", string(f.Role))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	return q
}

func (c *Client) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, usersPath, filter.values(), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodGet, usersPath+"/"+url.PathEscape(id), nil, nil, &user)
	return user, err
}

func (c *Client) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	var created models.User
	err := c.do(ctx, http.MethodPost, usersPath, nil, user, &created)
	return created, err
}

func (c *Client) PatchUser(ctx context.Context, id string, patch models.UserPatch) (models.User, error) {
	var updated models.User
	err := c.do(ctx, http.MethodPatch, usersPath+"/"+url.PathEscape(id), nil, patch, &updated)
	return updated, err
}
