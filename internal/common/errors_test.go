package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusFromError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", fmt.Errorf("task t1: %w", ErrNotFound), http.StatusNotFound},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("wrap: %w", ErrForbidden), http.StatusForbidden},
		{"validation", ErrValidation, http.StatusBadRequest},
		{"conflict", ErrConflict, http.StatusConflict},
		{"upstream", fmt.Errorf("patch: %w", ErrUpstream), http.StatusBadGateway},
		{"unique violation", &pgconn.PgError{Code: "23505"}, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, HTTPStatusFromError(tc.err))
		})
	}
}

func TestErrorClassifies(t *testing.T) {
	errEmpty := NewError(ErrValidation, "title is required")
	wrapped := fmt.Errorf("create: %w", errEmpty)

	require.ErrorIs(t, wrapped, errEmpty)
	require.ErrorIs(t, wrapped, ErrValidation)
	require.NotErrorIs(t, wrapped, ErrForbidden)
	require.Equal(t, "title is required", errEmpty.Error())
	require.Equal(t, http.StatusBadRequest, HTTPStatusFromError(wrapped))
}
