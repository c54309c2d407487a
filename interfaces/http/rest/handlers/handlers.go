// Package handlers adapts HTTP requests to the application services.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"todo-backend/pkg/auth"
	pkgerrors "todo-backend/pkg/errors"
)

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.NewValidationError(name + " must be a positive integer")
	}
	return id, nil
}

func currentUser(r *http.Request) (*auth.UserContext, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return nil, pkgerrors.NewUnauthorizedError("Authentication required")
	}
	return user, nil
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
