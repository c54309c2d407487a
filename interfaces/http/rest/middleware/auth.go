package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"todo-backend/domain/todo"
	"todo-backend/pkg/auth"
	pkgerrors "todo-backend/pkg/errors"
)

// AuthCookie carries the ID token for browser requests such as the
// confirmation link
const AuthCookie = "auth_token"

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// PersonEnsurer creates the Person of a signed-in identity on first visit
type PersonEnsurer interface {
	EnsurePerson(ctx context.Context, name, email string) (*todo.Person, error)
}

// Authenticate validates the token from the Authorization header or the
// auth_token cookie and stores the principal in the request context.
func Authenticate(validator TokenValidator, persons PersonEnsurer, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Missing authentication token"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Debug("Invalid token", zap.Error(err), zap.String("path", r.URL.Path))
				message := "Invalid token"
				if err == auth.ErrExpiredToken {
					message = "Token has expired"
				}
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError(message))
				return
			}
			if strings.TrimSpace(claims.Email) == "" {
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Token carries no email"))
				return
			}

			user := auth.NewUserContext(claims)
			if _, err := persons.EnsurePerson(r.Context(), user.Name, user.Email); err != nil {
				errs.Handle(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), user)))
		})
	}
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return strings.TrimSpace(header)
	}
	if cookie, err := r.Cookie(AuthCookie); err == nil {
		return cookie.Value
	}
	return ""
}
