package middleware

import (
	"net/http"

	"github.com/rmonterroso/fieldledger-backend/api/responses"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
)

// RequirePrivileged gates routes to admin and developer actors.
func RequirePrivileged(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.ActorRole(RoleFromContext(r.Context()))
			if !role.IsPrivileged() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "privileged role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
