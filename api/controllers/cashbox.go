package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/api/middleware"
	"github.com/rmonterroso/fieldledger-backend/api/responses"
	"github.com/rmonterroso/fieldledger-backend/internal/cashbox"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
)

// MyCashBalance projects the calling user's working cash balance from the
// recent event window.
func MyCashBalance(projector *cashbox.Projector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if projector == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cashbox projector unavailable"))
			return
		}

		userID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		projection, err := projector.ProjectBalance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projection)
	}
}

// UserCashBalance projects another user's balance; managers and above only.
func UserCashBalance(projector *cashbox.Projector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if projector == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cashbox projector unavailable"))
			return
		}

		role := enums.ActorRole(middleware.RoleFromContext(r.Context()))
		if role != enums.ActorRoleManager && !role.IsPrivileged() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "manager role required"))
			return
		}

		userID, err := uuid.Parse(chi.URLParam(r, "userId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		projection, err := projector.ProjectBalance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projection)
	}
}
