package handlers

import (
	"context"
	"net/http"

	"todo-backend/domain/tracing"
	"todo-backend/pkg/common"
	pkgerrors "todo-backend/pkg/errors"
)

// TrailReader reads a user's audit trail
type TrailReader interface {
	FindAllEventsForUser(ctx context.Context, username string) ([]tracing.Breadcrumb, error)
	FindUserTraceForLastTwoWeeks(ctx context.Context, username string) ([]tracing.Breadcrumb, error)
}

type BreadcrumbHandler struct {
	trail TrailReader
	errs  *pkgerrors.ErrorHandler
}

func NewBreadcrumbHandler(trail TrailReader, errs *pkgerrors.ErrorHandler) *BreadcrumbHandler {
	return &BreadcrumbHandler{trail: trail, errs: errs}
}

// List handles GET /api/breadcrumbs?window=all|two-weeks for the caller
func (h *BreadcrumbHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	window := r.URL.Query().Get("window")
	var crumbs []tracing.Breadcrumb
	switch window {
	case "", "all":
		window = "all"
		crumbs, err = h.trail.FindAllEventsForUser(r.Context(), user.Username)
	case "two-weeks":
		crumbs, err = h.trail.FindUserTraceForLastTwoWeeks(r.Context(), user.Username)
	default:
		h.errs.Handle(w, r, pkgerrors.NewValidationError("window must be all or two-weeks"))
		return
	}
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if crumbs == nil {
		crumbs = []tracing.Breadcrumb{}
	}
	common.RespondWithMeta(w, http.StatusOK, crumbs, &common.MetaInfo{Count: len(crumbs), Window: window})
}
