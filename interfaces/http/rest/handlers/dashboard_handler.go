package handlers

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"todo-backend/application/services"
	"todo-backend/pkg/common"
	pkgerrors "todo-backend/pkg/errors"
)

// Dashboard is the payload of GET /api/dashboard
type Dashboard struct {
	Todos         []services.TodoView      `json:"todos"`
	Collaborators []services.Collaborator `json:"collaborators"`
}

type DashboardHandler struct {
	dashboard *services.DashboardService
	errs      *pkgerrors.ErrorHandler
}

func NewDashboardHandler(dashboard *services.DashboardService, errs *pkgerrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, errs: errs}
}

// Get loads the caller's todos and the people they can share with
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	var out Dashboard
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		todos, err := h.dashboard.OwnedAndSharedTodos(ctx, user.Email)
		out.Todos = todos
		return err
	})
	g.Go(func() error {
		people, err := h.dashboard.AvailableCollaborators(ctx, user.Email)
		out.Collaborators = people
		return err
	})
	if err := g.Wait(); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	if out.Todos == nil {
		out.Todos = []services.TodoView{}
	}
	if out.Collaborators == nil {
		out.Collaborators = []services.Collaborator{}
	}
	common.RespondJSON(w, http.StatusOK, out)
}
