package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"todo-backend/application/services"
	"todo-backend/pkg/common"
	pkgerrors "todo-backend/pkg/errors"
	"todo-backend/pkg/utils"
)

// todoRequest is the body of create and update. dueDate is YYYY-MM-DD.
type todoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	DueDate     string `json:"dueDate"`
}

func decodeTodo(w http.ResponseWriter, r *http.Request) (services.TodoInput, error) {
	var body todoRequest
	if err := common.ParseJSONBody(w, r, &body, common.MaxBodyBytes); err != nil {
		return services.TodoInput{}, pkgerrors.NewValidationError(err.Error())
	}
	due, err := utils.ParseDate(body.DueDate)
	if err != nil {
		return services.TodoInput{}, pkgerrors.NewValidationError("dueDate must be formatted as " + utils.DateLayout)
	}
	return services.TodoInput{
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		DueDate:     due,
	}, nil
}

// TodoHandler handles todo CRUD
type TodoHandler struct {
	todos  *services.TodoService
	errs   *pkgerrors.ErrorHandler
	logger *zap.Logger
}

func NewTodoHandler(todos *services.TodoService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, errs: errs, logger: logger}
}

// Create handles POST /api/todos
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	in, err := decodeTodo(w, r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	td, err := h.todos.Create(r.Context(), user.Email, in)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/todos/"+itoa(td.ID))
	common.RespondJSON(w, http.StatusCreated, td)
}

// Get handles GET /api/todos/{todoID}
func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.target(w, r)
	if !ok {
		return
	}
	td, err := h.todos.Get(r.Context(), user, id)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, td)
}

// Update handles PUT /api/todos/{todoID}
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.target(w, r)
	if !ok {
		return
	}
	in, err := decodeTodo(w, r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	td, err := h.todos.Update(r.Context(), user, id, in)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, td)
}

// Complete handles POST /api/todos/{todoID}/complete
func (h *TodoHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.target(w, r)
	if !ok {
		return
	}
	td, err := h.todos.Complete(r.Context(), user, id)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, td)
}

// Delete handles DELETE /api/todos/{todoID}
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.todos.Delete(r.Context(), user, id); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) target(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	user, err := currentUser(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return "", 0, false
	}
	id, err := pathID(r, "todoID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return "", 0, false
	}
	return user.Email, id, true
}
