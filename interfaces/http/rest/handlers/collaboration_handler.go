package handlers

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"todo-backend/application/services"
	"todo-backend/pkg/common"
	pkgerrors "todo-backend/pkg/errors"
)

var confirmedPage = template.Must(template.New("confirmed").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Collaboration confirmed</title></head>
<body>
<h1>You are now a collaborator</h1>
<p>The todo is now listed on your <a href="{{.Dashboard}}">dashboard</a>.</p>
</body>
</html>
`))

var invalidLinkPage = template.Must(template.New("invalid").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Invalid link</title></head>
<body>
<h1>This confirmation link is not valid</h1>
<p>Ask the owner of the todo to share it with you again.</p>
</body>
</html>
`))

type shareRequest struct {
	CollaboratorID int64 `json:"collaboratorId" validate:"required,gt=0"`
}

type confirmRequest struct {
	Token string `json:"token" validate:"required"`
}

// CollaborationHandler exposes sharing and confirmation
type CollaborationHandler struct {
	collaborations *services.CollaborationService
	errs           *pkgerrors.ErrorHandler
	logger         *zap.Logger
}

func NewCollaborationHandler(collaborations *services.CollaborationService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *CollaborationHandler {
	return &CollaborationHandler{collaborations: collaborations, errs: errs, logger: logger}
}

// Share handles POST /api/todos/{todoID}/collaborations. The invitation is
// delivered asynchronously, hence 202.
func (h *CollaborationHandler) Share(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	todoID, err := pathID(r, "todoID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	var body shareRequest
	if err := common.ParseJSONBody(w, r, &body, common.MaxBodyBytes); err != nil {
		h.errs.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	if body.CollaboratorID <= 0 {
		h.errs.Handle(w, r, pkgerrors.NewValidationError("collaboratorId is required"))
		return
	}

	req, err := h.collaborations.ShareTodo(r.Context(), todoID, user.Email, body.CollaboratorID)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusAccepted, req)
}

// Confirm handles POST /api/todos/{todoID}/collaborations/{collaboratorID}/confirm
func (h *CollaborationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	user, todoID, collaboratorID, ok := h.pair(w, r)
	if !ok {
		return
	}
	var body confirmRequest
	if err := common.ParseJSONBody(w, r, &body, common.MaxBodyBytes); err != nil {
		h.errs.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	if err := h.collaborations.ConfirmCollaboration(r.Context(), user, todoID, collaboratorID, body.Token); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"todoId":         todoID,
		"collaboratorId": collaboratorID,
		"status":         "CONFIRMED",
	})
}

// ConfirmPage handles the link from the invitation email and answers with HTML
func (h *CollaborationHandler) ConfirmPage(w http.ResponseWriter, r *http.Request) {
	user, todoID, collaboratorID, ok := h.pair(w, r)
	if !ok {
		return
	}

	err := h.collaborations.ConfirmCollaboration(r.Context(), user, todoID, collaboratorID, r.URL.Query().Get("token"))
	switch {
	case err == nil:
		h.render(w, http.StatusOK, confirmedPage, map[string]string{"Dashboard": "/"})
	case pkgerrors.IsInvalidToken(err):
		h.render(w, http.StatusBadRequest, invalidLinkPage, nil)
	default:
		h.errs.Handle(w, r, err)
	}
}

func (h *CollaborationHandler) render(w http.ResponseWriter, status int, page *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		h.logger.Warn("Failed to render page", zap.String("page", page.Name()), zap.Error(err))
	}
}

func (h *CollaborationHandler) pair(w http.ResponseWriter, r *http.Request) (string, int64, int64, bool) {
	user, err := currentUser(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return "", 0, 0, false
	}
	todoID, err := pathID(r, "todoID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return "", 0, 0, false
	}
	collaboratorID, err := pathID(r, "collaboratorID")
	if err != nil {
		h.errs.Handle(w, r, err)
		return "", 0, 0, false
	}
	return user.Email, todoID, collaboratorID, true
}
