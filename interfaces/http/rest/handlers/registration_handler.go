package handlers

import (
	"net/http"

	"todo-backend/application/services"
	"todo-backend/pkg/common"
	pkgerrors "todo-backend/pkg/errors"
)

type RegistrationHandler struct {
	registration *services.RegistrationService
	errs         *pkgerrors.ErrorHandler
}

func NewRegistrationHandler(registration *services.RegistrationService, errs *pkgerrors.ErrorHandler) *RegistrationHandler {
	return &RegistrationHandler{registration: registration, errs: errs}
}

// Register handles POST /api/register
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in services.RegistrationInput
	if err := common.ParseJSONBody(w, r, &in, common.MaxBodyBytes); err != nil {
		h.errs.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	person, err := h.registration.Register(r.Context(), in)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, person)
}
