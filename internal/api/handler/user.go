package handler

import (
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/service"
)

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetUser(r.Context(), principal.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	RespondData(w, http.StatusOK, "User details.", user)
}
