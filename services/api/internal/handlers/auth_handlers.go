package handlers

import (
	"errors"
	"net/http"

	"github.com/diagnosis/portfolio/pkg/response"
	"github.com/diagnosis/portfolio/services/api/internal/domain"
)

// Register handles user registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, http.StatusCreated, map[string]interface{}{
		"token": res.Token,
		"user":  res.User,
	})
}

// Login handles user authentication
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, http.StatusOK, map[string]interface{}{
		"token": res.Token,
		"user":  res.User,
	})
}

// Me returns the signed-in user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Me(r.Context(), currentUserID(r))
	if errors.Is(err, domain.ErrNotFound) {
		response.Unauthorized(w, "User no longer exists", response.CodeInvalidToken)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, http.StatusOK, map[string]interface{}{"data": user.ToUserInfo()})
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), currentUserID(r), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, http.StatusOK, map[string]interface{}{"data": user.ToUserInfo()})
}
