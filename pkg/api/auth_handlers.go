package api

import (
	"net/http"

	"github.com/kartexhq/kartex/pkg/kartexauth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userInfo `json:"user"`
}

type userInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid login request body")
		return
	}

	token, user, err := h.Auth.Login(req.Username, req.Password)
	if err != nil {
		if err == kartexauth.ErrInvalidCredentials {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  userInfo{Username: user.Username, Role: user.Role},
	})
}
