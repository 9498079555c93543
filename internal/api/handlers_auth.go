package api

import (
	"encoding/json"
	"net/http"

	"ratesvc/internal/auth"
)

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" example:"user"`
	Password string `json:"password" example:"password"`
}

// LoginResponse carries the issued JWT.
type LoginResponse struct {
	Token string `json:"token"`
}

// HandleLogin serves POST /api/v1/auth/login, issuing a JWT on valid credentials.
func HandleLogin(mgr *auth.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
			return
		}
		if req.Username == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
			return
		}

		token, err := mgr.Login(req.Username, req.Password)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Token: token})
	}
}
