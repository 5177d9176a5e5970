package http

import (
	"net/http"

	"iuran/internal/core"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	// Self-registration always yields a plain user. Handing out any other
	// role requires an authenticated admin on the same request.
	role := core.Role(req.Role)
	if role == "" {
		role = core.RoleUser
	}
	if role != core.RoleUser {
		actor, err := s.actorFromRequest(r)
		if err != nil || !actor.HasRole(core.RoleAdmin, core.RoleSuperAdmin) {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "only admins may assign roles"})
			return
		}
	}

	user, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password, role, req.HouseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toUserResponse(*user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}{Token: token, User: toUserResponse(*user)})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.directory.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]userResponse, len(users))
	for i, u := range users {
		out[i] = toUserResponse(u)
	}
	s.writeJSON(w, http.StatusOK, out)
}
