package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatgateway/internal/auth"
	"github.com/npezzotti/go-chatgateway/internal/database"
	"github.com/npezzotti/go-chatgateway/internal/server"
	"github.com/npezzotti/go-chatgateway/internal/types"
)

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *GoChatApp) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	req.normalize()
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, NewValidationError(err))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	account, err := s.accounts.CreateAccount(r.Context(), database.CreateAccountParams{
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, TokenResponse{
		Message: "signup successful",
		User:    identityOf(account),
	})
}

func (s *GoChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.validate.Struct(lr); err != nil {
		s.writeError(w, NewValidationError(err))
		return
	}

	account, err := s.accounts.GetAccount(r.Context(), lr.Username)
	if errors.Is(err, database.ErrNotFound) {
		s.writeError(w, NewUnauthorizedError())
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !auth.VerifyPassword(account.PasswordHash, lr.Password) {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	identity := identityOf(account)
	token, err := s.verifier.Issue(identity, s.tokenTTL)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, s.tokenTTL))

	s.writeJson(w, http.StatusOK, TokenResponse{
		Message: "login successful",
		Token:   token,
		User:    identity,
	})
}

func (s *GoChatApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", -time.Hour))
	w.WriteHeader(http.StatusNoContent)
}

func (s *GoChatApp) session(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	s.writeJson(w, http.StatusOK, identity)
}

func (s *GoChatApp) listRooms(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]any{
		"rooms": s.history.ListRooms(),
	})
}

func (s *GoChatApp) roomHistory(w http.ResponseWriter, r *http.Request) {
	room := strings.TrimSpace(r.PathValue("room"))
	msgs, err := s.history.RoomHistory(r.Context(), room)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"room":     room,
		"messages": nonNil(msgs),
	})
}

func (s *GoChatApp) privateHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	other := r.PathValue("other")
	msgs, err := s.history.PrivateHistory(r.Context(), identity.Username, other)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"with":     other,
		"messages": nonNil(msgs),
	})
}

func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(identity, conn, s.cs, s.log)

	if err := s.cs.RegisterClient(client); err != nil {
		s.log.Println("error registering client:", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	go client.Write()
	go client.Read()
}

func identityOf(a database.Account) types.Identity {
	return types.Identity{
		Username:  a.Username,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
