package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-chatgateway/internal/auth"
	"github.com/npezzotti/go-chatgateway/internal/config"
	"github.com/npezzotti/go-chatgateway/internal/database"
	"github.com/npezzotti/go-chatgateway/internal/history"
	"github.com/npezzotti/go-chatgateway/internal/server"
)

type GoChatApp struct {
	log            *log.Logger
	accounts       database.AccountStore
	history        *history.Service
	verifier       *auth.Verifier
	cs             *server.ChatServer
	srv            *http.Server
	validate       *validator.Validate
	allowedOrigins []string
	tokenTTL       time.Duration
}

func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, accounts database.AccountStore,
	hist *history.Service, verifier *auth.Verifier, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		accounts:       accounts,
		history:        hist,
		verifier:       verifier,
		cs:             cs,
		validate:       newValidator(),
		allowedOrigins: cfg.AllowedOrigins,
		tokenTTL:       cfg.TokenTTL,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = auth.DefaultTokenTTL
	}

	mux.HandleFunc("POST /api/auth/signup", s.signup)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/messages/rooms", s.authMiddleware(s.listRooms))
	mux.HandleFunc("GET /api/messages/group/{room}", s.authMiddleware(s.roomHistory))
	mux.HandleFunc("GET /api/messages/private/{other}", s.authMiddleware(s.privateHistory))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = handlers.LoggingHandler(logger.Writer(), h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *GoChatApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
