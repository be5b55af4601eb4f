package api

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/npezzotti/go-chatgateway/internal/types"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type SignupRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=25,handle"`
	FirstName string `json:"firstname" validate:"required,max=50"`
	LastName  string `json:"lastname" validate:"required,max=50"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Message string         `json:"message"`
	Token   string         `json:"token,omitempty"`
	User    types.Identity `json:"user"`
}

// newValidator panics if a custom rule cannot be registered; the rules
// are fixed at compile time so that is a programming error.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("handle", validHandle); err != nil {
		panic("register handle validation: " + err.Error())
	}
	return v
}

func validHandle(fl validator.FieldLevel) bool {
	return handlePattern.MatchString(fl.Field().String())
}

func (r *SignupRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}
