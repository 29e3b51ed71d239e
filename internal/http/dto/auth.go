// Package dto holds the REST request and response shapes and their
// conversions from service and model types.
package dto

import (
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/service"
)

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (m RegisterRequest) ToInput() service.RegisterInput {
	return service.RegisterInput{
		Username:  m.Username,
		Email:     m.Email,
		Password:  m.Password,
		FirstName: m.FirstName,
		LastName:  m.LastName,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PublicUser is the account summary returned with a token.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

type AuthResponse struct {
	Success bool       `json:"success"`
	Token   string     `json:"token"`
	User    PublicUser `json:"user"`
}

type StatusResponse struct {
	IsLoggedIn bool       `json:"isLoggedIn"`
	User       PublicUser `json:"user"`
}

// MessageResponse acknowledges operations that return no entity.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func Message(msg string) MessageResponse {
	return MessageResponse{Success: true, Message: msg}
}

func PublicUserFromModel(u *models.User) PublicUser {
	if u == nil {
		return PublicUser{}
	}

	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func AuthFromResult(r *service.AuthResult) AuthResponse {
	if r == nil {
		return AuthResponse{}
	}

	return AuthResponse{Success: true, Token: r.Token, User: PublicUserFromModel(r.User)}
}

// timePtr hides zero times.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}
