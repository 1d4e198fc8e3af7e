// Package api holds the request and response bodies shared by the gRPC
// service and the HTTP gateway. Field names follow the public JSON API.
package api

import (
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

// UserInfo is the client-safe view of a user.
type UserInfo struct {
	UUID      string    `json:"uuid"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewUserInfo(u *models.User) *UserInfo {
	if u == nil {
		return nil
	}
	return &UserInfo{
		UUID:      u.PublicID,
		Username:  u.UserName,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message string    `json:"message"`
	User    *UserInfo `json:"user"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type LoginResponse struct {
	Message         string    `json:"message"`
	AccessToken     string    `json:"access_token"`
	TokenType       string    `json:"token_type"`
	ExpiresIn       int64     `json:"expires_in"`
	User            *UserInfo `json:"user"`
	RememberMeToken string    `json:"remember_me_token,omitempty"`
}

type RefreshRequest struct {
	RememberMeToken string `json:"remember_me_token"`
}

type RefreshResponse struct {
	Message         string `json:"message"`
	AccessToken     string `json:"access_token"`
	RememberMeToken string `json:"remember_me_token"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int64  `json:"expires_in"`
}

// LogoutRequest revokes a single remember token when TokenJTI is set and
// every remember token of the caller otherwise.
type LogoutRequest struct {
	TokenJTI string `json:"token_jti,omitempty"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPasswordResponse carries the reset token only in debug mode.
type ForgotPasswordResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
	ExpiresIn  int64  `json:"expires_in,omitempty"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type MeRequest struct{}

type UserResponse struct {
	Message string    `json:"message,omitempty"`
	User    *UserInfo `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Response messages.
const (
	MsgCreated         = "Created"
	MsgLoginOK         = "Login successful."
	MsgRefreshed       = "Token refreshed."
	MsgLoggedOut       = "Logged out successfully."
	MsgResetRequested  = "If the email is registered, a password reset link has been sent."
	MsgPasswordReset   = "Password has been reset."
	MsgPasswordChanged = "Password changed successfully."
	MsgProfileUpdated  = "Profile updated."
	MsgSuccess         = "Success"
)
