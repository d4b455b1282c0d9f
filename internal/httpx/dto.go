package httpx

import (
	"github.com/sizzle-game/server/internal/progress"
	"github.com/sizzle-game/server/internal/user"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	EmailOrUser string `json:"emailOrUser"`
	Password    string `json:"password"`
}

type SessionResponse struct {
	OK    bool        `json:"ok"`
	User  user.Public `json:"user"`
	Token string      `json:"token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type MessageResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type SaveProgressRequest struct {
	Supplies *progress.Supplies `json:"supplies"`
	Upgrades *progress.Upgrades `json:"upgrades"`
}

type ProgressResponse struct {
	UserID   int64             `json:"userId"`
	Supplies progress.Supplies `json:"supplies"`
	Upgrades progress.Upgrades `json:"upgrades"`
}
