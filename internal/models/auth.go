package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials forwarded to the school backend.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserInfo describes the authenticated user as returned by the backend.
type UserInfo struct {
	ID       int64    `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// LoginResult is the backend's login payload.
type LoginResult struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// JWTClaims represents the access token payload shared with the school backend.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
