package model

import (
	"time"

	"github.com/golang-jwt/jwt"
)

const PlatformStrava = "strava"

// OAuthCredential is a user's provider grant. Tokens never leave the process in JSON.
type OAuthCredential struct {
	UserID       string    `json:"user_id"`
	Platform     string    `json:"platform"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token expired strictly before now.
func (c *OAuthCredential) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// DeviceConnection links a local user to a provider athlete identity.
type DeviceConnection struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	Platform       string    `json:"platform"`
	ProviderUserID string    `json:"provider_user_id"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuthorizationState is packed into the OAuth state parameter and never persisted.
type AuthorizationState struct {
	UUID      string `json:"uuid"`
	ReturnURL string `json:"return_url"`
}

type UserClaims struct {
	jwt.StandardClaims
	UserName string `json:"user_name"`
	Role     string `json:"role"`
}

const RoleAdmin = "admin"
