package utils

import (
	"CareDesk/models"
	"errors"
	"fmt"
	"time"

	"github.com/o1egl/paseto"
)

// SessionTokenExpiry is the lifetime of a session token minted by GenerateSessionToken.
const SessionTokenExpiry = 24 * time.Hour

var ErrTokenExpired = errors.New("token expired")

// SessionClaims is the data carried inside a session token.
type SessionClaims struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	HospitalName string    `json:"hospitalName"`
	Expiry       time.Time `json:"expiry"`
}

// GenerateSessionToken encrypts session into a PASETO v2 local token.
func GenerateSessionToken(key []byte, session models.SessionContext, expiry time.Duration) (string, error) {
	claims := SessionClaims{
		UserID:       session.UserID,
		Email:        session.Email,
		Name:         session.Name,
		Role:         string(session.Role),
		HospitalName: session.HospitalName,
		Expiry:       time.Now().Add(expiry),
	}
	token, err := paseto.NewV2().Encrypt(key, claims, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

// ValidateSessionToken decrypts token and returns the session it carries.
func ValidateSessionToken(key []byte, token string, now time.Time) (*models.SessionContext, error) {
	var claims SessionClaims
	if err := paseto.NewV2().Decrypt(token, key, &claims, nil); err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	if now.After(claims.Expiry) {
		return nil, ErrTokenExpired
	}

	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, errors.New("token carries no email")
	}

	return &models.SessionContext{
		UserID:       claims.UserID,
		Email:        claims.Email,
		Name:         claims.Name,
		Role:         role,
		HospitalName: claims.HospitalName,
	}, nil
}
