package services

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dropshare-api/internal/application/ports"
	"dropshare-api/internal/infrastructure/jwt"
)

const operatorTokenTTL = time.Hour

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrFailedToGenerateToken = errors.New("failed to generate token")
)

// AuthService logs in the single configured operator.
type AuthService struct {
	jwtService   *jwt.Service
	email        string
	passwordHash []byte
}

func NewAuthService(jwtService *jwt.Service, email, passwordHash string) ports.Auth {
	return &AuthService{
		jwtService:   jwtService,
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: []byte(passwordHash),
	}
}

func (as *AuthService) GenerateToken(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	sameEmail := subtle.ConstantTimeCompare([]byte(email), []byte(as.email)) == 1

	// hash is checked for unknown emails too
	pwErr := bcrypt.CompareHashAndPassword(as.passwordHash, []byte(password))
	if !sameEmail || as.email == "" || pwErr != nil {
		return "", ErrInvalidCredentials
	}

	token, err := as.jwtService.GenerateJWT(as.email, jwt.RoleOperator, operatorTokenTTL)
	if err != nil {
		return "", ErrFailedToGenerateToken
	}

	return token, nil
}
