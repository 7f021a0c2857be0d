package services

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"church-checkin/internal/auth"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionService exchanges a role secret for a signed session token
type SessionService struct {
	issuer *auth.Issuer
	hashes map[auth.Role][]byte
}

// NewSessionService takes bcrypt hashes of the role secrets. A role with an
// empty hash cannot log in.
func NewSessionService(issuer *auth.Issuer, adminHash, scannerHash string) *SessionService {
	hashes := make(map[auth.Role][]byte)
	if adminHash != "" {
		hashes[auth.RoleAdmin] = []byte(adminHash)
	}
	if scannerHash != "" {
		hashes[auth.RoleScanner] = []byte(scannerHash)
	}
	return &SessionService{issuer: issuer, hashes: hashes}
}

func (s *SessionService) Login(role auth.Role, secret string) (string, time.Time, error) {
	hash, ok := s.hashes[role]
	if !ok || secret == "" {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.issuer.Issue(role)
}

// HashSecret returns the bcrypt hash stored in configuration for a role secret
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
