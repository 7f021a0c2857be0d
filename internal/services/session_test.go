package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"church-checkin/internal/auth"
)

func TestSessionLogin(t *testing.T) {
	issuer, err := auth.NewIssuer("0123456789abcdef0123", time.Hour)
	require.NoError(t, err)

	adminHash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	scannerHash, err := bcrypt.GenerateFromPassword([]byte("scanner-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	svc := NewSessionService(issuer, string(adminHash), string(scannerHash))

	tests := []struct {
		name    string
		role    auth.Role
		secret  string
		wantErr bool
	}{
		{name: "Admin with correct secret", role: auth.RoleAdmin, secret: "admin-pass"},
		{name: "Scanner with correct secret", role: auth.RoleScanner, secret: "scanner-pass"},
		{name: "Scanner using admin secret", role: auth.RoleScanner, secret: "admin-pass", wantErr: true},
		{name: "Empty secret", role: auth.RoleAdmin, secret: "", wantErr: true},
		{name: "Unknown role", role: auth.Role("guest"), secret: "admin-pass", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, expiresAt, err := svc.Login(tt.role, tt.secret)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
				return
			}
			require.NoError(t, err)
			assert.True(t, expiresAt.After(time.Now()))

			claims, err := issuer.Validate(token)
			require.NoError(t, err)
			assert.Equal(t, tt.role, claims.Role)
		})
	}
}

func TestSessionRoleWithoutHashCannotLogin(t *testing.T) {
	issuer, err := auth.NewIssuer("0123456789abcdef0123", time.Hour)
	require.NoError(t, err)
	svc := NewSessionService(issuer, "", "")

	_, _, err = svc.Login(auth.RoleAdmin, "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}
