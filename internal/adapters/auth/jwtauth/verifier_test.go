package jwtauth

import (
	"context"
	"testing"
	"time"

	"pet-rehoming/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, c Claims) string {
	t.Helper()
	tok, err := Sign(secret, c)
	require.NoError(t, err)
	return tok
}

func TestVerifier_Verify_OK(t *testing.T) {
	v := NewVerifier("s3cret", "rehoming")
	tok := sign(t, "s3cret", Claims{
		Email: "owner@example.com",
		Role:  "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "rehoming",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "owner@example.com", claims.Email)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestVerifier_Verify_Rejects(t *testing.T) {
	v := NewVerifier("s3cret", "rehoming")
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]string{
		"wrong secret": sign(t, "other", Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u", Issuer: "rehoming", ExpiresAt: future,
		}}),
		"wrong issuer": sign(t, "s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u", Issuer: "other", ExpiresAt: future,
		}}),
		"expired": sign(t, "s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u", Issuer: "rehoming", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}),
		"no expiry": sign(t, "s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u", Issuer: "rehoming",
		}}),
		"empty": "",
	}

	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifier_Verify_MissingSubject(t *testing.T) {
	v := NewVerifier("s3cret", "")
	tok := sign(t, "s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})

	_, err := v.Verify(context.Background(), tok)
	assert.ErrorIs(t, err, ErrMissingSub)
}
