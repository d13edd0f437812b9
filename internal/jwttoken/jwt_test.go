package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("test-secret", "auditrelay")

	token, err := svc.Generate("officer-1", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "officer-1", claims.Subject)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewService("test-secret", "auditrelay")

	token, err := svc.Generate("officer-1", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateRejectsWrongKey(t *testing.T) {
	token, err := NewService("key-one", "auditrelay").Generate("officer-1", time.Hour)
	require.NoError(t, err)

	_, err = NewService("key-two", "auditrelay").ValidateToken(token)
	require.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewService("test-secret", "auditrelay").ValidateToken("not.a.token")
	require.Error(t, err)
}
