package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPNR(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := NewPNR()
		require.NoError(t, err)
		assert.True(t, ValidPNR(code), "bad code %q", code)
		assert.False(t, seen[code], "duplicate code %q", code)
		seen[code] = true
	}
}

func TestValidPNR(t *testing.T) {
	assert.True(t, ValidPNR("AB12CD34EF"))
	assert.False(t, ValidPNR("ab12cd34ef"))
	assert.False(t, ValidPNR("AB12CD34E"))
	assert.False(t, ValidPNR("AB12-D34EF"))
}

func TestNewAccessToken(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, "ADMIN", 5)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
	assert.Equal(t, float64(tok.Exp.Unix()), claims["exp"])
}
