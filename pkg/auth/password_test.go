package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("Sufficient#Pass9")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NoError(t, ComparePassword(hash, "Sufficient#Pass9"))
	assert.Error(t, ComparePassword(hash, "Sufficient#Pass8"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{name: "valid", password: "Sufficient#Pass9", valid: true},
		{name: "exactly twelve chars", password: "Abcdefgh#12x", valid: true},
		{name: "too short", password: "Sh0rt#pass", valid: false},
		{name: "no uppercase", password: "lowercase#pass9", valid: false},
		{name: "no lowercase", password: "UPPERCASE#PASS9", valid: false},
		{name: "no digit", password: "NoDigitsHere#Pass", valid: false},
		{name: "no symbol", password: "NoSymbolHere9Pass", valid: false},
		{name: "common password", password: "trustno1always", valid: false},
		{name: "empty", password: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
