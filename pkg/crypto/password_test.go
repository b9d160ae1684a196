package crypto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword_DefaultPolicy(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"too short", "Ab1defghik", ErrPasswordTooShort},
		{"no uppercase", "abcdefghijk1", ErrPasswordNoUppercase},
		{"no lowercase", "ABCDEFGHIJK1", ErrPasswordNoLowercase},
		{"no digit", "Abcdefghijkl", ErrPasswordNoDigit},
		{"meets policy", "Abcdefghijk1", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidatePassword(c.password, DefaultPasswordPolicy())
			if c.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, c.wantErr))
			}
		})
	}
}

func TestValidatePassword_RegistrationPolicyOnlyChecksLength(t *testing.T) {
	assert.NoError(t, ValidatePassword("abcdef", RegistrationPasswordPolicy()))
	assert.True(t, errors.Is(ValidatePassword("abcde", RegistrationPasswordPolicy()), ErrPasswordTooShort))
}

func TestValidatePassword_RequireSpecial(t *testing.T) {
	policy := &PasswordPolicy{MinLength: 6, RequireSpecial: true}
	assert.Error(t, ValidatePassword("abcdef", policy))
	assert.NoError(t, ValidatePassword("abcdef!", policy))
}

func TestHashAndVerifyPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse-battery-staple", hash)

	assert.NoError(t, VerifyPassword("correct-horse-battery-staple", hash))
	assert.ErrorIs(t, VerifyPassword("wrong-password", hash), ErrPasswordInvalid)
}

func TestHashAndValidatePassword_RejectsBeforeHashing(t *testing.T) {
	_, err := HashAndValidatePassword("short", DefaultPasswordPolicy())
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
