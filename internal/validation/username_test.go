package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		wantErr  error
		name     string
		username string
	}{
		{
			name:     "valid username - lowercase",
			username: "alice",
		},
		{
			name:     "valid username - mixed case",
			username: "AliceSmith",
		},
		{
			name:     "valid username - with underscore and digits",
			username: "alice_1",
		},
		{
			name:     "valid username - min length",
			username: "ab",
		},
		{
			name:     "valid username - max length",
			username: "a123456789012345", // 16 символов
		},
		{
			name:     "invalid - empty username",
			username: "",
			wantErr:  ErrCredentialsRequired,
		},
		{
			name:     "invalid - too short (1 char)",
			username: "a",
			wantErr:  ErrUsernameFormat,
		},
		{
			name:     "invalid - too long (17 chars)",
			username: "a1234567890123456", // 17 символов
			wantErr:  ErrUsernameFormat,
		},
		{
			name:     "invalid - with dash",
			username: "alice-smith",
			wantErr:  ErrUsernameFormat,
		},
		{
			name:     "invalid - with space",
			username: "alice smith",
			wantErr:  ErrUsernameFormat,
		},
		{
			name:     "invalid - cyrillic characters",
			username: "алиса",
			wantErr:  ErrUsernameFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		wantErr  error
		name     string
		password string
	}{
		{
			name:     "valid password - min length",
			password: "pass12",
		},
		{
			name:     "valid password - max length",
			password: "abcdefghijklmnopqrstuvwx", // 24 символа
		},
		{
			name:     "invalid - empty password",
			password: "",
			wantErr:  ErrCredentialsRequired,
		},
		{
			name:     "invalid - too short",
			password: "abc",
			wantErr:  ErrPasswordFormat,
		},
		{
			name:     "invalid - too long (25 chars)",
			password: "abcdefghijklmnopqrstuvwxy",
			wantErr:  ErrPasswordFormat,
		},
		{
			name:     "invalid - underscore not allowed",
			password: "pass_word",
			wantErr:  ErrPasswordFormat,
		},
		{
			name:     "invalid - special chars",
			password: "P@ssw0rd!",
			wantErr:  ErrPasswordFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
