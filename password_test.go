package rbac_test

import (
	"testing"

	rbac "github.com/goliatone/go-rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "conforming password", password: "Sup3rSecret!", wantErr: false},
		{name: "too short", password: "Ab1!", wantErr: true},
		{name: "missing upper case", password: "sup3rsecret!", wantErr: true},
		{name: "missing lower case", password: "SUP3RSECRET!", wantErr: true},
		{name: "missing digit", password: "SuperSecret!", wantErr: true},
		{name: "missing symbol", password: "Sup3rSecret", wantErr: true},
		{name: "empty", password: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rbac.CheckPasswordPolicy(tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, rbac.IsTextCode(err, rbac.TextCodePasswordPolicy))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateNewPassword(t *testing.T) {
	current := mustHash(t, "Curr3ntPass!")
	old := mustHash(t, "Old3rPass!!")

	t.Run("accepts a fresh conforming password", func(t *testing.T) {
		err := rbac.ValidateNewPassword("Brand.New.Pass1", current, []string{old})
		assert.NoError(t, err)
	})

	t.Run("rejects policy violations first", func(t *testing.T) {
		err := rbac.ValidateNewPassword("weak", current, []string{old})
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodePasswordPolicy))
	})

	t.Run("rejects the active password", func(t *testing.T) {
		err := rbac.ValidateNewPassword("Curr3ntPass!", current, []string{old})
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodePasswordSameAsOld))
	})

	t.Run("rejects a password from the history", func(t *testing.T) {
		err := rbac.ValidateNewPassword("Old3rPass!!", current, []string{old})
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodePasswordReused))
	})

	t.Run("empty current hash skips the same-as-old check", func(t *testing.T) {
		err := rbac.ValidateNewPassword("Brand.New.Pass1", "", nil)
		assert.NoError(t, err)
	})
}
