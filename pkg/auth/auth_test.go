package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator(t *testing.T) {
	v, err := NewValidator("test-secret", "HS256")
	require.NoError(t, err)

	t.Run("should round trip an issued token", func(t *testing.T) {
		token, err := v.Issue(User{ID: "user-1", Email: "a@example.vn"}, time.Hour)
		require.NoError(t, err)

		user, err := v.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
		assert.Equal(t, "a@example.vn", user.Email)
	})

	t.Run("should reject expired tokens", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(-time.Minute).Unix(),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = v.Validate(token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("should reject tokens signed with another secret", func(t *testing.T) {
		other, err := NewValidator("other-secret", "HS256")
		require.NoError(t, err)
		token, err := other.Issue(User{ID: "user-1"}, time.Hour)
		require.NoError(t, err)

		_, err = v.Validate(token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("should reject tokens with another algorithm", func(t *testing.T) {
		hs512, err := NewValidator("test-secret", "HS512")
		require.NoError(t, err)
		token, err := hs512.Issue(User{ID: "user-1"}, time.Hour)
		require.NoError(t, err)

		_, err = v.Validate(token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("should reject tokens without subject", func(t *testing.T) {
		token, err := v.Issue(User{}, time.Hour)
		require.NoError(t, err)
		_, err = v.Validate(token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := v.Validate("not-a-jwt")
		assert.ErrorIs(t, err, ErrUnauthorized)
		_, err = v.Validate("")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestNewValidator(t *testing.T) {
	t.Run("should require a secret", func(t *testing.T) {
		_, err := NewValidator("", "HS256")
		assert.Error(t, err)
	})

	t.Run("should reject asymmetric algorithms", func(t *testing.T) {
		_, err := NewValidator("s", "RS256")
		assert.Error(t, err)
	})

	t.Run("should default to HS256", func(t *testing.T) {
		v, err := NewValidator("s", "")
		require.NoError(t, err)
		assert.Equal(t, "HS256", v.method.Alg())
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run("should parse "+tt.header, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := BearerToken(r)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
