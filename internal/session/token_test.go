package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestTokenExpired(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{
			name: "valid for an hour",
			token: mintToken(t, jwt.MapClaims{
				"sub": "1",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			want: false,
		},
		{
			name: "expired an hour ago",
			token: mintToken(t, jwt.MapClaims{
				"sub": "1",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			want: true,
		},
		{
			name:  "no expiry claim",
			token: mintToken(t, jwt.MapClaims{"sub": "1"}),
			want:  true,
		},
		{
			name:  "not a token",
			token: "garbage",
			want:  true,
		},
		{
			name:  "empty",
			token: "",
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenExpired(tt.token); got != tt.want {
				t.Errorf("TokenExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}
