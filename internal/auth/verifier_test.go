package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewVerifierModes(t *testing.T) {
	if _, err := NewVerifier("dev", ""); err != nil {
		t.Errorf("dev mode: %v", err)
	}
	if _, err := NewVerifier("hmac", "secret"); err != nil {
		t.Errorf("hmac mode with secret: %v", err)
	}
	if _, err := NewVerifier("hmac", ""); err == nil {
		t.Error("hmac mode without secret did not fail")
	}
	if _, err := NewVerifier("oauth", ""); err == nil {
		t.Error("unknown mode did not fail")
	}
}

func TestVerifyDev(t *testing.T) {
	v, err := NewVerifier("dev", "")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		token   string
		want    Principal
		wantErr error
	}{
		{"u_42:user", Principal{UserID: "u_42", Role: RoleUser}, nil},
		{"settlement:service", Principal{UserID: "settlement", Role: RoleService}, nil},
		{"ops:admin", Principal{UserID: "ops", Role: RoleAdmin}, nil},
		{"", Principal{}, ErrNoToken},
		{"norole", Principal{}, ErrInvalidToken},
		{":user", Principal{}, ErrInvalidToken},
		{"u_42:superuser", Principal{}, ErrInvalidToken},
	}
	for _, tc := range cases {
		got, err := v.Verify(tc.token)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("Verify(%q) error = %v, want %v", tc.token, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("Verify(%q) = %+v, want %+v", tc.token, got, tc.want)
		}
	}
}

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestVerifyHMAC(t *testing.T) {
	const secret = "test-secret"
	v, err := NewVerifier("hmac", secret)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("valid user token", func(t *testing.T) {
		token := signHS256(t, secret, jwt.MapClaims{
			"userId": "u_42",
			"role":   "user",
			"exp":    time.Now().Add(time.Hour).Unix(),
		})
		got, err := v.Verify(token)
		if err != nil {
			t.Fatal(err)
		}
		if got.UserID != "u_42" || got.Role != RoleUser {
			t.Errorf("principal = %+v", got)
		}
		if got.IsService() {
			t.Error("user principal passes IsService")
		}
	})

	t.Run("service role", func(t *testing.T) {
		token := signHS256(t, secret, jwt.MapClaims{"userId": "settlement", "role": "service"})
		got, err := v.Verify(token)
		if err != nil {
			t.Fatal(err)
		}
		if !got.IsService() {
			t.Error("service principal fails IsService")
		}
	})

	t.Run("missing role defaults to user", func(t *testing.T) {
		token := signHS256(t, secret, jwt.MapClaims{"userId": "u_7"})
		got, err := v.Verify(token)
		if err != nil {
			t.Fatal(err)
		}
		if got.Role != RoleUser {
			t.Errorf("role = %q, want %q", got.Role, RoleUser)
		}
	})

	t.Run("missing userId rejected", func(t *testing.T) {
		token := signHS256(t, secret, jwt.MapClaims{"role": "user"})
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		token := signHS256(t, "other-secret", jwt.MapClaims{"userId": "u_42"})
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired rejected", func(t *testing.T) {
		token := signHS256(t, secret, jwt.MapClaims{
			"userId": "u_42",
			"exp":    time.Now().Add(-time.Hour).Unix(),
		})
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("garbage rejected", func(t *testing.T) {
		if _, err := v.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("empty rejected", func(t *testing.T) {
		if _, err := v.Verify(""); !errors.Is(err, ErrNoToken) {
			t.Errorf("error = %v, want ErrNoToken", err)
		}
	})
}
