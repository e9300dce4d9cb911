// Package auth provides credential verification for WebSocket handshakes
// and the service-facing ingest API. Token issuance, expiry policy, and key
// rotation belong to the identity service; this package only answers
// "who is this token" or fails.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Roles a principal may hold. Regular clients are users; the settlement,
// wallet, and club backends authenticate as services.
const (
	RoleUser    = "user"
	RoleService = "service"
	RoleAdmin   = "admin"
)

var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
)

// Principal is a verified identity.
type Principal struct {
	UserID string
	Role   string
}

// IsService reports whether the principal may call the ingest API.
func (p Principal) IsService() bool { return p.Role == RoleService || p.Role == RoleAdmin }

// Verifier validates credentials. Modes: dev (token is "<userID>:<role>",
// no crypto, local work only) and hmac (HS256 JWT with userId/role claims).
type Verifier struct {
	mode   string
	secret []byte
}

// NewVerifier creates a verifier for the given mode.
func NewVerifier(mode, hmacSecret string) (*Verifier, error) {
	switch mode {
	case "dev":
		return &Verifier{mode: mode}, nil
	case "hmac":
		if hmacSecret == "" {
			return nil, errors.New("hmac mode requires AUTH_HMAC_SECRET")
		}
		return &Verifier{mode: mode, secret: []byte(hmacSecret)}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", mode)
	}
}

// Verify resolves a token to a principal or fails.
func (v *Verifier) Verify(token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrNoToken
	}
	switch v.mode {
	case "dev":
		return v.verifyDev(token)
	case "hmac":
		return v.verifyHMAC(token)
	}
	return Principal{}, ErrInvalidToken
}

func (v *Verifier) verifyDev(token string) (Principal, error) {
	// token format: userID:role, e.g. "u_42:user" or "settlement:service"
	id, role, ok := strings.Cut(token, ":")
	if !ok || id == "" {
		return Principal{}, ErrInvalidToken
	}
	switch role {
	case RoleUser, RoleService, RoleAdmin:
		return Principal{UserID: id, Role: role}, nil
	}
	return Principal{}, ErrInvalidToken
}

func (v *Verifier) verifyHMAC(token string) (Principal, error) {
	tok, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Principal{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrInvalidToken
	}
	userID, _ := claims["userId"].(string)
	if userID == "" {
		return Principal{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = RoleUser
	}
	return Principal{UserID: userID, Role: strings.ToLower(role)}, nil
}
