package realtime

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified identity attached to a connection at handshake.
type Identity struct {
	UserID string
}

// Claim names checked for the subject, in priority order.
var subjectClaims = []string{"sub", "userId", "id"}

// VerifyToken validates a bearer token against the configured secret and
// extracts the subject. It soft-fails: a missing token, missing secret,
// invalid signature, expired token or absent subject all yield (zero, false)
// and the connection proceeds as anonymous. Join authorization is where
// access is actually decided.
func VerifyToken(tokenString, secret string) (Identity, bool) {
	if tokenString == "" || secret == "" {
		return Identity{}, false
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, false
	}
	for _, name := range subjectClaims {
		if sub := claimString(claims, name); sub != "" {
			return Identity{UserID: sub}, true
		}
	}
	return Identity{}, false
}

func claimString(claims jwt.MapClaims, name string) string {
	v, ok := claims[name]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// Numeric user ids survive JSON decoding as float64.
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// BearerFromRequest pulls the handshake credential from the Authorization
// header or, failing that, the "token" query parameter (browser websocket
// clients cannot set headers).
func BearerFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
