// Package captoken implements the short-lived, room-scoped capability tokens
// that gate access to a room's live channel.
//
// A token is a JWT in compact serialization (three base64url segments joined
// by dots, no padding) signed with HMAC-SHA256 over a server-only secret. The
// payload binds the token to a device, a room and a fixed expiry; there is no
// revocation list, expiry is the only invalidation path.
package captoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the fixed token lifetime: expiresAt = issuedAt + 1h. Long
// relative to realistic clock skew, so verification applies no leeway.
const DefaultTTL = time.Hour

// Verification failure reasons. These are for server-side diagnostics only;
// anything returned to a network caller must collapse them into a uniform
// rejection so failures cannot aid forgery.
var (
	ErrMalformed    = errors.New("captoken: malformed token")
	ErrExpired      = errors.New("captoken: token expired")
	ErrBadSignature = errors.New("captoken: signature mismatch")
)

// Claims is the capability token payload. Timestamps are whole seconds since
// epoch via the registered iat/exp claims.
type Claims struct {
	jwt.RegisteredClaims

	DeviceID     string `json:"device_id"`
	RoomType     string `json:"room_type"`
	RoomID       string `json:"room_id"`
	DisplayName  string `json:"display_name"`
	DisplayColor string `json:"display_color,omitempty"`
}

// Codec signs and verifies capability tokens with a shared HMAC secret. The
// secret is process-wide, read-only after construction and never leaves the
// server. Now is overridable for expiry tests.
type Codec struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Lifetime reports the TTL that Sign stamps on tokens, falling back to
// DefaultTTL when none is configured.
func (c *Codec) Lifetime() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultTTL
}

// Sign stamps iat/exp on the claims and returns the signed compact token.
func (c *Codec) Sign(claims Claims) (string, error) {
	if len(c.Secret) == 0 {
		return "", fmt.Errorf("captoken: signing secret not configured")
	}

	now := c.now().UTC().Truncate(time.Second)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.Lifetime()))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.Secret)
	if err != nil {
		return "", fmt.Errorf("captoken: sign: %w", err)
	}
	return signed, nil
}

// Verify checks structure, signature and expiry and returns the claims.
// Structural validity (three well-formed segments) is checked before any
// signature work. The returned error is one of ErrMalformed, ErrExpired or
// ErrBadSignature; binding checks (device, room) belong to the caller.
func (c *Codec) Verify(raw string) (Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return Claims{}, ErrMalformed
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return c.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrBadSignature
	default:
		return Claims{}, ErrMalformed
	}
}
