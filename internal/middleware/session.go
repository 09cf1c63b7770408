package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "content-enhancer"

// SessionClaims is the payload of the signed session cookie
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type SessionMiddleware struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	newID      func() string
}

// NewSessionMiddleware issues and verifies an HS256-signed session cookie.
func NewSessionMiddleware(secret, cookieName string, ttl time.Duration, secure bool, newID func() string) *SessionMiddleware {
	return &SessionMiddleware{
		secret:     []byte(secret),
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		newID:      newID,
	}
}

// Attach resolves the session id from the cookie, issuing a new one when it is
// missing, expired or forged.
func (m *SessionMiddleware) Attach() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := ""
		if raw := c.Cookies(m.cookieName); raw != "" {
			if claims, err := m.Verify(raw); err == nil {
				sid = claims.SessionID
			}
		}
		if sid == "" {
			sid = m.newID()
		}

		// Refresh on every request so the expiry slides with activity
		token, err := m.Sign(sid)
		if err != nil {
			return err
		}
		c.Cookie(&fiber.Cookie{
			Name:     m.cookieName,
			Value:    token,
			Path:     "/",
			Expires:  time.Now().Add(m.ttl),
			HTTPOnly: true,
			Secure:   m.secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})

		c.Locals("sessionId", sid)
		return c.Next()
	}
}

// Sign creates a cookie value for sid
func (m *SessionMiddleware) Sign(sid string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify validates a cookie value
func (m *SessionMiddleware) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithIssuer(sessionIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// GetSessionID extracts the session id from context
func GetSessionID(c *fiber.Ctx) string {
	if sid, ok := c.Locals("sessionId").(string); ok {
		return sid
	}
	return ""
}
