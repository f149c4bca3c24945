package serverutils

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionCookieName = "SESSION_ID"

	localsSessionID = "session_id"
	localsEmail     = "email"
)

var ErrInvalidSessionToken = errors.New("invalid session token")

// SessionClaims bind an annotation session to the user that opened it.
type SessionClaims struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

func signingKey(secret string) []byte {
	if secret == "" {
		secret = "default_secret"
	}
	return []byte(secret)
}

func IssueSessionToken(secret, sessionID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey(secret))
}

func ParseSessionToken(secret, tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return signingKey(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidSessionToken
	}
	if claims.SessionID == "" || claims.Email == "" {
		return nil, ErrInvalidSessionToken
	}
	return claims, nil
}

// RevocationChecker reports sessions that were closed before their token
// expired.
type RevocationChecker interface {
	IsRevoked(sessionID string) bool
}

// SessionMiddleware accepts the session token as a Bearer header or as the
// SESSION_ID cookie and stores the session id and email in Locals. Tokens
// of revoked sessions are refused; revoked may be nil.
func SessionMiddleware(secret string, revoked RevocationChecker) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := ctx.Cookies(SessionCookieName)
		if authHeader := ctx.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr = authHeader[7:]
		}
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"code":    fiber.StatusUnauthorized,
				"message": "Missing session token",
			})
		}

		claims, err := ParseSessionToken(secret, tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"code":    fiber.StatusUnauthorized,
				"message": "Invalid session token",
			})
		}

		if revoked != nil && revoked.IsRevoked(claims.SessionID) {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"code":    fiber.StatusUnauthorized,
				"message": "Session has ended",
			})
		}

		ctx.Locals(localsSessionID, claims.SessionID)
		ctx.Locals(localsEmail, claims.Email)
		return ctx.Next()
	}
}

// Session returns the identity stored by SessionMiddleware.
func Session(ctx *fiber.Ctx) (sessionID, email string, ok bool) {
	sessionID, ok1 := ctx.Locals(localsSessionID).(string)
	email, ok2 := ctx.Locals(localsEmail).(string)
	return sessionID, email, ok1 && ok2 && sessionID != ""
}
