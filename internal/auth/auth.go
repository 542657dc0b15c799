// Package auth validates bearer tokens issued by the external identity
// provider. Tokens are HMAC-signed JWTs; the subject is the user id and
// profile claims ride along. Every successful validation upserts the
// profile locally, so the users table is a replica of what tokens
// asserted most recently.
package auth

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/huddle-im/huddle/internal/apperr"
	"github.com/huddle-im/huddle/internal/store"
	"go.uber.org/zap"
)

// Claims is the token payload: registered claims plus profile fields.
type Claims struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Company   string `json:"company,omitempty"`
	JobTitle  string `json:"job_title,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks tokens and mirrors their profile claims into the
// store.
type Verifier struct {
	secret []byte
	db     *store.DB
	logger *zap.Logger
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret string, db *store.DB, logger *zap.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), db: db, logger: logger}
}

// Verify parses and validates a raw token and returns the user it
// identifies. The profile is upserted as a side effect.
func (v *Verifier) Verify(raw string) (*store.User, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: missing token", apperr.ErrUnauthorized)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token without subject", apperr.ErrUnauthorized)
	}

	u := &store.User{
		ID:        claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.AvatarURL,
		Company:   claims.Company,
		JobTitle:  claims.JobTitle,
	}
	if err := v.db.UpsertUser(u); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

const localsUserKey = "auth.user"

// Middleware authenticates Authorization: Bearer requests and stores
// the user in the request context. Requests without a valid token get
// 401 and never reach the handler.
func (v *Verifier) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}

		u, err := v.Verify(raw)
		if err != nil {
			v.logger.Debug("token rejected", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		c.Locals(localsUserKey, u)
		return c.Next()
	}
}

// UserFrom returns the authenticated user placed by Middleware, or nil
// on unauthenticated routes.
func UserFrom(c *fiber.Ctx) *store.User {
	u, _ := c.Locals(localsUserKey).(*store.User)
	return u
}
