package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/arnold/memories-api/internal/common"
)

const defaultSecret = "your-secret-key-change-in-production"

const tokenTTL = 7 * 24 * time.Hour

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Auth issues and verifies HS256 tokens.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	if secret == "" {
		secret = defaultSecret
	}
	return &Auth{secret: []byte(secret)}
}

func (a *Auth) GenerateToken(userID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse validates tokenString and returns its claims.
func (a *Auth) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Protected rejects requests without a valid bearer token.
func (a *Auth) Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Missing authorization header")
		}

		// Extract token from "Bearer <token>"
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return unauthorized(c, "Invalid authorization format")
		}

		claims, err := a.Parse(tokenString)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals("userId", claims.UserID)
		c.Locals("email", claims.Email)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return common.RespondError(c, &common.AppError{
		Type:        common.TypeNotAuthenticated,
		Message:     message,
		UserMessage: message,
	})
}

// GetUserID extracts user ID from context. Empty when unauthenticated.
func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("userId").(string)
	return userID
}
