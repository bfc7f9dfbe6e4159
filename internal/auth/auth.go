// Package auth provides JWT issuance and verification for the HTTP API.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims carried by API tokens.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed HS256 token for the user, returning the token
// and its expiry time.
func GenerateToken(userID, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, errors.New("jwt secret is required")
	}
	if expiresIn <= 0 {
		return "", time.Time{}, fmt.Errorf("invalid token expiry: %s", expiresIn)
	}
	now := time.Now()
	expiresAt := now.Add(expiresIn)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// JWTMiddleware validates bearer tokens on every route the skipper does not
// exempt.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		Skipper:    skipper,
		SigningKey: []byte(secret),
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return &Claims{}
		},
	})
}

// UserIDFromContext extracts the authenticated user id set by JWTMiddleware.
func UserIDFromContext(c echo.Context) (string, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	return claims.UserID, nil
}
