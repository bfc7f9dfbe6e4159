package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/toolgate/toolgate/internal/auth"
	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/logger"
)

func newLoginEcho(t *testing.T) *echo.Echo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	operator := auth.NewOperator(config.AuthConfig{
		Username:     "operator",
		PasswordHash: string(hash),
	})
	e := echo.New()
	NewAuthHandler(logger.L, operator, "login-test-secret", time.Hour).Register(e)
	return e
}

func postLogin(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLoginIssuesToken(t *testing.T) {
	t.Parallel()

	e := newLoginEcho(t)
	rec := postLogin(e, `{"username":"operator","password":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	if res.TokenType != "Bearer" {
		t.Fatalf("expected Bearer token type, got %q", res.TokenType)
	}
	if res.Username != "operator" {
		t.Fatalf("expected username operator, got %q", res.Username)
	}
	expiresAt, err := time.Parse(time.RFC3339, res.ExpiresAt)
	if err != nil {
		t.Fatalf("parse expires_at: %v", err)
	}
	if until := time.Until(expiresAt); until < 55*time.Minute || until > time.Hour {
		t.Fatalf("expected expiry about an hour out, got %s", until)
	}
}

func TestLoginRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		code int
	}{
		{name: "wrong password", body: `{"username":"operator","password":"wrong"}`, code: http.StatusUnauthorized},
		{name: "unknown user", body: `{"username":"intruder","password":"hunter2"}`, code: http.StatusUnauthorized},
		{name: "missing password", body: `{"username":"operator"}`, code: http.StatusBadRequest},
		{name: "empty body", body: `{}`, code: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newLoginEcho(t)
			rec := postLogin(e, tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLoginDisabled(t *testing.T) {
	t.Parallel()

	operator := auth.NewOperator(config.AuthConfig{})
	e := echo.New()
	NewAuthHandler(logger.L, operator, "login-test-secret", time.Hour).Register(e)

	rec := postLogin(e, `{"username":"operator","password":"hunter2"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when login disabled, got %d", rec.Code)
	}
}
