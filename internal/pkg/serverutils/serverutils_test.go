package serverutils

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := IssueSessionToken(testSecret, "sess-1", "ada@example.org", time.Hour)
	require.NoError(t, err)

	claims, err := ParseSessionToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "ada@example.org", claims.Email)

	_, err = ParseSessionToken("other-secret", token)
	assert.ErrorIs(t, err, ErrInvalidSessionToken)

	expired, err := IssueSessionToken(testSecret, "sess-1", "ada@example.org", -time.Minute)
	require.NoError(t, err)
	_, err = ParseSessionToken(testSecret, expired)
	assert.ErrorIs(t, err, ErrInvalidSessionToken)
}

type revokedIDs map[string]bool

func (r revokedIDs) IsRevoked(id string) bool { return r[id] }

func newSessionApp() *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/whoami", SessionMiddleware(testSecret, revokedIDs{"sess-gone": true}), func(ctx *fiber.Ctx) error {
		id, email, ok := Session(ctx)
		if !ok {
			return errors.New("no session")
		}
		return ctx.SendString(id + " " + email)
	})
	app.Get("/panic", func(ctx *fiber.Ctx) error {
		panic("boom")
	})
	app.Get("/teapot", func(ctx *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})
	return app
}

func TestSessionMiddleware(t *testing.T) {
	app := newSessionApp()
	token, err := IssueSessionToken(testSecret, "sess-9", "ada@example.org", time.Hour)
	require.NoError(t, err)
	ended, err := IssueSessionToken(testSecret, "sess-gone", "ada@example.org", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		prepare  func(r *testRequest)
		wantCode int
		wantBody string
	}{
		{name: "bearer header", prepare: func(r *testRequest) { r.header = "Bearer " + token }, wantCode: 200, wantBody: "sess-9 ada@example.org"},
		{name: "cookie", prepare: func(r *testRequest) { r.cookie = token }, wantCode: 200, wantBody: "sess-9 ada@example.org"},
		{name: "missing", prepare: func(r *testRequest) {}, wantCode: 401},
		{name: "garbage", prepare: func(r *testRequest) { r.header = "Bearer nope" }, wantCode: 401},
		{name: "revoked session", prepare: func(r *testRequest) { r.header = "Bearer " + ended }, wantCode: 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &testRequest{}
			tt.prepare(r)
			req := httptest.NewRequest("GET", "/whoami", nil)
			if r.header != "" {
				req.Header.Set("Authorization", r.header)
			}
			if r.cookie != "" {
				req.Header.Set("Cookie", SessionCookieName+"="+r.cookie)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			if tt.wantBody != "" {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}

type testRequest struct {
	header string
	cookie string
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := newSessionApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/teapot", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "short and stout")
}

func TestValidate(t *testing.T) {
	type req struct {
		Email string `validate:"required,email"`
		Count int    `validate:"gte=0"`
	}

	assert.NoError(t, Validate(req{Email: "a@b.org"}))
	err := Validate(req{Email: "nope", Count: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email failed on 'email'")
	assert.Contains(t, err.Error(), "Count failed on 'gte'")

	assert.True(t, ValidEmail("ada@example.org"))
	assert.False(t, ValidEmail("ada"))
}
