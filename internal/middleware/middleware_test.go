package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"vaultshare-backend/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb
}

func TestTracing_ReusesCallerID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "retry-7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "retry-7", resp.Header.Get("X-Trace-Id"))

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	_, err = uuid.Parse(resp.Header.Get("X-Trace-Id"))
	assert.NoError(t, err)
}

func TestSession_LoadsPrincipal(t *testing.T) {
	rdb := newRedis(t)
	userID := uuid.New()
	b, _ := json.Marshal(map[string]interface{}{"user": map[string]interface{}{"user_id": userID.String(), "name": "Ada"}})
	require.NoError(t, rdb.Set(context.Background(), SessionRedisPrefix+"abc", b, 0).Err())

	app := fiber.New()
	app.Use(Session(rdb, ""))
	app.Get("/who", RequireAuth(), func(c *fiber.Ctx) error { return c.SendString(Principal(c).String()) })

	req := httptest.NewRequest("GET", "/who", nil)
	req.Header.Set("Cookie", SessionCookieName+"=s:abc")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/who", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestSession_RejectsForgedSignature(t *testing.T) {
	rdb := newRedis(t)
	b, _ := json.Marshal(map[string]interface{}{"user": map[string]interface{}{"user_id": uuid.New().String()}})
	require.NoError(t, rdb.Set(context.Background(), SessionRedisPrefix+"abc", b, 0).Err())

	app := fiber.New()
	app.Use(Session(rdb, "topsecret"))
	app.Get("/who", RequireAuth(), func(c *fiber.Ctx) error { return c.SendStatus(200) })

	for cookie, want := range map[string]int{
		SessionCookieValue("topsecret", "abc"): 200,
		SessionCookieValue("", "abc"):          401,
		SessionCookieValue("guess", "abc"):     401,
	} {
		req := httptest.NewRequest("GET", "/who", nil)
		req.Header.Set("Cookie", SessionCookieName+"="+cookie)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, cookie)
	}
}

func TestPrincipal_Malformed(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{"user_id": "not-a-uuid"})
		assert.Equal(t, uuid.Nil, Principal(c))
		c.Locals("user", "garbage")
		assert.Equal(t, uuid.Nil, Principal(c))
		return nil
	})
	_, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
}

func TestErrorHandler_MapsLedgerErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/conflict", func(c *fiber.Ctx) error { return &domain.ConflictError{Attempts: 5} })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })

	resp, err := app.Test(httptest.NewRequest("GET", "/conflict", nil))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedSuffix: ".vaultshare.app, .preview.dev"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://www.vaultshare.app")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Idempotency-Key")

	req = httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "https://pr-12.preview.dev")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Equal(t, "https://pr-12.preview.dev", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}
