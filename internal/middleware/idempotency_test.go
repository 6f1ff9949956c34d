package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naggery/naggery/internal/logging"
	"github.com/naggery/naggery/internal/vault"
)

func setupIdempotencyApp(t *testing.T) (*fiber.App, *int) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	calls := 0
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/signup", func(c *fiber.Ctx) error {
		calls++
		if c.Query("fail") != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": calls})
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, target, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, target, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	status, _ := post(t, app, "/signup", "")
	assert.Equal(t, fiber.StatusCreated, status)
	status, _ = post(t, app, "/signup", "")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, 2, *calls)
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	status, first := post(t, app, "/signup", "abc123")
	require.Equal(t, fiber.StatusCreated, status)

	status, second := post(t, app, "/signup", "abc123")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, first, second)
	assert.Equal(t, 1, *calls)
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	status, _ := post(t, app, "/signup?fail=1", "retry-me")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = post(t, app, "/signup", "retry-me")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, 2, *calls)
}

func TestIdempotencyStoresHashedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/signup", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
	})

	raw := "client key with spaces:" + strings.Repeat("x", 200)
	status, _ := post(t, app, "/signup", raw)
	require.Equal(t, fiber.StatusCreated, status)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, idempotencyPrefix+vault.HashToken("POST:/signup:"+raw), keys[0])
	assert.NotContains(t, keys[0], "spaces")
}
