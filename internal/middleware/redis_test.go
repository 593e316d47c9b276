package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/railway-reservation/internal/config"
)

func rateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
}

func TestTokenBucketAllowsAndBlocks(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := rateConfig()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	e := echo.New()
	e.GET("/v1/trains", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		newTokenBucket(cfg, db, clock))

	key := "rl:ip:192.0.2.1"
	mock.ExpectEvalSha(tokenBucketScript.Hash(), []string{key}, bucketArgs(cfg, now)...).
		SetVal([]interface{}{int64(1), int64(1), int64(0)})
	mock.ExpectEvalSha(tokenBucketScript.Hash(), []string{key}, bucketArgs(cfg, now)...).
		SetVal([]interface{}{int64(0), int64(0), int64(1500)})

	req := httptest.NewRequest(http.MethodGet, "/v1/trains", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	req = httptest.NewRequest(http.MethodGet, "/v1/trains", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucketFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := rateConfig()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		newTokenBucket(cfg, db, func() time.Time { return now }))

	mock.ExpectEvalSha(tokenBucketScript.Hash(), []string{"rl:ip:192.0.2.9"}, bucketArgs(cfg, now)...).
		SetErr(errors.New("connection refused"))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "192.0.2.9:1"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := rateConfig()
	cfg.Enabled = false
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, NewTokenBucket(cfg, nil))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestBuildRateKeyUsesPrincipal(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.RemoteAddr = "198.51.100.4:80"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")
	c.Set("user_id", uint64(9))

	cfg := rateConfig()
	cfg.KeyStrategy = "ip_user_route"
	assert.Equal(t, "rl:ip:198.51.100.4:user:9:route:POST /v1/bookings", buildRateKey(cfg, c))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:9", buildRateKey(cfg, c))
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          5 * time.Second,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1024,
	}
}

func plainHandler(body string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlain)
		c.Response().WriteHeader(http.StatusOK)
		_, err := c.Response().Write([]byte(body))
		return err
	}
}

func cacheKeyFor(t *testing.T, e *echo.Echo, cfg config.CacheConfig, route, target string, gen uint64) string {
	t.Helper()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	c.SetPath(route)
	return cacheKeyFrom(cfg, c, gen)
}

func fixedGen(g uint64) func() uint64 { return func() uint64 { return g } }

func TestRedisCacheMissStores(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := cacheConfig()
	e := echo.New()
	e.GET("/v1/trains", plainHandler("trains"), NewRedisCache(cfg, db, fixedGen(3)))

	key := cacheKeyFor(t, e, cfg, "/v1/trains", "/v1/trains?source=pune", 3)
	payload, err := encodePayload(http.StatusOK, http.Header{
		"Content-Type": {echo.MIMETextPlain},
		"X-Cache":      {"MISS"},
	}, []byte("trains"))
	require.NoError(t, err)
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSetEx(key, payload, cfg.TTL).SetVal("OK")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trains?source=pune", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "trains", rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := cacheConfig()
	e := echo.New()
	e.GET("/v1/trains/:id", plainHandler("fresh"), NewRedisCache(cfg, db, nil))

	key := cacheKeyFor(t, e, cfg, "/v1/trains/:id", "/v1/trains/3", 0)
	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {echo.MIMEApplicationJSON}}, []byte(`{"id":3}`))
	require.NoError(t, err)
	mock.ExpectGet(key).SetVal(string(payload))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trains/3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `{"id":3}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())

	other := cacheKeyFor(t, e, cfg, "/v1/trains/:id", "/v1/trains/4", 0)
	assert.NotEqual(t, key, other)
}

func TestRedisCacheGenerationRetiresEntries(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := cacheConfig()
	gen := uint64(1)
	e := echo.New()
	e.GET("/v1/trains/:id", plainHandler("fresh"), NewRedisCache(cfg, db, func() uint64 { return gen }))

	oldKey := cacheKeyFor(t, e, cfg, "/v1/trains/:id", "/v1/trains/3", 1)
	newKey := cacheKeyFor(t, e, cfg, "/v1/trains/:id", "/v1/trains/3", 2)
	require.NotEqual(t, oldKey, newKey)

	stale, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {echo.MIMETextPlain}}, []byte("stale"))
	require.NoError(t, err)
	mock.ExpectGet(oldKey).SetVal(string(stale))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trains/3", nil))
	assert.Equal(t, "stale", rec.Body.String())

	// a write moved the generation: the old entry is no longer looked up
	gen = 2
	fresh, err := encodePayload(http.StatusOK, http.Header{
		"Content-Type": {echo.MIMETextPlain},
		"X-Cache":      {"MISS"},
	}, []byte("fresh"))
	require.NoError(t, err)
	mock.ExpectGet(newKey).RedisNil()
	mock.ExpectSetEx(newKey, fresh, cfg.TTL).SetVal("OK")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trains/3", nil))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "fresh", rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheSkipsOtherMethods(t *testing.T) {
	db, mock := redismock.NewClientMock()
	e := echo.New()
	e.POST("/v1/trains", plainHandler("created"), NewRedisCache(cacheConfig(), db, nil))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/trains", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayloadRoundTripRejectsShortInput(t *testing.T) {
	_, _, _, ok := decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
