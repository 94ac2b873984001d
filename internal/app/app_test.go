package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-inventory/internal/config"
	"github.com/iliyamo/cinema-booking-inventory/internal/utils"
)

const secret = "test-secret"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:            "test",
		Port:           "0",
		Location:       time.UTC,
		RequestTimeout: 5 * time.Second,
		BcryptCost:     4,
		JWTSecret:      secret,
		Reconcile:      time.Minute,
		Cache: config.CacheConfig{
			Enabled:      true,
			Methods:      map[string]bool{http.MethodGet: true},
			TTL:          time.Minute,
			Prefix:       "cache",
			MaxBodyBytes: 1 << 20,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:        true,
			Capacity:       1000,
			RefillTokens:   1000,
			RefillInterval: time.Second,
			TTL:            time.Minute,
			Prefix:         "rl",
		},
	}
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	logger := log.New("app-test")
	logger.SetOutput(io.Discard)
	a, err := New(context.Background(), cfg, logger,
		WithRedis(rdb),
		WithClock(func() time.Time { return time.Date(2030, 5, 10, 12, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func call(t *testing.T, a *App, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		tok, err := utils.NewAccessToken(secret, "ops", utils.RoleAdmin, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestApp_EndToEnd(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	assert.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/healthz", "", false).Code)
	assert.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/readyz", "", false).Code)

	assert.Equal(t, http.StatusUnauthorized,
		call(t, a, http.MethodPost, "/v1/theatres", `{"name":"Rex","city":"Oslo","address":"Main street 1"}`, false).Code)

	require.Equal(t, http.StatusCreated,
		call(t, a, http.MethodPost, "/v1/users", `{"name":"Ana","email":"ana@example.com","phone":"5551234567"}`, true).Code)
	require.Equal(t, http.StatusCreated,
		call(t, a, http.MethodPost, "/v1/theatres", `{"name":"Rex","city":"Oslo","address":"Main street 1"}`, true).Code)
	require.Equal(t, http.StatusCreated,
		call(t, a, http.MethodPost, "/v1/shows", `{"movieTitle":"Dune","theatreId":1,"date":"2030-05-12","time":"20:00","price":300,"seatsAvailable":100}`, true).Code)

	first := call(t, a, http.MethodGet, "/v1/shows/1", "", false)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", call(t, a, http.MethodGet, "/v1/shows/1", "", false).Header().Get("X-Cache"))

	rec := call(t, a, http.MethodPost, "/v1/bookings", `{"userId":1,"showId":1,"seats":3}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, a, http.MethodGet, "/v1/shows/1", "", false)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	var show struct {
		SeatsAvailable int `json:"seatsAvailable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &show))
	assert.Equal(t, 97, show.SeatsAvailable)

	rec = call(t, a, http.MethodPost, "/v1/bookings/1/cancel", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestApp_OpenWritesWithoutSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = ""
	a := newTestApp(t, cfg)

	rec := call(t, a, http.MethodPost, "/v1/users", `{"name":"Ana","email":"ana@example.com","phone":"5551234567"}`, false)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestApp_SeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"users": [{"id": 1, "name": "Ana", "email": "ana@example.com", "phone": "5551234567"}],
		"theatres": [{"id": 1, "name": "Rex", "city": "Oslo", "address": "Main street 1"}],
		"shows": [{"id": 1, "movieTitle": "Dune", "theatreId": 1, "date": "2030-05-12", "time": "20:00", "price": 300, "seatsAvailable": 50}],
		"bookings": [{"id": 1, "userId": 1, "showId": 1, "seats": 4}]
	}`), 0o600))
	cfg := testConfig(t)
	cfg.SeedFile = path
	a := newTestApp(t, cfg)

	rec := call(t, a, http.MethodGet, "/v1/bookings?showId=1", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var bookings []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bookings))
	require.Len(t, bookings, 1)
	assert.EqualValues(t, 1200, bookings[0]["totalPrice"])
}

func TestApp_BadSeedFileFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedFile = filepath.Join(t.TempDir(), "missing.json")

	logger := log.New("app-test")
	logger.SetOutput(io.Discard)
	_, err := New(context.Background(), cfg, logger)
	assert.Error(t, err)
}
