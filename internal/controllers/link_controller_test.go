package controllers

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortlinks/internal/cache"
	"shortlinks/internal/entities"
	"shortlinks/internal/jwt"
	"shortlinks/internal/models"
	"shortlinks/internal/repository"
	"shortlinks/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	repo   *repository.MemoryLinkRepository
	redis  *miniredis.Miniredis
	tokens *jwt.JWTService
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := repository.NewMemoryLinkRepository()
	linkCache := cache.NewLinkCache(cache.NewRedisCacheFromClient(client), cache.DefaultConfig())
	linkService := service.NewLinkService(repo, linkCache)
	tokens := jwt.NewJWTService("test-secret", time.Hour)

	router := gin.New()
	RegisterRoutes(router, Routes{
		Links:  NewLinkController(linkService, "https://sho.rt/"),
		QRCode: NewQRCodeController(linkService, "https://sho.rt"),
		Health: NewHealthController(linkCache),
		Tokens: tokens,
	})

	return &testServer{router: router, repo: repo, redis: s, tokens: tokens}
}

func (ts *testServer) token(t *testing.T, callerID string) string {
	t.Helper()
	token, err := ts.tokens.GenerateToken(callerID)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) create(t *testing.T, body map[string]any, token string) models.CreateLinkResponse {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/links/shorten", body, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp models.CreateLinkResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestCreateAndRedirect(t *testing.T) {
	ts := setupServer(t)

	resp := ts.create(t, map[string]any{"url": "https://example.com/a"}, "")
	assert.Equal(t, "https://sho.rt/links/"+resp.Code, resp.ShortCode)
	assert.Equal(t, "https://example.com/a", resp.OriginalURL)
	assert.Nil(t, resp.ExpiresAt)

	rr := ts.do(t, http.MethodGet, "/links/"+resp.Code, nil, "")
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Equal(t, "https://example.com/a", rr.Header().Get("Location"))

	rr = ts.do(t, http.MethodGet, "/links/"+resp.Code+"/stats", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stats entities.StatsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.ClickCount)

	// Deterministic codes make a second create of the same URL a conflict
	rr = ts.do(t, http.MethodPost, "/links/shorten", map[string]any{"url": "https://example.com/a"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), resp.Code)
}

func TestCreate_BadRequests(t *testing.T) {
	ts := setupServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing url", map[string]any{}},
		{"bad expiry format", map[string]any{"url": "https://example.com", "expires_at": "tomorrow"}},
		{"expiry in the past", map[string]any{"url": "https://example.com", "expires_at": "2001-01-01T00:00:00Z"}},
		{"invalid alias", map[string]any{"url": "https://example.com", "custom_alias": "no"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, "/links/shorten", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestCreate_CustomAliasWithOwner(t *testing.T) {
	ts := setupServer(t)
	alice := ts.token(t, "alice")

	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	resp := ts.create(t, map[string]any{
		"url":          "https://example.com/promo",
		"custom_alias": "spring-sale",
		"expires_at":   expiresAt.Format(time.RFC3339),
	}, alice)

	assert.Equal(t, "spring-sale", resp.Code)
	require.NotNil(t, resp.ExpiresAt)
	assert.True(t, expiresAt.Equal(*resp.ExpiresAt))

	stored, err := ts.repo.FindByShortCode(t.Context(), "spring-sale")
	require.NoError(t, err)
	assert.Equal(t, entities.OwnedBy("alice"), stored.Owner)

	rr := ts.do(t, http.MethodPost, "/links/shorten", map[string]any{
		"url":          "https://example.com/other",
		"custom_alias": "spring-sale",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRedirect_NotFound(t *testing.T) {
	ts := setupServer(t)

	rr := ts.do(t, http.MethodGet, "/links/nothere", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDelete(t *testing.T) {
	ts := setupServer(t)
	alice, bob := ts.token(t, "alice"), ts.token(t, "bob")
	resp := ts.create(t, map[string]any{"url": "https://example.com/del"}, alice)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodDelete, "/links/"+resp.Code, nil, "").Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, "/links/"+resp.Code, nil, bob).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/links/"+resp.Code, nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/links/"+resp.Code, nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/links/"+resp.Code, nil, "").Code)
}

func TestUpdate(t *testing.T) {
	ts := setupServer(t)
	alice, bob := ts.token(t, "alice"), ts.token(t, "bob")
	resp := ts.create(t, map[string]any{"url": "https://example.com/old"}, alice)

	// Warm the cache
	require.Equal(t, http.StatusTemporaryRedirect, ts.do(t, http.MethodGet, "/links/"+resp.Code, nil, "").Code)

	target := "/links/" + resp.Code + "?new_url=" + url.QueryEscape("https://example.com/new")
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPut, target, nil, bob).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/links/"+resp.Code, nil, alice).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, target, nil, alice).Code)
	assert.False(t, ts.redis.Exists("link:"+resp.Code), "update must drop the cached link")

	rr := ts.do(t, http.MethodGet, "/links/"+resp.Code, nil, "")
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Equal(t, "https://example.com/new", rr.Header().Get("Location"))
}

func TestUpdateExpiration(t *testing.T) {
	ts := setupServer(t)
	alice := ts.token(t, "alice")
	resp := ts.create(t, map[string]any{"url": "https://example.com/exp"}, alice)

	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	target := "/links/" + resp.Code + "/expiration?expires_at=" + url.QueryEscape(expiresAt.Format(time.RFC3339))

	rr := ts.do(t, http.MethodPatch, target, nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	var body models.ExpirationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotNil(t, body.ExpiresAt)
	assert.True(t, expiresAt.Equal(*body.ExpiresAt))

	// Clearing
	rr = ts.do(t, http.MethodPatch, "/links/"+resp.Code+"/expiration", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	body = models.ExpirationResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Nil(t, body.ExpiresAt)

	rr = ts.do(t, http.MethodPatch, "/links/"+resp.Code+"/expiration?expires_at=soon", nil, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPatch, "/links/"+resp.Code+"/expiration", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSearch(t *testing.T) {
	ts := setupServer(t)
	ts.create(t, map[string]any{"url": "https://example.com/s?q=1"}, "")
	ts.create(t, map[string]any{"url": "https://example.com/s?q=1", "custom_alias": "search-me"}, "")

	rr := ts.do(t, http.MethodGet, "/links/search/https://EXAMPLE.com/s?q=1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var results []entities.StatsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	assert.Len(t, results, 2)

	rr = ts.do(t, http.MethodGet, "/links/search/https://unknown.example", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListMine(t *testing.T) {
	ts := setupServer(t)
	alice := ts.token(t, "alice")
	ts.create(t, map[string]any{"url": "https://example.com/mine"}, alice)
	ts.create(t, map[string]any{"url": "https://example.com/anon"}, "")

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/links/mine", nil, "").Code)

	rr := ts.do(t, http.MethodGet, "/links/mine", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	var links []entities.StatsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &links))
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/mine", links[0].OriginalURL)
}

func TestQRCode(t *testing.T) {
	ts := setupServer(t)
	resp := ts.create(t, map[string]any{"url": "https://example.com/qr"}, "")

	rr := ts.do(t, http.MethodGet, "/links/"+resp.Code+"/qr", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, qrCodeSize, img.Bounds().Dx())

	stored, err := ts.repo.FindByShortCode(t.Context(), resp.Code)
	require.NoError(t, err)
	assert.Zero(t, stored.ClickCount, "QR lookups are not clicks")

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/links/nothere/qr", nil, "").Code)
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)

	rr := ts.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body models.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, models.HealthResponse{Status: "ok", Cache: "ok"}, body)


	disabled := gin.New()
	disabled.GET("/health", NewHealthController(cache.NewLinkCache(nil, cache.DefaultConfig())).Health)
	rr = httptest.NewRecorder()
	disabled.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "disabled", body.Cache)
}

func TestRequestBaseURL(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "http://links.local/x", nil)

	assert.Equal(t, "https://configured", requestBaseURL(c, "https://configured"))
	assert.Equal(t, "http://links.local", requestBaseURL(c, ""))

	c.Request.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://links.local", requestBaseURL(c, ""))
}
