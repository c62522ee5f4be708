package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apirest "github.com/gamelive/server/api/rest"
	"github.com/gamelive/server/assets"
	"github.com/gamelive/server/cache"
	"github.com/gamelive/server/config"
	"github.com/gamelive/server/game/character"
	"github.com/gamelive/server/game/quest"
	mw "github.com/gamelive/server/middleware"
	"github.com/gamelive/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// TestServer wraps a real HTTP server with every subsystem wired together.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	Sec    config.SecurityConfig
}

// NewTestServer creates a fully wired server for integration testing,
// mirroring the dependency wiring in main.go. Dev auth is enabled so
// tests can sign in without a Telegram handshake.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		SessionTTL:     2 * time.Hour,
		DevAuth:        true,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}

	catalog := &assets.Catalog{
		Hair:   map[string]bool{"hair_01": true, "hair_02": true},
		Top:    map[string]bool{"top_01": true},
		Bottom: map[string]bool{"bottom_01": true},
		Shoes:  map[string]bool{"shoes_01": true},
	}

	charSvc := character.NewService(db, catalog, logger)
	questSvc := quest.NewService(db, logger)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	authH := apirest.NewAuthHandler(db, c, sec)
	charH := apirest.NewCharacterHandler(charSvc)
	questH := apirest.NewQuestHandler(questSvc)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/telegram", authH.Telegram)
		authG.POST("/dev", authH.Dev)
		authG.POST("/logout", authH.Logout)

		auth := mw.Auth(sec, c)
		api.GET("/character", auth, charH.Get)
		api.POST("/character", auth, charH.Save)

		questsG := api.Group("/quests")
		questsG.Use(auth)
		questsG.GET("", questH.List)
		questsG.POST("", questH.Create)
		questsG.PATCH("/:id", questH.Patch)
		questsG.DELETE("/:id", questH.Delete)
		questsG.POST("/:id/complete", questH.Complete)
		questsG.POST("/:id/steps", questH.AddStep)

		api.PATCH("/steps/:id", auth, questH.PatchStep)
		api.DELETE("/steps/:id", auth, questH.DeleteStep)
	}

	server := httptest.NewServer(r)

	return &TestServer{
		DB:     db,
		Cache:  c,
		Server: server,
		URL:    server.URL,
		Sec:    sec,
	}
}

// Close shuts down the test server.
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	return ts.do(t, http.MethodPost, path, body, token)
}

// PatchJSON sends a PATCH request with JSON body and optional Bearer token.
func (ts *TestServer) PatchJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	return ts.do(t, http.MethodPatch, path, body, token)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	return ts.do(t, http.MethodGet, path, nil, token)
}

// Delete sends a DELETE request with optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	return ts.do(t, http.MethodDelete, path, nil, token)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

var uniqueCounter int64

// UniqueTelegramID returns a telegram_id unused by any previous caller
// in this process, so tests never collide on the user upsert.
func UniqueTelegramID() int64 {
	return 700000000 + atomic.AddInt64(&uniqueCounter, 1)
}

// --- Auth helpers ---

// SignIn authenticates through the dev endpoint and returns the session
// token and user ID.
func (ts *TestServer) SignIn(t *testing.T, telegramID int64) (token string, userID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/dev", map[string]interface{}{
		"telegram_id": telegramID,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	token = result["token"].(string)
	user := result["user"].(map[string]interface{})
	userID = int64(user["id"].(float64))
	return
}

// CreateCharacter creates the user's character and returns its ID.
func (ts *TestServer) CreateCharacter(t *testing.T, token, name string) int64 {
	t.Helper()
	resp := ts.PostJSON(t, "/api/character", map[string]interface{}{
		"name":          name,
		"age":           30,
		"height_cm":     175,
		"weight_kg":     70,
		"hair_style":    "hair_01",
		"hair_color":    "hair_02",
		"outfit_top":    "top_01",
		"outfit_bottom": "bottom_01",
		"outfit_shoes":  "shoes_01",
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	char := result["character"].(map[string]interface{})
	return int64(char["id"].(float64))
}
