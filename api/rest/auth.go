package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gamelive/server/cache"
	"github.com/gamelive/server/config"
	mw "github.com/gamelive/server/middleware"
	"github.com/gamelive/server/model"
	"github.com/gamelive/server/telegram"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Identity the dev endpoints sign in as when the request names no other.
const (
	devTelegramID = 999000111
	devUsername   = "dev_user"
	devFirstName  = "Dev"
)

// AuthHandler handles authentication REST endpoints.
type AuthHandler struct {
	db    *gorm.DB
	cache cache.Cache
	sec   config.SecurityConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec}
}

type telegramAuthRequest struct {
	InitData string `json:"initData"`
}

// Telegram handles POST /api/auth/telegram.
// Verifies the Telegram WebApp initData signature and signs the user in,
// creating the account on first contact. Under dev_auth the literal
// payload "dev" bypasses verification and signs in as the dev identity.
func (h *AuthHandler) Telegram(c *gin.Context) {
	var req telegramAuthRequest
	_ = c.ShouldBindJSON(&req)
	if req.InitData == "" {
		jsonError(c, http.StatusBadRequest, "bad_request", "initData is required")
		return
	}

	if h.sec.DevAuth && req.InitData == "dev" {
		user, err := h.upsertUser(c.Request.Context(), devTelegramID, devUsername, devFirstName, nil)
		if err != nil {
			jsonError(c, http.StatusInternalServerError, "server_error", "Failed to save user", err.Error())
			return
		}
		h.openSession(c, user, true)
		return
	}

	valid, err := telegram.Verify(req.InitData, h.sec.BotToken)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "config_error", err.Error())
		return
	}
	if !valid {
		jsonError(c, http.StatusUnauthorized, "invalid_init_data", "Invalid Telegram initData")
		return
	}

	tgUser := telegram.ParseUser(req.InitData)
	if tgUser == nil || tgUser.ID == 0 {
		jsonError(c, http.StatusBadRequest, "bad_request", "Missing user data in initData")
		return
	}

	var profile datatypes.JSON
	if raw := telegram.RawUser(req.InitData); raw != "" {
		profile = datatypes.JSON(raw)
	}
	user, err := h.upsertUser(c.Request.Context(), tgUser.ID, tgUser.Username, tgUser.FirstName, profile)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to save user", err.Error())
		return
	}
	h.openSession(c, user, false)
}

type devAuthRequest struct {
	TelegramID json.Number `json:"telegram_id"`
	Username   string      `json:"username"`
	FirstName  string      `json:"first_name"`
}

// Dev handles POST /api/auth/dev. Hidden behind security.dev_auth; signs
// in as an arbitrary telegram_id without touching Telegram.
func (h *AuthHandler) Dev(c *gin.Context) {
	if !h.sec.DevAuth {
		jsonError(c, http.StatusNotFound, "not_found", "DEV_AUTH is disabled")
		return
	}

	var req devAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(c, http.StatusBadRequest, "validation_error", "telegram_id must be numeric")
		return
	}

	telegramID := int64(devTelegramID)
	if req.TelegramID != "" {
		id, err := req.TelegramID.Int64()
		if err != nil {
			jsonError(c, http.StatusBadRequest, "validation_error", "telegram_id must be numeric")
			return
		}
		telegramID = id
	}
	username := req.Username
	if username == "" {
		username = devUsername
	}
	firstName := req.FirstName
	if firstName == "" {
		firstName = devFirstName
	}

	user, err := h.upsertUser(c.Request.Context(), telegramID, username, firstName, nil)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to save user", err.Error())
		return
	}
	h.openSession(c, user, true)
}

// Logout handles POST /api/auth/logout: drops the cached session and
// expires the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, _ := c.Cookie(mw.SessionCookie)
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if token != "" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		_ = h.cache.Del(ctx, "session:"+token)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(mw.SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// upsertUser inserts the user or, when the telegram_id already exists,
// refreshes the mutable identity columns. The stored row is returned.
func (h *AuthHandler) upsertUser(ctx context.Context, telegramID int64, username, firstName string, profile datatypes.JSON) (*model.User, error) {
	row := &model.User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		Profile:    profile,
	}
	err := h.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "profile"}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := h.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// openSession issues the JWT, records the revocable session in the cache
// and sets the httpOnly cookie the web client rides on.
func (h *AuthHandler) openSession(c *gin.Context, user *model.User, dev bool) {
	token, err := mw.GenerateToken(user.ID, h.sec.JWTSecret, h.sec.SessionTTL)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "server_error", "token error")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Set(ctx, "session:"+token, "1", h.sec.SessionTTL)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(mw.SessionCookie, token, int(h.sec.SessionTTL.Seconds()), "/", "", false, true)

	body := gin.H{"ok": true, "user": user, "token": token}
	if dev {
		body["dev"] = true
	}
	c.JSON(http.StatusOK, body)
}
