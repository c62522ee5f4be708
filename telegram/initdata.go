// Package telegram verifies Telegram WebApp initData assertions.
//
// The client delivers initData as a URL-encoded query string signed by
// Telegram: hash = hex(HMAC-SHA256(secret, dataCheckString)) where
// secret = HMAC-SHA256(key="WebAppData", message=botToken) and
// dataCheckString is every non-hash parameter as "key=value", sorted,
// joined with newlines.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// ErrBotTokenMissing indicates the server has no bot token configured;
// verification cannot run at all.
var ErrBotTokenMissing = errors.New("telegram: bot token is required")

// WebAppUser is the user payload Telegram embeds in initData.
type WebAppUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Verify checks the initData signature against the bot token.
// It returns false (not an error) for a missing or mismatching hash.
func Verify(initData, botToken string) (bool, error) {
	if botToken == "" {
		return false, ErrBotTokenMissing
	}
	params, err := url.ParseQuery(initData)
	if err != nil {
		return false, nil
	}
	received := params.Get("hash")
	if received == "" {
		return false, nil
	}
	params.Del("hash")

	pairs := make([]string, 0, len(params))
	for key, values := range params {
		for _, value := range values {
			pairs = append(pairs, key+"="+value)
		}
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheckString))
	computed := mac.Sum(nil)

	receivedBytes, err := hex.DecodeString(received)
	if err != nil {
		return false, nil
	}
	return hmac.Equal(receivedBytes, computed), nil
}

// ParseUser extracts the user payload from initData. Returns nil when the
// user parameter is absent or malformed.
func ParseUser(initData string) *WebAppUser {
	params, err := url.ParseQuery(initData)
	if err != nil {
		return nil
	}
	userJSON := params.Get("user")
	if userJSON == "" {
		return nil
	}
	var user WebAppUser
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil
	}
	return &user
}

// RawUser returns the raw user JSON from initData, for storage alongside
// the parsed fields. Empty string when absent.
func RawUser(initData string) string {
	params, err := url.ParseQuery(initData)
	if err != nil {
		return ""
	}
	return params.Get("user")
}
