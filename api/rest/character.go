package rest

import (
	"errors"
	"net/http"

	"github.com/gamelive/server/game/character"
	mw "github.com/gamelive/server/middleware"
	"github.com/gin-gonic/gin"
)

// CharacterHandler handles the single-character REST endpoints.
type CharacterHandler struct {
	svc *character.Service
}

// NewCharacterHandler creates a new CharacterHandler.
func NewCharacterHandler(svc *character.Service) *CharacterHandler {
	return &CharacterHandler{svc: svc}
}

// Get handles GET /api/character. Users without a character get null,
// not an error; the client treats that as "show the creation form".
func (h *CharacterHandler) Get(c *gin.Context) {
	userID := mw.GetUserID(c)
	char, err := h.svc.Get(c.Request.Context(), userID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to load character", err.Error())
		return
	}
	if char == nil {
		c.JSON(http.StatusOK, gin.H{"character": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"character": char})
}

// Save handles POST /api/character: validates the full payload and
// creates or replaces the user's character.
func (h *CharacterHandler) Save(c *gin.Context) {
	userID := mw.GetUserID(c)

	var in character.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	char, err := h.svc.Save(c.Request.Context(), userID, in)
	var ve character.ValidationError
	if errors.As(err, &ve) {
		jsonError(c, http.StatusBadRequest, "validation_error", ve.Error())
		return
	}
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to save character", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"character": char})
}
