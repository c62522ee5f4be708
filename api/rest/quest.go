package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gamelive/server/game/quest"
	mw "github.com/gamelive/server/middleware"
	"github.com/gin-gonic/gin"
)

// QuestHandler handles quest and quest-step REST endpoints.
type QuestHandler struct {
	svc *quest.Service
}

// NewQuestHandler creates a new QuestHandler.
func NewQuestHandler(svc *quest.Service) *QuestHandler {
	return &QuestHandler{svc: svc}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "bad_request", "Invalid id")
		return 0, false
	}
	return id, true
}

// List handles GET /api/quests?status=active|done.
func (h *QuestHandler) List(c *gin.Context) {
	userID := mw.GetUserID(c)
	status := c.DefaultQuery("status", "active")

	quests, err := h.svc.ListByStatus(c.Request.Context(), userID, status)
	var ve quest.ValidationError
	if errors.As(err, &ve) {
		jsonError(c, http.StatusBadRequest, "validation_error", ve.Error())
		return
	}
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to load quests", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": quests})
}

// Create handles POST /api/quests.
func (h *QuestHandler) Create(c *gin.Context) {
	userID := mw.GetUserID(c)

	var in quest.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	q, err := h.svc.Create(c.Request.Context(), userID, in)
	var ve quest.ValidationError
	if errors.As(err, &ve) {
		jsonError(c, http.StatusBadRequest, "validation_error", ve.Error())
		return
	}
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to create quest", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"quest": q})
}

// Patch handles PATCH /api/quests/:id.
func (h *QuestHandler) Patch(c *gin.Context) {
	userID := mw.GetUserID(c)
	questID, ok := pathID(c)
	if !ok {
		return
	}

	var in quest.PatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	q, err := h.svc.Patch(c.Request.Context(), userID, questID, in)
	var ve quest.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(c, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.Is(err, quest.ErrNotFound):
		jsonError(c, http.StatusNotFound, "not_found", "Quest not found")
	case err != nil:
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to update quest", err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"quest": q})
	}
}

// Delete handles DELETE /api/quests/:id.
func (h *QuestHandler) Delete(c *gin.Context) {
	userID := mw.GetUserID(c)
	questID, ok := pathID(c)
	if !ok {
		return
	}

	err := h.svc.Delete(c.Request.Context(), userID, questID)
	switch {
	case errors.Is(err, quest.ErrNotFound):
		jsonError(c, http.StatusNotFound, "not_found", "Quest not found")
	case err != nil:
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to delete quest", err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// Complete handles POST /api/quests/:id/complete.
func (h *QuestHandler) Complete(c *gin.Context) {
	userID := mw.GetUserID(c)
	questID, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.svc.Complete(c.Request.Context(), userID, questID)
	switch {
	case errors.Is(err, quest.ErrNotFound):
		jsonError(c, http.StatusNotFound, "not_found", "Quest not found")
	case errors.Is(err, quest.ErrAlreadyCompleted):
		jsonError(c, http.StatusBadRequest, "validation_error", "Quest already completed")
	case errors.Is(err, quest.ErrCharacterMissing):
		jsonError(c, http.StatusBadRequest, "validation_error", "Character not found for quest")
	case err != nil:
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to complete quest", err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{
			"quest":     result.Quest,
			"character": result.Character,
			"nextQuest": result.NextQuest,
		})
	}
}

type addStepRequest struct {
	Title string `json:"title"`
}

// AddStep handles POST /api/quests/:id/steps.
func (h *QuestHandler) AddStep(c *gin.Context) {
	userID := mw.GetUserID(c)
	questID, ok := pathID(c)
	if !ok {
		return
	}

	var req addStepRequest
	_ = c.ShouldBindJSON(&req)

	step, err := h.svc.AddStep(c.Request.Context(), userID, questID, req.Title)
	var ve quest.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(c, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.Is(err, quest.ErrNotFound):
		jsonError(c, http.StatusNotFound, "not_found", "Quest not found")
	case err != nil:
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to create step", err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"step": step})
	}
}

// PatchStep handles PATCH /api/steps/:id.
func (h *QuestHandler) PatchStep(c *gin.Context) {
	userID := mw.GetUserID(c)
	stepID, ok := pathID(c)
	if !ok {
		return
	}

	var in quest.StepPatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	step, err := h.svc.PatchStep(c.Request.Context(), userID, stepID, in)
	var ve quest.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(c, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.Is(err, quest.ErrNotFound):
		jsonError(c, http.StatusNotFound, "not_found", "Step not found")
	case err != nil:
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to update step", err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"step": step})
	}
}

// DeleteStep handles DELETE /api/steps/:id.
func (h *QuestHandler) DeleteStep(c *gin.Context) {
	userID := mw.GetUserID(c)
	stepID, ok := pathID(c)
	if !ok {
		return
	}

	err := h.svc.DeleteStep(c.Request.Context(), userID, stepID)
	switch {
	case errors.Is(err, quest.ErrNotFound):
		jsonError(c, http.StatusNotFound, "not_found", "Step not found")
	case err != nil:
		jsonError(c, http.StatusInternalServerError, "server_error", "Failed to delete step", err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
