// Package quest implements the quest lifecycle: CRUD over quests and
// their checklist steps, and the completion engine that awards XP and
// spawns successors for repeating quests.
package quest

import (
	"context"
	"errors"
	"time"

	"github.com/gamelive/server/game/progression"
	"github.com/gamelive/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound means no quest or step matched the owner and ID.
	ErrNotFound = errors.New("quest: not found")
	// ErrAlreadyCompleted means the quest was already in the done state.
	// Completion is deliberately not idempotent: a second call is a
	// client error, not a silent success.
	ErrAlreadyCompleted = errors.New("quest: already completed")
	// ErrCharacterMissing means a quest points at no loadable character.
	// Should not occur while the one-character-per-user invariant holds.
	ErrCharacterMissing = errors.New("quest: character not found for quest")
)

// ValidationError describes a rejected quest payload.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// StepInput is one checklist entry in a create payload.
type StepInput struct {
	Title string `json:"title"`
}

// CreateInput is the quest creation payload. Pointer fields distinguish
// "omitted" (use the default) from an explicit zero.
type CreateInput struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	XPReward       *int        `json:"xp_reward"`
	DueAt          *time.Time  `json:"due_at"`
	RepeatType     string      `json:"repeat_type"`
	RepeatInterval *int        `json:"repeat_interval"`
	Steps          []StepInput `json:"steps"`
}

// PatchInput carries the optional-per-column partial update for a quest.
type PatchInput struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	XPReward       *int       `json:"xp_reward"`
	DueAt          *time.Time `json:"due_at"`
	RepeatType     *string    `json:"repeat_type"`
	RepeatInterval *int       `json:"repeat_interval"`
	Status         *string    `json:"status"`
}

// StepPatchInput is the partial update for a step.
type StepPatchInput struct {
	Title  *string `json:"title"`
	IsDone *bool   `json:"is_done"`
}

// CompleteResult is the snapshot returned by Complete: the finished
// quest, the character after the XP award, and the spawned successor
// (nil for non-repeating quests).
type CompleteResult struct {
	Quest     model.Quest     `json:"quest"`
	Character model.Character `json:"character"`
	NextQuest *model.Quest    `json:"next_quest"`
}

// Service handles all quest operations. Every query is scoped by the
// owning user ID; cross-user access is impossible by construction.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a quest Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// withUpdateLock adds SELECT ... FOR UPDATE on engines that support it.
// SQLite rejects the clause and serializes writers itself, so the
// transaction is the critical section there.
func withUpdateLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ownedQuestIDs is a subquery selecting the user's quest IDs, used to
// scope step operations through the parent quest.
func (svc *Service) ownedQuestIDs(userID int64) *gorm.DB {
	return svc.db.Model(&model.Quest{}).Select("id").Where("user_id = ?", userID)
}

// ListByStatus returns the user's quests in the given status, newest
// first, each with its steps ordered by order_index.
func (svc *Service) ListByStatus(ctx context.Context, userID int64, status string) ([]model.Quest, error) {
	if !model.ValidQuestStatus(status) {
		return nil, ValidationError("Invalid status")
	}
	var quests []model.Quest
	err := svc.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Where("user_id = ? AND status = ?", userID, status).
		Order("created_at DESC, id DESC").
		Find(&quests).Error
	if err != nil {
		return nil, err
	}
	return quests, nil
}

func validateCreate(in CreateInput) error {
	if in.Title == "" {
		return ValidationError("title is required")
	}
	if in.XPReward != nil && (*in.XPReward < 1 || *in.XPReward > 1000) {
		return ValidationError("xp_reward must be between 1 and 1000")
	}
	if in.RepeatType != "" && !model.ValidRepeatType(in.RepeatType) {
		return ValidationError("Invalid repeat_type")
	}
	return nil
}

// Create validates the payload and inserts the quest together with its
// steps in one transaction. Step entries without a title are silently
// skipped; the survivors get dense zero-based order indices.
func (svc *Service) Create(ctx context.Context, userID int64, in CreateInput) (*model.Quest, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	xpReward := 10
	if in.XPReward != nil {
		xpReward = *in.XPReward
	}
	repeatType := in.RepeatType
	if repeatType == "" {
		repeatType = model.RepeatNone
	}
	repeatInterval := 1
	if in.RepeatInterval != nil {
		repeatInterval = *in.RepeatInterval
	}

	quest := &model.Quest{
		UserID:         userID,
		Title:          in.Title,
		Description:    in.Description,
		XPReward:       xpReward,
		Status:         model.QuestStatusActive,
		DueAt:          in.DueAt,
		RepeatType:     repeatType,
		RepeatInterval: repeatInterval,
	}

	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var char model.Character
		if err := tx.Select("id").Where("user_id = ?", userID).First(&char).Error; err == nil {
			quest.CharacterID = &char.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(quest).Error; err != nil {
			return err
		}

		index := 0
		for _, step := range in.Steps {
			if step.Title == "" {
				continue
			}
			row := &model.QuestStep{
				QuestID:    quest.ID,
				Title:      step.Title,
				OrderIndex: index,
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			quest.Steps = append(quest.Steps, *row)
			index++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quest, nil
}

// Patch applies the supplied fields to an owned quest. An empty field
// set is rejected before touching storage.
func (svc *Service) Patch(ctx context.Context, userID, questID int64, in PatchInput) (*model.Quest, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.XPReward != nil {
		updates["xp_reward"] = *in.XPReward
	}
	if in.DueAt != nil {
		updates["due_at"] = *in.DueAt
	}
	if in.RepeatType != nil {
		updates["repeat_type"] = *in.RepeatType
	}
	if in.RepeatInterval != nil {
		updates["repeat_interval"] = *in.RepeatInterval
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if len(updates) == 0 {
		return nil, ValidationError("No fields to update")
	}
	updates["updated_at"] = time.Now()

	result := svc.db.WithContext(ctx).Model(&model.Quest{}).
		Where("id = ? AND user_id = ?", questID, userID).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var quest model.Quest
	if err := svc.db.WithContext(ctx).First(&quest, questID).Error; err != nil {
		return nil, err
	}
	return &quest, nil
}

// Delete removes an owned quest and its steps in one transaction.
func (svc *Service) Delete(ctx context.Context, userID, questID int64) error {
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", questID, userID).Delete(&model.Quest{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("quest_id = ?", questID).Delete(&model.QuestStep{}).Error
	})
}

// AddStep appends a step to an owned quest at order index max+1.
func (svc *Service) AddStep(ctx context.Context, userID, questID int64, title string) (*model.QuestStep, error) {
	if title == "" {
		return nil, ValidationError("title is required")
	}

	var step *model.QuestStep
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quest model.Quest
		err := tx.Select("id").Where("id = ? AND user_id = ?", questID, userID).First(&quest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var last model.QuestStep
		next := 0
		err = tx.Where("quest_id = ?", questID).Order("order_index DESC").First(&last).Error
		if err == nil {
			next = last.OrderIndex + 1
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		step = &model.QuestStep{QuestID: questID, Title: title, OrderIndex: next}
		return tx.Create(step).Error
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// PatchStep applies the supplied fields to a step owned through its
// parent quest.
func (svc *Service) PatchStep(ctx context.Context, userID, stepID int64, in StepPatchInput) (*model.QuestStep, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.IsDone != nil {
		updates["is_done"] = *in.IsDone
	}
	if len(updates) == 0 {
		return nil, ValidationError("No fields to update")
	}

	result := svc.db.WithContext(ctx).Model(&model.QuestStep{}).
		Where("id = ? AND quest_id IN (?)", stepID, svc.ownedQuestIDs(userID)).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var step model.QuestStep
	if err := svc.db.WithContext(ctx).First(&step, stepID).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

// DeleteStep removes a step owned through its parent quest.
func (svc *Service) DeleteStep(ctx context.Context, userID, stepID int64) error {
	result := svc.db.WithContext(ctx).
		Where("id = ? AND quest_id IN (?)", stepID, svc.ownedQuestIDs(userID)).
		Delete(&model.QuestStep{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Complete runs the quest completion state machine in one transaction:
// lock the quest, guard the active→done transition, award XP to the
// locked character, and spawn the successor for repeating quests. Any
// failure rolls the whole transaction back.
func (svc *Service) Complete(ctx context.Context, userID, questID int64) (*CompleteResult, error) {
	var result CompleteResult

	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quest model.Quest
		err := withUpdateLock(tx).
			Where("id = ? AND user_id = ?", questID, userID).
			First(&quest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if quest.Status == model.QuestStatusDone {
			return ErrAlreadyCompleted
		}

		now := time.Now()
		if err := tx.Model(&quest).Updates(map[string]interface{}{
			"status":       model.QuestStatusDone,
			"completed_at": now,
			"updated_at":   now,
		}).Error; err != nil {
			return err
		}
		quest.Status = model.QuestStatusDone
		quest.CompletedAt = &now
		quest.UpdatedAt = now

		var char model.Character
		if quest.CharacterID == nil {
			return ErrCharacterMissing
		}
		err = withUpdateLock(tx).Where("id = ?", *quest.CharacterID).First(&char).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCharacterMissing
		}
		if err != nil {
			return err
		}

		level, xp := progression.Advance(char.Level, char.XP, quest.XPReward)
		if err := tx.Model(&char).Updates(map[string]interface{}{
			"level":      level,
			"xp":         xp,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		char.Level = level
		char.XP = xp

		if quest.RepeatType != model.RepeatNone {
			due := progression.NextDueAt(quest.DueAt, quest.RepeatType)
			next := model.Quest{
				UserID:         quest.UserID,
				CharacterID:    quest.CharacterID,
				Title:          quest.Title,
				Description:    quest.Description,
				XPReward:       quest.XPReward,
				Status:         model.QuestStatusActive,
				DueAt:          &due,
				RepeatType:     quest.RepeatType,
				RepeatInterval: quest.RepeatInterval,
			}
			if err := tx.Create(&next).Error; err != nil {
				return err
			}

			var steps []model.QuestStep
			if err := tx.Where("quest_id = ?", questID).
				Order("order_index ASC").Find(&steps).Error; err != nil {
				return err
			}
			for i, step := range steps {
				clone := model.QuestStep{
					QuestID:    next.ID,
					Title:      step.Title,
					IsDone:     false,
					OrderIndex: i,
				}
				if err := tx.Create(&clone).Error; err != nil {
					return err
				}
				next.Steps = append(next.Steps, clone)
			}
			result.NextQuest = &next
		}

		result.Quest = quest
		result.Character = char
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.logger.Info("quest completed",
		zap.Int64("user_id", userID),
		zap.Int64("quest_id", questID),
		zap.Int("xp_reward", result.Quest.XPReward),
		zap.Int("level", result.Character.Level),
		zap.Bool("recurred", result.NextQuest != nil))
	return &result, nil
}
