package quest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gamelive/server/model"
	"github.com/gamelive/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewService(db, zap.NewNop()), db
}

// seedCharacter creates a character for the user so quests have an owner
// to award XP to.
func seedCharacter(t *testing.T, db *gorm.DB, userID int64) *model.Character {
	t.Helper()
	char := &model.Character{
		UserID: userID, Name: "Hero", Age: 25, HeightCM: 180, WeightKG: 70,
		HairStyle: "hair_01", HairColor: "hair_01",
		OutfitTop: "top_01", OutfitBottom: "bottom_01", OutfitShoes: "shoes_01",
		Level: 1,
	}
	require.NoError(t, db.Create(char).Error)
	return char
}

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newTestService(t)

	quest, err := svc.Create(context.Background(), 1, CreateInput{Title: "Read a book"})
	require.NoError(t, err)
	assert.Equal(t, 10, quest.XPReward)
	assert.Equal(t, model.QuestStatusActive, quest.Status)
	assert.Equal(t, model.RepeatNone, quest.RepeatType)
	assert.Equal(t, 1, quest.RepeatInterval)
	assert.Nil(t, quest.CharacterID)
	assert.Empty(t, quest.Steps)
}

func TestCreate_LinksCharacter(t *testing.T) {
	svc, db := newTestService(t)
	char := seedCharacter(t, db, 1)

	quest, err := svc.Create(context.Background(), 1, CreateInput{Title: "Run"})
	require.NoError(t, err)
	require.NotNil(t, quest.CharacterID)
	assert.Equal(t, char.ID, *quest.CharacterID)
}

func TestCreate_StepsSkipEmptyTitles(t *testing.T) {
	svc, _ := newTestService(t)

	quest, err := svc.Create(context.Background(), 1, CreateInput{
		Title: "Chores",
		Steps: []StepInput{{Title: "a"}, {Title: ""}, {Title: "b"}},
	})
	require.NoError(t, err)
	require.Len(t, quest.Steps, 2)
	assert.Equal(t, "a", quest.Steps[0].Title)
	assert.Equal(t, 0, quest.Steps[0].OrderIndex)
	assert.Equal(t, "b", quest.Steps[1].Title)
	assert.Equal(t, 1, quest.Steps[1].OrderIndex)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateInput{})
	assert.EqualError(t, err, "title is required")

	_, err = svc.Create(ctx, 1, CreateInput{Title: "x", XPReward: intPtr(0)})
	assert.EqualError(t, err, "xp_reward must be between 1 and 1000")

	_, err = svc.Create(ctx, 1, CreateInput{Title: "x", XPReward: intPtr(1001)})
	assert.EqualError(t, err, "xp_reward must be between 1 and 1000")

	_, err = svc.Create(ctx, 1, CreateInput{Title: "x", RepeatType: "yearly"})
	assert.EqualError(t, err, "Invalid repeat_type")
}

func TestListByStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, 1, CreateInput{Title: "first", Steps: []StepInput{{Title: "s1"}, {Title: "s2"}}})
	require.NoError(t, err)
	second, err := svc.Create(ctx, 1, CreateInput{Title: "second"})
	require.NoError(t, err)

	// Another user's quest must be invisible.
	_, err = svc.Create(ctx, 2, CreateInput{Title: "other"})
	require.NoError(t, err)

	active, err := svc.ListByStatus(ctx, 1, model.QuestStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].ID) // newest first
	assert.Equal(t, first.ID, active[1].ID)
	require.Len(t, active[1].Steps, 2)
	assert.Equal(t, "s1", active[1].Steps[0].Title)

	done, err := svc.ListByStatus(ctx, 1, model.QuestStatusDone)
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestListByStatus_InvalidStatus(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ListByStatus(context.Background(), 1, "archived")
	var ve ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestPatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	quest, err := svc.Create(ctx, 1, CreateInput{Title: "before"})
	require.NoError(t, err)

	patched, err := svc.Patch(ctx, 1, quest.ID, PatchInput{
		Title:    strPtr("after"),
		XPReward: intPtr(50),
	})
	require.NoError(t, err)
	assert.Equal(t, "after", patched.Title)
	assert.Equal(t, 50, patched.XPReward)
}

func TestPatch_EmptyFieldSet(t *testing.T) {
	svc, _ := newTestService(t)
	quest, err := svc.Create(context.Background(), 1, CreateInput{Title: "x"})
	require.NoError(t, err)

	_, err = svc.Patch(context.Background(), 1, quest.ID, PatchInput{})
	assert.EqualError(t, err, "No fields to update")
}

func TestPatch_NotOwned(t *testing.T) {
	svc, _ := newTestService(t)
	quest, err := svc.Create(context.Background(), 1, CreateInput{Title: "mine"})
	require.NoError(t, err)

	_, err = svc.Patch(context.Background(), 2, quest.ID, PatchInput{Title: strPtr("stolen")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Patch(context.Background(), 1, 9999, PatchInput{Title: strPtr("gone")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_CascadesSteps(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	quest, err := svc.Create(ctx, 1, CreateInput{
		Title: "x", Steps: []StepInput{{Title: "a"}, {Title: "b"}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 1, quest.ID))

	var steps []model.QuestStep
	db.Where("quest_id = ?", quest.ID).Find(&steps)
	assert.Empty(t, steps)
}

func TestDelete_NotOwned(t *testing.T) {
	svc, _ := newTestService(t)
	quest, err := svc.Create(context.Background(), 1, CreateInput{Title: "x"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(context.Background(), 2, quest.ID), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), 1, 424242), ErrNotFound)
}

func TestAddStep_AppendsAtMaxPlusOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	quest, err := svc.Create(ctx, 1, CreateInput{Title: "x"})
	require.NoError(t, err)

	first, err := svc.AddStep(ctx, 1, quest.ID, "one")
	require.NoError(t, err)
	assert.Equal(t, 0, first.OrderIndex)

	second, err := svc.AddStep(ctx, 1, quest.ID, "two")
	require.NoError(t, err)
	assert.Equal(t, 1, second.OrderIndex)
}

func TestAddStep_QuestMissingOrNotOwned(t *testing.T) {
	svc, _ := newTestService(t)
	quest, err := svc.Create(context.Background(), 1, CreateInput{Title: "x"})
	require.NoError(t, err)

	_, err = svc.AddStep(context.Background(), 2, quest.ID, "sneaky")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AddStep(context.Background(), 1, 999, "orphan")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddStep_TitleRequired(t *testing.T) {
	svc, _ := newTestService(t)
	quest, err := svc.Create(context.Background(), 1, CreateInput{Title: "x"})
	require.NoError(t, err)

	_, err = svc.AddStep(context.Background(), 1, quest.ID, "")
	assert.EqualError(t, err, "title is required")
}

func TestPatchStep(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	quest, err := svc.Create(ctx, 1, CreateInput{Title: "x", Steps: []StepInput{{Title: "a"}}})
	require.NoError(t, err)
	stepID := quest.Steps[0].ID

	patched, err := svc.PatchStep(ctx, 1, stepID, StepPatchInput{IsDone: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, patched.IsDone)
	assert.Equal(t, "a", patched.Title)

	_, err = svc.PatchStep(ctx, 1, stepID, StepPatchInput{})
	assert.EqualError(t, err, "No fields to update")

	_, err = svc.PatchStep(ctx, 2, stepID, StepPatchInput{IsDone: boolPtr(false)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteStep(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	quest, err := svc.Create(ctx, 1, CreateInput{Title: "x", Steps: []StepInput{{Title: "a"}}})
	require.NoError(t, err)
	stepID := quest.Steps[0].ID

	assert.ErrorIs(t, svc.DeleteStep(ctx, 2, stepID), ErrNotFound)
	require.NoError(t, svc.DeleteStep(ctx, 1, stepID))
	assert.ErrorIs(t, svc.DeleteStep(ctx, 1, stepID), ErrNotFound)
}

func TestComplete_AwardsXP(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedCharacter(t, db, 1)

	quest, err := svc.Create(ctx, 1, CreateInput{Title: "x", XPReward: intPtr(250)})
	require.NoError(t, err)

	result, err := svc.Complete(ctx, 1, quest.ID)
	require.NoError(t, err)

	assert.Equal(t, model.QuestStatusDone, result.Quest.Status)
	require.NotNil(t, result.Quest.CompletedAt)
	assert.Equal(t, 3, result.Character.Level) // 100 + 150 spent, 0 left
	assert.Equal(t, 0, result.Character.XP)
	assert.Nil(t, result.NextQuest)

	var stored model.Character
	require.NoError(t, db.Where("user_id = ?", int64(1)).First(&stored).Error)
	assert.Equal(t, 3, stored.Level)
	assert.Equal(t, 0, stored.XP)
}

func TestComplete_NotFound(t *testing.T) {
	svc, db := newTestService(t)
	seedCharacter(t, db, 1)

	_, err := svc.Complete(context.Background(), 1, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComplete_NotOwned(t *testing.T) {
	svc, db := newTestService(t)
	seedCharacter(t, db, 1)
	quest, err := svc.Create(context.Background(), 1, CreateInput{Title: "x"})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), 2, quest.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComplete_NotIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedCharacter(t, db, 1)

	quest, err := svc.Create(ctx, 1, CreateInput{Title: "x", XPReward: intPtr(40)})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, 1, quest.ID)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, 1, quest.ID)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	// The award happened exactly once.
	var char model.Character
	require.NoError(t, db.Where("user_id = ?", int64(1)).First(&char).Error)
	assert.Equal(t, 1, char.Level)
	assert.Equal(t, 40, char.XP)
}

func TestComplete_CharacterMissing(t *testing.T) {
	svc, _ := newTestService(t)
	quest, err := svc.Create(context.Background(), 1, CreateInput{Title: "x"})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), 1, quest.ID)
	assert.ErrorIs(t, err, ErrCharacterMissing)

	// The failed completion rolled back: the quest is still active.
	active, err := svc.ListByStatus(context.Background(), 1, model.QuestStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestComplete_SpawnsRecurrence(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedCharacter(t, db, 1)

	due := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	quest, err := svc.Create(ctx, 1, CreateInput{
		Title:       "Morning run",
		Description: "around the block",
		XPReward:    intPtr(25),
		DueAt:       &due,
		RepeatType:  model.RepeatDaily,
		Steps:       []StepInput{{Title: "stretch"}, {Title: "run"}},
	})
	require.NoError(t, err)

	// Tick a step so the clone's reset is observable.
	_, err = svc.PatchStep(ctx, 1, quest.Steps[0].ID, StepPatchInput{IsDone: boolPtr(true)})
	require.NoError(t, err)

	result, err := svc.Complete(ctx, 1, quest.ID)
	require.NoError(t, err)
	require.NotNil(t, result.NextQuest)

	next := result.NextQuest
	assert.Equal(t, "Morning run", next.Title)
	assert.Equal(t, "around the block", next.Description)
	assert.Equal(t, 25, next.XPReward)
	assert.Equal(t, model.QuestStatusActive, next.Status)
	assert.Equal(t, model.RepeatDaily, next.RepeatType)
	require.NotNil(t, next.DueAt)
	assert.WithinDuration(t, due.AddDate(0, 0, 1), *next.DueAt, time.Second)

	require.Len(t, next.Steps, 2)
	assert.Equal(t, "stretch", next.Steps[0].Title)
	assert.Equal(t, 0, next.Steps[0].OrderIndex)
	assert.False(t, next.Steps[0].IsDone)
	assert.Equal(t, "run", next.Steps[1].Title)
	assert.False(t, next.Steps[1].IsDone)

	// Exactly one successor exists in storage.
	active, err := svc.ListByStatus(ctx, 1, model.QuestStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, next.ID, active[0].ID)
}

func TestComplete_NoRecurrenceForNone(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedCharacter(t, db, 1)

	quest, err := svc.Create(ctx, 1, CreateInput{Title: "one-off"})
	require.NoError(t, err)

	result, err := svc.Complete(ctx, 1, quest.ID)
	require.NoError(t, err)
	assert.Nil(t, result.NextQuest)

	active, err := svc.ListByStatus(ctx, 1, model.QuestStatusActive)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestComplete_ConcurrentRace(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedCharacter(t, db, 1)

	quest, err := svc.Create(ctx, 1, CreateInput{Title: "contested", XPReward: intPtr(30)})
	require.NoError(t, err)

	const racers = 4
	var wg sync.WaitGroup
	errs := make([]error, racers)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Complete(ctx, 1, quest.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one completion must win")

	var char model.Character
	require.NoError(t, db.Where("user_id = ?", int64(1)).First(&char).Error)
	assert.Equal(t, 1, char.Level)
	assert.Equal(t, 30, char.XP) // awarded exactly once
}
