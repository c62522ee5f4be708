// Package character manages the single role-play character each user owns.
package character

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamelive/server/assets"
	"github.com/gamelive/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ValidationError describes a rejected character payload. The message
// names the violated rule and is safe to return to the client.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// Input is the full character payload. Saves are whole-record: the
// client always submits every descriptive field.
type Input struct {
	Name         string `json:"name"`
	Age          int    `json:"age"`
	HeightCM     int    `json:"height_cm"`
	WeightKG     int    `json:"weight_kg"`
	HairStyle    string `json:"hair_style"`
	HairColor    string `json:"hair_color"`
	OutfitTop    string `json:"outfit_top"`
	OutfitBottom string `json:"outfit_bottom"`
	OutfitShoes  string `json:"outfit_shoes"`
}

// Service handles character reads and writes for authenticated users.
type Service struct {
	db      *gorm.DB
	catalog *assets.Catalog
	logger  *zap.Logger
}

// NewService creates a character Service. A nil catalog degrades to an
// empty one, rejecting every cosmetic selection.
func NewService(db *gorm.DB, catalog *assets.Catalog, logger *zap.Logger) *Service {
	if catalog == nil {
		catalog = assets.Empty()
	}
	return &Service{db: db, catalog: catalog, logger: logger}
}

// Get returns the user's character, or nil when none exists yet.
func (svc *Service) Get(ctx context.Context, userID int64) (*model.Character, error) {
	var char model.Character
	err := svc.db.WithContext(ctx).Where("user_id = ?", userID).First(&char).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &char, nil
}

// Validate checks the payload against field rules and the asset catalog.
//
// hair_color is checked against the hair ID set, mirroring the web
// client's catalog layout where colors are variants of hair assets.
func (svc *Service) Validate(in Input) error {
	required := []struct {
		name  string
		empty bool
	}{
		{"name", in.Name == ""},
		{"age", in.Age == 0},
		{"height_cm", in.HeightCM == 0},
		{"weight_kg", in.WeightKG == 0},
		{"hair_style", in.HairStyle == ""},
		{"hair_color", in.HairColor == ""},
		{"outfit_top", in.OutfitTop == ""},
		{"outfit_bottom", in.OutfitBottom == ""},
		{"outfit_shoes", in.OutfitShoes == ""},
	}
	for _, f := range required {
		if f.empty {
			return ValidationError(fmt.Sprintf("Field %s is required", f.name))
		}
	}
	if in.Age < 1 || in.Age > 120 {
		return ValidationError("Invalid age")
	}
	if in.HeightCM < 50 || in.HeightCM > 250 {
		return ValidationError("Invalid height")
	}
	if in.WeightKG < 20 || in.WeightKG > 300 {
		return ValidationError("Invalid weight")
	}
	if !svc.catalog.Hair[in.HairStyle] {
		return ValidationError("Invalid hair_style asset")
	}
	if !svc.catalog.Hair[in.HairColor] {
		return ValidationError("Invalid hair_color asset")
	}
	if !svc.catalog.Top[in.OutfitTop] {
		return ValidationError("Invalid outfit_top asset")
	}
	if !svc.catalog.Bottom[in.OutfitBottom] {
		return ValidationError("Invalid outfit_bottom asset")
	}
	if !svc.catalog.Shoes[in.OutfitShoes] {
		return ValidationError("Invalid outfit_shoes asset")
	}
	return nil
}

// Save validates and inserts-or-updates the user's character, keyed by
// user_id. Level and XP are never touched here; only the quest lifecycle
// mutates them.
func (svc *Service) Save(ctx context.Context, userID int64, in Input) (*model.Character, error) {
	if err := svc.Validate(in); err != nil {
		return nil, err
	}

	char := &model.Character{
		UserID:       userID,
		Name:         in.Name,
		Age:          in.Age,
		HeightCM:     in.HeightCM,
		WeightKG:     in.WeightKG,
		HairStyle:    in.HairStyle,
		HairColor:    in.HairColor,
		OutfitTop:    in.OutfitTop,
		OutfitBottom: in.OutfitBottom,
		OutfitShoes:  in.OutfitShoes,
		Level:        1,
	}
	err := svc.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "age", "height_cm", "weight_kg",
			"hair_style", "hair_color",
			"outfit_top", "outfit_bottom", "outfit_shoes",
			"updated_at",
		}),
	}).Create(char).Error
	if err != nil {
		return nil, err
	}

	// Reload: on the conflict path the returned struct carries the insert
	// candidate's zero ID and default level/xp, not the stored row.
	var saved model.Character
	if err := svc.db.WithContext(ctx).Where("user_id = ?", userID).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}
