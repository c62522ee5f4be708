package assets

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"
)

// catalogItem is one selectable cosmetic entry in the catalog file.
type catalogItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// catalogFile mirrors public/assets/catalog.json.
type catalogFile struct {
	Base   []catalogItem `json:"base"`
	Hair   []catalogItem `json:"hair"`
	Top    []catalogItem `json:"top"`
	Bottom []catalogItem `json:"bottom"`
	Shoes  []catalogItem `json:"shoes"`
}

// Catalog holds the selectable cosmetic asset IDs per category. It is
// loaded once at startup and read-only afterwards, so it is safe to
// share across requests.
type Catalog struct {
	Hair   map[string]bool
	Top    map[string]bool
	Bottom map[string]bool
	Shoes  map[string]bool
}

func idSet(items []catalogItem) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it.ID] = true
	}
	return set
}

// Empty returns a catalog with no valid IDs. Character creation fails
// validation against it, which is the documented degraded mode when the
// catalog file is unavailable.
func Empty() *Catalog {
	return &Catalog{
		Hair:   map[string]bool{},
		Top:    map[string]bool{},
		Bottom: map[string]bool{},
		Shoes:  map[string]bool{},
	}
}

// Load reads the catalog JSON at path. A missing or unreadable file
// degrades to an empty catalog with a warning rather than failing startup.
func Load(path string, logger *zap.Logger) *Catalog {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("asset catalog not found, using empty catalog",
			zap.String("path", path), zap.Error(err))
		return Empty()
	}
	var file catalogFile
	if err := json.Unmarshal(content, &file); err != nil {
		logger.Warn("asset catalog unreadable, using empty catalog",
			zap.String("path", path), zap.Error(err))
		return Empty()
	}
	return &Catalog{
		Hair:   idSet(file.Hair),
		Top:    idSet(file.Top),
		Bottom: idSet(file.Bottom),
		Shoes:  idSet(file.Shoes),
	}
}
