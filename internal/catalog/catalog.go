// Package catalog loads the trail list and home location.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
	"github.com/bobby-s-dev/ride-or-mud/internal/scoring"
)

//go:embed trails.yaml
var defaultCatalog []byte

type Catalog struct {
	Home   models.HomeLocation `yaml:"home"`
	Trails []models.Trail      `yaml:"trails" validate:"required,min=1,dive"`
}

// Load reads a catalog from path, or the built-in catalog when path is empty.
func Load(path string, logger *zap.Logger) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog, logger)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data, logger)
}

// Parse decodes and validates a YAML catalog and resolves every trail's soil
// category. Unknown soil types fall back to the mixed profile with a warning.
func Parse(data []byte, logger *zap.Logger) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	if err := validator.New().Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Trails))
	for i := range c.Trails {
		t := &c.Trails[i]
		if seen[t.ID] {
			return nil, fmt.Errorf("invalid catalog: duplicate trail id %q", t.ID)
		}
		seen[t.ID] = true

		soil, known := scoring.ResolveSoil(t.SoilType)
		if !known {
			logger.Warn("Unknown soil type, using mixed profile",
				zap.String("trail", t.ID),
				zap.String("soil_type", t.SoilType))
		}
		t.Soil = soil
	}

	logger.Debug("Catalog loaded",
		zap.String("home", c.Home.Name),
		zap.Int("trails", len(c.Trails)))

	return &c, nil
}
