package scoring

import (
	"fmt"
	"strings"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
)

// MudStep maps rainfall up to and including MaxRainMM onto Score.
type MudStep struct {
	MaxRainMM float64
	Score     float64
}

// SoilProfile describes how one soil category responds to accumulated rain.
// Rainfall above the last step yields Floor.
type SoilProfile struct {
	MudFactor float64
	Steps     []MudStep
	Floor     float64
}

// SoilProfiles is the mud curve for every soil category.
var SoilProfiles = map[models.SoilCategory]SoilProfile{
	models.SoilHeavyClay: {
		MudFactor: 2.5,
		Steps:     []MudStep{{0.5, 90}, {2, 55}, {5, 20}, {8, 8}},
		Floor:     0,
	},
	models.SoilClaySilt: {
		MudFactor: 2.0,
		Steps:     []MudStep{{1, 95}, {4, 65}, {8, 35}, {15, 15}},
		Floor:     5,
	},
	models.SoilClay: {
		MudFactor: 2.2,
		Steps:     []MudStep{{1, 90}, {5, 45}, {10, 10}},
		Floor:     0,
	},
	models.SoilLoam: {
		MudFactor: 1.5,
		Steps:     []MudStep{{2, 95}, {6, 75}, {12, 45}, {20, 20}},
		Floor:     8,
	},
	models.SoilSandyLoam: {
		MudFactor: 1.2,
		Steps:     []MudStep{{4, 100}, {10, 85}, {20, 60}, {30, 35}},
		Floor:     20,
	},
	models.SoilSand: {
		MudFactor: 0.6,
		Steps:     []MudStep{{10, 100}, {25, 85}},
		Floor:     65,
	},
	models.SoilDesert: {
		MudFactor: 0.4,
		Steps:     []MudStep{{20, 100}, {40, 75}},
		Floor:     30,
	},
	models.SoilChalk: {
		MudFactor: 0.8,
		Steps:     []MudStep{{5, 100}, {15, 85}, {25, 65}},
		Floor:     40,
	},
	models.SoilTerraRossa: {
		MudFactor: 1.6,
		Steps:     []MudStep{{3, 95}, {8, 70}, {15, 40}},
		Floor:     15,
	},
	models.SoilMixed: {
		MudFactor: 1.0,
		Steps:     []MudStep{{3, 95}, {10, 65}, {20, 35}},
		Floor:     10,
	},
}

// SoilNames maps catalog soil descriptions (lower-cased) onto categories.
var SoilNames = map[string]models.SoilCategory{
	"heavy clay":  models.SoilHeavyClay,
	"clay/silt":   models.SoilClaySilt,
	"clay":        models.SoilClay,
	"hamra":       models.SoilClay,
	"loam":        models.SoilLoam,
	"sandy loam":  models.SoilSandyLoam,
	"sand/loess":  models.SoilSand,
	"sand":        models.SoilSand,
	"loess":       models.SoilSand,
	"desert":      models.SoilDesert,
	"chalk":       models.SoilChalk,
	"limestone":   models.SoilChalk,
	"rock":        models.SoilChalk,
	"terra rossa": models.SoilTerraRossa,
	"mixed":       models.SoilMixed,
}

// RockPenalties is the slip penalty for rock types that get slick when wet.
// Rock types missing from the table carry no penalty.
var RockPenalties = map[string]int{
	"limestone": 10,
	"basalt":    15,
	"chalk":     8,
	"sandstone": 0,
	"granite":   5,
}

// ResolveSoil maps a catalog soil description onto a category. The boolean is
// false when the description is unknown and the mixed default was used.
func ResolveSoil(name string) (models.SoilCategory, bool) {
	if cat, ok := SoilNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return cat, true
	}
	return models.SoilMixed, false
}

func rockPenalty(rock string) int {
	return RockPenalties[strings.ToLower(strings.TrimSpace(rock))]
}

func profileFor(cat models.SoilCategory) SoilProfile {
	if p, ok := SoilProfiles[cat]; ok {
		return p
	}
	return SoilProfiles[models.SoilMixed]
}

// ValidateTables checks the lookup tables for internal consistency.
func ValidateTables() error {
	if _, ok := SoilProfiles[models.SoilMixed]; !ok {
		return fmt.Errorf("soil profiles: missing %q default", models.SoilMixed)
	}

	for cat, p := range SoilProfiles {
		if len(p.Steps) == 0 {
			return fmt.Errorf("soil profile %s: no steps", cat)
		}
		if p.MudFactor <= 0 {
			return fmt.Errorf("soil profile %s: mud factor must be positive", cat)
		}
		prevRain := -1.0
		prevScore := 100.0
		for i, s := range p.Steps {
			if s.MaxRainMM <= prevRain {
				return fmt.Errorf("soil profile %s: step %d threshold %.1f not ascending", cat, i, s.MaxRainMM)
			}
			if s.Score < 0 || s.Score > 100 {
				return fmt.Errorf("soil profile %s: step %d score %.1f out of range", cat, i, s.Score)
			}
			if s.Score > prevScore {
				return fmt.Errorf("soil profile %s: step %d score increases", cat, i)
			}
			prevRain = s.MaxRainMM
			prevScore = s.Score
		}
		if p.Floor < 0 || p.Floor > prevScore {
			return fmt.Errorf("soil profile %s: floor %.1f breaks the curve", cat, p.Floor)
		}
	}

	for name, cat := range SoilNames {
		if _, ok := SoilProfiles[cat]; !ok {
			return fmt.Errorf("soil name %q maps to unknown category %s", name, cat)
		}
	}

	for rock, penalty := range RockPenalties {
		if penalty < 0 || penalty > 100 {
			return fmt.Errorf("rock penalty %q: %d out of range", rock, penalty)
		}
	}

	return nil
}
