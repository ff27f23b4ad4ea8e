// Package scoring turns trail metadata and normalized weather facts into a
// 0-100 match score. Everything here is pure: no I/O and no hidden state.
package scoring

import (
	"fmt"
	"math"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
)

const earthRadiusKm = 6371.0

const distanceFloor = 50.0

const (
	mudWeight      = 0.5
	weatherWeight  = 0.3
	distanceWeight = 0.2
)

type Params struct {
	Home            models.HomeLocation
	AvgSpeedKmh     float64
	RoadFactor      float64
	MaxDriveMinutes int

	ComfortLowC     float64
	ComfortHighC    float64
	TempPenaltyPerC float64
	RainProbWeight  float64
	RainProbMaxCost float64
	EnableSlip      bool
	SlipRainMM      float64
	GreenThreshold  int
	YellowThreshold int
}

// DefaultParams mirrors the production defaults in config.
func DefaultParams() Params {
	return Params{
		Home:            models.HomeLocation{Name: "Tel Mond", Lat: 32.2569, Lng: 34.9194},
		AvgSpeedKmh:     80,
		RoadFactor:      1.3,
		MaxDriveMinutes: 75,
		ComfortLowC:     5,
		ComfortHighC:    38,
		TempPenaltyPerC: 5,
		RainProbWeight:  0.5,
		RainProbMaxCost: 50,
		EnableSlip:      true,
		SlipRainMM:      2,
		GreenThreshold:  70,
		YellowThreshold: 40,
	}
}

type Engine struct {
	params Params
}

func NewEngine(params Params) (*Engine, error) {
	if err := ValidateTables(); err != nil {
		return nil, fmt.Errorf("invalid scoring tables: %w", err)
	}
	if params.AvgSpeedKmh <= 0 {
		return nil, fmt.Errorf("average speed must be positive")
	}
	if params.RoadFactor < 1 {
		return nil, fmt.Errorf("road factor must be >= 1")
	}
	if params.ComfortLowC > params.ComfortHighC {
		return nil, fmt.Errorf("comfort band is inverted")
	}
	if params.YellowThreshold > params.GreenThreshold {
		return nil, fmt.Errorf("yellow threshold %d above green threshold %d", params.YellowThreshold, params.GreenThreshold)
	}
	return &Engine{params: params}, nil
}

func (e *Engine) Params() Params {
	return e.params
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Pow(math.Sin(dLng/2), 2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func (e *Engine) DriveMinutes(trail models.Trail) int {
	straight := HaversineKm(e.params.Home.Lat, e.params.Home.Lng, trail.Lat, trail.Lng)
	road := straight * e.params.RoadFactor
	return int(math.Round(road / e.params.AvgSpeedKmh * 60))
}

func (e *Engine) WithinRange(trail models.Trail) bool {
	return e.DriveMinutes(trail) <= e.params.MaxDriveMinutes
}

// MudScore is a non-increasing step function of rainfall. Negative or NaN
// rainfall is treated as dry.
func MudScore(soil models.SoilCategory, rainMM float64) float64 {
	if math.IsNaN(rainMM) || rainMM < 0 {
		rainMM = 0
	}
	p := profileFor(soil)
	for _, s := range p.Steps {
		if rainMM <= s.MaxRainMM {
			return clamp(s.Score)
		}
	}
	return clamp(p.Floor)
}

func (e *Engine) WeatherComfortScore(facts *models.WeatherFacts) float64 {
	score := 100.0
	if facts == nil {
		return score
	}

	if prob := facts.Target.RainProbability; prob != nil && !math.IsNaN(*prob) {
		cost := math.Max(0, *prob) * e.params.RainProbWeight
		score -= math.Min(cost, e.params.RainProbMaxCost)
	}

	if t := facts.Target.TempAtRefHour; t != nil && !math.IsNaN(*t) {
		if *t < e.params.ComfortLowC {
			score -= (e.params.ComfortLowC - *t) * e.params.TempPenaltyPerC
		}
		if *t > e.params.ComfortHighC {
			score -= (*t - e.params.ComfortHighC) * e.params.TempPenaltyPerC
		}
	}

	return clamp(score)
}

func DistanceScore(driveMinutes int) float64 {
	switch {
	case driveMinutes <= 20:
		return 100
	case driveMinutes <= 40:
		return 90
	case driveMinutes <= 60:
		return 75
	default:
		// One point per minute past the last step, never below the floor.
		return math.Max(distanceFloor, 75-float64(driveMinutes-60))
	}
}

func (e *Engine) SlipPenalty(rockType string, rainMM float64) int {
	if !e.params.EnableSlip || rainMM < e.params.SlipRainMM {
		return 0
	}
	return rockPenalty(rockType)
}

func (e *Engine) MatchScore(trail models.Trail, facts *models.WeatherFacts) models.MatchScore {
	if facts == nil {
		facts = models.EmptyFacts("")
	}

	rain := facts.RainfallAccumulated
	if math.IsNaN(rain) || rain < 0 {
		rain = 0
	}

	drive := e.DriveMinutes(trail)
	mud := MudScore(trail.Soil, rain)
	comfort := e.WeatherComfortScore(facts)
	distance := DistanceScore(drive)
	slip := e.SlipPenalty(trail.RockType, rain)

	raw := mud*mudWeight + comfort*weatherWeight + distance*distanceWeight - float64(slip)
	overall := int(math.Round(clamp(raw)))

	return models.MatchScore{
		Overall: overall,
		Components: models.ScoreComponents{
			Mud:            int(math.Round(mud)),
			WeatherComfort: int(math.Round(comfort)),
			Distance:       int(math.Round(distance)),
		},
		DriveMinutes:        drive,
		SlipPenalty:         slip,
		MudFactor:           profileFor(trail.Soil).MudFactor,
		RockType:            trail.RockType,
		Color:               e.Color(overall),
		Status:              StatusLabel(overall),
		RainfallAccumulated: rain,
		TempAtRefHour:       facts.Target.TempAtRefHour,
		RainProbability:     facts.Target.RainProbability,
	}
}

func (e *Engine) Color(score int) models.ScoreColor {
	switch {
	case score >= e.params.GreenThreshold:
		return models.ColorGreen
	case score >= e.params.YellowThreshold:
		return models.ColorYellow
	default:
		return models.ColorRed
	}
}

func StatusLabel(score int) string {
	switch {
	case score >= 80:
		return "Perfect Conditions"
	case score >= 70:
		return "Good to Ride"
	case score >= 55:
		return "Rideable, Expect Mud"
	case score >= 40:
		return "Risky / Tacky"
	case score >= 20:
		return "Not Recommended"
	default:
		return "Don't Go - Muddy"
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
