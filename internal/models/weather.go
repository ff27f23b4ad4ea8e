package models

import (
	"time"
)

// FactsSource records which branch of the fetch chain produced a WeatherFacts.
type FactsSource string

const (
	SourceAPI      FactsSource = "api"
	SourceCache    FactsSource = "cache"
	SourceFallback FactsSource = "fallback"
)

type DailyRain struct {
	Date   string  `json:"date"`
	RainMM float64 `json:"rain_mm"`
}

type HourlyTemp struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature"`
}

type TargetConditions struct {
	Date            string       `json:"date"`
	TempAtRefHour   *float64     `json:"temp_at_ref_hour"`
	TempMax         *float64     `json:"temp_max"`
	TempMin         *float64     `json:"temp_min"`
	RainProbability *float64     `json:"rain_probability"`
	RainSum         *float64     `json:"rain_sum"`
	HourlyTemps     []HourlyTemp `json:"hourly_temps"`
}

type CurrentConditions struct {
	Time            *time.Time `json:"time"`
	Temperature     *float64   `json:"temperature"`
	Precipitation   *float64   `json:"precipitation"`
	TempMax         *float64   `json:"temp_max"`
	RainProbability *float64   `json:"rain_probability"`
	RainSum         *float64   `json:"rain_sum"`
}

// WeatherFacts is the normalized weather snapshot for one trail and one target date.
// It is derived from a raw provider payload every time a date is requested.
type WeatherFacts struct {
	Provider            string            `json:"provider"`
	Source              FactsSource       `json:"source"`
	RainfallWindowHours int               `json:"rainfall_window_hours"`
	RainfallAccumulated float64           `json:"rainfall_accumulated"`
	DailyRainfall       []DailyRain       `json:"daily_rainfall"`
	Target              TargetConditions  `json:"target"`
	Current             CurrentConditions `json:"current"`
}

// EmptyFacts is the zero-valued placeholder used when neither a fresh fetch
// nor a cached payload is available for a group.
func EmptyFacts(targetDate string) *WeatherFacts {
	return &WeatherFacts{
		Source:        SourceFallback,
		DailyRainfall: []DailyRain{},
		Target: TargetConditions{
			Date:        targetDate,
			HourlyTemps: []HourlyTemp{},
		},
	}
}

// Float returns a pointer to v. Handy for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
