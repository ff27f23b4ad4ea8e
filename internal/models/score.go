package models

type ScoreColor string

const (
	ColorGreen  ScoreColor = "green"
	ColorYellow ScoreColor = "yellow"
	ColorRed    ScoreColor = "red"
)

type ScoreComponents struct {
	Mud            int `json:"mud"`
	WeatherComfort int `json:"weather_comfort"`
	Distance       int `json:"distance"`
}

type MatchScore struct {
	Overall             int             `json:"score"`
	Components          ScoreComponents `json:"components"`
	DriveMinutes        int             `json:"drive_minutes"`
	SlipPenalty         int             `json:"slip_penalty"`
	MudFactor           float64         `json:"mud_factor"`
	RockType            string          `json:"rock_type"`
	Color               ScoreColor      `json:"color"`
	Status              string          `json:"status"`
	RainfallAccumulated float64         `json:"rainfall_accumulated"`
	TempAtRefHour       *float64        `json:"temp_at_ref_hour"`
	RainProbability     *float64        `json:"rain_probability"`
}

type Recommendation struct {
	Trail Trail         `json:"trail"`
	Facts *WeatherFacts `json:"weather"`
	Score MatchScore    `json:"score"`
}

type ScoreSummary struct {
	Green  int `json:"green"`
	Yellow int `json:"yellow"`
	Red    int `json:"red"`
}
