package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
)

const OpenMeteoName = "openmeteo"

const openMeteoHourLayout = "2006-01-02T15:04"

var (
	openMeteoDaily = []string{
		"temperature_2m_max",
		"temperature_2m_min",
		"precipitation_probability_max",
		"precipitation_sum",
	}
	openMeteoHourly = []string{
		"temperature_2m",
		"precipitation",
		"precipitation_probability",
	}
)

type OpenMeteoClient struct {
	*BaseClient
	baseURL string
	options ParseOptions
}

type OpenMeteoForecastResponse struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Timezone         string  `json:"timezone"`
	UTCOffsetSeconds int     `json:"utc_offset_seconds"`
	Daily            *struct {
		Time                        []string   `json:"time"`
		Temperature2MMax            []*float64 `json:"temperature_2m_max"`
		Temperature2MMin            []*float64 `json:"temperature_2m_min"`
		PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
		PrecipitationSum            []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
	Hourly *struct {
		Time                     []string   `json:"time"`
		Temperature2M            []*float64 `json:"temperature_2m"`
		Precipitation            []*float64 `json:"precipitation"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

func NewOpenMeteoClient(baseURL string, options ParseOptions, config ClientConfig, logger *zap.Logger) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1"
	}
	return &OpenMeteoClient{
		BaseClient: NewBaseClient(OpenMeteoName, config, logger),
		baseURL:    strings.TrimRight(baseURL, "/"),
		options:    options.withDefaults(),
	}
}

func (c *OpenMeteoClient) Name() string {
	return OpenMeteoName
}

// Fetch requests four past days and six forecast days so the rainfall window
// is covered for every selectable target date.
func (c *OpenMeteoClient) Fetch(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lng))
	q.Set("daily", strings.Join(openMeteoDaily, ","))
	q.Set("hourly", strings.Join(openMeteoHourly, ","))
	q.Set("past_days", "4")
	q.Set("forecast_days", "6")
	q.Set("timezone", "auto")

	data, err := c.Get(ctx, c.baseURL+"/forecast?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (c *OpenMeteoClient) Parse(raw json.RawMessage, targetDate string, now time.Time) (*models.WeatherFacts, error) {
	var response OpenMeteoForecastResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, &MalformedPayloadError{Provider: OpenMeteoName, Reason: "decoding payload", Err: err}
	}
	if response.Daily == nil || len(response.Daily.Time) == 0 {
		return nil, &MalformedPayloadError{Provider: OpenMeteoName, Reason: "missing daily series"}
	}

	loc := payloadLocation(response.Timezone, response.UTCOffsetSeconds)
	s := series{loc: loc}

	d := response.Daily
	for i, date := range d.Time {
		s.daily = append(s.daily, dailyPoint{
			Date:     date,
			TempMax:  at(d.Temperature2MMax, i),
			TempMin:  at(d.Temperature2MMin, i),
			RainProb: at(d.PrecipitationProbabilityMax, i),
			RainSum:  at(d.PrecipitationSum, i),
		})
	}

	if h := response.Hourly; h != nil {
		for i, stamp := range h.Time {
			t, err := time.ParseInLocation(openMeteoHourLayout, stamp, loc)
			if err != nil {
				c.logger.Debug("Skipping unparseable hourly timestamp",
					zap.String("time", stamp),
					zap.Error(err))
				continue
			}
			s.hourly = append(s.hourly, hourlyPoint{
				Time:     t,
				Temp:     at(h.Temperature2M, i),
				Precip:   at(h.Precipitation, i),
				RainProb: at(h.PrecipitationProbability, i),
			})
		}
	}

	facts, err := c.options.normalize(OpenMeteoName, s, targetDate, now)
	if err != nil {
		return nil, fmt.Errorf("normalizing forecast: %w", err)
	}
	return facts, nil
}

// payloadLocation prefers the named zone so DST changes inside the forecast
// range are honoured. The fixed offset is used when the name is unknown.
func payloadLocation(name string, offsetSeconds int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone(name, offsetSeconds)
}
