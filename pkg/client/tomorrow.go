package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
)

const TomorrowName = "tomorrow"

var ErrNoTomorrowKey = errors.New("tomorrow.io api key not configured")

// TomorrowClient talks to Tomorrow.io either directly with an API key or via a
// relay that holds the key server-side.
type TomorrowClient struct {
	*BaseClient
	apiKey   string
	baseURL  string
	relayURL string
	options  ParseOptions
}

type TomorrowConfig struct {
	APIKey   string
	BaseURL  string
	RelayURL string
}

type TomorrowForecastResponse struct {
	Timelines *struct {
		Hourly []TomorrowInterval `json:"hourly"`
		Daily  []TomorrowInterval `json:"daily"`
	} `json:"timelines"`
	Location struct {
		Lat  float64 `json:"lat"`
		Lon  float64 `json:"lon"`
		Name string  `json:"name,omitempty"`
	} `json:"location"`
}

type TomorrowInterval struct {
	Time   string         `json:"time"`
	Values TomorrowValues `json:"values"`
}

type TomorrowValues struct {
	Temperature                 *float64 `json:"temperature,omitempty"`
	TemperatureMax              *float64 `json:"temperatureMax,omitempty"`
	TemperatureMin              *float64 `json:"temperatureMin,omitempty"`
	TemperatureAvg              *float64 `json:"temperatureAvg,omitempty"`
	PrecipitationProbability    *float64 `json:"precipitationProbability,omitempty"`
	PrecipitationProbabilityMax *float64 `json:"precipitationProbabilityMax,omitempty"`
	PrecipitationProbabilityAvg *float64 `json:"precipitationProbabilityAvg,omitempty"`
	RainAccumulation            *float64 `json:"rainAccumulation,omitempty"`
	RainAccumulationSum         *float64 `json:"rainAccumulationSum,omitempty"`
}

func NewTomorrowClient(cfg TomorrowConfig, options ParseOptions, config ClientConfig, logger *zap.Logger) *TomorrowClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tomorrow.io/v4"
	}
	return &TomorrowClient{
		BaseClient: NewBaseClient(TomorrowName, config, logger),
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		relayURL:   cfg.RelayURL,
		options:    options.withDefaults(),
	}
}

func (c *TomorrowClient) Name() string {
	return TomorrowName
}

// HasKey reports whether the client can call Tomorrow.io directly.
func (c *TomorrowClient) HasKey() bool {
	return c.apiKey != ""
}

func (c *TomorrowClient) Fetch(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
	if c.HasKey() {
		return c.FetchDirect(ctx, lat, lng)
	}

	q := url.Values{}
	q.Set("lat", formatCoord(lat))
	q.Set("lng", formatCoord(lng))

	sep := "?"
	if strings.Contains(c.relayURL, "?") {
		sep = "&"
	}
	data, err := c.Get(ctx, c.relayURL+sep+q.Encode())
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// FetchDirect calls Tomorrow.io with the configured key. The relay endpoint
// uses it to serve clients that must not see the key.
func (c *TomorrowClient) FetchDirect(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
	if !c.HasKey() {
		return nil, ErrNoTomorrowKey
	}

	q := url.Values{}
	q.Set("location", formatCoord(lat)+","+formatCoord(lng))
	q.Set("timesteps", "1h,1d")
	q.Set("units", "metric")
	q.Set("apikey", c.apiKey)

	data, err := c.Get(ctx, c.baseURL+"/weather/forecast?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (c *TomorrowClient) Parse(raw json.RawMessage, targetDate string, now time.Time) (*models.WeatherFacts, error) {
	var response TomorrowForecastResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, &MalformedPayloadError{Provider: TomorrowName, Reason: "decoding payload", Err: err}
	}
	if response.Timelines == nil || len(response.Timelines.Daily) == 0 {
		return nil, &MalformedPayloadError{Provider: TomorrowName, Reason: "missing daily timeline"}
	}

	loc := c.options.Location
	s := series{loc: loc}

	for _, d := range response.Timelines.Daily {
		t, err := time.Parse(time.RFC3339, d.Time)
		if err != nil {
			c.logger.Debug("Skipping unparseable daily timestamp",
				zap.String("time", d.Time),
				zap.Error(err))
			continue
		}
		prob := d.Values.PrecipitationProbabilityMax
		if prob == nil {
			prob = d.Values.PrecipitationProbabilityAvg
		}
		s.daily = append(s.daily, dailyPoint{
			Date:     t.In(loc).Format(dateLayout),
			TempMax:  d.Values.TemperatureMax,
			TempMin:  d.Values.TemperatureMin,
			TempAvg:  d.Values.TemperatureAvg,
			RainProb: prob,
			RainSum:  d.Values.RainAccumulationSum,
		})
	}

	for _, h := range response.Timelines.Hourly {
		t, err := time.Parse(time.RFC3339, h.Time)
		if err != nil {
			continue
		}
		s.hourly = append(s.hourly, hourlyPoint{
			Time:     t.In(loc),
			Temp:     h.Values.Temperature,
			Precip:   h.Values.RainAccumulation,
			RainProb: h.Values.PrecipitationProbability,
		})
	}

	facts, err := c.options.normalize(TomorrowName, s, targetDate, now)
	if err != nil {
		return nil, fmt.Errorf("normalizing forecast: %w", err)
	}
	return facts, nil
}
