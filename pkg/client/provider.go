package client

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
)

// Provider fetches a raw forecast payload for a location and derives weather
// facts for a target date from it. Parse is pure so a cached payload can be
// re-read for any date without another network call.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, lat, lng float64) (json.RawMessage, error)
	Parse(raw json.RawMessage, targetDate string, now time.Time) (*models.WeatherFacts, error)
}

// ParseOptions controls how payloads are reduced to facts.
type ParseOptions struct {
	// RefHour is the local hour on the target date that anchors the rainfall
	// window and the representative temperature.
	RefHour int
	// WindowHours is the rainfall accumulation window ending at RefHour.
	WindowHours int
	// TempTolerance is how far the closest hourly sample may be from RefHour.
	TempTolerance time.Duration
	// Location is used when a payload carries UTC timestamps only.
	Location *time.Location
}

func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		RefHour:       9,
		WindowHours:   48,
		TempTolerance: 3 * time.Hour,
		Location:      time.UTC,
	}
}

func (o ParseOptions) withDefaults() ParseOptions {
	d := DefaultParseOptions()
	if o.RefHour < 0 || o.RefHour > 23 {
		o.RefHour = d.RefHour
	}
	if o.WindowHours <= 0 {
		o.WindowHours = d.WindowHours
	}
	if o.TempTolerance <= 0 {
		o.TempTolerance = d.TempTolerance
	}
	if o.Location == nil {
		o.Location = d.Location
	}
	return o
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
