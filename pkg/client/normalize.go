package client

import (
	"fmt"
	"math"
	"time"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
)

const dateLayout = "2006-01-02"

type dailyPoint struct {
	Date     string
	TempMax  *float64
	TempMin  *float64
	TempAvg  *float64
	RainProb *float64
	RainSum  *float64
}

type hourlyPoint struct {
	Time     time.Time
	Temp     *float64
	Precip   *float64
	RainProb *float64
}

// series is a provider-neutral view of a forecast payload. Hourly times are
// already in the location's local zone.
type series struct {
	loc    *time.Location
	daily  []dailyPoint
	hourly []hourlyPoint
}

func (o ParseOptions) normalize(provider string, s series, targetDate string, now time.Time) (*models.WeatherFacts, error) {
	if len(s.daily) == 0 {
		return nil, &MalformedPayloadError{Provider: provider, Reason: "missing daily series"}
	}
	loc := s.loc
	if loc == nil {
		loc = o.Location
	}

	day, err := time.ParseInLocation(dateLayout, targetDate, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid target date %q: %w", targetDate, err)
	}
	ref := day.Add(time.Duration(o.RefHour) * time.Hour)

	facts := &models.WeatherFacts{
		Provider:            provider,
		Source:              models.SourceAPI,
		RainfallWindowHours: o.WindowHours,
		RainfallAccumulated: roundTenth(o.windowRain(s, day, ref)),
		DailyRainfall:       make([]models.DailyRain, 0, len(s.daily)),
		Target: models.TargetConditions{
			Date:        targetDate,
			HourlyTemps: []models.HourlyTemp{},
		},
	}

	for _, d := range s.daily {
		facts.DailyRainfall = append(facts.DailyRainfall, models.DailyRain{
			Date:   d.Date,
			RainMM: roundTenth(value(d.RainSum)),
		})
	}

	target, hasTarget := findDay(s.daily, targetDate)
	if hasTarget {
		facts.Target.TempMax = target.TempMax
		facts.Target.TempMin = target.TempMin
		facts.Target.RainSum = target.RainSum
	}

	facts.Target.TempAtRefHour = o.refTemperature(s.hourly, ref, target, hasTarget)

	var prob *float64
	if hasTarget {
		prob = target.RainProb
	}
	for _, h := range s.hourly {
		if h.Time.Format(dateLayout) != targetDate {
			continue
		}
		if h.RainProb != nil && (prob == nil || *h.RainProb > *prob) {
			prob = h.RainProb
		}
		if h.Temp != nil {
			facts.Target.HourlyTemps = append(facts.Target.HourlyTemps, models.HourlyTemp{
				Time:        h.Time,
				Temperature: *h.Temp,
			})
		}
	}
	facts.Target.RainProbability = prob

	facts.Current = current(s, now.In(loc))

	return facts, nil
}

// windowRain sums precipitation over (ref-window, ref]. Hourly samples are
// used where they exist. For window hours a day's hourly data does not cover,
// the part of that day's daily total not explained by its hourly samples is
// spread evenly over the day's uncovered hours. Without any hourly
// precipitation in the window it falls back to daily totals of the days
// preceding the target date.
func (o ParseOptions) windowRain(s series, day, ref time.Time) float64 {
	start := ref.Add(-time.Duration(o.WindowHours) * time.Hour)

	type dayRain struct {
		slots      int
		covered    int
		windowSum  float64
		daySamples int
		daySum     float64
	}
	days := make(map[string]*dayRain)
	var order []string
	for t := start.Add(time.Hour); !t.After(ref); t = t.Add(time.Hour) {
		date := t.Format(dateLayout)
		d, ok := days[date]
		if !ok {
			d = &dayRain{}
			days[date] = d
			order = append(order, date)
		}
		d.slots++
	}

	samples := 0
	for _, h := range s.hourly {
		if h.Precip == nil {
			continue
		}
		d, ok := days[h.Time.Format(dateLayout)]
		if !ok {
			continue
		}
		p := rainMM(*h.Precip)
		d.daySamples++
		d.daySum += p
		if h.Time.After(start) && !h.Time.After(ref) {
			d.covered++
			d.windowSum += p
			samples++
		}
	}
	if samples == 0 {
		return dailyWindowRain(s, day, o.WindowHours)
	}

	total := 0.0
	for _, date := range order {
		d := days[date]
		total += d.windowSum

		missing := d.slots - d.covered
		if missing <= 0 {
			continue
		}
		daily, ok := findDay(s.daily, date)
		if !ok {
			continue
		}
		rest := rainMM(value(daily.RainSum)) - d.daySum
		uncovered := hoursIn(date, day.Location()) - d.daySamples
		if rest <= 0 || uncovered <= 0 {
			continue
		}
		total += rest * float64(min(missing, uncovered)) / float64(uncovered)
	}
	return total
}

func dailyWindowRain(s series, day time.Time, windowHours int) float64 {
	total := 0.0
	days := int(math.Ceil(float64(windowHours) / 24))
	for i := 1; i <= days; i++ {
		date := day.AddDate(0, 0, -i).Format(dateLayout)
		if d, ok := findDay(s.daily, date); ok {
			total += rainMM(value(d.RainSum))
		}
	}
	return total
}

func rainMM(v float64) float64 {
	if v > 0 && !math.IsNaN(v) {
		return v
	}
	return 0
}

// hoursIn is the length of a local calendar day, 23 or 25 on DST changes.
func hoursIn(date string, loc *time.Location) int {
	d, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return 24
	}
	return int(d.AddDate(0, 0, 1).Sub(d).Hours())
}

func (o ParseOptions) refTemperature(hourly []hourlyPoint, ref time.Time, target dailyPoint, hasTarget bool) *float64 {
	var best *float64
	bestGap := o.TempTolerance + time.Nanosecond
	for _, h := range hourly {
		if h.Temp == nil || math.IsNaN(*h.Temp) {
			continue
		}
		gap := absDuration(h.Time.Sub(ref))
		if gap < bestGap {
			best = h.Temp
			bestGap = gap
		}
	}
	if best != nil {
		return best
	}
	if !hasTarget {
		return nil
	}
	if target.TempAvg != nil {
		return target.TempAvg
	}
	if target.TempMin != nil && target.TempMax != nil {
		return models.Float((*target.TempMin + *target.TempMax) / 2)
	}
	return nil
}

func current(s series, now time.Time) models.CurrentConditions {
	var cur models.CurrentConditions

	var closest *hourlyPoint
	var gap time.Duration
	for i := range s.hourly {
		h := &s.hourly[i]
		if h.Temp == nil && h.Precip == nil {
			continue
		}
		g := absDuration(h.Time.Sub(now))
		if closest == nil || g < gap {
			closest = h
			gap = g
		}
	}
	if closest != nil {
		t := closest.Time
		cur.Time = &t
		cur.Temperature = closest.Temp
		cur.Precipitation = closest.Precip
	}

	if today, ok := findDay(s.daily, now.Format(dateLayout)); ok {
		cur.TempMax = today.TempMax
		cur.RainProbability = today.RainProb
		cur.RainSum = today.RainSum
	}
	return cur
}

func findDay(daily []dailyPoint, date string) (dailyPoint, bool) {
	for _, d := range daily {
		if d.Date == date {
			return d, true
		}
	}
	return dailyPoint{}, false
}

func value(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return *v
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
