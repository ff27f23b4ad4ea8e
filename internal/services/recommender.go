package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
	"github.com/bobby-s-dev/ride-or-mud/internal/scoring"
)

const (
	dateLayout = "2006-01-02"

	// MaxForecastDays is how far ahead a target date may be selected.
	MaxForecastDays = 5
)

var ErrDateOutOfRange = errors.New("target date out of range")

type ServedBy string

const (
	ServedByFetch ServedBy = "fetch"
	ServedByCache ServedBy = "cache"
)

type RecommendationSet struct {
	Date            string                  `json:"date"`
	DateLabel       string                  `json:"date_label"`
	Provider        string                  `json:"provider"`
	ServedBy        ServedBy                `json:"served_by"`
	RunID           string                  `json:"run_id,omitempty"`
	GeneratedAt     time.Time               `json:"generated_at"`
	Recommendations []models.Recommendation `json:"recommendations"`
	Summary         models.ScoreSummary     `json:"summary"`
	AllFailed       bool                    `json:"all_failed"`
	// Trail counts per facts source.
	Fresh           int                     `json:"fresh"`
	Cached          int                     `json:"cached"`
	Fallback        int                     `json:"fallback"`
	// Unscored lists in-range trails left out of a cache rescore because
	// their group had no live cached forecast.
	Unscored        []string                `json:"unscored,omitempty"`
}

// Recommender ranks the catalog trails within driving range for a date.
type Recommender struct {
	trails       []models.Trail
	engine       *scoring.Engine
	orchestrator *Orchestrator
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time
}

func NewRecommender(trails []models.Trail, engine *scoring.Engine, orchestrator *Orchestrator, loc *time.Location, logger *zap.Logger) *Recommender {
	if loc == nil {
		loc = time.Local
	}
	return &Recommender{
		trails:       trails,
		engine:       engine,
		orchestrator: orchestrator,
		logger:       logger,
		loc:          loc,
		now:          time.Now,
	}
}

// WithClock replaces the time source used for date defaults and labels.
func (r *Recommender) WithClock(now func() time.Time) *Recommender {
	r.now = now
	return r
}

func (r *Recommender) Engine() *scoring.Engine {
	return r.engine
}

func (r *Recommender) Trails() []models.Trail {
	return r.trails
}

// InRange returns the catalog trails within the maximum drive time.
func (r *Recommender) InRange() []models.Trail {
	out := make([]models.Trail, 0, len(r.trails))
	for _, t := range r.trails {
		if r.engine.WithinRange(t) {
			out = append(out, t)
		}
	}
	return out
}

// ResolveDate defaults an empty date to tomorrow and checks that the date
// lies between today and MaxForecastDays ahead.
func (r *Recommender) ResolveDate(raw string) (string, error) {
	today := r.today()
	if raw == "" {
		return today.AddDate(0, 0, 1).Format(dateLayout), nil
	}

	day, err := time.ParseInLocation(dateLayout, raw, r.loc)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	if day.Before(today) || day.After(today.AddDate(0, 0, MaxForecastDays)) {
		return "", fmt.Errorf("%w: %s is not between %s and %s", ErrDateOutOfRange, raw,
			today.Format(dateLayout), today.AddDate(0, 0, MaxForecastDays).Format(dateLayout))
	}
	return raw, nil
}

// DateLabel renders a date as Today, Tomorrow or a short weekday label.
func (r *Recommender) DateLabel(date string) string {
	day, err := time.ParseInLocation(dateLayout, date, r.loc)
	if err != nil {
		return date
	}
	today := r.today()
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, 1)):
		return "Tomorrow"
	default:
		return day.Format("Mon, Jan 2")
	}
}

func (r *Recommender) today() time.Time {
	now := r.now().In(r.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
}

// Recommend fetches weather for every in-range trail and ranks them.
func (r *Recommender) Recommend(ctx context.Context, date string) *RecommendationSet {
	trails := r.InRange()
	result := r.orchestrator.FetchAll(ctx, trails, date)

	set := r.build(trails, result.Facts, date, ServedByFetch)
	set.RunID = result.RunID
	return set
}

// Rescore serves a date change from cached payloads. When nothing is cached it
// falls back to a full Recommend unless cacheOnly is set, in which case the
// boolean is false.
func (r *Recommender) Rescore(ctx context.Context, date string, cacheOnly bool) (*RecommendationSet, bool) {
	trails := r.InRange()
	facts, ok := r.orchestrator.RescoreFromCache(trails, date)
	if !ok {
		if cacheOnly {
			return nil, false
		}
		r.logger.Info("Nothing cached, fetching", zap.String("date", date))
		return r.Recommend(ctx, date), true
	}

	return r.build(trails, facts, date, ServedByCache), true
}

func (r *Recommender) build(trails []models.Trail, facts map[string]*models.WeatherFacts, date string, servedBy ServedBy) *RecommendationSet {
	set := &RecommendationSet{
		Date:            date,
		DateLabel:       r.DateLabel(date),
		Provider:        r.orchestrator.ProviderName(),
		ServedBy:        servedBy,
		GeneratedAt:     r.now(),
		Recommendations: make([]models.Recommendation, 0, len(trails)),
	}

	allFailed := len(trails) > 0
	for _, trail := range trails {
		f, ok := facts[trail.ID]
		if !ok || f == nil {
			if servedBy == ServedByCache {
				set.Unscored = append(set.Unscored, trail.ID)
				continue
			}
			f = models.EmptyFacts(date)
		}
		switch f.Source {
		case models.SourceAPI:
			set.Fresh++
			allFailed = false
		case models.SourceCache:
			set.Cached++
			allFailed = false
		default:
			set.Fallback++
		}

		score := r.engine.MatchScore(trail, f)
		switch score.Color {
		case models.ColorGreen:
			set.Summary.Green++
		case models.ColorYellow:
			set.Summary.Yellow++
		default:
			set.Summary.Red++
		}

		set.Recommendations = append(set.Recommendations, models.Recommendation{
			Trail: trail,
			Facts: f,
			Score: score,
		})
	}
	set.AllFailed = allFailed

	sort.SliceStable(set.Recommendations, func(i, j int) bool {
		a, b := set.Recommendations[i], set.Recommendations[j]
		if a.Score.Overall != b.Score.Overall {
			return a.Score.Overall > b.Score.Overall
		}
		return a.Trail.Name < b.Trail.Name
	})

	if set.AllFailed {
		r.logger.Warn("Could not load weather for any trail", zap.String("date", date))
	}
	return set
}
