package api

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
	"github.com/bobby-s-dev/ride-or-mud/internal/scheduler"
	"github.com/bobby-s-dev/ride-or-mud/internal/services"
	"github.com/bobby-s-dev/ride-or-mud/pkg/client"
)

const relayCacheControl = "s-maxage=1800, stale-while-revalidate=3600"

// Relay fetches a forecast with server-side credentials.
type Relay interface {
	FetchDirect(ctx context.Context, lat, lng float64) (json.RawMessage, error)
}

// Deps are the services behind the HTTP handlers. Scheduler and Relay are
// optional.
type Deps struct {
	Recommender  *services.Recommender
	Orchestrator *services.Orchestrator
	Cache        *services.CacheStore
	Scheduler    *scheduler.Scheduler
	Relay        Relay
}

type Handler struct {
	deps     Deps
	validate *validator.Validate
	logger   *zap.Logger
}

type relayQuery struct {
	Lat string `query:"lat" validate:"required,latitude"`
	Lng string `query:"lng" validate:"required,longitude"`
}

type trailView struct {
	models.Trail
	DriveMinutes int  `json:"drive_minutes"`
	InRange      bool `json:"in_range"`
}

func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{
		deps:     deps,
		validate: validator.New(),
		logger:   logger,
	}
}

// HasRelay reports whether the forecast relay route should be registered.
func (h *Handler) HasRelay() bool {
	return h.deps.Relay != nil
}

// GetRecommendations handles GET /api/v1/recommendations
func (h *Handler) GetRecommendations(c *fiber.Ctx) error {
	date, err := h.deps.Recommender.ResolveDate(c.Query("date"))
	if err != nil {
		return badRequest(c, err)
	}

	h.logger.Info("Scoring trails", zap.String("date", date))

	set := h.deps.Recommender.Recommend(c.UserContext(), date)
	return c.JSON(set)
}

// RescoreRecommendations handles GET /api/v1/recommendations/rescore
func (h *Handler) RescoreRecommendations(c *fiber.Ctx) error {
	date, err := h.deps.Recommender.ResolveDate(c.Query("date"))
	if err != nil {
		return badRequest(c, err)
	}
	cacheOnly := c.QueryBool("cache_only", false)

	set, ok := h.deps.Recommender.Rescore(c.UserContext(), date, cacheOnly)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No cached forecasts, request /recommendations first",
			"date":  date,
		})
	}
	return c.JSON(set)
}

// GetTrails handles GET /api/v1/trails
func (h *Handler) GetTrails(c *fiber.Ctx) error {
	engine := h.deps.Recommender.Engine()
	trails := h.deps.Recommender.Trails()

	views := make([]trailView, 0, len(trails))
	for _, t := range trails {
		views = append(views, trailView{
			Trail:        t,
			DriveMinutes: engine.DriveMinutes(t),
			InRange:      engine.WithinRange(t),
		})
	}

	return c.JSON(fiber.Map{
		"home":   engine.Params().Home,
		"trails": views,
		"count":  len(views),
	})
}

// RelayForecast handles /api/v1/forecast/relay. The upstream key never leaves
// the server.
func (h *Handler) RelayForecast(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodGet {
		c.Set(fiber.HeaderAllow, fiber.MethodGet)
		return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
			"error": "Method not allowed",
		})
	}

	var q relayQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, err)
	}
	if err := h.validate.Struct(q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "lat and lng parameters are required",
		})
	}
	lat, _ := strconv.ParseFloat(q.Lat, 64)
	lng, _ := strconv.ParseFloat(q.Lng, 64)

	raw, err := h.deps.Relay.FetchDirect(c.UserContext(), lat, lng)
	if err != nil {
		h.logger.Warn("Relay fetch failed",
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
			zap.Error(err))

		var netErr *client.NetworkError
		if errors.As(err, &netErr) && netErr.StatusCode != 0 {
			return c.Status(netErr.StatusCode).JSON(fiber.Map{
				"error":  "Upstream forecast request failed",
				"detail": netErr.Body,
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream forecast request failed",
		})
	}

	c.Set(fiber.HeaderCacheControl, relayCacheControl)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	stats := h.deps.Orchestrator.Stats()

	return c.JSON(fiber.Map{
		"status":     "healthy",
		"timestamp":  time.Now(),
		"provider":   stats.Provider,
		"last_fetch": stats.LastFetchTime,
		"uptime":     time.Since(startTime).String(),
	})
}

// GetMetrics handles GET /api/v1/metrics
func (h *Handler) GetMetrics(c *fiber.Ctx) error {
	metrics := fiber.Map{
		"fetch": h.deps.Orchestrator.Stats(),
		"cache": h.deps.Cache.Stats(),
	}
	if h.deps.Scheduler != nil {
		metrics["scheduler"] = h.deps.Scheduler.GetStatus()
	}

	return c.JSON(fiber.Map{
		"metrics":   metrics,
		"timestamp": time.Now(),
	})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

var startTime = time.Now()
