package services

import (
	"fmt"
	"math"

	"github.com/bobby-s-dev/ride-or-mud/internal/models"
)

// GridResolution is the cell size in degrees used to share one forecast
// request between nearby trails.
const GridResolution = 0.05

func GridKeyFor(lat, lng float64) models.GridKey {
	snap := func(v float64) float64 {
		return math.Round(v/GridResolution) * GridResolution
	}
	return models.GridKey(fmt.Sprintf("%.2f,%.2f", snap(lat), snap(lng)))
}

// GroupTrails partitions trails by grid cell. Groups come out in order of
// first encounter and the first trail seen in a cell represents it.
func GroupTrails(trails []models.Trail) []models.TrailGroup {
	index := make(map[models.GridKey]int)
	groups := make([]models.TrailGroup, 0)

	for _, trail := range trails {
		key := GridKeyFor(trail.Lat, trail.Lng)
		if i, ok := index[key]; ok {
			groups[i].Trails = append(groups[i].Trails, trail)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, models.TrailGroup{
			Key:            key,
			Representative: trail,
			Trails:         []models.Trail{trail},
		})
	}

	return groups
}
