package service

import (
	"context"
	"fmt"
	"math"

	"github.com/Bilalktk79/crime-alert-system/internal/models"
	"github.com/sirupsen/logrus"
)

const kmeansMaxIterations = 50

// Hotspots кластеризует видимые на карте инциденты методом k-средних.
// Учитываются только публично видимые инциденты с валидными координатами.
func (s *incidentService) Hotspots(ctx context.Context) ([]models.Hotspot, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "Hotspots",
	})

	incidents, err := s.repo.ListMapVisible(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list map-visible incidents from repository")
		return nil, fmt.Errorf("service: could not compute hotspots: %w", ErrStorage)
	}

	points := make([][2]float64, 0, len(incidents))
	for _, inc := range incidents {
		if inc.HasCoordinates() {
			points = append(points, [2]float64{*inc.Latitude, *inc.Longitude})
		}
	}
	if len(points) == 0 {
		return []models.Hotspot{}, nil
	}

	k := s.cfg.HotspotMaxClusters
	if k < 1 {
		k = 1
	}
	if k > len(points) {
		k = len(points)
	}

	centroids, sizes := kmeans(points, k)
	hotspots := make([]models.Hotspot, 0, k)
	for i := range centroids {
		if sizes[i] == 0 {
			continue
		}
		hotspots = append(hotspots, models.Hotspot{
			Lat:   centroids[i][0],
			Lng:   centroids[i][1],
			Count: sizes[i],
		})
	}

	log.WithField("clusters", len(hotspots)).Info("Hotspots computed")
	return hotspots, nil
}

// kmeans - алгоритм Ллойда с детерминированной инициализацией равномерно
// распределенными по выборке точками
func kmeans(points [][2]float64, k int) (centroids [][2]float64, sizes []int) {
	centroids = make([][2]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = points[i*len(points)/k]
	}

	assignment := make([]int, len(points))
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for pi, p := range points {
			best, bestDist := 0, math.MaxFloat64
			for ci, c := range centroids {
				d := (p[0]-c[0])*(p[0]-c[0]) + (p[1]-c[1])*(p[1]-c[1])
				if d < bestDist {
					best, bestDist = ci, d
				}
			}
			if assignment[pi] != best {
				assignment[pi] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][2]float64, k)
		counts := make([]int, k)
		for pi, p := range points {
			ci := assignment[pi]
			sums[ci][0] += p[0]
			sums[ci][1] += p[1]
			counts[ci]++
		}
		for ci := range centroids {
			if counts[ci] > 0 {
				centroids[ci][0] = sums[ci][0] / float64(counts[ci])
				centroids[ci][1] = sums[ci][1] / float64(counts[ci])
			}
		}
	}

	sizes = make([]int, k)
	for _, ci := range assignment {
		sizes[ci]++
	}
	return centroids, sizes
}
