package service

import (
	"context"
	"testing"

	"github.com/Bilalktk79/crime-alert-system/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func incidentAt(lat, lng float64) *models.Incident {
	return &models.Incident{
		ID:        uuid.New(),
		Latitude:  ptr(lat),
		Longitude: ptr(lng),
	}
}

func TestHotspots_TwoClusters(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	svc.cfg.HotspotMaxClusters = 2
	ctx := context.Background()

	// Две плотные группы точек далеко друг от друга
	incidents := []*models.Incident{
		incidentAt(33.68, 73.05),
		incidentAt(33.69, 73.06),
		incidentAt(40.71, -74.00),
		incidentAt(40.72, -74.01),
	}

	// Ожидания
	repoMock.EXPECT().ListMapVisible(ctx).Return(incidents, nil).Times(1)

	// Действие
	hotspots, err := svc.Hotspots(ctx)

	// Проверки
	require.NoError(t, err)
	require.Len(t, hotspots, 2)

	total := 0
	for _, h := range hotspots {
		total += h.Count
	}
	assert.Equal(t, len(incidents), total)

	assert.InDelta(t, 33.685, hotspots[0].Lat, 0.01)
	assert.InDelta(t, 73.055, hotspots[0].Lng, 0.01)
	assert.InDelta(t, 40.715, hotspots[1].Lat, 0.01)
	assert.InDelta(t, -74.005, hotspots[1].Lng, 0.01)
}

func TestHotspots_FewerPointsThanClusters(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	svc.cfg.HotspotMaxClusters = 5
	ctx := context.Background()

	incidents := []*models.Incident{
		incidentAt(33.68, 73.05),
		incidentAt(40.71, -74.00),
	}

	// Ожидания
	repoMock.EXPECT().ListMapVisible(ctx).Return(incidents, nil).Times(1)

	// Действие
	hotspots, err := svc.Hotspots(ctx)

	// Проверки: k ужимается до числа точек
	require.NoError(t, err)
	assert.Len(t, hotspots, 2)
	for _, h := range hotspots {
		assert.Equal(t, 1, h.Count)
	}
}

func TestHotspots_SkipsIncidentsWithoutCoordinates(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	svc.cfg.HotspotMaxClusters = 3
	ctx := context.Background()

	incidents := []*models.Incident{
		incidentAt(33.68, 73.05),
		{ID: uuid.New()}, // без координат
	}

	// Ожидания
	repoMock.EXPECT().ListMapVisible(ctx).Return(incidents, nil).Times(1)

	// Действие
	hotspots, err := svc.Hotspots(ctx)

	// Проверки
	require.NoError(t, err)
	require.Len(t, hotspots, 1)
	assert.Equal(t, 1, hotspots[0].Count)
}

func TestHotspots_NoPoints(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания
	repoMock.EXPECT().ListMapVisible(ctx).Return([]*models.Incident{}, nil).Times(1)

	// Действие
	hotspots, err := svc.Hotspots(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Empty(t, hotspots)
}
