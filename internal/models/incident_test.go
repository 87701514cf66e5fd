package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveState(t *testing.T) {
	cases := []struct {
		name     string
		incident Incident
		want     ModerationState
	}{
		{"fresh report is pending", Incident{}, StatePending},
		{"approved", Incident{Approved: true}, StateApproved},
		{"flagged dominates approved", Incident{Approved: true, Flagged: true}, StateFlagged},
		{"removed dominates everything", Incident{Approved: true, Flagged: true, Removed: true}, StateRemoved},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.incident.EffectiveState())
		})
	}
}

func TestSeverity_IsEscalating(t *testing.T) {
	assert.False(t, SeverityLow.IsEscalating())
	assert.False(t, SeverityModerate.IsEscalating())
	assert.True(t, SeverityHigh.IsEscalating())
	assert.True(t, SeverityCritical.IsEscalating())
}

func TestHasCoordinates(t *testing.T) {
	valid := 33.68
	nan := math.NaN()
	inf := math.Inf(1)

	cases := []struct {
		name     string
		lat, lng *float64
		want     bool
	}{
		{"both present", &valid, &valid, true},
		{"missing latitude", nil, &valid, false},
		{"missing longitude", &valid, nil, false},
		{"nan latitude", &nan, &valid, false},
		{"infinite longitude", &valid, &inf, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inc := Incident{Latitude: tc.lat, Longitude: tc.lng}
			assert.Equal(t, tc.want, inc.HasCoordinates())
		})
	}
}
