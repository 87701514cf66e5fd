package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Severity - уровень серьезности инцидента
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsEscalating возвращает true, если серьезность требует рассылки алертов
func (s Severity) IsEscalating() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// SpamLabel - вердикт классификатора спама
type SpamLabel string

const (
	SpamLabelClean SpamLabel = "clean"
	SpamLabelSpam  SpamLabel = "spam"
)

// ModerationState - эффективное состояние модерации инцидента
type ModerationState string

const (
	StatePending  ModerationState = "pending"
	StateApproved ModerationState = "approved"
	StateFlagged  ModerationState = "flagged"
	StateRemoved  ModerationState = "removed"
)

// Incident - центральная сущность: сообщение о происшествии с координатами
// и флагами модерации. Флаги approved/flagged ортогональны, removed терминален.
type Incident struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Location    string    `json:"location"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	SpamLabel   SpamLabel `json:"spam_label"`
	Approved    bool      `json:"approved"`
	Flagged     bool      `json:"flagged"`
	Removed     bool      `json:"removed"`
	CreatedAt   time.Time `json:"created_at"`
}

// EffectiveState выводит единственное эффективное состояние модерации:
// removed доминирует, затем flagged, затем approved, иначе pending
func (i *Incident) EffectiveState() ModerationState {
	switch {
	case i.Removed:
		return StateRemoved
	case i.Flagged:
		return StateFlagged
	case i.Approved:
		return StateApproved
	default:
		return StatePending
	}
}

// HasCoordinates сообщает, пригоден ли инцидент для отображения на карте.
// Отсутствующие или нечисловые координаты исключают его из пространственной
// рассылки, но не из хранилища.
func (i *Incident) HasCoordinates() bool {
	if i.Latitude == nil || i.Longitude == nil {
		return false
	}
	for _, v := range []float64{*i.Latitude, *i.Longitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
