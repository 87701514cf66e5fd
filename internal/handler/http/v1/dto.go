package v1

import (
	"time"

	"github.com/google/uuid"
)

// ReportIncidentRequest DTO для приема репорта об инциденте
// @Description DTO для приема репорта об инциденте
type ReportIncidentRequest struct {
	Type        string   `json:"type,omitempty"`
	Location    string   `json:"location" validate:"required,min=2,max=255"`
	Description string   `json:"description" validate:"required,min=2"`
	Severity    string   `json:"severity" validate:"required,oneof=low moderate high critical"`
	Latitude    *float64 `json:"latitude" validate:"required,latitude"`
	Longitude   *float64 `json:"longitude" validate:"required,longitude"`
}

// FlagIncidentRequest DTO для установки/переключения флага модерации.
// Отсутствующее поле flagged означает атомарное переключение.
// @Description DTO для установки/переключения флага модерации
type FlagIncidentRequest struct {
	ID      string `json:"id" validate:"required,uuid"`
	Flagged *bool  `json:"flagged,omitempty"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Location    string    `json:"location"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	SpamLabel   string    `json:"spam_label"`
	Approved    bool      `json:"approved"`
	Flagged     bool      `json:"flagged"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
}

// Envelope - единый конверт ответа API
// @Description Единый конверт ответа API
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}
