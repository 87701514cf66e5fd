package v1

import "github.com/Bilalktk79/crime-alert-system/internal/models"

// DTOToIncidentModel преобразует DTO репорта в доменную модель.
// Серверные поля (id, метка спама, флаги модерации) выставляет конвейер.
func DTOToIncidentModel(dto ReportIncidentRequest) *models.Incident {
	return &models.Incident{
		Type:        dto.Type,
		Location:    dto.Location,
		Description: dto.Description,
		Severity:    models.Severity(dto.Severity),
		Latitude:    dto.Latitude,
		Longitude:   dto.Longitude,
	}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:          model.ID,
		Type:        model.Type,
		Location:    model.Location,
		Latitude:    model.Latitude,
		Longitude:   model.Longitude,
		Severity:    string(model.Severity),
		Description: model.Description,
		SpamLabel:   string(model.SpamLabel),
		Approved:    model.Approved,
		Flagged:     model.Flagged,
		State:       string(model.EffectiveState()),
		CreatedAt:   model.CreatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}
