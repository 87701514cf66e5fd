package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Bilalktk79/crime-alert-system/internal/bus"
	"github.com/Bilalktk79/crime-alert-system/internal/classifier"
	"github.com/Bilalktk79/crime-alert-system/internal/config"
	"github.com/Bilalktk79/crime-alert-system/internal/models"
	"github.com/Bilalktk79/crime-alert-system/internal/webhook"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IncidentRepository определяет контракт для работы с бд инцидентов
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListPublic(ctx context.Context) ([]*models.Incident, error)
	ListAdmin(ctx context.Context, flaggedOnly bool) ([]*models.Incident, error)
	ListAlerts(ctx context.Context) ([]*models.Incident, error)
	ListMapVisible(ctx context.Context) ([]*models.Incident, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	Flag(ctx context.Context, id uuid.UUID, desired *bool) (*models.Incident, error)
	Remove(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	GetPublicFeedCache(ctx context.Context) ([]*models.Incident, error)
	SetPublicFeedCache(ctx context.Context, incidents []*models.Incident) error
	InvalidatePublicFeedCache(ctx context.Context) error
}

// EventBus определяет контракт публикации живых событий для зрителей
type EventBus interface {
	Publish(event bus.Event)
}

// IncidentService определяет контракт бизнес-логики приема и модерации репортов
type IncidentService interface {
	SubmitIncident(ctx context.Context, incident *models.Incident) (*models.Incident, error)
	ApproveIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	FlagIncident(ctx context.Context, id uuid.UUID, desired *bool) (*models.Incident, error)
	RemoveIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListPublicIncidents(ctx context.Context) ([]*models.Incident, error)
	ListAdminIncidents(ctx context.Context, flaggedOnly bool) ([]*models.Incident, error)
	ListAlerts(ctx context.Context) ([]*models.Incident, error)
	Hotspots(ctx context.Context) ([]models.Hotspot, error)
}

type incidentService struct {
	repo           IncidentRepository
	classifier     classifier.Classifier
	events         EventBus
	alertPublisher webhook.AlertPublisher
	logger         *logrus.Logger
	cfg            *config.Config
}

func NewIncidentService(
	repo IncidentRepository,
	cls classifier.Classifier,
	events EventBus,
	alertPublisher webhook.AlertPublisher,
	logger *logrus.Logger,
	cfg *config.Config,
) IncidentService {
	return &incidentService{
		repo:           repo,
		classifier:     cls,
		events:         events,
		alertPublisher: alertPublisher,
		logger:         logger,
		cfg:            cfg,
	}
}

// SubmitIncident проводит репорт через конвейер приема:
// валидация -> классификация -> сохранение -> рассылка.
// Спам сохраняется для ревью админом, но никогда не транслируется.
// Отказ хранилища прерывает конвейер до каких-либо рассылок.
func (s *incidentService) SubmitIncident(ctx context.Context, incident *models.Incident) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "incident",
		"method":   "SubmitIncident",
		"location": incident.Location,
	})
	log.Info("Processing incoming incident report")

	if err := validateSubmission(incident); err != nil {
		log.WithError(err).Warn("Report rejected by validation")
		return nil, err
	}

	verdict := s.classifier.Classify(ctx, incident.Description)
	if verdict.SpamDegraded || verdict.TypeDegraded {
		log.WithFields(logrus.Fields{
			"spam_degraded": verdict.SpamDegraded,
			"type_degraded": verdict.TypeDegraded,
		}).Warn("Classifier degraded, proceeding with fallback verdict")
	}

	// Предсказанный тип перекрывает присланный; тип меняется только здесь
	incident.Type = verdict.PredictedType
	incident.SpamLabel = models.SpamLabelClean
	if verdict.IsSpam {
		incident.SpamLabel = models.SpamLabelSpam
	}
	incident.Approved = false
	incident.Flagged = false
	incident.Removed = false

	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return nil, fmt.Errorf("service: could not create incident: %w", ErrStorage)
	}
	s.invalidateFeedCache(ctx, log)

	log = log.WithField("incident_id", incident.ID)
	if incident.SpamLabel == models.SpamLabelSpam {
		log.Info("Incident stored with spam label, skipping broadcast")
		return incident, nil
	}

	s.events.Publish(bus.Event{Type: bus.EventNewIncident, Incident: incident})
	s.escalateIfNeeded(ctx, incident, log)

	log.Info("Incident created and broadcast")
	return incident, nil
}

// ApproveIncident переводит инцидент в approved. Повторное одобрение - no-op.
func (s *incidentService) ApproveIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "ApproveIncident",
		"incident_id": id,
	})
	log.Info("Approving incident")

	incident, err := s.repo.Approve(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to approve incident")
		return nil, fmt.Errorf("service: could not approve incident: %w", err)
	}
	s.invalidateFeedCache(ctx, log)

	s.events.Publish(bus.Event{Type: bus.EventIncidentApproved, Incident: incident})
	if incident.SpamLabel == models.SpamLabelClean {
		s.escalateIfNeeded(ctx, incident, log)
	}

	log.Info("Incident approved")
	return incident, nil
}

// FlagIncident переключает флаг модерации. При desired == nil выполняется
// атомарный toggle, иначе выставляется присланное значение.
func (s *incidentService) FlagIncident(ctx context.Context, id uuid.UUID, desired *bool) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "FlagIncident",
		"incident_id": id,
	})
	log.Info("Updating incident flag")

	incident, err := s.repo.Flag(ctx, id, desired)
	if err != nil {
		log.WithError(err).Warn("Failed to update incident flag")
		return nil, fmt.Errorf("service: could not flag incident: %w", err)
	}
	s.invalidateFeedCache(ctx, log)

	s.events.Publish(bus.Event{Type: bus.EventIncidentFlagged, Incident: incident})

	log.WithField("flagged", incident.Flagged).Info("Incident flag updated")
	return incident, nil
}

// RemoveIncident ставит надгробие: инцидент исчезает из всех выборок,
// дальнейшие переходы запрещены
func (s *incidentService) RemoveIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "RemoveIncident",
		"incident_id": id,
	})
	log.Info("Removing incident")

	incident, err := s.repo.Remove(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to remove incident")
		return nil, fmt.Errorf("service: could not remove incident: %w", err)
	}
	s.invalidateFeedCache(ctx, log)

	s.events.Publish(bus.Event{Type: bus.EventIncidentRemoved, Incident: incident})

	log.Info("Incident removed")
	return incident, nil
}

// ListPublicIncidents возвращает публичную ленту (сначала из кеша)
func (s *incidentService) ListPublicIncidents(ctx context.Context) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListPublicIncidents",
	})

	cached, err := s.repo.GetPublicFeedCache(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to read public feed cache")
	}
	if cached != nil {
		return cached, nil
	}

	incidents, err := s.repo.ListPublic(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list public incidents from repository")
		return nil, fmt.Errorf("service: could not list public incidents: %w", ErrStorage)
	}

	if err := s.repo.SetPublicFeedCache(ctx, incidents); err != nil {
		log.WithError(err).Warn("Failed to cache public feed")
	}
	return incidents, nil
}

// ListAdminIncidents возвращает все не удаленные инциденты для ревью,
// включая спам и неодобренные; опционально только помеченные флагом
func (s *incidentService) ListAdminIncidents(ctx context.Context, flaggedOnly bool) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "incident",
		"method":       "ListAdminIncidents",
		"flagged_only": flaggedOnly,
	})

	incidents, err := s.repo.ListAdmin(ctx, flaggedOnly)
	if err != nil {
		log.WithError(err).Error("Failed to list admin incidents from repository")
		return nil, fmt.Errorf("service: could not list admin incidents: %w", ErrStorage)
	}
	return incidents, nil
}

// ListAlerts возвращает одобренные инциденты высокой серьезности
func (s *incidentService) ListAlerts(ctx context.Context) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListAlerts",
	})

	incidents, err := s.repo.ListAlerts(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list alerts from repository")
		return nil, fmt.Errorf("service: could not list alerts: %w", ErrStorage)
	}
	return incidents, nil
}

// escalateIfNeeded публикует alert_sent и ставит алерт в очередь доставки
// для инцидентов высокой серьезности. Отказ доставки не откатывает запись:
// инцидент уже надежно сохранен.
func (s *incidentService) escalateIfNeeded(ctx context.Context, incident *models.Incident, log *logrus.Entry) {
	if !incident.Severity.IsEscalating() {
		return
	}

	message := alertMessage(incident)
	s.events.Publish(bus.Event{Type: bus.EventAlertSent, Incident: incident, Message: message})

	alert := webhook.AlertEvent{
		IncidentID: incident.ID,
		Type:       incident.Type,
		Severity:   string(incident.Severity),
		Location:   incident.Location,
		Message:    message,
		Timestamp:  incident.CreatedAt,
	}
	if err := s.alertPublisher.Publish(ctx, alert); err != nil {
		log.WithError(err).Error("Failed to enqueue alert for delivery")
	}
}

func (s *incidentService) invalidateFeedCache(ctx context.Context, log *logrus.Entry) {
	if err := s.repo.InvalidatePublicFeedCache(ctx); err != nil {
		log.WithError(err).Warn("Failed to invalidate public feed cache")
	}
}

func alertMessage(incident *models.Incident) string {
	return fmt.Sprintf("A %s incident was reported near %s: %s",
		incident.Type, incident.Location, incident.Description)
}

// validateSubmission проверяет обязательные поля репорта до любых побочных эффектов
func validateSubmission(incident *models.Incident) error {
	if strings.TrimSpace(incident.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	if strings.TrimSpace(incident.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	switch incident.Severity {
	case models.SeverityLow, models.SeverityModerate, models.SeverityHigh, models.SeverityCritical:
	default:
		return fmt.Errorf("%w: severity must be one of low, moderate, high, critical", ErrValidation)
	}
	if !incident.HasCoordinates() {
		return fmt.Errorf("%w: numeric latitude and longitude are required", ErrValidation)
	}
	return nil
}
