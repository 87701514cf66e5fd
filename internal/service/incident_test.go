package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Bilalktk79/crime-alert-system/internal/bus"
	"github.com/Bilalktk79/crime-alert-system/internal/classifier"
	classifier_mocks "github.com/Bilalktk79/crime-alert-system/internal/classifier/mocks"
	"github.com/Bilalktk79/crime-alert-system/internal/config"
	"github.com/Bilalktk79/crime-alert-system/internal/models"
	"github.com/Bilalktk79/crime-alert-system/internal/service/mocks"
	"github.com/Bilalktk79/crime-alert-system/internal/webhook"
	webhook_mocks "github.com/Bilalktk79/crime-alert-system/internal/webhook/mocks"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestIncidentService - вспомогательная функция для создания инстанса сервиса с моками
func newTestIncidentService(t *testing.T) (*incidentService, *mocks.MockIncidentRepository, *classifier_mocks.MockClassifier, *mocks.MockEventBus, *webhook_mocks.MockAlertPublisher) {
	ctrl := gomock.NewController(t)
	repoMock := mocks.NewMockIncidentRepository(ctrl)
	classifierMock := classifier_mocks.NewMockClassifier(ctrl)
	busMock := mocks.NewMockEventBus(ctrl)
	alertMock := webhook_mocks.NewMockAlertPublisher(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		HotspotMaxClusters: 5,
	}

	svc := NewIncidentService(repoMock, classifierMock, busMock, alertMock, logger, cfg)
	return svc.(*incidentService), repoMock, classifierMock, busMock, alertMock
}

func ptr(v float64) *float64 { return &v }

func validReport() *models.Incident {
	return &models.Incident{
		Location:    "Main St",
		Description: "robbery happened",
		Severity:    models.SeverityHigh,
		Latitude:    ptr(33.68),
		Longitude:   ptr(73.05),
	}
}

func TestSubmitIncident_CleanHighSeverity(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, busMock, alertMock := newTestIncidentService(t)
	ctx := context.Background()
	report := validReport()
	report.Type = "caller supplied" // должен быть перекрыт предсказанием

	// Ожидания
	classifierMock.EXPECT().
		Classify(ctx, "robbery happened").
		Return(classifier.Verdict{IsSpam: false, PredictedType: "robbery"}).
		Times(1)

	repoMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, inc *models.Incident) error {
			// Симулируем, что БД присвоила ID и время создания
			inc.ID = uuid.New()
			inc.CreatedAt = time.Now().UTC()
			return nil
		}).Times(1)

	repoMock.EXPECT().InvalidatePublicFeedCache(ctx).Return(nil).Times(1)

	// Трансляция new_incident и alert_sent, именно в этом порядке
	var published []bus.EventType
	busMock.EXPECT().
		Publish(gomock.Any()).
		Do(func(event bus.Event) {
			published = append(published, event.Type)
		}).Times(2)

	alertMock.EXPECT().
		Publish(ctx, gomock.Any()).
		Do(func(ctx context.Context, event webhook.AlertEvent) {
			assert.Equal(t, "robbery", event.Type)
			assert.Equal(t, "high", event.Severity)
			assert.Equal(t, "Main St", event.Location)
		}).Return(nil).Times(1)

	// Действие
	incident, err := svc.SubmitIncident(ctx, report)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "robbery", incident.Type)
	assert.Equal(t, models.SpamLabelClean, incident.SpamLabel)
	assert.False(t, incident.Approved)
	assert.False(t, incident.Flagged)
	assert.NotEqual(t, uuid.Nil, incident.ID)
	assert.Equal(t, []bus.EventType{bus.EventNewIncident, bus.EventAlertSent}, published)
}

func TestSubmitIncident_LowSeverity_NoAlert(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, busMock, alertMock := newTestIncidentService(t)
	ctx := context.Background()
	report := validReport()
	report.Severity = models.SeverityLow

	// Ожидания
	classifierMock.EXPECT().
		Classify(ctx, gomock.Any()).
		Return(classifier.Verdict{IsSpam: false, PredictedType: "theft"}).
		Times(1)
	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	repoMock.EXPECT().InvalidatePublicFeedCache(ctx).Return(nil).Times(1)

	busMock.EXPECT().
		Publish(gomock.Any()).
		Do(func(event bus.Event) {
			assert.Equal(t, bus.EventNewIncident, event.Type)
		}).Times(1)

	// Алертов для низкой серьезности нет
	alertMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := svc.SubmitIncident(ctx, report)

	// Проверки
	require.NoError(t, err)
}

func TestSubmitIncident_Spam_StoredButNotBroadcast(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, busMock, alertMock := newTestIncidentService(t)
	ctx := context.Background()
	report := validReport()

	// Ожидания
	classifierMock.EXPECT().
		Classify(ctx, gomock.Any()).
		Return(classifier.Verdict{IsSpam: true, PredictedType: "robbery"}).
		Times(1)

	// Спам сохраняется для ревью админом
	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	repoMock.EXPECT().InvalidatePublicFeedCache(ctx).Return(nil).Times(1)

	// Но никогда не транслируется
	busMock.EXPECT().Publish(gomock.Any()).Times(0)
	alertMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	incident, err := svc.SubmitIncident(ctx, report)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.SpamLabelSpam, incident.SpamLabel)
}

func TestSubmitIncident_ValidationError_NoSideEffects(t *testing.T) {
	// Подготовка
	svc, _, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()

	cases := map[string]func(inc *models.Incident){
		"missing location":    func(inc *models.Incident) { inc.Location = "  " },
		"missing description": func(inc *models.Incident) { inc.Description = "" },
		"bad severity":        func(inc *models.Incident) { inc.Severity = "urgent" },
		"missing latitude":    func(inc *models.Incident) { inc.Latitude = nil },
		"non-numeric coords": func(inc *models.Incident) {
			nan := 0.0
			nan /= nan
			inc.Longitude = &nan
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			report := validReport()
			mutate(report)

			// Действие: никакие моки не настроены, любые вызовы провалят тест
			incident, err := svc.SubmitIncident(ctx, report)

			// Проверки
			require.Error(t, err)
			assert.Nil(t, incident)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSubmitIncident_StoreFailure_NoBroadcast(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, busMock, alertMock := newTestIncidentService(t)
	ctx := context.Background()
	report := validReport()

	// Ожидания
	classifierMock.EXPECT().
		Classify(ctx, gomock.Any()).
		Return(classifier.Verdict{IsSpam: false, PredictedType: "robbery"}).
		Times(1)
	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(errors.New("connection refused")).Times(1)

	// Отказ хранилища не должен породить ни одного события
	busMock.EXPECT().Publish(gomock.Any()).Times(0)
	alertMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	incident, err := svc.SubmitIncident(ctx, report)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestSubmitIncident_DegradedClassifier_FailsOpen(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, busMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	report := validReport()
	report.Severity = models.SeverityModerate

	// Ожидания: оба сервиса классификации лежат, репорт проходит с фолбэками
	classifierMock.EXPECT().
		Classify(ctx, gomock.Any()).
		Return(classifier.Verdict{IsSpam: false, PredictedType: "unknown", SpamDegraded: true, TypeDegraded: true}).
		Times(1)
	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	repoMock.EXPECT().InvalidatePublicFeedCache(ctx).Return(nil).Times(1)
	busMock.EXPECT().Publish(gomock.Any()).Times(1)

	// Действие
	incident, err := svc.SubmitIncident(ctx, report)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "unknown", incident.Type)
	assert.Equal(t, models.SpamLabelClean, incident.SpamLabel)
}

func TestSubmitIncident_AlertDeliveryFailure_NotFatal(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, busMock, alertMock := newTestIncidentService(t)
	ctx := context.Background()
	report := validReport()
	report.Severity = models.SeverityCritical

	// Ожидания
	classifierMock.EXPECT().
		Classify(ctx, gomock.Any()).
		Return(classifier.Verdict{IsSpam: false, PredictedType: "violence"}).
		Times(1)
	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	repoMock.EXPECT().InvalidatePublicFeedCache(ctx).Return(nil).Times(1)
	busMock.EXPECT().Publish(gomock.Any()).Times(2)

	// Очередь алертов недоступна - инцидент уже сохранен, это не откатывается
	alertMock.EXPECT().
		Publish(ctx, gomock.Any()).
		Return(errors.New("redis down")).
		Times(1)

	// Действие
	_, err := svc.SubmitIncident(ctx, report)

	// Проверки
	require.NoError(t, err)
}

func TestApproveIncident_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, _, busMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	approved := &models.Incident{
		ID:        incidentID,
		Severity:  models.SeverityLow,
		SpamLabel: models.SpamLabelClean,
		Approved:  true,
	}

	// Ожидания
	repoMock.EXPECT().Approve(ctx, incidentID).Return(approved, nil).Times(1)
	repoMock.EXPECT().InvalidatePublicFeedCache(ctx).Return(nil).Times(1)
	busMock.EXPECT().
		Publish(gomock.Any()).
		Do(func(event bus.Event) {
			assert.Equal(t, bus.EventIncidentApproved, event.Type)
			assert.Equal(t, approved, event.Incident)
		}).Times(1)

	// Действие
	incident, err := svc.ApproveIncident(ctx, incidentID)

	// Проверки
	require.NoError(t, err)
	assert.True(t, incident.Approved)
	assert.Equal(t, models.StateApproved, incident.EffectiveState())
}

func TestApproveIncident_HighSeverity_Escalates(t *testing.T) {
	// Подготовка
	svc, repoMock, _, busMock, alertMock := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	approved := &models.Incident{
		ID:        incidentID,
		Type:      "violence",
		Location:  "Main St",
		Severity:  models.SeverityHigh,
		SpamLabel: models.SpamLabelClean,
		Approved:  true,
	}

	// Ожидания
	repoMock.EXPECT().Approve(ctx, incidentID).Return(approved, nil).Times(1)
	repoMock.EXPECT().InvalidatePublicFeedCache(ctx).Return(nil).Times(1)

	var published []bus.EventType
	busMock.EXPECT().
		Publish(gomock.Any()).
		Do(func(event bus.Event) {
			published = append(published, event.Type)
		}).Times(2)
	alertMock.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	_, err := svc.ApproveIncident(ctx, incidentID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, []bus.EventType{bus.EventIncidentApproved, bus.EventAlertSent}, published)
}

func TestApproveIncident_AlreadyRemoved(t *testing.T) {
	// Подготовка
	svc, repoMock, _, busMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()

	// Ожидания
	repoMock.EXPECT().
		Approve(ctx, incidentID).
		Return(nil, ErrAlreadyRemoved).
		Times(1)
	busMock.EXPECT().Publish(gomock.Any()).Times(0)

	// Действие
	incident, err := svc.ApproveIncident(ctx, incidentID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, ErrAlreadyRemoved)
}

func TestFlagIncident_Toggle(t *testing.T) {
	// Подготовка
	svc, repoMock, _, busMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	flagged := &models.Incident{ID: incidentID, Flagged: true}

	// Ожидания
	repoMock.EXPECT().Flag(ctx, incidentID, nil).Return(flagged, nil).Times(1)
	repoMock.EXPECT().InvalidatePublicFeedCache(ctx).Return(nil).Times(1)
	busMock.EXPECT().
		Publish(gomock.Any()).
		Do(func(event bus.Event) {
			assert.Equal(t, bus.EventIncidentFlagged, event.Type)
		}).Times(1)

	// Действие
	incident, err := svc.FlagIncident(ctx, incidentID, nil)

	// Проверки
	require.NoError(t, err)
	assert.True(t, incident.Flagged)
}

func TestFlagIncident_NotFound(t *testing.T) {
	// Подготовка
	svc, repoMock, _, busMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()

	// Ожидания
	repoMock.EXPECT().Flag(ctx, incidentID, nil).Return(nil, ErrNotFound).Times(1)
	busMock.EXPECT().Publish(gomock.Any()).Times(0)

	// Действие
	_, err := svc.FlagIncident(ctx, incidentID, nil)

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveIncident_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, _, busMock, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	removed := &models.Incident{ID: incidentID, Removed: true}

	// Ожидания
	repoMock.EXPECT().Remove(ctx, incidentID).Return(removed, nil).Times(1)
	repoMock.EXPECT().InvalidatePublicFeedCache(ctx).Return(nil).Times(1)
	busMock.EXPECT().
		Publish(gomock.Any()).
		Do(func(event bus.Event) {
			assert.Equal(t, bus.EventIncidentRemoved, event.Type)
		}).Times(1)

	// Действие
	incident, err := svc.RemoveIncident(ctx, incidentID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StateRemoved, incident.EffectiveState())
}

func TestListPublicIncidents_CacheHit(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	cached := []*models.Incident{{ID: uuid.New(), Approved: true}}

	// Ожидания: при попадании в кеш до бд не доходим
	repoMock.EXPECT().GetPublicFeedCache(ctx).Return(cached, nil).Times(1)

	// Действие
	incidents, err := svc.ListPublicIncidents(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, cached, incidents)
}

func TestListPublicIncidents_CacheMiss(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	fromDB := []*models.Incident{
		{ID: uuid.New(), Approved: true},
		{ID: uuid.New(), Approved: true},
	}

	// Ожидания
	repoMock.EXPECT().GetPublicFeedCache(ctx).Return(nil, nil).Times(1)
	repoMock.EXPECT().ListPublic(ctx).Return(fromDB, nil).Times(1)
	repoMock.EXPECT().SetPublicFeedCache(ctx, fromDB).Return(nil).Times(1)

	// Действие
	incidents, err := svc.ListPublicIncidents(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, fromDB, incidents)
}

func TestListAdminIncidents_FlaggedOnly(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	flagged := []*models.Incident{{ID: uuid.New(), Flagged: true}}

	// Ожидания
	repoMock.EXPECT().ListAdmin(ctx, true).Return(flagged, nil).Times(1)

	// Действие
	incidents, err := svc.ListAdminIncidents(ctx, true)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, flagged, incidents)
}

func TestListAlerts_StorageFailure(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания
	repoMock.EXPECT().ListAlerts(ctx).Return(nil, errors.New("connection refused")).Times(1)

	// Действие
	incidents, err := svc.ListAlerts(ctx)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incidents)
	assert.ErrorIs(t, err, ErrStorage)
}
