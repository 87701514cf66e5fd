package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Bilalktk79/crime-alert-system/internal/models"
	"github.com/Bilalktk79/crime-alert-system/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	publicFeedCacheKey = "incidents:public"
	publicFeedCacheTTL = time.Minute
)

const incidentColumns = `
	id,
	type,
	location,
	latitude,
	longitude,
	severity,
	description,
	spam,
	approved,
	flagged,
	removed,
	created_at`

type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client) service.IncidentRepository {
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
	}
}

// Create создает новую запись об инциденте в бд; идентификатор и время
// создания присваивает база
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (type, location, latitude, longitude, severity, description, spam, approved, flagged, removed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, false, false) RETURNING id, created_at;
	`
	err := r.db.QueryRow(ctx, query,
		incident.Type,
		incident.Location,
		incident.Latitude,
		incident.Longitude,
		incident.Severity,
		incident.Description,
		incident.SpamLabel == models.SpamLabelSpam,
	).Scan(&incident.ID, &incident.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает живой (не удаленный) инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE id = $1 AND removed = false;
	`
	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// ListPublic возвращает публичную ленту: одобренные, не удаленные, не спам.
// Флаг модерации на публичную видимость не влияет. Сначала свежие.
func (r *IncidentRepository) ListPublic(ctx context.Context) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE approved = true AND removed = false AND spam = false
		ORDER BY created_at DESC;
	`
	return r.listIncidents(ctx, query)
}

// ListAdmin возвращает все не удаленные инциденты для ревью человеком,
// включая спам и неодобренные; опционально только помеченные флагом
func (r *IncidentRepository) ListAdmin(ctx context.Context, flaggedOnly bool) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE removed = false AND ($1 = false OR flagged = true)
		ORDER BY created_at DESC;
	`
	return r.listIncidents(ctx, query, flaggedOnly)
}

// ListAlerts возвращает одобренные инциденты высокой серьезности
func (r *IncidentRepository) ListAlerts(ctx context.Context) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE approved = true AND removed = false AND spam = false
			AND severity IN ('high', 'critical')
		ORDER BY created_at DESC;
	`
	return r.listIncidents(ctx, query)
}

// ListMapVisible возвращает публично видимые инциденты с заданными координатами
func (r *IncidentRepository) ListMapVisible(ctx context.Context) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE approved = true AND removed = false AND spam = false
			AND latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY created_at DESC;
	`
	return r.listIncidents(ctx, query)
}

// Approve выставляет approved атомарно относительно конкурентных переходов.
// Повторное одобрение - no-op, не ошибка.
func (r *IncidentRepository) Approve(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `
		UPDATE incidents SET approved = true
		WHERE id = $1 AND removed = false
		RETURNING ` + incidentColumns + `;
	`
	return r.transition(ctx, id, query)
}

// Flag переключает флаг модерации. Атомарный read-modify-write внутри одного
// UPDATE исключает потерянные обновления при конкурентных переключениях.
// При desired == nil выполняется toggle, иначе выставляется заданное значение.
func (r *IncidentRepository) Flag(ctx context.Context, id uuid.UUID, desired *bool) (*models.Incident, error) {
	if desired != nil {
		query := `
			UPDATE incidents SET flagged = $2
			WHERE id = $1 AND removed = false
			RETURNING ` + incidentColumns + `;
		`
		return r.transition(ctx, id, query, *desired)
	}

	query := `
		UPDATE incidents SET flagged = NOT flagged
		WHERE id = $1 AND removed = false
		RETURNING ` + incidentColumns + `;
	`
	return r.transition(ctx, id, query)
}

// Remove ставит надгробие. Переход необратим; удаленный инцидент исключается
// из всех последующих выборок.
func (r *IncidentRepository) Remove(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `
		UPDATE incidents SET removed = true
		WHERE id = $1 AND removed = false
		RETURNING ` + incidentColumns + `;
	`
	return r.transition(ctx, id, query)
}

// transition выполняет переход модерации, охраняемый условием removed = false.
// Пустой результат означает либо неизвестный id, либо уже удаленный инцидент -
// различаем отдельным запросом.
func (r *IncidentRepository) transition(ctx context.Context, id uuid.UUID, query string, args ...any) (*models.Incident, error) {
	queryArgs := append([]any{id}, args...)
	incident, err := scanIncident(r.db.QueryRow(ctx, query, queryArgs...))
	if err == nil {
		return incident, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition incident: %w", err)
	}

	var removed bool
	checkErr := r.db.QueryRow(ctx, `SELECT removed FROM incidents WHERE id = $1;`, id).Scan(&removed)
	if checkErr != nil {
		if errors.Is(checkErr, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to check incident state: %w", checkErr)
	}
	if removed {
		return nil, fmt.Errorf("incident %s: %w", id, service.ErrAlreadyRemoved)
	}
	return nil, fmt.Errorf("incident %s: %w", id, service.ErrNotFound)
}

func (r *IncidentRepository) listIncidents(ctx context.Context, query string, args ...any) ([]*models.Incident, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	var spam bool
	err := row.Scan(
		&incident.ID,
		&incident.Type,
		&incident.Location,
		&incident.Latitude,
		&incident.Longitude,
		&incident.Severity,
		&incident.Description,
		&spam,
		&incident.Approved,
		&incident.Flagged,
		&incident.Removed,
		&incident.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	incident.SpamLabel = models.SpamLabelClean
	if spam {
		incident.SpamLabel = models.SpamLabelSpam
	}
	return incident, nil
}

// GetPublicFeedCache пытается получить публичную ленту из Redis
func (r *IncidentRepository) GetPublicFeedCache(ctx context.Context) ([]*models.Incident, error) {
	val, err := r.redisClient.Get(ctx, publicFeedCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get public feed from cache: %w", err)
	}

	incidents := make([]*models.Incident, 0)
	if err := json.Unmarshal(val, &incidents); err != nil {
		return nil, fmt.Errorf("failed to unmarshal public feed from cache: %w", err)
	}
	return incidents, nil
}

// SetPublicFeedCache сохраняет публичную ленту в Redis
func (r *IncidentRepository) SetPublicFeedCache(ctx context.Context, incidents []*models.Incident) error {
	val, err := json.Marshal(incidents)
	if err != nil {
		return fmt.Errorf("failed to marshal public feed for cache: %w", err)
	}
	if err := r.redisClient.Set(ctx, publicFeedCacheKey, val, publicFeedCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set public feed in cache: %w", err)
	}
	return nil
}

// InvalidatePublicFeedCache удаляет публичную ленту из Redis кэша
func (r *IncidentRepository) InvalidatePublicFeedCache(ctx context.Context) error {
	if err := r.redisClient.Del(ctx, publicFeedCacheKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate public feed cache: %w", err)
	}
	return nil
}
