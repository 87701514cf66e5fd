package bus

import (
	"sync"
	"time"

	"github.com/Bilalktk79/crime-alert-system/internal/models"
	"github.com/sirupsen/logrus"
)

// EventType - именованный тип события жизненного цикла инцидента
type EventType string

const (
	EventNewIncident      EventType = "new_incident"
	EventIncidentApproved EventType = "incident_approved"
	EventIncidentFlagged  EventType = "incident_flagged"
	EventIncidentRemoved  EventType = "incident_removed"
	EventAlertSent        EventType = "alert_sent"
)

// Event - событие, доставляемое подключенным зрителям.
// Несет затронутый инцидент либо текст алерта.
type Event struct {
	Type      EventType        `json:"type"`
	Incident  *models.Incident `json:"incident,omitempty"`
	Message   string           `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Subscription - дескриптор подписки. Close отписывает и закрывает канал.
type Subscription struct {
	id  uint64
	ch  chan Event
	bus *Bus
}

// Events возвращает канал событий подписчика
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close отменяет подписку. Повторный вызов безопасен.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// Bus - шина распространения событий: чистый fan-out без сохраняемого
// состояния. Публикация не блокируется на доставке и не падает при нуле
// подписчиков; опоздавшие подписчики не получают историю.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	buffer int
	logger *logrus.Logger
}

// New создает шину с указанным размером буфера на подписчика
func New(buffer int, logger *logrus.Logger) *Bus {
	if buffer < 1 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[uint64]chan Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe регистрирует нового зрителя и возвращает дескриптор отмены
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[b.nextID] = ch
	return &Subscription{id: b.nextID, ch: ch, bus: b}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish рассылает событие всем текущим подписчикам. Fire-and-forget:
// переполненный буфер медленного подписчика приводит к потере события у него
// одного, порядок событий одного издателя у остальных сохраняется (FIFO).
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.WithFields(logrus.Fields{
				"subscriber": id,
				"event_type": event.Type,
			}).Warn("Subscriber buffer full, dropping event")
		}
	}
}

// SubscriberCount возвращает число подключенных зрителей
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
