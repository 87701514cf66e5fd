package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Bilalktk79/crime-alert-system/internal/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(cfg *config.Config) *AlertWorker {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return NewAlertWorker(nil, logger, cfg)
}

func testAlertPayload(t *testing.T) (AlertEvent, string) {
	event := AlertEvent{
		IncidentID: uuid.New(),
		Type:       "robbery",
		Severity:   "high",
		Location:   "Main St",
		Message:    "A robbery incident was reported near Main St",
		Timestamp:  time.Now().UTC(),
	}
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return event, string(raw)
}

func TestDeliverAlert_SignsPayload(t *testing.T) {
	// Подготовка
	const secret = "test-secret"
	event, payload := testAlertPayload(t)

	var gotSignature string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker := newTestWorker(&config.Config{
		WebhookURL:        server.URL,
		WebhookSecret:     secret,
		WebhookTimeout:    2 * time.Second,
		WebhookMaxRetries: 3,
		WebhookBaseDelay:  time.Millisecond,
	})

	// Действие
	worker.deliverAlert(context.Background(), event, payload)

	// Проверки: подпись совпадает с HMAC-SHA256 от тела
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)
	assert.JSONEq(t, payload, string(gotBody))
}

func TestDeliverAlert_RetriesOnServerError(t *testing.T) {
	// Подготовка: первые две попытки падают, третья успешна
	event, payload := testAlertPayload(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker := newTestWorker(&config.Config{
		WebhookURL:        server.URL,
		WebhookTimeout:    2 * time.Second,
		WebhookMaxRetries: 3,
		WebhookBaseDelay:  time.Millisecond,
	})

	// Действие
	worker.deliverAlert(context.Background(), event, payload)

	// Проверки
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDeliverAlert_SkipsWhenURLNotConfigured(t *testing.T) {
	// Подготовка
	event, payload := testAlertPayload(t)
	worker := newTestWorker(&config.Config{
		WebhookTimeout:    2 * time.Second,
		WebhookMaxRetries: 3,
		WebhookBaseDelay:  time.Millisecond,
	})

	// Действие: без URL доставка тихо пропускается, без паник и запросов
	worker.deliverAlert(context.Background(), event, payload)
}
