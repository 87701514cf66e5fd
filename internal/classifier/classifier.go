package classifier

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const typeUnknown = "unknown"

// Verdict - совокупный результат классификации одного описания.
// Флаги *Degraded выставляются, когда соответствующий внешний сервис
// недоступен и применено значение по умолчанию (fail-open).
type Verdict struct {
	IsSpam        bool
	PredictedType string
	SpamDegraded  bool
	TypeDegraded  bool
}

// Classifier определяет контракт шлюза классификации текста репортов
type Classifier interface {
	Classify(ctx context.Context, description string) Verdict
}

type spamResponse struct {
	IsSpam bool `json:"is_spam"`
}

type typeResponse struct {
	PredictedType string `json:"predicted_type"`
}

type classifyRequest struct {
	Description string `json:"description"`
}

// HTTPClassifier - реализация Classifier поверх двух независимых HTTP-сервисов:
// детектора спама и предсказателя типа инцидента
type HTTPClassifier struct {
	client         *resty.Client
	spamServiceURL string
	typeServiceURL string
	timeout        time.Duration
	logger         *logrus.Logger
}

// NewHTTPClassifier создает шлюз классификации. Ретраев нет намеренно:
// не более одной попытки на вызов, чтобы не задерживать прием репортов.
func NewHTTPClassifier(spamURL, typeURL string, timeout time.Duration, logger *logrus.Logger) *HTTPClassifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)

	return &HTTPClassifier{
		client:         client,
		spamServiceURL: spamURL,
		typeServiceURL: typeURL,
		timeout:        timeout,
		logger:         logger,
	}
}

// Classify вызывает оба сервиса параллельно и объединяет результаты.
// Отказ детектора спама трактуется как "не спам", отказ предсказателя
// типа - как "unknown"; отказ одного сервиса не блокирует второй.
func (c *HTTPClassifier) Classify(ctx context.Context, description string) Verdict {
	var (
		wg       sync.WaitGroup
		isSpam   bool
		spamErr  error
		predType string
		typeErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		isSpam, spamErr = c.checkSpam(ctx, description)
	}()
	go func() {
		defer wg.Done()
		predType, typeErr = c.predictType(ctx, description)
	}()
	wg.Wait()

	verdict := Verdict{IsSpam: isSpam, PredictedType: predType}
	if spamErr != nil {
		c.logger.WithError(spamErr).Warn("Spam service unavailable, failing open as not spam")
		verdict.IsSpam = false
		verdict.SpamDegraded = true
	}
	if typeErr != nil {
		c.logger.WithError(typeErr).Warn("Type prediction service unavailable, falling back to unknown")
		verdict.PredictedType = typeUnknown
		verdict.TypeDegraded = true
	}
	return verdict
}

func (c *HTTPClassifier) checkSpam(ctx context.Context, description string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out spamResponse
	resp, err := c.client.R().
		SetContext(callCtx).
		SetBody(classifyRequest{Description: description}).
		SetResult(&out).
		Post(c.spamServiceURL)
	if err != nil {
		return false, err
	}
	if resp.IsError() {
		return false, &UpstreamError{Service: "spam", StatusCode: resp.StatusCode()}
	}
	return out.IsSpam, nil
}

func (c *HTTPClassifier) predictType(ctx context.Context, description string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out typeResponse
	resp, err := c.client.R().
		SetContext(callCtx).
		SetBody(classifyRequest{Description: description}).
		SetResult(&out).
		Post(c.typeServiceURL)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", &UpstreamError{Service: "type", StatusCode: resp.StatusCode()}
	}
	if out.PredictedType == "" {
		return typeUnknown, nil
	}
	return out.PredictedType, nil
}
