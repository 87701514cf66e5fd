package classifier

import "fmt"

// UpstreamError - не-2xx ответ от сервиса классификации
type UpstreamError struct {
	Service    string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s service returned status %d", e.Service, e.StatusCode)
}
