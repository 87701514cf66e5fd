package service

import "errors"

// Ошибки бизнес-логики. Хэндлеры сопоставляют их с HTTP-статусами через errors.Is.
var (
	// ErrValidation - в репорте отсутствуют или некорректны обязательные поля
	ErrValidation = errors.New("validation failed")
	// ErrNotFound - инцидент не найден среди живых (не удаленных) записей
	ErrNotFound = errors.New("incident not found")
	// ErrAlreadyRemoved - попытка перехода из терминального состояния removed
	ErrAlreadyRemoved = errors.New("incident already removed")
	// ErrStorage - хранилище недоступно, побочные эффекты не выполнены
	ErrStorage = errors.New("storage unavailable")
)
