package ports

import "fliptotp/internal/domain/models"

// PreferencesRepository хранит настройки приложения.
// Реализация находится в слое Infrastructure.
type PreferencesRepository interface {
	// Load возвращает сохранённые настройки (умолчания, если файла ещё нет)
	Load() (models.Preferences, error)

	// Save записывает настройки целиком
	Save(prefs models.Preferences) error
}
