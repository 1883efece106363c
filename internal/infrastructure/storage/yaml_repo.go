package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"fliptotp/internal/domain/models"
	"fliptotp/internal/domain/ports"
)

// YAMLPreferencesRepository реализует ports.PreferencesRepository поверх YAML-файла.
type YAMLPreferencesRepository struct {
	mu       sync.Mutex
	filePath string
	prefs    models.Preferences
}

// NewYAMLPreferencesRepository создаёт репозиторий. Если файла нет, он создаётся с умолчаниями.
func NewYAMLPreferencesRepository(filePath string) (*YAMLPreferencesRepository, error) {
	repo := &YAMLPreferencesRepository{filePath: filePath}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	created, err := repo.loadFromFile()
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации репозитория настроек: %w", err)
	}
	if created {
		if err := repo.saveToFile(); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// DefaultPreferencesPath - путь к файлу настроек в каталоге конфигурации пользователя.
func DefaultPreferencesPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "fliptotp", "preferences.yaml")
}

// Path возвращает путь к файлу настроек.
func (r *YAMLPreferencesRepository) Path() string { return r.filePath }

// Load перечитывает файл и возвращает настройки.
func (r *YAMLPreferencesRepository) Load() (models.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.loadFromFile(); err != nil {
		return models.Preferences{}, err
	}
	return r.prefs, nil
}

// Save записывает настройки в файл.
func (r *YAMLPreferencesRepository) Save(prefs models.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs = prefs
	return r.saveToFile()
}

// loadFromFile читает файл (не потокобезопасно). created=true, если файла не было.
func (r *YAMLPreferencesRepository) loadFromFile() (created bool, err error) {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			r.prefs = models.DefaultPreferences()
			return true, nil
		}
		return false, fmt.Errorf("ошибка чтения файла настроек: %w", err)
	}

	// Отсутствующие в файле поля получают значения по умолчанию
	prefs := models.DefaultPreferences()
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return false, fmt.Errorf("ошибка разбора YAML: %w", err)
	}
	r.prefs = prefs
	return false, nil
}

// saveToFile записывает файл (не потокобезопасно).
func (r *YAMLPreferencesRepository) saveToFile() error {
	dir := filepath.Dir(r.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("ошибка создания директории: %w", err)
	}

	data, err := yaml.Marshal(r.prefs)
	if err != nil {
		return fmt.Errorf("ошибка сериализации YAML: %w", err)
	}

	// Пароль MQTT может храниться в файле
	if err := os.WriteFile(r.filePath, data, 0600); err != nil {
		return fmt.Errorf("ошибка записи файла настроек: %w", err)
	}
	return nil
}

var _ ports.PreferencesRepository = (*YAMLPreferencesRepository)(nil)
