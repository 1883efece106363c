package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fliptotp/internal/domain/models"
)

func TestYAMLPreferencesRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.yaml")

	repo, err := NewYAMLPreferencesRepository(path)
	if err != nil {
		t.Fatalf("NewYAMLPreferencesRepository: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("файл с умолчаниями не создан: %v", err)
	}

	prefs, err := repo.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prefs != models.DefaultPreferences() {
		t.Errorf("ожидались умолчания, получено %+v", prefs)
	}

	prefs.Timezone.Provider = models.TimezoneSourceManual
	prefs.Timezone.ManualOffset = -3.5
	prefs.Serial.Port = "/dev/ttyACM3"
	if err := repo.Save(prefs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := NewYAMLPreferencesRepository(path)
	if err != nil {
		t.Fatalf("повторное открытие: %v", err)
	}
	got, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != prefs {
		t.Errorf("получено %+v, ожидалось %+v", got, prefs)
	}
}

func TestYAMLPreferencesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.yaml")
	if err := os.WriteFile(path, []byte("timezone:\n  manualOffset: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	repo, err := NewYAMLPreferencesRepository(path)
	if err != nil {
		t.Fatalf("NewYAMLPreferencesRepository: %v", err)
	}
	prefs, _ := repo.Load()
	if prefs.Timezone.ManualOffset != 2 {
		t.Errorf("manualOffset = %v", prefs.Timezone.ManualOffset)
	}
	if prefs.Theme.ColorScheme != models.ColorSchemeSystem || prefs.Time.Provider != models.TimeSourceLocal {
		t.Errorf("отсутствующие поля не получили умолчания: %+v", prefs)
	}
}

func TestYAMLPreferencesBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.yaml")
	if err := os.WriteFile(path, []byte("time: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := NewYAMLPreferencesRepository(path)
	if err == nil || !strings.Contains(err.Error(), "YAML") {
		t.Fatalf("ожидалась ошибка разбора, получено %v", err)
	}
}
