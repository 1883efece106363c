package models

import "testing"

func TestPreferencesSetGet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{key: "time.provider", value: "cloud", want: "cloud"},
		{key: "time.provider", value: "ntp", wantErr: true},
		{key: "timezone.provider", value: "manual", want: "manual"},
		{key: "timezone.manualOffset", value: "5.5", want: "5.5"},
		{key: "timezone.manualOffset", value: "14", wantErr: true},
		{key: "theme.colorScheme", value: "purple", want: "os"},
		{key: "serial.baudRate", value: "fast", wantErr: true},
		{key: "unknown.key", value: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			p := DefaultPreferences()
			err := p.Set(tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ожидалась ошибка")
				}
				return
			}
			if err != nil {
				t.Fatalf("Set: %v", err)
			}
			if got, _ := p.Get(tt.key); got != tt.want {
				t.Errorf("Get = %q, ожидалось %q", got, tt.want)
			}
		})
	}
}

func TestPreferencesDraft(t *testing.T) {
	base := DefaultPreferences()
	d := NewPreferencesDraft(base)

	if err := d.Set("timezone.manualOffset", "3"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := d.Set("timezone.manualOffset", "99"); err == nil {
		t.Error("недопустимое значение принято")
	}
	if !d.HasPendingChanges() {
		t.Fatal("ожидались отложенные изменения")
	}
	if v, _ := d.Get("timezone.manualOffset"); v != "3" {
		t.Errorf("Get = %q", v)
	}

	d.Revert()
	if d.HasPendingChanges() {
		t.Error("Revert не очистил изменения")
	}
	if v, _ := d.Get("timezone.manualOffset"); v != "0" {
		t.Errorf("после Revert = %q", v)
	}

	_ = d.Set("theme.colorScheme", "dark")
	committed := d.Commit()
	if committed.Theme.ColorScheme != ColorSchemeDark || d.HasPendingChanges() {
		t.Errorf("Commit: %+v", committed)
	}
	if len(PreferenceKeys()) != len(preferenceKeys) {
		t.Error("PreferenceKeys неполон")
	}
}
