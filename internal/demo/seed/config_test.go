package seed

import (
	"strings"
	"testing"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"BUSASSIST_SEED":                 "7",
		"BUSASSIST_SEED_USERS":           "12",
		"BUSASSIST_SEED_BUSES_PER_ROUTE": "2",
		"BUSASSIST_SEED_TICKETS":         "0",
		"BUSASSIST_SEED_NOTIFICATIONS":   "4",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	want := Config{Seed: 7, Users: 12, BusesPerRoute: 2, Tickets: 0, Notifications: 4}
	if cfg != want {
		t.Fatalf("cfg = %+v, want %+v", cfg, want)
	}
}

func TestLoadConfigFromEnvRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"BUSASSIST_SEED_USERS":           "0",
		"BUSASSIST_SEED_BUSES_PER_ROUTE": "many",
		"BUSASSIST_SEED_TICKETS":         "-1",
	}
	for key, value := range tests {
		_, err := LoadConfigFromEnv(mapLookup(map[string]string{key: value}))
		if err == nil || !strings.Contains(err.Error(), key) {
			t.Fatalf("%s=%s error = %v", key, value, err)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}
