package seed

import (
	"fmt"
	"strconv"
	"strings"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	Seed          int64
	Users         int
	BusesPerRoute int
	Tickets       int
	Notifications int
}

func DefaultConfig() Config {
	return Config{
		Seed:          1947,
		Users:         50,
		BusesPerRoute: 3,
		Tickets:       200,
		Notifications: 60,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyInt64(lookup, "BUSASSIST_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "BUSASSIST_SEED_USERS", &cfg.Users); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "BUSASSIST_SEED_BUSES_PER_ROUTE", &cfg.BusesPerRoute); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "BUSASSIST_SEED_TICKETS", &cfg.Tickets); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "BUSASSIST_SEED_NOTIFICATIONS", &cfg.Notifications); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Users <= 0 {
		return fmt.Errorf("BUSASSIST_SEED_USERS must be > 0")
	}
	if c.BusesPerRoute <= 0 {
		return fmt.Errorf("BUSASSIST_SEED_BUSES_PER_ROUTE must be > 0")
	}
	if c.Tickets < 0 {
		return fmt.Errorf("BUSASSIST_SEED_TICKETS must be >= 0")
	}
	if c.Notifications < 0 {
		return fmt.Errorf("BUSASSIST_SEED_NOTIFICATIONS must be >= 0")
	}
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
