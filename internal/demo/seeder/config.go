package seeder

import (
	"fmt"
	"strconv"
	"strings"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	Prefix      string
	PersonCount int
	Seed        int64
}

func DefaultConfig() Config {
	return Config{
		Prefix:      "demo",
		PersonCount: 500,
		Seed:        1,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "OMOPQL_SEED_PREFIX", &cfg.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "OMOPQL_SEED_PERSON_COUNT", &cfg.PersonCount); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "OMOPQL_SEED_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.Prefix) == "" {
		return Config{}, fmt.Errorf("OMOPQL_SEED_PREFIX is required")
	}
	if cfg.PersonCount <= 0 {
		return Config{}, fmt.Errorf("OMOPQL_SEED_PERSON_COUNT must be > 0")
	}

	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
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
