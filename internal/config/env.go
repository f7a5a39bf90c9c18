package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Env holds the environment overrides.
type Env struct {
	OrgID    string `env:"PRODUCTIVE_ORG_ID" env-default:""`
	Token    string `env:"PRODUCTIVE_API_TOKEN" env-default:""`
	BaseURL  string `env:"PRODUCTIVE_BASE_URL" env-default:""`
	CacheDir string `env:"PRODUCTIVE_CACHE_DIR" env-default:""`
}

// ReadEnv reads the PRODUCTIVE_* environment variables.
func ReadEnv() (Env, error) {
	var env Env
	if err := cleanenv.ReadEnv(&env); err != nil {
		return Env{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return env, nil
}
