package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads .env, .env.<VELORA_ENV> and .env.local from dir, in
// increasing precedence. Missing files are skipped.
func LoadEnvFiles(dir string) error {
	base := filepath.Join(dir, ".env")
	if _, err := os.Stat(base); err == nil {
		if err := godotenv.Load(base); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if env := os.Getenv(KeyEnvironment); env != "" {
		envFile := filepath.Join(dir, ".env."+env)
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Overload(envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", filepath.Base(envFile), err)
			}
		}
	}

	local := filepath.Join(dir, ".env.local")
	if _, err := os.Stat(local); err == nil {
		if err := godotenv.Overload(local); err != nil {
			return fmt.Errorf("failed to load .env.local: %w", err)
		}
	}
	return nil
}

// Load reads the env files in the working directory and returns settings
// backed by the process environment.
func Load() (*Settings, error) {
	if err := LoadEnvFiles("."); err != nil {
		return nil, err
	}
	s := NewSettings(EnvStore{})
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
