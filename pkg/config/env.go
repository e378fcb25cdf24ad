package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment overrides, applied after the YAML file.
const (
	EnvServerAddress = "DYNVIEW_SERVER_ADDRESS"
	EnvDBPath        = "DYNVIEW_DB_PATH"
	EnvLogLevel      = "DYNVIEW_LOG_LEVEL"
	EnvMockEnabled   = "DYNVIEW_MOCK_ENABLED"
)

// ApplyEnv overrides deployment settings from the process environment and,
// for variables the environment does not set, from the dotenv file at path.
// A missing dotenv file is not an error.
func ApplyEnv(cfg *Config, path string) error {
	vars := map[string]string{}
	if path != "" {
		fileVars, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read env file: %w", err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for _, k := range []string{EnvServerAddress, EnvDBPath, EnvLogLevel, EnvMockEnabled} {
		if v, ok := os.LookupEnv(k); ok {
			vars[k] = v
		}
	}

	if v := vars[EnvServerAddress]; v != "" {
		cfg.Server.Address = v
	}
	if v := vars[EnvDBPath]; v != "" {
		cfg.DB.Path = v
	}
	if v := vars[EnvLogLevel]; v != "" {
		cfg.Log.Server.Level = v
	}
	if v := vars[EnvMockEnabled]; v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMockEnabled, err)
		}
		cfg.Mock.Enabled = enabled
	}
	return nil
}
