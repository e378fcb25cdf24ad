package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "NoFile",
			check: func(t *testing.T, cfg *Config) {
				if want := DefaultConfig().Server.Address; cfg.Server.Address != want {
					t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, want)
				}
			},
		},
		{
			name: "FileOnly",
			file: "DYNVIEW_SERVER_ADDRESS=0.0.0.0:8080\nDYNVIEW_DB_PATH=/var/lib/dynview/journal.db\nDYNVIEW_MOCK_ENABLED=false\n",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Address != "0.0.0.0:8080" {
					t.Errorf("Server.Address = %q", cfg.Server.Address)
				}
				if cfg.DB.Path != "/var/lib/dynview/journal.db" {
					t.Errorf("DB.Path = %q", cfg.DB.Path)
				}
				if cfg.Mock.Enabled {
					t.Error("Mock.Enabled = true, want false")
				}
			},
		},
		{
			name: "EnvironmentWins",
			file: "DYNVIEW_LOG_LEVEL=DEBUG\n",
			env:  map[string]string{EnvLogLevel: "WARN"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Log.Server.Level != "WARN" {
					t.Errorf("Log.Server.Level = %q, want WARN", cfg.Log.Server.Level)
				}
			},
		},
		{
			name:    "BadBool",
			env:     map[string]string{EnvMockEnabled: "sometimes"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), ".env")
			if tt.file != "" {
				if err := os.WriteFile(path, []byte(tt.file), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			cfg := DefaultConfig()
			err := ApplyEnv(cfg, path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
