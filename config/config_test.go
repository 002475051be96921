package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openclaw/audioqr/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := config.Defaults()
	if cfg.Encoder != want.Encoder {
		t.Errorf("encoder = %+v, want %+v", cfg.Encoder, want.Encoder)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Encoder.MaxPayloadBytes != 2240 || cfg.Encoder.QRVersion != 20 || cfg.Encoder.ModuleSize != 2 {
		t.Errorf("unexpected encoder defaults: %+v", cfg.Encoder)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
encoder:
  max_payload_bytes: 1000
  qr_version: 10
  error_correction_level: M
server:
  port: 9000
  read_timeout: 5s
log_level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AUDIOQR_PORT", "9100")
	t.Setenv("AUDIOQR_OUTPUT_PATH", "out.png")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Encoder.MaxPayloadBytes != 1000 {
		t.Errorf("max payload = %d, want 1000", cfg.Encoder.MaxPayloadBytes)
	}
	if cfg.Encoder.QRVersion != 10 {
		t.Errorf("version = %d, want 10", cfg.Encoder.QRVersion)
	}
	if cfg.Encoder.ErrorCorrection != "M" {
		t.Errorf("level = %q, want M", cfg.Encoder.ErrorCorrection)
	}
	// Untouched keys keep their defaults.
	if cfg.Encoder.ModuleSize != 2 {
		t.Errorf("module size = %d, want 2", cfg.Encoder.ModuleSize)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Encoder.OutputPath != "out.png" {
		t.Errorf("output = %q, want out.png", cfg.Encoder.OutputPath)
	}
	if cfg.Server.ReadTimeout.Duration != 5*time.Second {
		t.Errorf("read timeout = %v, want 5s", cfg.Server.ReadTimeout.Duration)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  read_timeout: soon\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected duration error, got nil")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("AUDIOQR_LOG_LEVEL=warn\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	chdir(t, dir)
	t.Cleanup(func() { os.Unsetenv("AUDIOQR_LOG_LEVEL") })

	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level = %q, want warn from .env", cfg.LogLevel)
	}
}

func TestLoadBadDotEnv(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, path string)
	}{
		{
			name: "unterminated quote",
			setup: func(t *testing.T, path string) {
				if err := os.WriteFile(path, []byte("AUDIOQR_PORT=\"9000\n"), 0o644); err != nil {
					t.Fatalf("write .env: %v", err)
				}
			},
		},
		{
			name: "not a file",
			setup: func(t *testing.T, path string) {
				if err := os.Mkdir(path, 0o755); err != nil {
					t.Fatalf("mkdir .env: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, filepath.Join(dir, ".env"))
			chdir(t, dir)

			_, err := config.Load(filepath.Join(dir, "config.yaml"))
			if err == nil {
				t.Fatal("expected .env error, got nil")
			}
			if !strings.Contains(err.Error(), ".env") {
				t.Errorf("error %q does not mention .env", err)
			}
		})
	}
}

func TestEnsureDataDir(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = filepath.Join(t.TempDir(), "a", "b")

	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("ensure data dir: %v", err)
	}
	if fi, err := os.Stat(cfg.DataDir); err != nil || !fi.IsDir() {
		t.Fatalf("data dir not created: %v", err)
	}
	if got, want := cfg.HistoryPath(), filepath.Join(cfg.DataDir, "history.db"); got != want {
		t.Errorf("history path = %q, want %q", got, want)
	}
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
