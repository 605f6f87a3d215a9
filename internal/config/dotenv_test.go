package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marketdash/dash-assistant-go/internal/config"
)

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# local overrides
OLLAMA_MODEL=llava:13b
export SCHEDULER_ENABLED=false
QUOTED="hello world"
PRESET=from-file
malformed line
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PRESET", "from-env")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("SCHEDULER_ENABLED", "")
	t.Setenv("QUOTED", "")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if got := os.Getenv("OLLAMA_MODEL"); got != "llava:13b" {
		t.Errorf("OLLAMA_MODEL = %q, want llava:13b", got)
	}
	if got := os.Getenv("SCHEDULER_ENABLED"); got != "false" {
		t.Errorf("export-prefixed key not loaded, got %q", got)
	}
	if got := os.Getenv("QUOTED"); got != "hello world" {
		t.Errorf("quotes not stripped, got %q", got)
	}
	if got := os.Getenv("PRESET"); got != "from-env" {
		t.Errorf("existing env var must win, got %q", got)
	}
}

func TestLoadDotEnvMissingFileIsNotAnError(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing dotenv file should be ignored, got %v", err)
	}
}
