package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreate_WritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if cfg.DefaultFilter != "all" || !cfg.Reminders.Enabled {
		t.Errorf("defaults wrong: %+v", cfg)
	}
	if cfg.Keys.Add != "a" || cfg.Keys.Quit != "q" {
		t.Errorf("default keymap wrong: %+v", cfg.Keys)
	}
}

func TestLoadOrCreate_ReadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
db_path = "/tmp/other.db"
default_filter = "active"

[reminders]
enabled = false

[keys]
quit = "x"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" || cfg.DefaultFilter != "active" {
		t.Errorf("values not read: %+v", cfg)
	}
	if cfg.Reminders.Enabled {
		t.Error("reminders.enabled not read")
	}
	if cfg.Keys.Quit != "x" {
		t.Errorf("keymap override lost: %q", cfg.Keys.Quit)
	}
}

func TestLoadOrCreate_EmptyDBPathGetsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("db_path = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath == "" {
		t.Error("empty db_path should fall back to the default")
	}
}
