package config

import (
	"errors"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "tendo.db"
	appDirName            = "tendo"
)

type Keymap struct {
	Quit    string `toml:"quit"`
	Add     string `toml:"add"`
	Up      string `toml:"up"`
	Down    string `toml:"down"`
	Toggle  string `toml:"toggle"`
	Delete  string `toml:"delete"`
	Detail  string `toml:"detail"`
	Confirm string `toml:"confirm"`
	Cancel  string `toml:"cancel"`
	Edit    string `toml:"edit"`
	Filter  string `toml:"filter"`
	Search  string `toml:"search"`
}

type Reminders struct {
	Enabled bool   `toml:"enabled"`
	LogPath string `toml:"log_path"`
}

type Config struct {
	DBPath        string    `toml:"db_path"`
	DefaultFilter string    `toml:"default_filter"`
	Reminders     Reminders `toml:"reminders"`
	Keys          Keymap    `toml:"keys"`
}

// ResolveConfigPath prefers the user config dir, falling back to the
// working directory when it cannot be determined.
func ResolveConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(base, appDirName, DefaultConfigFileName)
}

func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}
	return cfg, nil
}

func write(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultDBPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return DefaultDBName
	}
	return filepath.Join(base, appDirName, DefaultDBName)
}

func defaultConfig() Config {
	return Config{
		DBPath:        defaultDBPath(),
		DefaultFilter: "all",
		Reminders: Reminders{
			Enabled: true,
		},
		Keys: Keymap{
			Quit:    "q",
			Add:     "a",
			Up:      "k",
			Down:    "j",
			Toggle:  " ",
			Delete:  "d",
			Detail:  "enter",
			Confirm: "enter",
			Cancel:  "esc",
			Edit:    "e",
			Filter:  "f",
			Search:  "/",
		},
	}
}
