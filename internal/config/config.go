package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "tasklist.db"
	DefaultLogName        = "tasklist.log"

	appDirName = "tasklist"
)

type Keymap struct {
	Quit     string `toml:"quit"`
	Add      string `toml:"add"`
	Up       string `toml:"up"`
	Down     string `toml:"down"`
	Toggle   string `toml:"toggle"`
	Delete   string `toml:"delete"`
	Open     string `toml:"open"`
	Confirm  string `toml:"confirm"`
	Cancel   string `toml:"cancel"`
	MoveUp   string `toml:"move_up"`
	MoveDown string `toml:"move_down"`
	Back     string `toml:"back"`
}

type Config struct {
	DBPath   string `toml:"db_path" env:"TASKLIST_DB_PATH"`
	LogPath  string `toml:"log_path" env:"TASKLIST_LOG_PATH"`
	LogLevel string `toml:"log_level" env:"TASKLIST_LOG_LEVEL"`
	Keys     Keymap `toml:"keys"`
}

// ResolveConfigPath returns $TASKLIST_CONFIG when set, otherwise
// config.toml inside the user config directory. It falls back to the
// working directory when no config directory is known.
func ResolveConfigPath() string {
	if p := os.Getenv("TASKLIST_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, appDirName, DefaultConfigFileName)
}

// LoadOrCreate reads the config at path, writing the defaults there
// first if the file does not exist. Relative db and log paths are
// resolved against the config file's directory. Environment variables
// override file values.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := cleanenv.UpdateEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	if cfg.LogPath == "" {
		cfg.LogPath = DefaultLogName
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Keys = cfg.Keys.withDefaults(defaultConfig().Keys)

	base := filepath.Dir(path)
	cfg.DBPath = resolve(base, cfg.DBPath)
	cfg.LogPath = resolve(base, cfg.LogPath)
	return cfg, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// withDefaults fills keys left empty in older config files.
func (k Keymap) withDefaults(d Keymap) Keymap {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return Keymap{
		Quit:     pick(k.Quit, d.Quit),
		Add:      pick(k.Add, d.Add),
		Up:       pick(k.Up, d.Up),
		Down:     pick(k.Down, d.Down),
		Toggle:   pick(k.Toggle, d.Toggle),
		Delete:   pick(k.Delete, d.Delete),
		Open:     pick(k.Open, d.Open),
		Confirm:  pick(k.Confirm, d.Confirm),
		Cancel:   pick(k.Cancel, d.Cancel),
		MoveUp:   pick(k.MoveUp, d.MoveUp),
		MoveDown: pick(k.MoveDown, d.MoveDown),
		Back:     pick(k.Back, d.Back),
	}
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() Config {
	return Config{
		DBPath:   DefaultDBName,
		LogPath:  DefaultLogName,
		LogLevel: "info",
		Keys: Keymap{
			Quit:     "q",
			Add:      "a",
			Up:       "k",
			Down:     "j",
			Toggle:   " ",
			Delete:   "d",
			Open:     "enter",
			Confirm:  "enter",
			Cancel:   "esc",
			MoveUp:   "K",
			MoveDown: "J",
			Back:     "esc",
		},
	}
}
