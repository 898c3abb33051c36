package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SESSIONLOG_"

// Settings are the runtime knobs of the bot process.
type Settings struct {
	Telegram      TelegramSettings `koanf:"telegram"`
	Storage       StorageSettings  `koanf:"storage"`
	HTTP          HTTPSettings     `koanf:"http"`
	Questionnaire string           `koanf:"questionnaire"`
}

type TelegramSettings struct {
	Token       string `koanf:"token"`
	Debug       bool   `koanf:"debug"`
	PollTimeout int    `koanf:"poll_timeout"`
}

type StorageSettings struct {
	DataFile       string `koanf:"data_file"`
	AttachmentsDir string `koanf:"attachments_dir"`
	ChartsDir      string `koanf:"charts_dir"`
}

type HTTPSettings struct {
	Addr string `koanf:"addr"`
}

var defaultSettings = map[string]any{
	"telegram.poll_timeout":   60,
	"storage.data_file":       "sessions.json",
	"storage.attachments_dir": "attachments",
	"storage.charts_dir":      "charts",
	"http.addr":               ":8080",
}

// LoadSettings layers an optional YAML file, SESSIONLOG_* environment variables (with "__" as the
// nesting separator, e.g. SESSIONLOG_STORAGE__DATA_FILE) and defaults.
func LoadSettings(path string) (*Settings, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load settings from '%s': %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat settings file '%s': %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load settings from environment: %w", err)
	}

	for key, value := range defaultSettings {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("failed to set default for %s: %w", key, err)
			}
		}
	}

	var cfg Settings
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	return &cfg, nil
}

// RequireToken fails when no Telegram token was configured.
func (s *Settings) RequireToken() error {
	if s.Telegram.Token == "" {
		return fmt.Errorf("telegram token not set: use %sTELEGRAM__TOKEN or TELEGRAM_BOT_TOKEN", envPrefix)
	}
	return nil
}
