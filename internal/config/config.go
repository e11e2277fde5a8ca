// Package config loads radiomem.yaml and RADIOMEM_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. RADIOMEM_SERIAL_PORT.
const EnvPrefix = "RADIOMEM"

type LogConfig struct {
	LogPath    string `mapstructure:"log_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`
}

type ModelsConfig struct {
	// Dir holds extra model manifests loaded next to the built-in ones.
	Dir string `mapstructure:"dir"`
}

type SerialConfig struct {
	Port    string        `mapstructure:"port"`
	Baud    int           `mapstructure:"baud"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	// Listen is the address the clone metrics are served on during
	// transfers. Empty disables the endpoint.
	Listen string `mapstructure:"listen"`
}

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Models  ModelsConfig  `mapstructure:"models"`
	Serial  SerialConfig  `mapstructure:"serial"`
	Store   StoreConfig   `mapstructure:"store"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.log_path", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("models.dir", "")
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 9600)
	v.SetDefault("serial.timeout", "1s")
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("metrics.listen", "")
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "radiomem.db"
	}
	return filepath.Join(dir, "radiomem", "images.db")
}

// Load reads configuration from file, or from radiomem.yaml in the working
// directory or the user config directory when file is empty. A missing
// default file is not an error.
func Load(file string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("radiomem")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "radiomem"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Serial.Baud <= 0 {
		return nil, nil, fmt.Errorf("config: invalid serial baud %d", cfg.Serial.Baud)
	}
	return &cfg, v, nil
}
