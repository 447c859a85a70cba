// Package config resolves the grayscale command configuration from flags,
// environment variables and an optional YAML/TOML/JSON file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/gogpu/grayscale"
)

// Configuration keys. Flags use the same names.
const (
	KeyInput         = "input"
	KeyOutput        = "output"
	KeyBackend       = "backend"
	KeyOrder         = "order"
	KeyQuality       = "quality"
	KeyTimeout       = "timeout"
	KeyWorkers       = "workers"
	KeyAllowSoftware = "allow-software"
	KeyPlatforms     = "platforms"
	KeyLogLevel      = "log-level"
)

// EnvPrefix prefixes every environment variable, e.g. GRAYSCALE_BACKEND.
const EnvPrefix = "GRAYSCALE"

// configName is the file searched in the home directory, without extension.
const configName = ".grayscale"

// Config is the resolved command configuration.
type Config struct {
	Input         string
	Output        string
	Backend       string
	Order         grayscale.ChannelOrder
	Quality       int
	Timeout       time.Duration
	Workers       int
	AllowSoftware bool
	Platforms     []string
	LogLevel      slog.Level
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyInput, "image.jpg")
	v.SetDefault(KeyOutput, "gray_image.jpg")
	v.SetDefault(KeyBackend, "gpu")
	v.SetDefault(KeyOrder, "bgr")
	v.SetDefault(KeyQuality, 90)
	v.SetDefault(KeyTimeout, grayscale.DefaultTimeout)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyAllowSoftware, false)
	v.SetDefault(KeyPlatforms, []string{})
	v.SetDefault(KeyLogLevel, "warn")
}

// Init wires environment variables into v and reads the config file.
//
// cfgFile is used when set and must exist. Otherwise $HOME/.grayscale.* is
// read if present. It returns the file actually used, or "".
func Init(v *viper.Viper, cfgFile string) (string, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("config: find home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(configName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("config: read %s: %w", cfgFile, err)
	}
	return v.ConfigFileUsed(), nil
}

// Load reads and validates every key from v.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		Input:         v.GetString(KeyInput),
		Output:        v.GetString(KeyOutput),
		Backend:       v.GetString(KeyBackend),
		Quality:       v.GetInt(KeyQuality),
		Timeout:       v.GetDuration(KeyTimeout),
		Workers:       v.GetInt(KeyWorkers),
		AllowSoftware: v.GetBool(KeyAllowSoftware),
		Platforms:     splitList(v.GetStringSlice(KeyPlatforms)),
	}

	if c.Input == "" {
		return Config{}, errors.New("config: input path is empty")
	}
	if c.Output == "" {
		return Config{}, errors.New("config: output path is empty")
	}
	if c.Backend == "" {
		return Config{}, errors.New("config: backend is empty")
	}

	order, err := grayscale.ParseChannelOrder(strings.ToLower(v.GetString(KeyOrder)))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", KeyOrder, err)
	}
	c.Order = order

	if c.Quality < 1 || c.Quality > 100 {
		return Config{}, fmt.Errorf("config: %s %d out of range 1-100", KeyQuality, c.Quality)
	}
	if c.Timeout <= 0 {
		return Config{}, fmt.Errorf("config: %s must be positive, got %v", KeyTimeout, c.Timeout)
	}
	if c.Workers < 0 {
		return Config{}, fmt.Errorf("config: %s must not be negative", KeyWorkers)
	}

	if err := c.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", KeyLogLevel, err)
	}
	return c, nil
}

// Options returns the converter options for c.
func (c Config) Options() []grayscale.Option {
	opts := []grayscale.Option{
		grayscale.WithBackend(c.Backend),
		grayscale.WithTimeout(c.Timeout),
		grayscale.WithWorkers(c.Workers),
		grayscale.WithSoftwareAdapters(c.AllowSoftware),
	}
	if len(c.Platforms) > 0 {
		opts = append(opts, grayscale.WithPlatforms(c.Platforms...))
	}
	return opts
}

// splitList accepts both list values and a single comma separated string,
// as environment variables deliver.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
