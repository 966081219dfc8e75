package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	logcfg "github.com/ncobase/runpod/logging/logger/config"
	"github.com/ncobase/runpod/validator"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RUNPOD_SERVER_PORT.
const EnvPrefix = "RUNPOD"

var (
	config *Config
	path   string
	mu     sync.RWMutex
	v      *viper.Viper
)

// Config represents the configuration implementation.
type Config struct {
	AppName string         `json:"app_name" validate:"required"`
	RunMode string         `json:"run_mode" validate:"oneof=debug release test"`
	Server  *Server        `json:"server" validate:"required"`
	Runpod  *Runpod        `json:"runpod" validate:"required"`
	Cache   *Cache         `json:"cache" validate:"required"`
	Logger  *logcfg.Config `json:"logger"`
	Viper   *viper.Viper   `json:"-" validate:"-"`
}

// Init loads the configuration from configPath (or the search paths when empty)
// and makes it the process configuration.
func Init(configPath string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	vp := viper.New()
	cfg, err := load(vp, configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	path, v, config = configPath, vp, cfg
	return cfg, nil
}

// GetConfig returns the process configuration, loading defaults on first use.
func GetConfig() (*Config, error) {
	mu.RLock()
	cfg := config
	mu.RUnlock()
	if cfg != nil {
		return cfg, nil
	}
	return Init("")
}

// LoadConfig reads a configuration without touching the process configuration.
func LoadConfig(configPath string) (*Config, error) {
	return load(viper.New(), configPath)
}

func load(vp *viper.Viper, configPath string) (*Config, error) {
	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()
	// the credential is commonly exported as RUNPOD_API_KEY
	_ = vp.BindEnv("runpod.api_key", EnvPrefix+"_API_KEY", EnvPrefix+"_RUNPOD_API_KEY")

	if configPath != "" {
		vp.SetConfigFile(configPath)
	} else {
		vp.SetConfigName("config")
		vp.AddConfigPath(".")
		vp.AddConfigPath("$HOME/.runpod")
		vp.AddConfigPath("/etc/runpod")
		if ex, err := os.Executable(); err == nil {
			vp.AddConfigPath(filepath.Dir(ex))
		}
	}

	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// without an explicit path a missing file means defaults plus env
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		AppName: getStringOrDefault(vp, "app_name", "runpod"),
		RunMode: getStringOrDefault(vp, "run_mode", "release"),
		Server:  getServerConfig(vp),
		Runpod:  getRunpodConfig(vp),
		Cache:   getCacheConfig(vp),
		Logger:  logcfg.GetConfig(vp),
		Viper:   vp,
	}

	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Reload reloads the configuration from the file.
func Reload() error {
	mu.Lock()
	defer mu.Unlock()

	newConfig, err := load(viper.New(), path)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	config = newConfig
	return nil
}

// Watch watches the configuration file and reloads it when it changes.
// Reload failures keep the previous configuration and are passed to onError.
func Watch(callback func(*Config), onError func(error)) {
	mu.RLock()
	vp := v
	mu.RUnlock()
	if vp == nil || vp.ConfigFileUsed() == "" {
		return
	}

	vp.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := Reload(); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		mu.RLock()
		cfg := config
		mu.RUnlock()
		callback(cfg)
	})
	vp.WatchConfig()
}
