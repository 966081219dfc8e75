package config

import (
	"github.com/spf13/viper"
)

// Config is the logger configuration
type Config struct {
	Level           int              `json:"level" yaml:"level"`
	Format          string           `json:"format" yaml:"format"`
	Output          string           `json:"output" yaml:"output"`
	OutputFile      string           `json:"output_file" yaml:"output_file"`
	Desensitization *Desensitization `json:"desensitization" yaml:"desensitization"`
}

// Default values
const (
	defaultLevel  = 4 // logrus.InfoLevel
	defaultFormat = "json"
	defaultOutput = "stderr"
)

// Default returns the configuration used when no logger section is present
func Default() *Config {
	return &Config{
		Level:           defaultLevel,
		Format:          defaultFormat,
		Output:          defaultOutput,
		Desensitization: defaultDesensitization(),
	}
}

// GetConfig returns the logger configuration
func GetConfig(v *viper.Viper) *Config {
	if !v.IsSet("logger") {
		return Default()
	}

	c := &Config{
		Level:           v.GetInt("logger.level"),
		Format:          v.GetString("logger.format"),
		Output:          v.GetString("logger.output"),
		OutputFile:      v.GetString("logger.output_file"),
		Desensitization: getDesensitizationConfigs(v),
	}
	if !v.IsSet("logger.level") {
		c.Level = defaultLevel
	}
	if c.Format == "" {
		c.Format = defaultFormat
	}
	if c.Output == "" {
		c.Output = defaultOutput
	}
	return c
}
