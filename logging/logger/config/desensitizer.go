package config

import "github.com/spf13/viper"

// Desensitization holds desensitization settings
type Desensitization struct {
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	SensitiveFields []string `json:"sensitive_fields" yaml:"sensitive_fields"`
	CustomPatterns  []string `json:"custom_patterns" yaml:"custom_patterns"`
	MaskChar        string   `json:"mask_char" yaml:"mask_char"`
	FixedMaskLength int      `json:"fixed_mask_length" yaml:"fixed_mask_length"`
	ExactFieldMatch bool     `json:"exact_field_match" yaml:"exact_field_match"`
	MaskBearer      bool     `json:"mask_bearer" yaml:"mask_bearer"`
}

// Fields that never reach the log in clear text
var defaultSensitiveFields = []string{
	"api_key", "apikey", "api-key",
	"authorization", "token", "secret", "password",
}

const (
	defaultMaskChar        = "*"
	defaultFixedMaskLength = 6
)

func defaultDesensitization() *Desensitization {
	return &Desensitization{
		Enabled:         true,
		SensitiveFields: defaultSensitiveFields,
		MaskChar:        defaultMaskChar,
		FixedMaskLength: defaultFixedMaskLength,
		MaskBearer:      true,
	}
}

// getDesensitizationConfigs reads and returns desensitization configuration
func getDesensitizationConfigs(v *viper.Viper) *Desensitization {
	if !v.IsSet("logger.desensitization") {
		return defaultDesensitization()
	}

	c := &Desensitization{
		Enabled:         v.GetBool("logger.desensitization.enabled"),
		SensitiveFields: v.GetStringSlice("logger.desensitization.sensitive_fields"),
		CustomPatterns:  v.GetStringSlice("logger.desensitization.custom_patterns"),
		MaskChar:        v.GetString("logger.desensitization.mask_char"),
		FixedMaskLength: v.GetInt("logger.desensitization.fixed_mask_length"),
		ExactFieldMatch: v.GetBool("logger.desensitization.exact_field_match"),
		MaskBearer:      true,
	}

	if len(c.SensitiveFields) == 0 {
		c.SensitiveFields = defaultSensitiveFields
	}
	if c.MaskChar == "" {
		c.MaskChar = defaultMaskChar
	}
	if c.FixedMaskLength == 0 {
		c.FixedMaskLength = defaultFixedMaskLength
	}
	if v.IsSet("logger.desensitization.mask_bearer") {
		c.MaskBearer = v.GetBool("logger.desensitization.mask_bearer")
	}

	return c
}
