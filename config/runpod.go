package config

import (
	"time"

	"github.com/spf13/viper"
)

// Public endpoint hosts
const (
	DefaultAPIHost       = "https://api.runpod.io"
	DefaultInferenceHost = "https://api.runpod.ai"
)

// Runpod provider settings
type Runpod struct {
	APIKey         string        `json:"api_key"`
	APIHost        string        `json:"api_host" validate:"required,url"`
	InferenceHost  string        `json:"inference_host" validate:"required,url"`
	PollInterval   time.Duration `json:"poll_interval" validate:"gte=0"`
	PollTimeout    time.Duration `json:"poll_timeout" validate:"gte=0"`
	CatalogTTL     time.Duration `json:"catalog_ttl" validate:"gt=0"`
	RequestTimeout time.Duration `json:"request_timeout" validate:"gt=0"`
	MaxInflight    int           `json:"max_inflight" validate:"gte=0"`
	Breaker        *Breaker      `json:"breaker" validate:"required"`
}

// Breaker configures the per-host circuit breaker around provider requests
type Breaker struct {
	Enabled      bool          `json:"enabled"`
	MaxRequests  uint32        `json:"max_requests"`
	Interval     time.Duration `json:"interval"`
	Timeout      time.Duration `json:"timeout"`
	MinRequests  uint32        `json:"min_requests"`
	FailureRatio float64       `json:"failure_ratio" validate:"gte=0,lte=1"`
}

func getRunpodConfig(v *viper.Viper) *Runpod {
	return &Runpod{
		APIKey:         v.GetString("runpod.api_key"),
		APIHost:        getStringOrDefault(v, "runpod.api_host", DefaultAPIHost),
		InferenceHost:  getStringOrDefault(v, "runpod.inference_host", DefaultInferenceHost),
		PollInterval:   getDurationOrDefault(v, "runpod.poll_interval", time.Second),
		PollTimeout:    getDurationOrDefault(v, "runpod.poll_timeout", 60*time.Second),
		CatalogTTL:     getDurationOrDefault(v, "runpod.catalog_ttl", 5*time.Minute),
		RequestTimeout: getDurationOrDefault(v, "runpod.request_timeout", 90*time.Second),
		MaxInflight:    getIntOrDefault(v, "runpod.max_inflight", 16),
		Breaker: &Breaker{
			Enabled:      getBoolOrDefault(v, "runpod.breaker.enabled", true),
			MaxRequests:  getUint32OrDefault(v, "runpod.breaker.max_requests", 100),
			Interval:     getDurationOrDefault(v, "runpod.breaker.interval", 5*time.Second),
			Timeout:      getDurationOrDefault(v, "runpod.breaker.timeout", 3*time.Second),
			MinRequests:  getUint32OrDefault(v, "runpod.breaker.min_requests", 3),
			FailureRatio: getFloat64OrDefault(v, "runpod.breaker.failure_ratio", 0.6),
		},
	}
}
