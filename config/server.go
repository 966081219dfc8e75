package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Server HTTP surface settings
type Server struct {
	Host              string        `json:"host"`
	Port              int           `json:"port" validate:"gt=0,lte=65535"`
	MaxInvocations    int           `json:"max_invocations" validate:"gt=0"`
	QueueSize         int           `json:"queue_size" validate:"gt=0"`
	InvocationTimeout time.Duration `json:"invocation_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func getServerConfig(v *viper.Viper) *Server {
	return &Server{
		Host:              getStringOrDefault(v, "server.host", "0.0.0.0"),
		Port:              getIntOrDefault(v, "server.port", 8080),
		MaxInvocations:    getIntOrDefault(v, "server.max_invocations", 8),
		QueueSize:         getIntOrDefault(v, "server.queue_size", 64),
		InvocationTimeout: getDurationOrDefault(v, "server.invocation_timeout", 15*time.Minute),
		ShutdownTimeout:   getDurationOrDefault(v, "server.shutdown_timeout", 10*time.Second),
	}
}

// Cache settings
type Cache struct {
	Redis *Redis `json:"redis" validate:"required"`
}

// Redis holds the shared catalog snapshot location, disabled when Addr is empty
type Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db" validate:"gte=0"`
	Key      string `json:"key" validate:"required"`
}

// Enabled reports whether a redis store is configured
func (r *Redis) Enabled() bool {
	return r != nil && r.Addr != ""
}

func getCacheConfig(v *viper.Viper) *Cache {
	return &Cache{
		Redis: &Redis{
			Addr:     v.GetString("cache.redis.addr"),
			Password: v.GetString("cache.redis.password"),
			DB:       getIntOrDefault(v, "cache.redis.db", 0),
			Key:      getStringOrDefault(v, "cache.redis.key", "runpod:catalog"),
		},
	}
}
