// Package config loads adapter configuration with Viper.
//
// Values come from a YAML file (explicit path, or config.yaml searched in
// ".", "$HOME/.runpod" and "/etc/runpod") overridden by environment
// variables prefixed with RUNPOD_, e.g. RUNPOD_SERVER_PORT. The provider
// credential is read from RUNPOD_API_KEY.
//
//	app_name: runpod
//	run_mode: release
//	server:
//	  port: 8080
//	  max_invocations: 8
//	runpod:
//	  poll_interval: 1s
//	  poll_timeout: 60s
//	  catalog_ttl: 5m
//	cache:
//	  redis:
//	    addr: localhost:6379
//
// Missing keys fall back to defaults through the get*OrDefault helpers and
// the result is validated before use. Watch reloads on file changes.
package config
