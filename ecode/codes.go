package ecode

import "net/http"

// Common codes
const (
	OK                 = 0
	RequestErr         = -400
	Unauthorized       = -401
	NotFound           = -404
	ServerErr          = -500
	ServiceUnavailable = -503
	Deadline           = -504
)

// Provider job codes
const (
	ConfigurationErr = -1001 // missing api key or invalid settings
	ProtocolErr      = -1002 // malformed provider reply or item input
	TransportErr     = -1003 // network, non-2xx or undecodable body
	JobFailed        = -1004 // provider reported FAILED
	JobTimeout       = -1005 // polling budget exhausted
	DiscoveryErr     = -1006 // catalog refresh failed
	JobCancelled     = -1007 // caller stopped waiting for the job
)

var (
	texts = map[int]string{
		OK:                 "ok",
		RequestErr:         "Invalid request",
		Unauthorized:       "Unauthorized",
		NotFound:           "Resource not found",
		ServerErr:          "Internal server error",
		ServiceUnavailable: "Service unavailable",
		Deadline:           "Deadline exceeded",
		ConfigurationErr:   "Adapter is not configured",
		ProtocolErr:        "Malformed provider reply or input",
		TransportErr:       "Provider request failed",
		JobFailed:          "Provider job failed",
		JobTimeout:         "Provider job timed out",
		DiscoveryErr:       "Model discovery failed",
		JobCancelled:       "Provider job wait cancelled",
	}
	statuses = map[int]int{
		OK:                 http.StatusOK,
		RequestErr:         http.StatusBadRequest,
		Unauthorized:       http.StatusUnauthorized,
		NotFound:           http.StatusNotFound,
		ServerErr:          http.StatusInternalServerError,
		ServiceUnavailable: http.StatusServiceUnavailable,
		Deadline:           http.StatusGatewayTimeout,
		ConfigurationErr:   http.StatusUnauthorized,
		ProtocolErr:        http.StatusBadRequest,
		TransportErr:       http.StatusBadGateway,
		JobFailed:          http.StatusBadGateway,
		JobTimeout:         http.StatusGatewayTimeout,
		DiscoveryErr:       http.StatusBadGateway,
		JobCancelled:       http.StatusRequestTimeout,
	}
)

// Coder is implemented by errors that carry a business code.
type Coder interface {
	Code() int
}

// Text returns the message for a code
func Text(code int) string {
	if msg, ok := texts[code]; ok {
		return msg
	}
	return texts[ServerErr]
}

// ToHTTPStatus maps a code to an HTTP status
func ToHTTPStatus(code int) int {
	if status, ok := statuses[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
