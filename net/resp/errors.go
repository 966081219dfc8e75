package resp

import (
	"net/http"

	"github.com/ncobase/runpod/ecode"
)

// UnAuthorized indicates that the request is unauthorized.
func UnAuthorized(message string, data ...any) *Exception {
	return newException(http.StatusUnauthorized, ecode.Unauthorized, message, data...)
}

// BadRequest indicates a bad request.
func BadRequest(message string, data ...any) *Exception {
	return newException(http.StatusBadRequest, ecode.RequestErr, message, data...)
}

// NotFound indicates that the requested resource is not found.
func NotFound(message string, data ...any) *Exception {
	return newException(http.StatusNotFound, ecode.NotFound, message, data...)
}

// InternalServer indicates a server error.
func InternalServer(message string, data ...any) *Exception {
	return newException(http.StatusInternalServerError, ecode.ServerErr, message, data...)
}

// ServiceUnavailable indicates the server cannot take more work right now.
func ServiceUnavailable(message string, data ...any) *Exception {
	return newException(http.StatusServiceUnavailable, ecode.ServiceUnavailable, message, data...)
}

// Timeout indicates the request ran out of time.
func Timeout(message string, data ...any) *Exception {
	return newException(http.StatusGatewayTimeout, ecode.Deadline, message, data...)
}
