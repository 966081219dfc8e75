// Package resp provides the JSON response helpers used by the HTTP server.
//
// Successful responses write the payload as-is, or {"message": ...} when the
// payload is a string. Failures share one shape:
//
//	{
//	  "code": -1003,          // business code from ecode
//	  "message": "...",       // human-readable message
//	  "errors": {...}         // optional details
//	}
//
// Usage:
//
//	resp.Success(w, models)
//	resp.Fail(w, resp.BadRequest("operation is required"))
//	resp.Fail(w, resp.FromError(err))
package resp
