// Package ecode defines the business error codes shared by the adapter's
// CLI and HTTP surface, with message and HTTP status lookup.
//
// Codes follow the usual convention:
//   - 0: Success (OK)
//   - -400 to -599: request and server errors
//   - -1001 to -1006: provider job errors
//
// Errors raised by the job client, poller and catalog implement Coder, so
// callers can recover the code without knowing the concrete type:
//
//	code := ecode.Of(err)
//	status := ecode.ToHTTPStatus(code)
//	message := ecode.Text(code)
package ecode
